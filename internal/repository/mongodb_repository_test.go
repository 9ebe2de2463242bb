package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

func setupTestDB(t *testing.T) (AuditRepository, func()) {
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectMongoDB(ctx, uri, "testdb")
	require.NoError(t, err)

	repo := NewMongoRepository(db)
	require.NoError(t, repo.CreateIndexes(ctx))

	cleanup := func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func TestRecordAndRecent(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping mongodb integration test in short mode")
	}

	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	first := &ReconcileRecord{
		CartToken: "tok-1",
		Subtotal:  599900,
		Actions: []GiftAction{
			{Kind: "add", GiftKey: "plushie", VariantID: 101, Quantity: 1},
		},
		CreatedAt: time.Now().Add(-time.Minute),
	}
	require.NoError(t, repo.Record(ctx, first))
	assert.NotEmpty(t, first.ID, "Record should assign an ID")

	second := &ReconcileRecord{
		CartToken: "tok-1",
		Subtotal:  100000,
		Actions: []GiftAction{
			{Kind: "remove", GiftKey: "plushie", VariantID: 101, Line: 2},
		},
	}
	require.NoError(t, repo.Record(ctx, second))

	records, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Most recent first.
	assert.Equal(t, second.ID, records[0].ID)
	assert.Equal(t, int64(100000), records[0].Subtotal)
	require.Len(t, records[0].Actions, 1)
	assert.Equal(t, "remove", records[0].Actions[0].Kind)
	assert.Equal(t, "add", records[1].Actions[0].Kind)
}

func TestRecent_RespectsLimit(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping mongodb integration test in short mode")
	}

	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Record(ctx, &ReconcileRecord{
			CartToken: "tok-1",
			Subtotal:  int64(i),
		}))
	}

	records, err := repo.Recent(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}
