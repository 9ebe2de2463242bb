package cache

import (
	"context"
	"errors"

	"github.com/hayan9104/Shopify-Demo1/internal/domain"
)

// SnapshotCache keeps the last observed cart snapshot and remembers which
// discount codes were already submitted. The platform cart stays the source
// of truth; the snapshot only serves read fallbacks and the discount
// markers only suppress repeat submissions.
type SnapshotCache interface {
	GetSnapshot(ctx context.Context) (*domain.Cart, error)
	SetSnapshot(ctx context.Context, cart *domain.Cart) error
	DiscountApplied(ctx context.Context, code string) (bool, error)
	MarkDiscountApplied(ctx context.Context, code string) error
}

var ErrCacheMiss = errors.New("cache miss")
