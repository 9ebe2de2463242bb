package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hayan9104/Shopify-Demo1/internal/domain"
	"github.com/hayan9104/Shopify-Demo1/internal/events"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/kafka"
	"gotest.tools/v3/assert"
)

func TestTranslate_WebhookEvent(t *testing.T) {
	ev, ok := Translate([]byte(`{"resource": "cart", "source": "theme", "cart_token": "tok-1"}`))
	assert.Assert(t, ok)
	assert.Equal(t, domain.SourceTheme, ev.Source)
	assert.Equal(t, "tok-1", ev.CartToken)
}

func TestTranslate_UnknownSourceBecomesWebhook(t *testing.T) {
	ev, ok := Translate([]byte(`{"source": "shopify-flow"}`))
	assert.Assert(t, ok)
	assert.Equal(t, domain.SourceWebhook, ev.Source)
	assert.Equal(t, "cart", ev.Resource)
}

func TestTranslate_ReconcilerEchoDropped(t *testing.T) {
	_, ok := Translate([]byte(`{"source": "reconciler"}`))
	assert.Assert(t, !ok)
}

func TestTranslate_MalformedMessageDropped(t *testing.T) {
	_, ok := Translate([]byte(`not json`))
	assert.Assert(t, !ok)
}

type countingReconciler struct {
	calls atomic.Int32
}

func (c *countingReconciler) Reconcile(context.Context) error {
	c.calls.Add(1)
	return nil
}

func TestResync_TriggersPeriodically(t *testing.T) {
	rec := &countingReconciler{}
	resync := NewResync(20*time.Millisecond, rec)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go resync.Run(ctx)

	require.Eventually(t, func() bool {
		return rec.calls.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestResync_StopsOnCancel(t *testing.T) {
	rec := &countingReconciler{}
	resync := NewResync(10*time.Millisecond, rec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		resync.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("resync did not stop")
	}
}

func TestProcessMessage_ClosedReaderFails(t *testing.T) {
	p := NewPoller(events.NewBus(), "storefront-cart-events", "gift-agent-test", "localhost:9092")
	p.Close()

	require.Error(t, p.processMessage(context.Background()))
}

func TestRun_PausesOnReadErrorAndStopsOnCancel(t *testing.T) {
	// A closed reader fails every read instantly; the loop must sit in its
	// pause instead of spinning, and still exit on cancellation.
	p := NewPoller(events.NewBus(), "storefront-cart-events", "gift-agent-test", "localhost:9092")
	p.Close()
	p.backoff = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poller did not stop while pausing on errors")
	}
}

func setupKafka(t *testing.T) (string, func()) {
	ctx := context.Background()

	kafkaContainer, err := kafka.Run(ctx, "confluentinc/confluent-local:7.5.0")
	require.NoError(t, err)

	brokers, err := kafkaContainer.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers, "broker address should not be empty")

	cleanup := func() {
		if err := kafkaContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate kafka container: %v", err)
		}
	}

	return brokers[0], cleanup
}

func createTopic(t *testing.T, brokerAddr, topic string) {
	conn, err := kafkaGo.Dial("tcp", brokerAddr)
	require.NoError(t, err)
	defer conn.Close()

	controller, err := conn.Controller()
	require.NoError(t, err)

	controllerConn, err := kafkaGo.Dial("tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	require.NoError(t, err)
	defer controllerConn.Close()

	topicConfigs := []kafkaGo.TopicConfig{{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}}

	err = controllerConn.CreateTopics(topicConfigs...)
	if err != nil {
		t.Logf("topic creation error (may already exist): %v", err)
	}
}

func TestPoller_RelaysKafkaMessagesToBus(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping kafka integration test in short mode")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	brokers, cleanupKafka := setupKafka(t)
	defer cleanupKafka()
	topic := "storefront-cart-events"
	createTopic(t, brokers, topic)

	bus := events.NewBus()
	ch, unsubscribe := bus.Subscribe(16)
	defer unsubscribe()

	p := NewPoller(bus, topic, "gift-agent-test", brokers)
	defer p.Close()
	go p.Run(ctx)

	w := &kafkaGo.Writer{
		Addr:                   kafkaGo.TCP(brokers),
		Topic:                  topic,
		Balancer:               &kafkaGo.LeastBytes{},
		AllowAutoTopicCreation: true,
	}
	payload, err := json.Marshal(map[string]string{
		"resource":   "cart",
		"source":     "theme",
		"cart_token": "tok-99",
	})
	require.NoError(t, err)
	err = w.WriteMessages(ctx, kafkaGo.Message{Key: []byte("tok-99"), Value: payload})
	require.NoError(t, err)
	w.Close()

	select {
	case ev := <-ch:
		assert.Equal(t, domain.SourceTheme, ev.Source)
		assert.Equal(t, "tok-99", ev.CartToken)
	case <-time.After(30 * time.Second):
		t.Fatal("event never reached the bus")
	}
}
