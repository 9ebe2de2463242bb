// Package poller feeds the event bus from outside the process: a Kafka
// consumer for the storefront webhook relay, and a periodic resync ticker
// that triggers reconciliation even when no events arrive.
package poller

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/hayan9104/Shopify-Demo1/internal/domain"
	"github.com/hayan9104/Shopify-Demo1/internal/events"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
)

type Poller struct {
	bus     *events.Bus
	reader  *kafka.Reader
	backoff time.Duration
}

func NewPoller(bus *events.Bus, topic, groupID string, brokers ...string) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MaxBytes: 10e6, // 10MB
	})
	return &Poller{bus: bus, reader: reader, backoff: time.Second}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := p.processMessage(ctx); err != nil {
			// A broken broker or closed reader fails instantly; pause so
			// the loop does not spin logging the same error.
			select {
			case <-time.After(p.backoff):
			case <-ctx.Done():
				return
			}
		}
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		log.Error().Err(err).Msg("error closing kafka reader")
	}
}

// cartEventMessage is the webhook relay payload shape.
type cartEventMessage struct {
	Resource  string `json:"resource"`
	Source    string `json:"source"`
	CartToken string `json:"cart_token"`
}

func (p *Poller) processMessage(ctx context.Context) error {
	m, err := p.reader.ReadMessage(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		log.Error().Err(err).Msg("error reading message")
		return err
	}

	ev, ok := Translate(m.Value)
	if !ok {
		return nil
	}
	p.bus.Publish(ev)
	return nil
}

// Translate decodes a relay message into a typed cart event. Messages the
// reconciler caused itself are dropped here as well as at the bus, so a
// relayed echo of our own mutation can never re-trigger a pass.
func Translate(value []byte) (domain.CartEvent, bool) {
	var msg cartEventMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		log.Error().Err(err).Msg("error parsing cart event message")
		return domain.CartEvent{}, false
	}
	if msg.Resource == "" {
		msg.Resource = "cart"
	}

	source := domain.ParseSource(msg.Source)
	if source == domain.SourceReconciler {
		return domain.CartEvent{}, false
	}
	if source == domain.SourceUnknown {
		source = domain.SourceWebhook
	}

	return domain.CartEvent{
		Resource:  msg.Resource,
		Source:    source,
		CartToken: msg.CartToken,
	}, true
}

// Resync triggers reconciliation on a fixed interval as a safety net for
// missed events. The reconciler's own in-flight guard keeps overlapping
// triggers harmless.
type Resync struct {
	interval   time.Duration
	reconciler Reconciler
}

// Reconciler is the piece of the reconciler the resync loop needs.
type Reconciler interface {
	Reconcile(ctx context.Context) error
}

func NewResync(interval time.Duration, r Reconciler) *Resync {
	return &Resync{interval: interval, reconciler: r}
}

func (r *Resync) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := r.reconciler.Reconcile(ctx); err != nil {
				log.Warn().Err(err).Msg("resync reconcile failed")
			}
		case <-ctx.Done():
			return
		}
	}
}
