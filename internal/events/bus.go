package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hayan9104/Shopify-Demo1/internal/domain"
	"github.com/rs/zerolog/log"
)

// Bus is an in-process publish/subscribe channel for cart events. It
// replaces the DOM custom events of the theme: typed payloads, and
// feedback loops broken by filtering on the typed Source instead of a
// string convention.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]*subscriber
	next int
}

type subscriber struct {
	ch     chan domain.CartEvent
	ignore map[domain.Source]struct{}
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Subscribe returns a channel of events and an unsubscribe func. Events
// from any of the ignore sources are never delivered to this subscriber.
// Delivery is non-blocking: if the subscriber's buffer is full the event is
// dropped, matching the original's drop-not-queue behavior.
func (b *Bus) Subscribe(buffer int, ignore ...domain.Source) (<-chan domain.CartEvent, func()) {
	sub := &subscriber{
		ch:     make(chan domain.CartEvent, buffer),
		ignore: make(map[domain.Source]struct{}, len(ignore)),
	}
	for _, s := range ignore {
		sub.ignore[s] = struct{}{}
	}

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = sub
	b.mu.Unlock()

	unsubscribe := func() {
		b.mu.Lock()
		if s, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(s.ch)
		}
		b.mu.Unlock()
	}
	return sub.ch, unsubscribe
}

func (b *Bus) Publish(ev domain.CartEvent) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	if ev.Resource == "" {
		ev.Resource = "cart"
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if _, skip := sub.ignore[ev.Source]; skip {
			continue
		}
		select {
		case sub.ch <- ev:
		default:
			log.Warn().Str("event_id", ev.ID).Stringer("source", ev.Source).
				Msg("subscriber buffer full, event dropped")
		}
	}
}
