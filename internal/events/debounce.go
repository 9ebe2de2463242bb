package events

import (
	"context"
	"time"

	"github.com/hayan9104/Shopify-Demo1/internal/domain"
)

// Debouncer applies a trailing debounce to a stream of cart events: a burst
// of notifications collapses into a single callback invoked with the last
// event, delay after the burst goes quiet.
type Debouncer struct {
	delay time.Duration
	fn    func(context.Context, domain.CartEvent)
}

func NewDebouncer(delay time.Duration, fn func(context.Context, domain.CartEvent)) *Debouncer {
	return &Debouncer{delay: delay, fn: fn}
}

// Run consumes events until the channel closes or the context is done.
func (d *Debouncer) Run(ctx context.Context, events <-chan domain.CartEvent) {
	timer := time.NewTimer(d.delay)
	if !timer.Stop() {
		<-timer.C
	}
	var pending *domain.CartEvent

	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return
			}
			pending = &ev
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(d.delay)
		case <-timer.C:
			if pending != nil {
				d.fn(ctx, *pending)
				pending = nil
			}
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}
