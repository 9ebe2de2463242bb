// Package reconciler keeps free-gift line items consistent with the cart's
// qualifying subtotal: gifts whose threshold is met must be present exactly
// once, everything else must be gone. The platform cart is the source of
// truth; every pass re-reads it and converges it with corrective mutations.
package reconciler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/hayan9104/Shopify-Demo1/internal/cache"
	"github.com/hayan9104/Shopify-Demo1/internal/domain"
	"github.com/hayan9104/Shopify-Demo1/internal/events"
	"github.com/hayan9104/Shopify-Demo1/internal/repository"
	"github.com/hayan9104/Shopify-Demo1/internal/storefront"
	"github.com/rs/zerolog/log"
)

type Reconciler struct {
	client storefront.Client
	gifts  []domain.Gift
	bus    *events.Bus
	audit  repository.AuditRepository
	cache  cache.SnapshotCache

	// settle is how long to wait after mutations before re-reading the
	// cart, giving the platform time to apply them.
	settle time.Duration
	busy   atomic.Bool
}

func New(client storefront.Client, gifts []domain.Gift, bus *events.Bus,
	audit repository.AuditRepository, snapshots cache.SnapshotCache, settle time.Duration) *Reconciler {
	return &Reconciler{
		client: client,
		gifts:  gifts,
		bus:    bus,
		audit:  audit,
		cache:  snapshots,
		settle: settle,
	}
}

// Reconcile runs one pass. Concurrent invocations are dropped, not queued:
// the triggering event stream is debounced upstream and the next event
// retries anyway. Any failure aborts the pass; nothing is fatal.
func (r *Reconciler) Reconcile(ctx context.Context) error {
	if !r.busy.CompareAndSwap(false, true) {
		log.Debug().Msg("reconcile already in flight, trigger dropped")
		return nil
	}
	defer r.busy.Store(false)

	cart, err := r.client.GetCart(ctx)
	if err != nil {
		log.Error().Err(err).Msg("reconcile: failed to read cart")
		return err
	}

	subtotal, actions := Plan(cart, r.gifts)
	if len(actions) == 0 {
		r.storeSnapshot(ctx, cart)
		return nil
	}

	for _, a := range actions {
		if err := r.apply(ctx, a); err != nil {
			// Abort the pass; the next cart-change event retries.
			log.Error().Err(err).Str("action", a.Kind.String()).
				Str("gift", a.Gift.Key).Int("line", a.Line).
				Msg("reconcile: mutation failed, aborting pass")
			return err
		}
	}

	r.wait(ctx)

	fresh, err := r.client.GetCart(ctx)
	if err != nil {
		log.Error().Err(err).Msg("reconcile: failed to re-read cart")
	} else {
		r.storeSnapshot(ctx, fresh)
	}

	r.record(ctx, cart.Token, subtotal, actions)

	r.bus.Publish(domain.CartEvent{
		Resource:  "cart",
		Source:    domain.SourceReconciler,
		CartToken: cart.Token,
	})

	log.Info().Int64("subtotal", subtotal).Int("actions", len(actions)).
		Msg("reconcile pass applied")
	return nil
}

// GuardQuantity vetoes manual quantity edits on gift lines. A gift line
// must hold exactly one unit; any other requested quantity is reverted and
// the caller is told the change was not allowed.
func (r *Reconciler) GuardQuantity(ctx context.Context, line int, variantID int64, quantity int) (bool, error) {
	if !r.isGiftVariant(variantID) || quantity == 1 {
		return true, nil
	}

	if _, err := r.client.ChangeLine(ctx, line, 1); err != nil {
		log.Error().Err(err).Int("line", line).Int64("variant", variantID).
			Msg("failed to revert gift line quantity")
		return false, err
	}

	r.bus.Publish(domain.CartEvent{
		Resource: "cart",
		Source:   domain.SourceReconciler,
	})
	return false, nil
}

func (r *Reconciler) apply(ctx context.Context, a Action) error {
	switch a.Kind {
	case ActionAdd:
		return r.client.AddItem(ctx, storefront.AddItemRequest{
			VariantID: a.Gift.VariantID,
			Quantity:  1,
			Properties: map[string]string{
				domain.GiftMarkerProperty: a.Gift.Key,
			},
		})
	case ActionRemove:
		_, err := r.client.ChangeLine(ctx, a.Line, 0)
		return err
	case ActionRequantity:
		_, err := r.client.ChangeLine(ctx, a.Line, a.Quantity)
		return err
	}
	return nil
}

func (r *Reconciler) isGiftVariant(variantID int64) bool {
	for _, g := range r.gifts {
		if g.VariantID == variantID {
			return true
		}
	}
	return false
}

func (r *Reconciler) wait(ctx context.Context) {
	if r.settle <= 0 {
		return
	}
	select {
	case <-time.After(r.settle):
	case <-ctx.Done():
	}
}

func (r *Reconciler) storeSnapshot(ctx context.Context, cart *domain.Cart) {
	if r.cache == nil {
		return
	}
	if err := r.cache.SetSnapshot(ctx, cart); err != nil {
		log.Warn().Err(err).Msg("failed to cache cart snapshot")
	}
}

func (r *Reconciler) record(ctx context.Context, token string, subtotal int64, actions []Action) {
	if r.audit == nil {
		return
	}
	rec := &repository.ReconcileRecord{
		CartToken: token,
		Subtotal:  subtotal,
		Actions:   make([]repository.GiftAction, 0, len(actions)),
	}
	for _, a := range actions {
		rec.Actions = append(rec.Actions, repository.GiftAction{
			Kind:      a.Kind.String(),
			GiftKey:   a.Gift.Key,
			VariantID: a.Gift.VariantID,
			Line:      a.Line,
			Quantity:  a.Quantity,
		})
	}
	if err := r.audit.Record(ctx, rec); err != nil {
		log.Warn().Err(err).Msg("failed to record reconciliation")
	}
}
