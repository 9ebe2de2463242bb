// Package suggest handles the upsell panel next to the cart: adding a
// suggested variant and applying its flat discount code on first use.
package suggest

import (
	"context"
	"errors"
	"strconv"

	"github.com/hayan9104/Shopify-Demo1/internal/cache"
	"github.com/hayan9104/Shopify-Demo1/internal/domain"
	"github.com/hayan9104/Shopify-Demo1/internal/events"
	"github.com/hayan9104/Shopify-Demo1/internal/storefront"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"
)

var ErrUnknownVariant = errors.New("variant not in suggestion list")

type Service struct {
	client      storefront.Client
	cache       cache.SnapshotCache
	bus         *events.Bus
	suggestions map[int64]domain.Suggestion
	sfg         singleflight.Group // coalesces double submissions per variant
}

func NewService(client storefront.Client, snapshots cache.SnapshotCache,
	bus *events.Bus, suggestions []domain.Suggestion) *Service {
	byVariant := make(map[int64]domain.Suggestion, len(suggestions))
	for _, s := range suggestions {
		byVariant[s.VariantID] = s
	}
	return &Service{
		client:      client,
		cache:       snapshots,
		bus:         bus,
		suggestions: byVariant,
	}
}

type AddResult struct {
	VariantID       int64 `json:"variant_id"`
	DiscountApplied bool  `json:"discount_applied"`
}

// Add puts one unit of the suggested variant into the cart. Concurrent
// submissions for the same variant share one platform call, standing in
// for the disabled button of the original UI.
func (s *Service) Add(ctx context.Context, variantID int64) (*AddResult, error) {
	suggestion, ok := s.suggestions[variantID]
	if !ok {
		return nil, ErrUnknownVariant
	}

	v, err, shared := s.sfg.Do(strconv.FormatInt(variantID, 10), func() (interface{}, error) {
		if err := s.client.AddItem(ctx, storefront.AddItemRequest{
			VariantID: variantID,
			Quantity:  1,
		}); err != nil {
			return nil, err
		}

		result := &AddResult{VariantID: variantID}
		if suggestion.DiscountCode != "" {
			result.DiscountApplied = s.applyDiscount(ctx, suggestion.DiscountCode)
		}

		s.bus.Publish(domain.CartEvent{
			Resource: "cart",
			Source:   domain.SourceSuggestions,
		})
		return result, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		log.Debug().Int64("variant", variantID).Msg("duplicate suggestion add coalesced")
	}
	return v.(*AddResult), nil
}

// applyDiscount submits the code unless it was already applied. Failures
// are logged and swallowed: the item is in the cart, the discount just
// did not attach this time.
func (s *Service) applyDiscount(ctx context.Context, code string) bool {
	applied, err := s.cache.DiscountApplied(ctx, code)
	if err != nil {
		log.Warn().Err(err).Str("code", code).Msg("discount marker lookup failed")
	}
	if applied {
		return false
	}

	if _, err := s.client.ApplyDiscount(ctx, code); err != nil {
		log.Error().Err(err).Str("code", code).Msg("failed to apply discount")
		return false
	}
	if err := s.cache.MarkDiscountApplied(ctx, code); err != nil {
		log.Warn().Err(err).Str("code", code).Msg("failed to mark discount applied")
	}
	return true
}
