package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hayan9104/Shopify-Demo1/internal/cache"
	"github.com/hayan9104/Shopify-Demo1/internal/domain"
	"github.com/hayan9104/Shopify-Demo1/internal/events"
	"github.com/hayan9104/Shopify-Demo1/internal/progress"
	"github.com/hayan9104/Shopify-Demo1/internal/reconciler"
	"github.com/hayan9104/Shopify-Demo1/internal/storefront"
	"github.com/hayan9104/Shopify-Demo1/internal/suggest"
	"github.com/rs/zerolog/log"
)

type Handler struct {
	client     storefront.Client
	snapshots  cache.SnapshotCache
	bus        *events.Bus
	reconciler *reconciler.Reconciler
	suggest    *suggest.Service
	gifts      []domain.Gift
	timeout    time.Duration
}

func NewHandler(client storefront.Client, snapshots cache.SnapshotCache, bus *events.Bus,
	rec *reconciler.Reconciler, sug *suggest.Service, gifts []domain.Gift, timeout time.Duration) *Handler {
	return &Handler{
		client:     client,
		snapshots:  snapshots,
		bus:        bus,
		reconciler: rec,
		suggest:    sug,
		gifts:      gifts,
		timeout:    timeout,
	}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type CartEventDTO struct {
	Resource  string            `json:"resource"`
	Source    string            `json:"source"`
	CartToken string            `json:"cart_token,omitempty"`
	Sections  map[string]string `json:"sections,omitempty"`
}

type QuantityChangeDTO struct {
	Line      int   `json:"line"`
	VariantID int64 `json:"variant_id"`
	Quantity  int   `json:"quantity"`
}

type QuantityChangeResponse struct {
	Allowed  bool `json:"allowed"`
	Quantity int  `json:"quantity"`
}

type ProgressResponse struct {
	QualifyingSubtotal int64                `json:"qualifying_subtotal"`
	Percent            int                  `json:"percent"`
	Milestones         []progress.Milestone `json:"milestones"`
	FromSnapshot       bool                 `json:"from_snapshot"`
}

// GetProgress reads the live cart and reports milestone progress. When the
// platform is unreachable the last cached snapshot answers instead, so the
// progress bar degrades to slightly stale rather than broken.
func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	fromSnapshot := false
	cart, err := h.client.GetCart(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("progress: live cart read failed, trying snapshot")
		cart, err = h.snapshots.GetSnapshot(ctx)
		if err != nil {
			respondError(w, http.StatusServiceUnavailable, "cart_unavailable", "cart could not be read")
			return
		}
		fromSnapshot = true
	}

	subtotal := cart.QualifyingSubtotal(h.gifts)
	percent, milestones := progress.Compute(subtotal, h.gifts)
	respondJSON(w, http.StatusOK, ProgressResponse{
		QualifyingSubtotal: subtotal,
		Percent:            percent,
		Milestones:         milestones,
		FromSnapshot:       fromSnapshot,
	})
}

// PostCartEvent ingests a cart-changed notification (theme beacon or
// webhook relay) and publishes it on the bus. Reconciler-tagged events are
// acknowledged but never republished.
func (h *Handler) PostCartEvent(w http.ResponseWriter, r *http.Request) {
	var dto CartEventDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	source := domain.ParseSource(dto.Source)
	if source == domain.SourceReconciler {
		respondJSON(w, http.StatusAccepted, map[string]bool{"ignored": true})
		return
	}
	if source == domain.SourceUnknown {
		source = domain.SourceTheme
	}

	h.bus.Publish(domain.CartEvent{
		Resource:  dto.Resource,
		Source:    source,
		CartToken: dto.CartToken,
		Sections:  dto.Sections,
	})
	respondJSON(w, http.StatusAccepted, map[string]bool{"ignored": false})
}

// PostSuggestion adds one unit of a configured upsell variant.
func (h *Handler) PostSuggestion(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	variantIDStr := chi.URLParam(r, "variant_id")
	variantID, err := strconv.ParseInt(variantIDStr, 10, 64)
	if err != nil || variantID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_variant_id", "variant_id must be a positive integer")
		return
	}

	result, err := h.suggest.Add(ctx, variantID)
	if err != nil {
		if errors.Is(err, suggest.ErrUnknownVariant) {
			respondError(w, http.StatusNotFound, "not_found", "variant is not in the suggestion list")
			return
		}
		if errors.Is(err, storefront.ErrRejected) {
			respondError(w, http.StatusBadGateway, "storefront_rejected", err.Error())
			return
		}
		respondError(w, http.StatusServiceUnavailable, "storefront_unavailable", "could not add item")
		return
	}

	respondJSON(w, http.StatusCreated, result)
}

// PostQuantityChange is the veto hook for quantity edits. Gift lines are
// forced back to quantity 1; everything else passes through untouched.
func (h *Handler) PostQuantityChange(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var dto QuantityChangeDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if dto.Line < 1 || dto.VariantID <= 0 || dto.Quantity < 0 {
		respondError(w, http.StatusBadRequest, "invalid_request", "line, variant_id and quantity are required")
		return
	}

	allowed, err := h.reconciler.GuardQuantity(ctx, dto.Line, dto.VariantID, dto.Quantity)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, "storefront_unavailable", "could not enforce gift quantity")
		return
	}

	resp := QuantityChangeResponse{Allowed: allowed, Quantity: dto.Quantity}
	if !allowed {
		resp.Quantity = 1
	}
	respondJSON(w, http.StatusOK, resp)
}

// PostReconcile triggers a pass immediately. Handy for debugging and for
// the theme's "refresh" affordance; a pass already in flight makes this a
// no-op.
func (h *Handler) PostReconcile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.reconciler.Reconcile(ctx); err != nil {
		respondError(w, http.StatusServiceUnavailable, "reconcile_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "reconciled"})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}
