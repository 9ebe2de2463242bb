package reconciler

import (
	"context"
	"sync"

	"github.com/hayan9104/Shopify-Demo1/internal/cache"
	"github.com/hayan9104/Shopify-Demo1/internal/domain"
	"github.com/hayan9104/Shopify-Demo1/internal/repository"
	"github.com/hayan9104/Shopify-Demo1/internal/storefront"
)

// fakeStorefront implements storefront.Client against an in-memory cart so
// that mutations are visible to subsequent reads, like the real platform.
type fakeStorefront struct {
	mu   sync.Mutex
	cart domain.Cart

	getErr    error
	addErr    error
	changeErr error

	adds    []storefront.AddItemRequest
	changes [][2]int // line, quantity
}

func newFakeStorefront(items ...domain.CartItem) *fakeStorefront {
	f := &fakeStorefront{}
	f.cart = domain.Cart{Token: "tok-test", Items: items}
	f.refreshTotals()
	return f
}

func (f *fakeStorefront) GetCart(context.Context) (*domain.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	snapshot := f.cart
	snapshot.Items = append([]domain.CartItem(nil), f.cart.Items...)
	return &snapshot, nil
}

func (f *fakeStorefront) AddItem(_ context.Context, req storefront.AddItemRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return f.addErr
	}
	f.adds = append(f.adds, req)
	qty := req.Quantity
	if qty <= 0 {
		qty = 1
	}
	// Shopify prepends newly added items.
	f.cart.Items = append([]domain.CartItem{{
		VariantID:  req.VariantID,
		Quantity:   qty,
		Properties: req.Properties,
	}}, f.cart.Items...)
	f.refreshTotals()
	return nil
}

func (f *fakeStorefront) ChangeLine(_ context.Context, line, quantity int) (*domain.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.changeErr != nil {
		return nil, f.changeErr
	}
	f.changes = append(f.changes, [2]int{line, quantity})
	if line < 1 || line > len(f.cart.Items) {
		return nil, storefront.ErrRejected
	}
	if quantity == 0 {
		f.cart.Items = append(f.cart.Items[:line-1], f.cart.Items[line:]...)
	} else {
		f.cart.Items[line-1].Quantity = quantity
	}
	f.refreshTotals()
	snapshot := f.cart
	return &snapshot, nil
}

func (f *fakeStorefront) ApplyDiscount(context.Context, string) (*domain.Cart, error) {
	snapshot := f.cart
	return &snapshot, nil
}

func (f *fakeStorefront) refreshTotals() {
	f.cart.ItemCount = 0
	f.cart.TotalPrice = 0
	for _, item := range f.cart.Items {
		f.cart.ItemCount += item.Quantity
		f.cart.TotalPrice += item.FinalLinePrice
	}
}

func (f *fakeStorefront) variants() []int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]int64, 0, len(f.cart.Items))
	for _, item := range f.cart.Items {
		out = append(out, item.VariantID)
	}
	return out
}

// memoryAudit implements repository.AuditRepository in memory.
type memoryAudit struct {
	mu      sync.Mutex
	records []*repository.ReconcileRecord
	err     error
}

func (m *memoryAudit) Record(_ context.Context, rec *repository.ReconcileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *memoryAudit) Recent(context.Context, int64) ([]repository.ReconcileRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]repository.ReconcileRecord, 0, len(m.records))
	for _, r := range m.records {
		out = append(out, *r)
	}
	return out, nil
}

// memoryCache implements cache.SnapshotCache in memory.
type memoryCache struct {
	mu        sync.Mutex
	cart      *domain.Cart
	discounts map[string]bool
}

func newMemoryCache() *memoryCache {
	return &memoryCache{discounts: make(map[string]bool)}
}

func (m *memoryCache) GetSnapshot(context.Context) (*domain.Cart, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cart == nil {
		return nil, cache.ErrCacheMiss
	}
	return m.cart, nil
}

func (m *memoryCache) SetSnapshot(_ context.Context, cart *domain.Cart) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cart = cart
	return nil
}

func (m *memoryCache) DiscountApplied(_ context.Context, code string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.discounts[code], nil
}

func (m *memoryCache) MarkDiscountApplied(_ context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.discounts[code] = true
	return nil
}
