package storage

import (
	"context"
	"sync"

	"github.com/sni10/new-autotrade-sub001/internal/domain"
)

// MemoryOrderRepository is a map-backed OrderRepository for paper mode
// and tests. Values are cloned on the way in and out so callers can
// never mutate stored state behind the lock.
type MemoryOrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*domain.Order
}

func NewMemoryOrderRepository() *MemoryOrderRepository {
	return &MemoryOrderRepository{orders: make(map[string]*domain.Order)}
}

func (r *MemoryOrderRepository) Save(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders[order.ID] = order.Clone()
	return nil
}

func (r *MemoryOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return order.Clone(), nil
}

func (r *MemoryOrderRepository) GetOpenOrders(ctx context.Context) ([]*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var open []*domain.Order
	for _, order := range r.orders {
		if order.IsOpen() {
			open = append(open, order.Clone())
		}
	}
	return open, nil
}

// MemoryDealRepository is the deal counterpart.
type MemoryDealRepository struct {
	mu    sync.RWMutex
	deals map[string]*domain.Deal
}

func NewMemoryDealRepository() *MemoryDealRepository {
	return &MemoryDealRepository{deals: make(map[string]*domain.Deal)}
}

func (r *MemoryDealRepository) Save(ctx context.Context, deal *domain.Deal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deals[deal.ID] = deal.Clone()
	return nil
}

func (r *MemoryDealRepository) GetByID(ctx context.Context, id string) (*domain.Deal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	deal, ok := r.deals[id]
	if !ok {
		return nil, domain.ErrDealNotFound
	}
	return deal.Clone(), nil
}

func (r *MemoryDealRepository) GetOpenDeals(ctx context.Context) ([]*domain.Deal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var open []*domain.Deal
	for _, deal := range r.deals {
		if deal.Status == domain.DealOpen {
			open = append(open, deal.Clone())
		}
	}
	return open, nil
}

// MemoryMetadata is an in-process MetadataStore.
type MemoryMetadata struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemoryMetadata() *MemoryMetadata {
	return &MemoryMetadata{data: make(map[string]string)}
}

func (m *MemoryMetadata) UpsertMetadata(ctx context.Context, key, value string, ts int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *MemoryMetadata) GetMetadata(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data[key], nil
}
