package storage

import (
	"context"

	"github.com/sni10/new-autotrade-sub001/internal/domain"
)

// OrderRepository persists orders. Save is last-write-wins per order id;
// no cross-row transactions are offered or needed.
type OrderRepository interface {
	Save(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	GetOpenOrders(ctx context.Context) ([]*domain.Order, error)
}

// DealRepository persists deals with the same per-row semantics.
type DealRepository interface {
	Save(ctx context.Context, deal *domain.Deal) error
	GetByID(ctx context.Context, id string) (*domain.Deal, error)
	GetOpenDeals(ctx context.Context) ([]*domain.Deal, error)
}

// MetadataStore is a small KV surface for counters and snapshots that
// do not justify their own table.
type MetadataStore interface {
	UpsertMetadata(ctx context.Context, key, value string, ts int64) error
	GetMetadata(ctx context.Context, key string) (string, error)
}
