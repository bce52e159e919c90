package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Exchange is the boundary to the trading venue. Implementations translate
// venue-specific responses into OrderSnapshot; downstream code never
// branches on raw response shapes.
type Exchange interface {
	// CreateOrder submits an order and returns the venue's view of it.
	CreateOrder(ctx context.Context, symbol string, side Side, typ OrderType, amount, price decimal.Decimal) (OrderSnapshot, error)

	// CancelOrder cancels a resting order by exchange ID.
	CancelOrder(ctx context.Context, exchangeID, symbol string) error

	// FetchOrder returns the current venue-side state of an order.
	FetchOrder(ctx context.Context, exchangeID, symbol string) (OrderSnapshot, error)

	// FetchTicker returns the last traded price for a symbol.
	FetchTicker(ctx context.Context, symbol string) (decimal.Decimal, error)

	// CheckSufficientBalance verifies funds for an order before placement.
	CheckSufficientBalance(ctx context.Context, symbol string, side Side, amount, price decimal.Decimal) (BalanceCheck, error)

	// FetchCurrencyPair loads precision, limits and fees for a symbol.
	FetchCurrencyPair(ctx context.Context, symbol string) (CurrencyPair, error)
}

// OrderSnapshot is the canonical normalized order state coming back from
// the exchange boundary. Snapshots are keyed by (ExchangeID, Timestamp);
// Order.ApplyUpdate discards stale ones.
type OrderSnapshot struct {
	ExchangeID   string
	Symbol       string
	Status       OrderStatus
	Price        decimal.Decimal
	Amount       decimal.Decimal
	FilledAmount decimal.Decimal
	AveragePrice decimal.Decimal
	Fees         decimal.Decimal
	Timestamp    time.Time
}

// BalanceCheck is the result of a pre-trade balance query.
type BalanceCheck struct {
	OK        bool
	Currency  string
	Available decimal.Decimal
	Required  decimal.Decimal
}
