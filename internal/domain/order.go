package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side is the order direction.
type Side string

// OrderType distinguishes limit and market orders.
type OrderType string

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"

	TypeLimit  OrderType = "LIMIT"
	TypeMarket OrderType = "MARKET"

	StatusPending         OrderStatus = "PENDING"
	StatusOpen            OrderStatus = "OPEN"
	StatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	StatusFilled          OrderStatus = "FILLED"
	StatusCanceled        OrderStatus = "CANCELED"
	StatusFailed          OrderStatus = "FAILED"
)

// statusRank orders statuses for monotonic transitions. Exchange snapshots
// may never move an order to a lower rank; CANCELED is the one exception
// and is driven through Cancel, not ApplyUpdate.
var statusRank = map[OrderStatus]int{
	StatusPending:         0,
	StatusOpen:            1,
	StatusPartiallyFilled: 2,
	StatusFilled:          3,
	StatusCanceled:        3,
	StatusFailed:          3,
}

// Order is the local record of one exchange order.
// All monetary values are decimal.Decimal; float64 never touches money.
type Order struct {
	ID           string          `json:"id"`
	Symbol       string          `json:"symbol"`
	Side         Side            `json:"side"`
	Type         OrderType       `json:"type"`
	Price        decimal.Decimal `json:"price"`
	Amount       decimal.Decimal `json:"amount"`
	FilledAmount decimal.Decimal `json:"filled_amount"`
	AveragePrice decimal.Decimal `json:"average_price"`
	Fees         decimal.Decimal `json:"fees"`
	Status       OrderStatus     `json:"status"`
	ExchangeID   string          `json:"exchange_id,omitempty"`
	DealID       string          `json:"deal_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	Retries      int             `json:"retries"`
	ErrorMessage string          `json:"error_message,omitempty"`

	// LastSyncAt is the exchange timestamp of the last applied snapshot.
	// Older snapshots are discarded to keep ApplyUpdate idempotent.
	LastSyncAt time.Time `json:"last_sync_at"`
}

// NewOrder creates a PENDING order that has not touched the exchange yet.
func NewOrder(symbol string, side Side, typ OrderType, amount, price decimal.Decimal, dealID string) (*Order, error) {
	if symbol == "" {
		return nil, fmt.Errorf("%w: empty symbol", ErrValidation)
	}
	if side != SideBuy && side != SideSell {
		return nil, fmt.Errorf("%w: unknown side %q", ErrValidation, side)
	}
	if typ != TypeLimit && typ != TypeMarket {
		return nil, fmt.Errorf("%w: unknown order type %q", ErrValidation, typ)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive, got %s", ErrValidation, amount)
	}
	if typ == TypeLimit && !price.IsPositive() {
		return nil, fmt.Errorf("%w: limit price must be positive, got %s", ErrValidation, price)
	}

	now := time.Now().UTC()
	return &Order{
		ID:        uuid.NewString(),
		Symbol:    symbol,
		Side:      side,
		Type:      typ,
		Price:     price,
		Amount:    amount,
		Status:    StatusPending,
		DealID:    dealID,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// MarkPlaced transitions PENDING -> OPEN once the exchange accepted the order.
// The exchange ID is set here and nowhere else.
func (o *Order) MarkPlaced(exchangeID string, ts time.Time) error {
	if o.Status != StatusPending {
		return fmt.Errorf("order %s: cannot mark placed from %s", o.ID, o.Status)
	}
	if exchangeID == "" {
		return fmt.Errorf("order %s: empty exchange id", o.ID)
	}
	o.ExchangeID = exchangeID
	o.Status = StatusOpen
	o.LastSyncAt = ts
	o.UpdatedAt = ts
	return nil
}

// MarkFailed moves the order to FAILED with the last placement error.
func (o *Order) MarkFailed(msg string, ts time.Time) {
	if o.IsTerminal() {
		return
	}
	o.Status = StatusFailed
	o.ErrorMessage = msg
	o.UpdatedAt = ts
}

// ApplyUpdate merges an exchange snapshot into the order. It is the only
// path that advances fill state. Applying the same or an older snapshot is
// a no-op: status never moves to a lower rank, FilledAmount never shrinks,
// terminal states never change. Returns true when the order was mutated.
func (o *Order) ApplyUpdate(snap OrderSnapshot) bool {
	if o.ExchangeID != "" && snap.ExchangeID != "" && snap.ExchangeID != o.ExchangeID {
		return false
	}
	if o.IsTerminal() {
		return false
	}
	if !snap.Timestamp.IsZero() && !o.LastSyncAt.IsZero() && snap.Timestamp.Before(o.LastSyncAt) {
		return false
	}
	if rank, ok := statusRank[snap.Status]; !ok || rank < statusRank[o.Status] {
		return false
	}

	changed := false

	if snap.Status != o.Status {
		o.Status = snap.Status
		changed = true
	}
	if snap.FilledAmount.GreaterThan(o.FilledAmount) {
		filled := snap.FilledAmount
		if filled.GreaterThan(o.Amount) {
			filled = o.Amount
		}
		o.FilledAmount = filled
		changed = true
	}
	if snap.AveragePrice.IsPositive() && !snap.AveragePrice.Equal(o.AveragePrice) {
		o.AveragePrice = snap.AveragePrice
		changed = true
	}
	if snap.Fees.IsPositive() && !snap.Fees.Equal(o.Fees) {
		o.Fees = snap.Fees
		changed = true
	}

	if changed {
		if !snap.Timestamp.IsZero() {
			o.LastSyncAt = snap.Timestamp
			o.UpdatedAt = snap.Timestamp
		} else {
			o.UpdatedAt = time.Now().UTC()
		}
	}
	return changed
}

// Cancel marks the order CANCELED. Legal from OPEN and PARTIALLY_FILLED;
// a PENDING order cancels locally (nothing rests at the exchange). Calling
// Cancel on an order that already reached a terminal state is a benign
// no-op, not an error: a monitor racing a fill must not blow up.
func (o *Order) Cancel(ts time.Time) error {
	if o.IsTerminal() {
		return nil
	}
	o.Status = StatusCanceled
	o.UpdatedAt = ts
	return nil
}

// IsOpen reports whether the order still rests (or may rest) at the exchange.
func (o *Order) IsOpen() bool {
	return o.Status == StatusOpen || o.Status == StatusPartiallyFilled
}

// IsTerminal reports whether the order reached a final state.
func (o *Order) IsTerminal() bool {
	return o.Status == StatusFilled || o.Status == StatusCanceled || o.Status == StatusFailed
}

// IsFilled reports whether the order fully filled.
func (o *Order) IsFilled() bool {
	return o.Status == StatusFilled
}

// Age returns how long the order has existed.
func (o *Order) Age(now time.Time) time.Duration {
	return now.Sub(o.CreatedAt)
}

// RemainingAmount returns the unfilled portion.
func (o *Order) RemainingAmount() decimal.Decimal {
	return o.Amount.Sub(o.FilledAmount)
}

// EffectivePrice returns the average fill price when known, the limit
// price otherwise. Used for profit bookkeeping.
func (o *Order) EffectivePrice() decimal.Decimal {
	if o.AveragePrice.IsPositive() {
		return o.AveragePrice
	}
	return o.Price
}

// Clone returns a deep copy. Repositories hand out clones so monitors and
// services never share a mutable Order.
func (o *Order) Clone() *Order {
	c := *o
	return &c
}
