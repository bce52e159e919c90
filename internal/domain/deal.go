package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DealStatus is the lifecycle state of a deal.
type DealStatus string

const (
	DealOpen     DealStatus = "OPEN"
	DealClosed   DealStatus = "CLOSED"
	DealCanceled DealStatus = "CANCELED"
)

// Deal aggregates one BUY and one SELL order for a single trade cycle.
// A deal holds at most one order per side; a CLOSED deal has no order left
// in an open state.
type Deal struct {
	ID        string          `json:"id"`
	Symbol    string          `json:"symbol"`
	Status    DealStatus      `json:"status"`
	BuyOrder  *Order          `json:"buy_order,omitempty"`
	SellOrder *Order          `json:"sell_order,omitempty"`
	Profit    decimal.Decimal `json:"profit"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`

	// Remediation bookkeeping: how many replacement BUY orders the
	// monitors placed for this deal, and when the last one went out.
	Recreations     int       `json:"recreations"`
	LastRecreatedAt time.Time `json:"last_recreated_at,omitempty"`
}

// DealFactory mints deals at trade-decision time.
type DealFactory struct{}

// NewDealFactory creates a deal factory.
func NewDealFactory() *DealFactory {
	return &DealFactory{}
}

// Create returns an OPEN deal with no orders attached yet.
func (f *DealFactory) Create(pair CurrencyPair) *Deal {
	now := time.Now().UTC()
	return &Deal{
		ID:        uuid.NewString(),
		Symbol:    pair.Symbol,
		Status:    DealOpen,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AttachOrders links a buy and a sell order to the deal. Both orders get
// the deal's ID. A side can only be attached once.
func (d *Deal) AttachOrders(buy, sell *Order) error {
	if buy == nil || sell == nil {
		return fmt.Errorf("%w: both orders required", ErrValidation)
	}
	if buy.Side != SideBuy {
		return fmt.Errorf("%w: buy order has side %s", ErrValidation, buy.Side)
	}
	if sell.Side != SideSell {
		return fmt.Errorf("%w: sell order has side %s", ErrValidation, sell.Side)
	}
	if d.BuyOrder != nil || d.SellOrder != nil {
		return fmt.Errorf("%w: deal %s already has orders attached", ErrValidation, d.ID)
	}
	buy.DealID = d.ID
	sell.DealID = d.ID
	d.BuyOrder = buy
	d.SellOrder = sell
	d.UpdatedAt = time.Now().UTC()
	return nil
}

// ReplaceBuyOrder swaps in a remediation BUY placed by a monitor after the
// previous one went stale. The old order must already be terminal.
func (d *Deal) ReplaceBuyOrder(replacement *Order) error {
	if replacement == nil || replacement.Side != SideBuy {
		return fmt.Errorf("%w: replacement must be a BUY order", ErrValidation)
	}
	if d.BuyOrder != nil && !d.BuyOrder.IsTerminal() {
		return fmt.Errorf("deal %s: current buy order %s still active", d.ID, d.BuyOrder.ID)
	}
	replacement.DealID = d.ID
	d.BuyOrder = replacement
	d.UpdatedAt = time.Now().UTC()
	return nil
}

// HasOpenOrders reports whether any attached order is not terminal yet.
func (d *Deal) HasOpenOrders() bool {
	if d.BuyOrder != nil && !d.BuyOrder.IsTerminal() {
		return true
	}
	if d.SellOrder != nil && !d.SellOrder.IsTerminal() {
		return true
	}
	return false
}

// Close marks the deal CLOSED and computes realized profit:
// sell proceeds minus buy cost minus both fee totals. Refused while an
// attached order is still open.
func (d *Deal) Close(ts time.Time) error {
	if d.Status != DealOpen {
		return fmt.Errorf("deal %s: cannot close from %s", d.ID, d.Status)
	}
	if d.HasOpenOrders() {
		return fmt.Errorf("deal %s: open orders remain", d.ID)
	}

	profit := decimal.Zero
	if d.SellOrder != nil && d.SellOrder.FilledAmount.IsPositive() {
		profit = profit.Add(d.SellOrder.EffectivePrice().Mul(d.SellOrder.FilledAmount))
		profit = profit.Sub(d.SellOrder.Fees)
	}
	if d.BuyOrder != nil && d.BuyOrder.FilledAmount.IsPositive() {
		profit = profit.Sub(d.BuyOrder.EffectivePrice().Mul(d.BuyOrder.FilledAmount))
		profit = profit.Sub(d.BuyOrder.Fees)
	}

	d.Profit = profit
	d.Status = DealClosed
	d.UpdatedAt = ts
	return nil
}

// ForceCancel marks the deal CANCELED. Attached orders are expected to be
// terminal already; the caller (timeout monitor, rollback path) owns
// cancelling them at the exchange first.
func (d *Deal) ForceCancel(ts time.Time) {
	if d.Status != DealOpen {
		return
	}
	d.Status = DealCanceled
	d.UpdatedAt = ts
}

// CanRecreate reports whether a monitor may place another replacement BUY,
// bounded by the per-deal cap and a cool-down since the last recreation.
func (d *Deal) CanRecreate(maxRecreations int, cooldown time.Duration, now time.Time) bool {
	if d.Status != DealOpen {
		return false
	}
	if d.Recreations >= maxRecreations {
		return false
	}
	if !d.LastRecreatedAt.IsZero() && now.Sub(d.LastRecreatedAt) < cooldown {
		return false
	}
	return true
}

// NoteRecreation records a replacement BUY placement.
func (d *Deal) NoteRecreation(now time.Time) {
	d.Recreations++
	d.LastRecreatedAt = now
	d.UpdatedAt = now
}

// Clone returns a deep copy including attached orders.
func (d *Deal) Clone() *Deal {
	c := *d
	if d.BuyOrder != nil {
		c.BuyOrder = d.BuyOrder.Clone()
	}
	if d.SellOrder != nil {
		c.SellOrder = d.SellOrder.Clone()
	}
	return &c
}
