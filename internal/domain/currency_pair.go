package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// CurrencyPair carries exchange metadata for one symbol: precision, limits
// and fees. Loaded once from the exchange, cached with a freshness window,
// and read-only to the execution engine.
type CurrencyPair struct {
	Symbol string `json:"symbol"`
	Base   string `json:"base"`
	Quote  string `json:"quote"`

	// Number of decimal places the venue accepts.
	AmountPrecision int `json:"amount_precision"`
	PricePrecision  int `json:"price_precision"`

	MinQty      decimal.Decimal `json:"min_qty"`
	MaxQty      decimal.Decimal `json:"max_qty"`
	MinPrice    decimal.Decimal `json:"min_price"`
	MaxPrice    decimal.Decimal `json:"max_price"`
	MinNotional decimal.Decimal `json:"min_notional"`

	// Fees as percentages, e.g. 0.1 for 0.1%.
	MakerFeePct decimal.Decimal `json:"maker_fee_pct"`
	TakerFeePct decimal.Decimal `json:"taker_fee_pct"`

	FetchedAt time.Time `json:"fetched_at"`
}

// AmountStep returns the quantity lot size, e.g. precision 4 -> 0.0001.
func (p CurrencyPair) AmountStep() decimal.Decimal {
	return decimal.New(1, -int32(p.AmountPrecision))
}

// PriceStep returns the price tick size, e.g. precision 2 -> 0.01.
func (p CurrencyPair) PriceStep() decimal.Decimal {
	return decimal.New(1, -int32(p.PricePrecision))
}

// Fresh reports whether the metadata is younger than maxAge.
func (p CurrencyPair) Fresh(maxAge time.Duration, now time.Time) bool {
	return !p.FetchedAt.IsZero() && now.Sub(p.FetchedAt) < maxAge
}

// Validate rejects metadata the engine cannot trade against.
func (p CurrencyPair) Validate() error {
	if p.Symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrValidation)
	}
	if p.AmountPrecision < 0 || p.PricePrecision < 0 {
		return fmt.Errorf("%w: negative precision for %s", ErrValidation, p.Symbol)
	}
	if p.MakerFeePct.IsNegative() || p.TakerFeePct.IsNegative() {
		return fmt.Errorf("%w: negative fee for %s", ErrValidation, p.Symbol)
	}
	return nil
}
