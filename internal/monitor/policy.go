package monitor

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sni10/new-autotrade-sub001/internal/domain"
)

// StalenessPolicy decides when an open order is no longer worth keeping.
// Both remediation monitors share this one policy so an order is judged
// by a single rule set instead of two subtly different ones.
type StalenessPolicy struct {
	// MaxAge makes an order stale purely by sitting unfilled too long.
	// Zero disables the age predicate.
	MaxAge time.Duration

	// MaxDeviationPct makes a BUY stale when the market ran away above
	// its limit price by more than this percentage. Zero disables the
	// deviation predicate.
	MaxDeviationPct decimal.Decimal
}

var pctHundred = decimal.NewFromInt(100)

// Evaluate reports whether the order is stale and why. marketPrice may
// be zero when no price is available, which disables the deviation check
// for this evaluation.
func (p StalenessPolicy) Evaluate(order *domain.Order, marketPrice decimal.Decimal, now time.Time) (bool, string) {
	if p.MaxAge > 0 {
		if age := order.Age(now); age > p.MaxAge {
			return true, fmt.Sprintf("age %s exceeds %s", age.Round(time.Second), p.MaxAge)
		}
	}

	if p.MaxDeviationPct.IsPositive() && marketPrice.IsPositive() && order.Price.IsPositive() {
		deviation := marketPrice.Sub(order.Price).Div(order.Price).Mul(pctHundred)
		if deviation.GreaterThan(p.MaxDeviationPct) {
			return true, fmt.Sprintf("market %s is %s%% above limit %s",
				marketPrice, deviation.Round(2), order.Price)
		}
	}

	return false, ""
}
