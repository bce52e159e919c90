package monitor

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sni10/new-autotrade-sub001/internal/domain"
)

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestStalenessPolicy_Evaluate(t *testing.T) {
	now := time.Now().UTC()

	newOrder := func(age time.Duration, price string) *domain.Order {
		o, err := domain.NewOrder("BTC/USDT", domain.SideBuy, domain.TypeLimit, dec("0.05"), dec(price), "")
		if err != nil {
			t.Fatal(err)
		}
		o.CreatedAt = now.Add(-age)
		return o
	}

	policy := StalenessPolicy{
		MaxAge:          15 * time.Minute,
		MaxDeviationPct: dec("2.0"),
	}

	tests := []struct {
		name      string
		order     *domain.Order
		market    string
		wantStale bool
	}{
		{"fresh at limit", newOrder(time.Minute, "30000"), "30000", false},
		{"aged out", newOrder(20*time.Minute, "30000"), "30000", true},
		{"exactly max age is fine", newOrder(15*time.Minute, "30000"), "30000", false},
		{"market ran away", newOrder(time.Minute, "30000"), "30700", true},
		{"deviation within bounds", newOrder(time.Minute, "30000"), "30500", false},
		{"market below limit", newOrder(time.Minute, "30000"), "29000", false},
		{"no market price disables deviation", newOrder(time.Minute, "30000"), "0", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stale, reason := policy.Evaluate(tt.order, dec(tt.market), now)
			if stale != tt.wantStale {
				t.Errorf("stale = %v (%q), want %v", stale, reason, tt.wantStale)
			}
			if stale && reason == "" {
				t.Error("stale verdict must carry a reason")
			}
		})
	}
}

func TestStalenessPolicy_DisabledPredicates(t *testing.T) {
	o, err := domain.NewOrder("BTC/USDT", domain.SideBuy, domain.TypeLimit, dec("1"), dec("100"), "")
	if err != nil {
		t.Fatal(err)
	}
	o.CreatedAt = time.Now().Add(-24 * time.Hour)

	var policy StalenessPolicy // everything disabled
	if stale, _ := policy.Evaluate(o, dec("1000"), time.Now()); stale {
		t.Error("disabled policy must never report stale")
	}
}
