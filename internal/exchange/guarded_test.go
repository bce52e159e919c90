package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sni10/new-autotrade-sub001/internal/domain"
	"github.com/sni10/new-autotrade-sub001/internal/infra"
)

func testLimiters() *infra.LimiterSet {
	return infra.NewLimiterSet(1000, 1000, 1000)
}

func TestGuardedExchange_PassesThrough(t *testing.T) {
	paper := NewPaperExchange()
	paper.SetTicker("BTC/USDT", dec("30000"))
	g := NewGuardedExchange(paper, testLimiters(), infra.DefaultCircuitBreaker("test"))

	price, err := g.FetchTicker(context.Background(), "BTC/USDT")
	if err != nil {
		t.Fatal(err)
	}
	if !price.Equal(dec("30000")) {
		t.Errorf("price = %s, want 30000", price)
	}
}

func TestGuardedExchange_BreakerTrips(t *testing.T) {
	paper := NewPaperExchange()
	paper.FailNextCreates(100)
	breaker := infra.NewCircuitBreaker("test", 3, 1, time.Minute)
	g := NewGuardedExchange(paper, testLimiters(), breaker)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		g.CreateOrder(ctx, "BTC/USDT", domain.SideBuy, domain.TypeLimit, dec("1"), dec("30000"))
	}

	_, err := g.CreateOrder(ctx, "BTC/USDT", domain.SideBuy, domain.TypeLimit, dec("1"), dec("30000"))
	if !errors.Is(err, infra.ErrBreakerOpen) {
		t.Errorf("err = %v, want ErrBreakerOpen", err)
	}
}

func TestGuardedExchange_LimiterHonorsContext(t *testing.T) {
	paper := NewPaperExchange()
	paper.SetTicker("BTC/USDT", dec("30000"))

	// One token, glacial refill: the second call must block then fail.
	limiters := &infra.LimiterSet{
		Order:   infra.NewRateLimiter(1, 0.01),
		Account: infra.NewRateLimiter(1, 0.01),
		Market:  infra.NewRateLimiter(1, 0.01),
	}
	g := NewGuardedExchange(paper, limiters, infra.DefaultCircuitBreaker("test"))

	if _, err := g.FetchTicker(context.Background(), "BTC/USDT"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if _, err := g.FetchTicker(ctx, "BTC/USDT"); err == nil {
		t.Error("expected context deadline from exhausted limiter")
	}
}
