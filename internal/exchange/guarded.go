package exchange

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/sni10/new-autotrade-sub001/internal/domain"
	"github.com/sni10/new-autotrade-sub001/internal/infra"
)

// GuardedExchange wraps another Exchange with per-endpoint rate limiting
// and a circuit breaker. Every call waits for a token from the matching
// bucket, then runs through the breaker so a failing venue trips fast
// instead of burning the rate budget.
type GuardedExchange struct {
	inner    domain.Exchange
	limiters *infra.LimiterSet
	breaker  *infra.CircuitBreaker
}

// NewGuardedExchange builds the guard around an exchange binding.
func NewGuardedExchange(inner domain.Exchange, limiters *infra.LimiterSet, breaker *infra.CircuitBreaker) *GuardedExchange {
	return &GuardedExchange{inner: inner, limiters: limiters, breaker: breaker}
}

// Unwrap exposes the guarded exchange, letting the composition root
// reach venue-specific setup like paper-mode seeding.
func (g *GuardedExchange) Unwrap() domain.Exchange { return g.inner }

func (g *GuardedExchange) guard(ctx context.Context, limiter *infra.RateLimiter, op func() error) error {
	if err := limiter.Wait(ctx); err != nil {
		return err
	}
	return g.breaker.Do(op)
}

func (g *GuardedExchange) CreateOrder(ctx context.Context, symbol string, side domain.Side, typ domain.OrderType, amount, price decimal.Decimal) (domain.OrderSnapshot, error) {
	var snap domain.OrderSnapshot
	err := g.guard(ctx, g.limiters.Order, func() error {
		var opErr error
		snap, opErr = g.inner.CreateOrder(ctx, symbol, side, typ, amount, price)
		return opErr
	})
	return snap, err
}

func (g *GuardedExchange) CancelOrder(ctx context.Context, exchangeID, symbol string) error {
	return g.guard(ctx, g.limiters.Order, func() error {
		return g.inner.CancelOrder(ctx, exchangeID, symbol)
	})
}

func (g *GuardedExchange) FetchOrder(ctx context.Context, exchangeID, symbol string) (domain.OrderSnapshot, error) {
	var snap domain.OrderSnapshot
	err := g.guard(ctx, g.limiters.Order, func() error {
		var opErr error
		snap, opErr = g.inner.FetchOrder(ctx, exchangeID, symbol)
		return opErr
	})
	return snap, err
}

func (g *GuardedExchange) FetchTicker(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var price decimal.Decimal
	err := g.guard(ctx, g.limiters.Market, func() error {
		var opErr error
		price, opErr = g.inner.FetchTicker(ctx, symbol)
		return opErr
	})
	return price, err
}

func (g *GuardedExchange) CheckSufficientBalance(ctx context.Context, symbol string, side domain.Side, amount, price decimal.Decimal) (domain.BalanceCheck, error) {
	var check domain.BalanceCheck
	err := g.guard(ctx, g.limiters.Account, func() error {
		var opErr error
		check, opErr = g.inner.CheckSufficientBalance(ctx, symbol, side, amount, price)
		return opErr
	})
	return check, err
}

func (g *GuardedExchange) FetchCurrencyPair(ctx context.Context, symbol string) (domain.CurrencyPair, error) {
	var pair domain.CurrencyPair
	err := g.guard(ctx, g.limiters.Market, func() error {
		var opErr error
		pair, opErr = g.inner.FetchCurrencyPair(ctx, symbol)
		return opErr
	})
	return pair, err
}
