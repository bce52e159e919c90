package exchange

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/sni10/new-autotrade-sub001/internal/domain"
	"github.com/sni10/new-autotrade-sub001/internal/infra"
)

// LiveBinding constructs a venue-specific live exchange client.
// Registered by the build that ships a real venue integration; the core
// engine only knows the domain.Exchange contract.
type LiveBinding func(cfg *infra.Config) (domain.Exchange, error)

var liveBinding LiveBinding

// RegisterLiveBinding installs the live venue constructor. Call from an
// init() in the venue package.
func RegisterLiveBinding(b LiveBinding) { liveBinding = b }

// New builds the exchange for the configured trading mode and wraps it
// with rate limiting and a circuit breaker.
//
// Live mode has a safety latch: it refuses to start unless the
// CONFIRM_REAL_MONEY environment variable is set to "YES". Paper is the
// default and needs no confirmation.
func New(cfg *infra.Config) (domain.Exchange, error) {
	limiters := infra.NewLimiterSet(
		cfg.Exchange.RateLimit.OrderPerSec,
		cfg.Exchange.RateLimit.AccountPerSec,
		cfg.Exchange.RateLimit.MarketPerSec,
	)
	breaker := infra.DefaultCircuitBreaker(cfg.Exchange.Name)

	switch cfg.Trading.Mode {
	case "paper":
		slog.Info("📋 exchange: paper mode, no real orders will be placed")
		return NewGuardedExchange(NewPaperExchange(), limiters, breaker), nil

	case "live":
		if os.Getenv("CONFIRM_REAL_MONEY") != "YES" {
			return nil, fmt.Errorf("live mode requires CONFIRM_REAL_MONEY=YES in the environment")
		}
		if liveBinding == nil {
			return nil, fmt.Errorf("live mode requested but no venue binding is registered")
		}
		inner, err := liveBinding(cfg)
		if err != nil {
			return nil, fmt.Errorf("building live exchange: %w", err)
		}
		slog.Warn("💰 exchange: LIVE mode, orders will reach the venue",
			slog.String("venue", cfg.Exchange.Name))
		return NewGuardedExchange(inner, limiters, breaker), nil

	default:
		return nil, fmt.Errorf("unknown trading mode %q", cfg.Trading.Mode)
	}
}
