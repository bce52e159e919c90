package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sni10/new-autotrade-sub001/internal/domain"
	"github.com/sni10/new-autotrade-sub001/internal/exchange"
	"github.com/sni10/new-autotrade-sub001/internal/strategy"
)

func dec(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func decimalFromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// paperVenue unwraps the guard to reach the simulated venue; nil when
// the engine runs against a real exchange.
func paperVenue(ex domain.Exchange) *exchange.PaperExchange {
	if g, ok := ex.(*exchange.GuardedExchange); ok {
		ex = g.Unwrap()
	}
	paper, _ := ex.(*exchange.PaperExchange)
	return paper
}

// SignalProducer is the built-in signal boundary: it sizes a trade per
// symbol from the current market price and emits it when the symbol has
// no open deal yet. An external producer can replace it by writing to
// the same channel.
type SignalProducer struct {
	app      *App
	interval time.Duration
}

// NewSignalProducer creates a producer ticking at the given interval.
func NewSignalProducer(app *App, interval time.Duration) *SignalProducer {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &SignalProducer{app: app, interval: interval}
}

// Run emits signals until the context ends, then closes the channel.
func (p *SignalProducer) Run(ctx context.Context, out chan<- TradeSignal) {
	defer close(out)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.produce(ctx, out)
		}
	}
}

func (p *SignalProducer) produce(ctx context.Context, out chan<- TradeSignal) {
	busy, err := p.symbolsWithOpenDeals(ctx)
	if err != nil {
		slog.Error("signal producer: listing open deals", slog.Any("error", err))
		return
	}

	for _, symbol := range p.app.Config.Trading.Symbols {
		if busy[symbol] {
			continue
		}

		pair, err := p.app.Pairs.Get(ctx, symbol)
		if err != nil {
			slog.Warn("signal producer: no pair metadata",
				slog.String("symbol", symbol), slog.Any("error", err))
			continue
		}
		price, err := p.app.Prices.CurrentPrice(ctx, symbol)
		if err != nil {
			slog.Debug("signal producer: no market price",
				slog.String("symbol", symbol), slog.Any("error", err))
			continue
		}

		decision, err := strategy.Calculate(strategy.InputFromPair(
			pair, price, p.app.Config.BudgetPerDeal(), p.app.Config.ProfitPct()))
		if err != nil {
			slog.Debug("signal producer: no viable trade",
				slog.String("symbol", symbol), slog.Any("error", err))
			continue
		}

		select {
		case out <- TradeSignal{Pair: pair, Decision: decision}:
			slog.Info("trade signal emitted",
				slog.String("symbol", symbol),
				slog.String("buy_price", decision.BuyPrice.String()),
				slog.String("amount", decision.CoinsToBuy.String()))
		case <-ctx.Done():
			return
		}
	}
}

// symbolsWithOpenDeals keeps one deal in flight per symbol.
func (p *SignalProducer) symbolsWithOpenDeals(ctx context.Context) (map[string]bool, error) {
	deals, err := p.app.Deals.GetOpenDeals(ctx)
	if err != nil {
		return nil, err
	}
	busy := make(map[string]bool, len(deals))
	for _, d := range deals {
		busy[d.Symbol] = true
	}
	return busy, nil
}
