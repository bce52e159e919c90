package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sni10/new-autotrade-sub001/internal/domain"
	"github.com/sni10/new-autotrade-sub001/internal/exchange"
	"github.com/sni10/new-autotrade-sub001/internal/services"
)

// BuyOrderConfig tunes the BUY remediation monitor.
type BuyOrderConfig struct {
	Interval time.Duration

	// GracePeriod protects just-placed orders from the first check so
	// the monitor never races exchange-side propagation.
	GracePeriod time.Duration

	Policy StalenessPolicy

	// PriceFactor prices the replacement BUY relative to the market,
	// e.g. 0.999 bids just under the last trade.
	PriceFactor decimal.Decimal

	// MaxRecreations caps replacements per deal; Cooldown is the
	// minimum spacing between them.
	MaxRecreations int
	Cooldown       time.Duration

	// SummaryEvery rate-limits the nothing-to-do log line.
	SummaryEvery time.Duration
}

// BuyOrderMonitor watches open BUY orders and remediates stale ones:
// cancel, then recreate near the current market while the deal's
// recreation budget allows. It is the only component that recreates
// orders; the timeout monitor just expires them.
type BuyOrderMonitor struct {
	cfg    BuyOrderConfig
	deals  *services.DealService
	orders *services.OrderService
	prices exchange.PriceSource
	pairs  *exchange.PairCache
	log    *slog.Logger

	loop        *loop
	lastSummary time.Time
	quietTicks  int
}

// NewBuyOrderMonitor wires the monitor.
func NewBuyOrderMonitor(cfg BuyOrderConfig, deals *services.DealService, orders *services.OrderService, prices exchange.PriceSource, pairs *exchange.PairCache, log *slog.Logger) *BuyOrderMonitor {
	if cfg.SummaryEvery <= 0 {
		cfg.SummaryEvery = 10 * time.Minute
	}
	m := &BuyOrderMonitor{cfg: cfg, deals: deals, orders: orders, prices: prices, pairs: pairs, log: log}
	m.loop = newLoop("buy_order", cfg.Interval, log, m.Tick)
	return m
}

func (m *BuyOrderMonitor) Start(ctx context.Context) { m.loop.Start(ctx) }
func (m *BuyOrderMonitor) Stop()                     { m.loop.Stop() }

// Tick runs one remediation pass. Exported so tests and the sync path
// can drive it without the ticker.
func (m *BuyOrderMonitor) Tick(ctx context.Context) {
	deals, err := m.deals.GetOpenDeals(ctx)
	if err != nil {
		m.log.Error("buy monitor: listing open deals", slog.Any("error", err))
		return
	}

	now := time.Now().UTC()
	remediated := 0

	for _, deal := range deals {
		if deal.BuyOrder == nil || !deal.BuyOrder.IsOpen() {
			continue
		}
		if deal.BuyOrder.Age(now) < m.cfg.GracePeriod {
			continue
		}

		if m.remediate(ctx, deal, now) {
			remediated++
		}
	}

	m.summarize(len(deals), remediated, now)
}

// remediate checks one deal's BUY and replaces it when stale. Returns
// true when the order was cancelled.
func (m *BuyOrderMonitor) remediate(ctx context.Context, deal *domain.Deal, now time.Time) bool {
	order, err := m.orders.GetOrderStatus(ctx, deal.BuyOrder.ID)
	if err != nil {
		m.log.Warn("buy monitor: refresh failed",
			slog.String("order_id", deal.BuyOrder.ID), slog.Any("error", err))
		return false
	}
	deal.BuyOrder = order
	if !order.IsOpen() {
		return false
	}

	marketPrice, err := m.prices.CurrentPrice(ctx, order.Symbol)
	if err != nil {
		m.log.Warn("buy monitor: no market price",
			slog.String("symbol", order.Symbol), slog.Any("error", err))
		marketPrice = decimal.Zero
	}

	stale, reason := m.cfg.Policy.Evaluate(order, marketPrice, now)
	if !stale {
		return false
	}

	m.log.Info("stale BUY order detected",
		slog.String("order_id", order.ID),
		slog.String("deal_id", deal.ID),
		slog.String("reason", reason))

	canceled, err := m.orders.CancelOrder(ctx, order.ID)
	if err != nil {
		m.log.Error("buy monitor: cancel failed",
			slog.String("order_id", order.ID), slog.Any("error", err))
		return false
	}
	deal.BuyOrder = canceled
	if canceled.IsFilled() {
		// Lost the race to a fill; the completion check takes it from here.
		return false
	}

	m.recreate(ctx, deal, canceled, marketPrice, now)
	return true
}

func (m *BuyOrderMonitor) recreate(ctx context.Context, deal *domain.Deal, old *domain.Order, marketPrice decimal.Decimal, now time.Time) {
	if !marketPrice.IsPositive() {
		m.log.Warn("buy monitor: no price to recreate against",
			slog.String("deal_id", deal.ID))
		return
	}
	if !deal.CanRecreate(m.cfg.MaxRecreations, m.cfg.Cooldown, now) {
		m.log.Info("recreation budget exhausted, leaving deal without a BUY",
			slog.String("deal_id", deal.ID),
			slog.Int("recreations", deal.Recreations))
		m.saveDeal(ctx, deal)
		return
	}

	newPrice := marketPrice.Mul(m.cfg.PriceFactor)
	if pair, err := m.pairs.Get(ctx, deal.Symbol); err == nil {
		step := pair.PriceStep()
		newPrice = newPrice.Div(step).Floor().Mul(step)
	}

	replacement, err := domain.NewOrder(old.Symbol, domain.SideBuy, domain.TypeLimit, old.Amount, newPrice, deal.ID)
	if err != nil {
		m.log.Error("buy monitor: building replacement",
			slog.String("deal_id", deal.ID), slog.Any("error", err))
		return
	}

	res := m.orders.PlaceOrder(ctx, replacement)
	if !res.Success {
		m.log.Error("buy monitor: replacement placement failed",
			slog.String("deal_id", deal.ID), slog.Any("error", res.Err))
		m.saveDeal(ctx, deal)
		return
	}

	if err := deal.ReplaceBuyOrder(res.Order); err != nil {
		m.log.Error("buy monitor: linking replacement",
			slog.String("deal_id", deal.ID), slog.Any("error", err))
		return
	}
	deal.NoteRecreation(now)
	m.saveDeal(ctx, deal)

	m.log.Info("♻️  BUY order recreated",
		slog.String("deal_id", deal.ID),
		slog.String("old_order_id", old.ID),
		slog.String("new_order_id", res.Order.ID),
		slog.String("old_price", old.Price.String()),
		slog.String("new_price", newPrice.String()),
		slog.Int("recreations", deal.Recreations))
}

func (m *BuyOrderMonitor) saveDeal(ctx context.Context, deal *domain.Deal) {
	if err := m.deals.SaveDeal(ctx, deal); err != nil {
		m.log.Error("buy monitor: persisting deal",
			slog.String("deal_id", deal.ID), slog.Any("error", err))
	}
}

// summarize logs activity immediately but compresses quiet ticks into a
// rate-limited one-liner.
func (m *BuyOrderMonitor) summarize(openDeals, remediated int, now time.Time) {
	if remediated > 0 {
		m.log.Info("buy monitor pass complete",
			slog.Int("open_deals", openDeals),
			slog.Int("remediated", remediated))
		m.quietTicks = 0
		m.lastSummary = now
		return
	}

	m.quietTicks++
	if now.Sub(m.lastSummary) >= m.cfg.SummaryEvery {
		m.log.Info("buy monitor: nothing stale",
			slog.Int("open_deals", openDeals),
			slog.Int("quiet_ticks", m.quietTicks))
		m.quietTicks = 0
		m.lastSummary = now
	}
}
