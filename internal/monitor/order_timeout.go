package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/sni10/new-autotrade-sub001/internal/domain"
	"github.com/sni10/new-autotrade-sub001/internal/services"
	"github.com/sni10/new-autotrade-sub001/internal/storage"
)

// OrderTimeoutService enforces a hard lifetime on open orders and sweeps
// deals that can no longer progress. Expired orders are cancelled and
// never recreated; recreation is the BUY monitor's call alone.
type OrderTimeoutService struct {
	maxLifetime time.Duration
	orders      *services.OrderService
	orderRepo   storage.OrderRepository
	deals       *services.DealService
	log         *slog.Logger
	loop        *loop
}

// NewOrderTimeoutService wires the service.
func NewOrderTimeoutService(interval, maxLifetime time.Duration, orders *services.OrderService, orderRepo storage.OrderRepository, deals *services.DealService, log *slog.Logger) *OrderTimeoutService {
	s := &OrderTimeoutService{maxLifetime: maxLifetime, orders: orders, orderRepo: orderRepo, deals: deals, log: log}
	s.loop = newLoop("order_timeout", interval, log, s.Tick)
	return s
}

func (s *OrderTimeoutService) Start(ctx context.Context) { s.loop.Start(ctx) }
func (s *OrderTimeoutService) Stop()                     { s.loop.Stop() }

// Tick expires every open order older than the lifetime cap, then
// force-cancels deals left with no live leg and nothing filled.
func (s *OrderTimeoutService) Tick(ctx context.Context) {
	open, err := s.orderRepo.GetOpenOrders(ctx)
	if err != nil {
		s.log.Error("timeout monitor: listing open orders", slog.Any("error", err))
		return
	}

	now := time.Now().UTC()
	for _, order := range open {
		age := order.Age(now)
		if age <= s.maxLifetime {
			continue
		}

		canceled, err := s.orders.CancelOrder(ctx, order.ID)
		if err != nil {
			s.log.Error("timeout monitor: cancel failed",
				slog.String("order_id", order.ID), slog.Any("error", err))
			continue
		}
		s.log.Warn("order expired",
			slog.String("order_id", order.ID),
			slog.String("symbol", order.Symbol),
			slog.String("status", string(canceled.Status)),
			slog.Duration("age", age.Round(time.Second)),
			slog.Duration("max_lifetime", s.maxLifetime))
	}

	s.sweepDeadDeals(ctx, now)
}

// sweepDeadDeals force-cancels open deals with no path forward: every
// attached order is finished with nothing filled, so no fill will ever
// arrive and no monitor will place another leg. Without the sweep such
// a deal holds its symbol busy forever.
func (s *OrderTimeoutService) sweepDeadDeals(ctx context.Context, now time.Time) {
	deals, err := s.deals.GetOpenDeals(ctx)
	if err != nil {
		s.log.Error("timeout monitor: listing open deals", slog.Any("error", err))
		return
	}

	for _, deal := range deals {
		// The stored deal may lag the order repo, e.g. right after the
		// expiry pass above cancelled its BUY.
		s.refreshLeg(ctx, &deal.BuyOrder)
		s.refreshLeg(ctx, &deal.SellOrder)

		if !dealIsDead(deal) {
			continue
		}

		deal.ForceCancel(now)
		if err := s.deals.SaveDeal(ctx, deal); err != nil {
			s.log.Error("timeout monitor: persisting cancelled deal",
				slog.String("deal_id", deal.ID), slog.Any("error", err))
			continue
		}
		s.log.Warn("dead deal canceled",
			slog.String("deal_id", deal.ID),
			slog.String("symbol", deal.Symbol))
	}
}

func (s *OrderTimeoutService) refreshLeg(ctx context.Context, leg **domain.Order) {
	if *leg == nil {
		return
	}
	if latest, err := s.orderRepo.GetByID(ctx, (*leg).ID); err == nil {
		*leg = latest
	}
}

// dealIsDead reports whether a deal cannot progress: both legs exist and
// each is either terminal without a fill or never reached the venue.
func dealIsDead(d *domain.Deal) bool {
	return d.BuyOrder != nil && d.SellOrder != nil &&
		legDead(d.BuyOrder) && legDead(d.SellOrder)
}

func legDead(o *domain.Order) bool {
	if o.FilledAmount.IsPositive() {
		return false
	}
	return o.IsTerminal() || o.ExchangeID == ""
}
