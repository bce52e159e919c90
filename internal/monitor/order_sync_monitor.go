package monitor

import (
	"context"
	"log/slog"
	"time"

	"github.com/sni10/new-autotrade-sub001/internal/services"
	"github.com/sni10/new-autotrade-sub001/internal/storage"
)

// OrderSyncMonitor unconditionally reconciles every open order with the
// exchange and then drives deal completion. It applies no staleness
// judgment; its job is making local state match exchange truth.
type OrderSyncMonitor struct {
	orders    *services.OrderService
	orderRepo storage.OrderRepository
	deals     *services.DealService
	log       *slog.Logger
	loop      *loop
}

// NewOrderSyncMonitor wires the monitor.
func NewOrderSyncMonitor(interval time.Duration, orders *services.OrderService, orderRepo storage.OrderRepository, deals *services.DealService, log *slog.Logger) *OrderSyncMonitor {
	m := &OrderSyncMonitor{orders: orders, orderRepo: orderRepo, deals: deals, log: log}
	m.loop = newLoop("order_sync", interval, log, m.Tick)
	return m
}

func (m *OrderSyncMonitor) Start(ctx context.Context) { m.loop.Start(ctx) }
func (m *OrderSyncMonitor) Stop()                     { m.loop.Stop() }

// Tick reconciles all open orders, then sweeps open deals so fills
// observed here immediately trigger SELL placement or deal closure.
func (m *OrderSyncMonitor) Tick(ctx context.Context) {
	open, err := m.orderRepo.GetOpenOrders(ctx)
	if err != nil {
		m.log.Error("sync monitor: listing open orders", slog.Any("error", err))
		return
	}

	synced := 0
	for _, order := range open {
		refreshed, err := m.orders.GetOrderStatus(ctx, order.ID)
		if err != nil {
			m.log.Warn("sync monitor: refresh failed",
				slog.String("order_id", order.ID), slog.Any("error", err))
			continue
		}
		if refreshed.Status != order.Status || !refreshed.FilledAmount.Equal(order.FilledAmount) {
			synced++
			m.log.Info("order state reconciled",
				slog.String("order_id", order.ID),
				slog.String("status", string(refreshed.Status)),
				slog.String("filled", refreshed.FilledAmount.String()))
		}
	}

	m.deals.CheckOpenDeals(ctx)

	if synced > 0 {
		m.log.Info("sync pass complete",
			slog.Int("open_orders", len(open)),
			slog.Int("changed", synced))
	}
}
