package monitor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sni10/new-autotrade-sub001/internal/domain"
)

func TestOrderSyncMonitor_ReconcilesFills(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	deal := placeDeal(t, f, 0)

	sync := NewOrderSyncMonitor(time.Minute, f.orders, f.orderRepo, f.deals, discardLogger())

	// Exchange fills the BUY behind our back.
	require.NoError(t, f.paper.FillAll(deal.BuyOrder.ExchangeID))

	sync.Tick(ctx)

	buy, err := f.orderRepo.GetByID(ctx, deal.BuyOrder.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFilled, buy.Status)
	assert.True(t, buy.FilledAmount.Equal(buy.Amount))

	// The completion sweep must have pushed the SELL to the exchange.
	updated, err := f.dealRepo.GetByID(ctx, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, updated.SellOrder.Status)
	assert.NotEmpty(t, updated.SellOrder.ExchangeID)
}

func TestOrderSyncMonitor_ClosesCompletedDeal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	deal := placeDeal(t, f, 0)

	sync := NewOrderSyncMonitor(time.Minute, f.orders, f.orderRepo, f.deals, discardLogger())

	require.NoError(t, f.paper.FillAll(deal.BuyOrder.ExchangeID))
	sync.Tick(ctx)

	updated, err := f.dealRepo.GetByID(ctx, deal.ID)
	require.NoError(t, err)
	require.NoError(t, f.paper.FillAll(updated.SellOrder.ExchangeID))
	sync.Tick(ctx)

	closed, err := f.dealRepo.GetByID(ctx, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DealClosed, closed.Status)
	assert.True(t, closed.Profit.IsPositive(), "profit = %s", closed.Profit)
}

func TestOrderSyncMonitor_ObservesExternalCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	deal := placeDeal(t, f, 0)

	sync := NewOrderSyncMonitor(time.Minute, f.orders, f.orderRepo, f.deals, discardLogger())

	require.NoError(t, f.paper.CancelOrder(ctx, deal.BuyOrder.ExchangeID, "BTC/USDT"))
	sync.Tick(ctx)

	buy, err := f.orderRepo.GetByID(ctx, deal.BuyOrder.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCanceled, buy.Status)
}
