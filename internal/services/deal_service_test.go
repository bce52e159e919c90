package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sni10/new-autotrade-sub001/internal/domain"
	"github.com/sni10/new-autotrade-sub001/internal/exchange"
	"github.com/sni10/new-autotrade-sub001/internal/storage"
)

type dealFixture struct {
	deals  *DealService
	orders *OrderService
	paper  *exchange.PaperExchange
	repo   *storage.MemoryDealRepository
}

func newDealFixture() *dealFixture {
	paper := exchange.NewPaperExchange()
	orderRepo := storage.NewMemoryOrderRepository()
	dealRepo := storage.NewMemoryDealRepository()
	log := discardLogger()

	orders := NewOrderService(paper, orderRepo, fastRetry(), log)
	deals := NewDealService(dealRepo, orders, paper, log)
	return &dealFixture{deals: deals, orders: orders, paper: paper, repo: dealRepo}
}

func testPair() domain.CurrencyPair {
	return domain.CurrencyPair{
		Symbol: "BTC/USDT", Base: "BTC", Quote: "USDT",
		AmountPrecision: 4, PricePrecision: 2,
	}
}

// openDealWithOrders builds a deal with a placed BUY and a pending SELL,
// the state ExecuteTradingStrategy leaves behind.
func openDealWithOrders(t *testing.T, f *dealFixture) *domain.Deal {
	t.Helper()
	ctx := context.Background()

	deal, err := f.deals.CreateDeal(ctx, testPair())
	require.NoError(t, err)

	buyRes := f.orders.CreateAndPlaceBuyOrder(ctx, "BTC/USDT", dec("0.05"), dec("30000"), deal.ID)
	require.True(t, buyRes.Success)

	sell, err := domain.NewOrder("BTC/USDT", domain.SideSell, domain.TypeLimit, dec("0.05"), dec("30300"), deal.ID)
	require.NoError(t, err)

	require.NoError(t, f.deals.AttachOrders(ctx, deal, buyRes.Order, sell))
	return deal
}

func TestDealService_CreateDealPersists(t *testing.T) {
	f := newDealFixture()
	ctx := context.Background()

	deal, err := f.deals.CreateDeal(ctx, testPair())
	require.NoError(t, err)
	assert.Equal(t, domain.DealOpen, deal.Status)

	stored, err := f.repo.GetByID(ctx, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, "BTC/USDT", stored.Symbol)
}

func TestDealService_CheckBalance(t *testing.T) {
	f := newDealFixture()
	f.paper.Deposit("USDT", dec("100"))
	ctx := context.Background()

	err := f.deals.CheckBalance(ctx, "BTC/USDT", domain.SideBuy, dec("0.003"), dec("30000"))
	assert.NoError(t, err)

	err = f.deals.CheckBalance(ctx, "BTC/USDT", domain.SideBuy, dec("1"), dec("30000"))
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)
}

func TestDealService_CompletionPlacesSellAfterBuyFill(t *testing.T) {
	f := newDealFixture()
	ctx := context.Background()
	deal := openDealWithOrders(t, f)

	// BUY still open: nothing should change.
	require.NoError(t, f.deals.CheckDealCompletion(ctx, deal))
	assert.Equal(t, domain.StatusPending, deal.SellOrder.Status)

	// BUY fills: the SELL goes to the exchange.
	require.NoError(t, f.paper.FillAll(deal.BuyOrder.ExchangeID))
	require.NoError(t, f.deals.CheckDealCompletion(ctx, deal))

	assert.Equal(t, domain.StatusFilled, deal.BuyOrder.Status)
	assert.Equal(t, domain.StatusOpen, deal.SellOrder.Status)
	assert.NotEmpty(t, deal.SellOrder.ExchangeID)
	assert.Equal(t, domain.DealOpen, deal.Status)
}

func TestDealService_CompletionClosesWhenBothFill(t *testing.T) {
	f := newDealFixture()
	ctx := context.Background()
	deal := openDealWithOrders(t, f)

	require.NoError(t, f.paper.FillAll(deal.BuyOrder.ExchangeID))
	require.NoError(t, f.deals.CheckDealCompletion(ctx, deal))
	require.NoError(t, f.paper.FillAll(deal.SellOrder.ExchangeID))
	require.NoError(t, f.deals.CheckDealCompletion(ctx, deal))

	assert.Equal(t, domain.DealClosed, deal.Status)
	// 0.05 * (30300 - 30000) = 15 profit with zero fees registered.
	assert.True(t, deal.Profit.Equal(dec("15")), "profit = %s", deal.Profit)

	stored, err := f.repo.GetByID(ctx, deal.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DealClosed, stored.Status)
}

func TestDealService_CompletionIsRepeatable(t *testing.T) {
	f := newDealFixture()
	ctx := context.Background()
	deal := openDealWithOrders(t, f)

	require.NoError(t, f.paper.FillAll(deal.BuyOrder.ExchangeID))
	require.NoError(t, f.deals.CheckDealCompletion(ctx, deal))
	sellID := deal.SellOrder.ExchangeID

	// A second pass must not place another SELL.
	require.NoError(t, f.deals.CheckDealCompletion(ctx, deal))
	assert.Equal(t, sellID, deal.SellOrder.ExchangeID)
}

func TestDealService_CompletionIgnoresClosedDeals(t *testing.T) {
	f := newDealFixture()
	ctx := context.Background()

	deal, err := f.deals.CreateDeal(ctx, testPair())
	require.NoError(t, err)
	deal.ForceCancel(deal.CreatedAt)

	assert.NoError(t, f.deals.CheckDealCompletion(ctx, deal))
}
