package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/sni10/new-autotrade-sub001/internal/domain"
	"github.com/sni10/new-autotrade-sub001/internal/strategy"
)

// OrderExecutionService turns one strategy decision into one deal:
// balance check, deal creation, BUY placement, local SELL bookkeeping
// and order attachment, in that order. Any failure after the BUY reached
// the exchange triggers an emergency cancel so no exchange-side order is
// ever left untracked.
type OrderExecutionService struct {
	orders *OrderService
	deals  *DealService
	stats  *ExecutionStats
	log    *slog.Logger
}

// NewOrderExecutionService wires the orchestrator.
func NewOrderExecutionService(orders *OrderService, deals *DealService, stats *ExecutionStats, log *slog.Logger) *OrderExecutionService {
	return &OrderExecutionService{orders: orders, deals: deals, stats: stats, log: log}
}

// TradeResult reports one execution. Deal is set on success.
type TradeResult struct {
	Success bool
	Deal    *domain.Deal
	Err     error
}

// ExecuteTradingStrategy runs the full orchestration for one decision.
// Statistics are updated exactly once per invocation regardless of
// outcome, and no panic or raw error crosses this boundary.
func (s *OrderExecutionService) ExecuteTradingStrategy(ctx context.Context, pair domain.CurrencyPair, decision strategy.Decision) (result TradeResult) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("trade execution panicked",
				slog.String("symbol", pair.Symbol), slog.Any("panic", r))
			result = TradeResult{Err: fmt.Errorf("internal error: %v", r)}
		}
		if result.Success {
			s.stats.RecordSuccess(ctx, decision.TotalCost, decision.TotalCost.Sub(decision.CoinsToBuy.Mul(decision.BuyPrice)))
		} else {
			s.stats.RecordFailure(ctx)
		}
	}()

	// Step 1: validate the decision shape before any side effect.
	if err := validateDecision(pair, decision); err != nil {
		return TradeResult{Err: err}
	}

	// Step 2: balance pre-check; abort before any write if short.
	if err := s.deals.CheckBalance(ctx, pair.Symbol, domain.SideBuy, decision.CoinsToBuy, decision.BuyPrice); err != nil {
		s.log.Warn("trade rejected: insufficient balance",
			slog.String("symbol", pair.Symbol), slog.Any("error", err))
		return TradeResult{Err: err}
	}

	// Step 3: create and persist the deal.
	deal, err := s.deals.CreateDeal(ctx, pair)
	if err != nil {
		return TradeResult{Err: err}
	}

	// Step 4: place the BUY. A plain placement failure only cancels the
	// empty deal, but when the venue accepted the order and a later step
	// of placement failed (e.g. persisting the placed state), the order
	// rests at the exchange and must be emergency-cancelled.
	buyRes := s.orders.CreateAndPlaceBuyOrder(ctx, pair.Symbol, decision.CoinsToBuy, decision.BuyPrice, deal.ID)
	if !buyRes.Success {
		if buyRes.Order != nil && buyRes.Order.ExchangeID != "" {
			s.rollbackBuy(ctx, deal, buyRes.Order, buyRes.Err)
		} else {
			s.abandonDeal(ctx, deal)
		}
		return TradeResult{Err: fmt.Errorf("BUY placement failed: %w", buyRes.Err)}
	}

	// Step 5: record the SELL locally as PENDING. It goes to the exchange
	// only once the BUY fills (DealService.CheckDealCompletion).
	sell, err := domain.NewOrder(pair.Symbol, domain.SideSell, domain.TypeLimit, decision.CoinsToSell, decision.SellPrice, deal.ID)
	if err != nil {
		s.rollbackBuy(ctx, deal, buyRes.Order, err)
		return TradeResult{Err: err}
	}

	// Step 6: attach both legs and persist.
	if err := s.deals.AttachOrders(ctx, deal, buyRes.Order, sell); err != nil {
		s.rollbackBuy(ctx, deal, buyRes.Order, err)
		return TradeResult{Err: err}
	}

	s.log.Info("✅ trade executed",
		slog.String("deal_id", deal.ID),
		slog.String("symbol", pair.Symbol),
		slog.String("buy_price", decision.BuyPrice.String()),
		slog.String("sell_price", decision.SellPrice.String()),
		slog.String("amount", decision.CoinsToBuy.String()),
		slog.String("projected_profit", decision.NetProfit.String()))

	return TradeResult{Success: true, Deal: deal}
}

// rollbackBuy issues the emergency cancel after a post-placement failure
// and abandons the deal. The cancel works off the in-memory order, whose
// exchange ID may be ahead of the stored row. The original error stays
// primary; cancel problems are logged, not returned.
func (s *OrderExecutionService) rollbackBuy(ctx context.Context, deal *domain.Deal, buy *domain.Order, cause error) {
	s.log.Warn("rolling back BUY after post-placement failure",
		slog.String("deal_id", deal.ID),
		slog.String("order_id", buy.ID),
		slog.Any("cause", cause))

	if err := s.orders.ForceCancelOrder(ctx, buy); err != nil {
		s.log.Error("emergency cancel failed, order may rest at the exchange",
			slog.String("order_id", buy.ID),
			slog.String("exchange_id", buy.ExchangeID),
			slog.Any("error", err))
	}
	s.abandonDeal(ctx, deal)
}

func (s *OrderExecutionService) abandonDeal(ctx context.Context, deal *domain.Deal) {
	deal.ForceCancel(time.Now().UTC())
	if err := s.deals.SaveDeal(ctx, deal); err != nil {
		s.log.Error("failed to persist abandoned deal",
			slog.String("deal_id", deal.ID), slog.Any("error", err))
	}
}

func validateDecision(pair domain.CurrencyPair, d strategy.Decision) error {
	switch {
	case pair.Symbol == "":
		return fmt.Errorf("%w: empty symbol", domain.ErrValidation)
	case !d.BuyPrice.IsPositive() || !d.SellPrice.IsPositive():
		return fmt.Errorf("%w: prices must be positive", domain.ErrValidation)
	case !d.CoinsToBuy.IsPositive() || !d.CoinsToSell.IsPositive():
		return fmt.Errorf("%w: quantities must be positive", domain.ErrValidation)
	case d.CoinsToSell.GreaterThan(d.CoinsToBuy):
		return fmt.Errorf("%w: cannot sell %s when buying %s", domain.ErrValidation, d.CoinsToSell, d.CoinsToBuy)
	case d.SellPrice.LessThanOrEqual(d.BuyPrice):
		return fmt.Errorf("%w: sell price %s not above buy price %s", domain.ErrValidation, d.SellPrice, d.BuyPrice)
	}
	return nil
}
