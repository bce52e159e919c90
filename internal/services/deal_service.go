package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sni10/new-autotrade-sub001/internal/domain"
	"github.com/sni10/new-autotrade-sub001/internal/storage"
)

// DealService owns the deal lifecycle: creation, order linkage, the
// pre-trade balance check and the completion check that turns a filled
// BUY into a resting SELL.
type DealService struct {
	factory  *domain.DealFactory
	deals    storage.DealRepository
	orders   *OrderService
	exchange domain.Exchange
	log      *slog.Logger
}

// NewDealService wires the service.
func NewDealService(deals storage.DealRepository, orders *OrderService, exchange domain.Exchange, log *slog.Logger) *DealService {
	return &DealService{
		factory:  domain.NewDealFactory(),
		deals:    deals,
		orders:   orders,
		exchange: exchange,
		log:      log,
	}
}

// CreateDeal mints and persists an OPEN deal with no orders attached.
func (s *DealService) CreateDeal(ctx context.Context, pair domain.CurrencyPair) (*domain.Deal, error) {
	deal := s.factory.Create(pair)
	if err := s.deals.Save(ctx, deal); err != nil {
		return nil, fmt.Errorf("persisting new deal: %w", err)
	}
	s.log.Info("deal created",
		slog.String("deal_id", deal.ID),
		slog.String("symbol", deal.Symbol))
	return deal, nil
}

// AttachOrders links both legs to the deal and persists it.
func (s *DealService) AttachOrders(ctx context.Context, deal *domain.Deal, buy, sell *domain.Order) error {
	if err := deal.AttachOrders(buy, sell); err != nil {
		return err
	}
	if err := s.deals.Save(ctx, deal); err != nil {
		return fmt.Errorf("persisting deal %s after attach: %w", deal.ID, err)
	}
	return nil
}

// CheckBalance verifies funds for an order before anything is written.
func (s *DealService) CheckBalance(ctx context.Context, symbol string, side domain.Side, amount, price decimal.Decimal) error {
	check, err := s.exchange.CheckSufficientBalance(ctx, symbol, side, amount, price)
	if err != nil {
		return fmt.Errorf("balance check for %s: %w", symbol, err)
	}
	if !check.OK {
		return fmt.Errorf("%w: need %s %s, have %s",
			domain.ErrInsufficientBalance, check.Required, check.Currency, check.Available)
	}
	return nil
}

// CheckDealCompletion advances one deal: it refreshes the BUY leg, sends
// the SELL to the exchange once the BUY fills, and closes the deal when
// both legs are done. Safe to call repeatedly from monitors.
func (s *DealService) CheckDealCompletion(ctx context.Context, deal *domain.Deal) error {
	if deal.Status != domain.DealOpen || deal.BuyOrder == nil || deal.SellOrder == nil {
		return nil
	}

	buy, err := s.orders.GetOrderStatus(ctx, deal.BuyOrder.ID)
	if err != nil {
		return fmt.Errorf("refreshing BUY of deal %s: %w", deal.ID, err)
	}
	deal.BuyOrder = buy

	// The SELL rests locally until the BUY fills; capital is never parked
	// on a sell that has nothing to sell.
	if buy.IsFilled() && deal.SellOrder.Status == domain.StatusPending {
		res := s.orders.PlaceOrder(ctx, deal.SellOrder)
		if !res.Success {
			deal.UpdatedAt = time.Now().UTC()
			if saveErr := s.deals.Save(ctx, deal); saveErr != nil {
				s.log.Error("failed to persist deal after SELL placement failure",
					slog.String("deal_id", deal.ID), slog.Any("error", saveErr))
			}
			return fmt.Errorf("placing SELL of deal %s: %w", deal.ID, res.Err)
		}
		deal.SellOrder = res.Order
		s.log.Info("SELL placed after BUY fill",
			slog.String("deal_id", deal.ID),
			slog.String("sell_order_id", res.Order.ID),
			slog.String("price", res.Order.Price.String()))
	}

	if deal.SellOrder.ExchangeID != "" && !deal.SellOrder.IsTerminal() {
		sell, err := s.orders.GetOrderStatus(ctx, deal.SellOrder.ID)
		if err != nil {
			return fmt.Errorf("refreshing SELL of deal %s: %w", deal.ID, err)
		}
		deal.SellOrder = sell
	}

	if deal.BuyOrder.IsFilled() && deal.SellOrder.IsFilled() {
		if err := deal.Close(time.Now().UTC()); err != nil {
			return err
		}
		if err := s.deals.Save(ctx, deal); err != nil {
			return fmt.Errorf("persisting closed deal %s: %w", deal.ID, err)
		}
		s.log.Info("💰 deal closed",
			slog.String("deal_id", deal.ID),
			slog.String("symbol", deal.Symbol),
			slog.String("profit", deal.Profit.String()))
		return nil
	}

	deal.UpdatedAt = time.Now().UTC()
	if err := s.deals.Save(ctx, deal); err != nil {
		return fmt.Errorf("persisting deal %s: %w", deal.ID, err)
	}
	return nil
}

// CheckOpenDeals runs the completion check over every open deal. One
// failing deal logs and does not stop the sweep.
func (s *DealService) CheckOpenDeals(ctx context.Context) {
	deals, err := s.deals.GetOpenDeals(ctx)
	if err != nil {
		s.log.Error("listing open deals", slog.Any("error", err))
		return
	}
	for _, deal := range deals {
		if err := s.CheckDealCompletion(ctx, deal); err != nil {
			s.log.Warn("deal completion check failed",
				slog.String("deal_id", deal.ID), slog.Any("error", err))
		}
	}
}

// GetOpenDeals exposes the open deals for monitors.
func (s *DealService) GetOpenDeals(ctx context.Context) ([]*domain.Deal, error) {
	return s.deals.GetOpenDeals(ctx)
}

// SaveDeal persists deal mutations made by monitors.
func (s *DealService) SaveDeal(ctx context.Context, deal *domain.Deal) error {
	return s.deals.Save(ctx, deal)
}
