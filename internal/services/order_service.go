package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sni10/new-autotrade-sub001/internal/domain"
	"github.com/sni10/new-autotrade-sub001/internal/infra"
	"github.com/sni10/new-autotrade-sub001/internal/storage"
)

// ExecutionResult is the typed outcome of an order operation. Err is
// informational; callers branch on Success and no panic or raw error
// escapes the service boundary.
type ExecutionResult struct {
	Success bool
	Order   *domain.Order
	Err     error
}

func failure(order *domain.Order, err error) ExecutionResult {
	return ExecutionResult{Success: false, Order: order, Err: err}
}

// OrderService places, cancels and refreshes individual orders against
// the exchange boundary with bounded retry.
type OrderService struct {
	exchange domain.Exchange
	orders   storage.OrderRepository
	retryCfg infra.RetryConfig
	log      *slog.Logger
}

// NewOrderService wires the service. retryCfg bounds placement attempts.
func NewOrderService(exchange domain.Exchange, orders storage.OrderRepository, retryCfg infra.RetryConfig, log *slog.Logger) *OrderService {
	return &OrderService{exchange: exchange, orders: orders, retryCfg: retryCfg, log: log}
}

// CreateAndPlaceBuyOrder builds a limit BUY and drives it to the exchange.
func (s *OrderService) CreateAndPlaceBuyOrder(ctx context.Context, symbol string, amount, price decimal.Decimal, dealID string) ExecutionResult {
	order, err := domain.NewOrder(symbol, domain.SideBuy, domain.TypeLimit, amount, price, dealID)
	if err != nil {
		return failure(nil, err)
	}
	return s.PlaceOrder(ctx, order)
}

// CreateAndPlaceSellOrder builds a limit SELL and drives it to the exchange.
func (s *OrderService) CreateAndPlaceSellOrder(ctx context.Context, symbol string, amount, price decimal.Decimal, dealID string) ExecutionResult {
	order, err := domain.NewOrder(symbol, domain.SideSell, domain.TypeLimit, amount, price, dealID)
	if err != nil {
		return failure(nil, err)
	}
	return s.PlaceOrder(ctx, order)
}

// PlaceOrder submits a PENDING order with up to retryCfg.MaxAttempts
// attempts and exponential backoff. Each attempt increments the order's
// retry counter; exhausting the budget marks the order FAILED with the
// last error captured. The order is persisted in every terminal outcome.
func (s *OrderService) PlaceOrder(ctx context.Context, order *domain.Order) ExecutionResult {
	if order.Status != domain.StatusPending {
		return failure(order, fmt.Errorf("%w: order %s is %s, only PENDING orders can be placed",
			domain.ErrValidation, order.ID, order.Status))
	}

	if err := s.orders.Save(ctx, order); err != nil {
		return failure(order, fmt.Errorf("persisting order before placement: %w", err))
	}

	err := infra.Retry(ctx, s.retryCfg, func(attempt int) error {
		order.Retries = attempt

		snap, err := s.exchange.CreateOrder(ctx, order.Symbol, order.Side, order.Type, order.Amount, order.Price)
		if err != nil {
			s.log.Warn("order placement attempt failed",
				slog.String("order_id", order.ID),
				slog.String("symbol", order.Symbol),
				slog.Int("attempt", attempt),
				slog.Any("error", err))
			if !domain.IsRetryable(err) {
				return infra.Permanent(err)
			}
			return err
		}

		if err := order.MarkPlaced(snap.ExchangeID, snap.Timestamp); err != nil {
			return infra.Permanent(err)
		}
		order.ApplyUpdate(snap)
		return nil
	})

	if err != nil {
		order.MarkFailed(err.Error(), time.Now().UTC())
		if saveErr := s.orders.Save(ctx, order); saveErr != nil {
			s.log.Error("failed to persist FAILED order",
				slog.String("order_id", order.ID), slog.Any("error", saveErr))
		}
		return failure(order, err)
	}

	if err := s.orders.Save(ctx, order); err != nil {
		return failure(order, fmt.Errorf("persisting placed order: %w", err))
	}

	s.log.Info("order placed",
		slog.String("order_id", order.ID),
		slog.String("exchange_id", order.ExchangeID),
		slog.String("symbol", order.Symbol),
		slog.String("side", string(order.Side)),
		slog.String("price", order.Price.String()),
		slog.String("amount", order.Amount.String()))

	return ExecutionResult{Success: true, Order: order}
}

// GetOrderStatus fetches the exchange snapshot and merges it into the
// local order. Applying the same snapshot twice leaves the order
// unchanged, so callers may poll freely.
func (s *OrderService) GetOrderStatus(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.ExchangeID == "" || order.IsTerminal() {
		return order, nil
	}

	snap, err := s.exchange.FetchOrder(ctx, order.ExchangeID, order.Symbol)
	if err != nil {
		return nil, fmt.Errorf("fetching order %s: %w", orderID, err)
	}

	if order.ApplyUpdate(snap) {
		if err := s.orders.Save(ctx, order); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// CancelOrder cancels an order at the exchange and locally. The latest
// snapshot is fetched first; cancelling an order that filled in the
// meantime is a benign no-op.
func (s *OrderService) CancelOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	order, err := s.GetOrderStatus(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.IsTerminal() {
		return order, nil
	}

	if order.ExchangeID != "" {
		if err := s.exchange.CancelOrder(ctx, order.ExchangeID, order.Symbol); err != nil {
			return nil, fmt.Errorf("cancelling order %s: %w", orderID, err)
		}
	}

	if err := order.Cancel(time.Now().UTC()); err != nil {
		return nil, err
	}
	if err := s.orders.Save(ctx, order); err != nil {
		return nil, err
	}

	s.log.Info("order canceled",
		slog.String("order_id", order.ID),
		slog.String("exchange_id", order.ExchangeID),
		slog.String("symbol", order.Symbol))

	return order, nil
}

// ForceCancelOrder cancels using the caller's in-memory order instead of
// re-reading the stored row. The rollback path needs this: when the
// exchange accepts an order but persisting the placed state fails, the
// repo still holds the pre-placement PENDING row and a repo-driven
// cancel would never reach the venue.
func (s *OrderService) ForceCancelOrder(ctx context.Context, order *domain.Order) error {
	if order.ExchangeID != "" && !order.IsTerminal() {
		if snap, err := s.exchange.FetchOrder(ctx, order.ExchangeID, order.Symbol); err == nil {
			order.ApplyUpdate(snap)
		}
		// A fill that won the race is kept, not cancelled.
		if !order.IsTerminal() {
			if err := s.exchange.CancelOrder(ctx, order.ExchangeID, order.Symbol); err != nil {
				return fmt.Errorf("cancelling order %s: %w", order.ID, err)
			}
		}
	}

	if err := order.Cancel(time.Now().UTC()); err != nil {
		return err
	}
	if err := s.orders.Save(ctx, order); err != nil {
		return err
	}

	s.log.Info("order force-canceled",
		slog.String("order_id", order.ID),
		slog.String("exchange_id", order.ExchangeID),
		slog.String("symbol", order.Symbol))

	return nil
}
