package exchange

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sni10/new-autotrade-sub001/internal/domain"
)

// PaperExchange is a deterministic in-process exchange used for paper
// trading and tests. Orders rest until a fill is driven explicitly (or a
// ticker crosses them via Tick), balances are virtual, and failures can be
// injected to exercise retry and rollback paths.
type PaperExchange struct {
	mu       sync.Mutex
	balances map[string]decimal.Decimal
	orders   map[string]*domain.OrderSnapshot
	sides    map[string]domain.Side
	tickers  map[string]decimal.Decimal
	pairs    map[string]domain.CurrencyPair
	nextID   int

	// Failure injection for tests.
	failCreates int
	failFetches int
	failCancels int
}

// NewPaperExchange creates an empty paper venue.
func NewPaperExchange() *PaperExchange {
	return &PaperExchange{
		balances: make(map[string]decimal.Decimal),
		orders:   make(map[string]*domain.OrderSnapshot),
		sides:    make(map[string]domain.Side),
		tickers:  make(map[string]decimal.Decimal),
		pairs:    make(map[string]domain.CurrencyPair),
	}
}

// Deposit credits the virtual account.
func (p *PaperExchange) Deposit(currency string, amount decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.balances[currency] = p.balance(currency).Add(amount)
}

// Balance returns the current virtual balance for a currency.
func (p *PaperExchange) Balance(currency string) decimal.Decimal {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.balance(currency)
}

func (p *PaperExchange) balance(currency string) decimal.Decimal {
	if b, ok := p.balances[currency]; ok {
		return b
	}
	return decimal.Zero
}

// RegisterPair installs metadata for a symbol.
func (p *PaperExchange) RegisterPair(pair domain.CurrencyPair) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pairs[pair.Symbol] = pair
}

// SetTicker sets the last traded price for a symbol.
func (p *PaperExchange) SetTicker(symbol string, price decimal.Decimal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tickers[symbol] = price
}

// FailNextCreates makes the next n CreateOrder calls fail.
func (p *PaperExchange) FailNextCreates(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failCreates = n
}

// FailNextFetches makes the next n FetchOrder calls fail.
func (p *PaperExchange) FailNextFetches(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failFetches = n
}

// FailNextCancels makes the next n CancelOrder calls fail.
func (p *PaperExchange) FailNextCancels(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failCancels = n
}

// CreateOrder accepts the order and leaves it resting OPEN.
func (p *PaperExchange) CreateOrder(ctx context.Context, symbol string, side domain.Side, typ domain.OrderType, amount, price decimal.Decimal) (domain.OrderSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failCreates > 0 {
		p.failCreates--
		return domain.OrderSnapshot{}, domain.NewExchangeError("create_order", fmt.Errorf("injected failure"))
	}
	if !amount.IsPositive() {
		return domain.OrderSnapshot{}, domain.NewExchangeError("create_order", fmt.Errorf("amount must be positive"))
	}

	p.nextID++
	snap := &domain.OrderSnapshot{
		ExchangeID: fmt.Sprintf("paper-%d", p.nextID),
		Symbol:     symbol,
		Status:     domain.StatusOpen,
		Price:      price,
		Amount:     amount,
		Timestamp:  time.Now().UTC(),
	}
	p.orders[snap.ExchangeID] = snap
	p.sides[snap.ExchangeID] = side

	slog.Debug("paper exchange: order accepted",
		slog.String("exchange_id", snap.ExchangeID),
		slog.String("symbol", symbol),
		slog.String("side", string(side)),
		slog.String("price", price.String()),
		slog.String("amount", amount.String()))

	return *snap, nil
}

// CancelOrder cancels a resting order. Cancelling an order that already
// reached a terminal state is a no-op, mirroring how the engine treats the
// race against a fill.
func (p *PaperExchange) CancelOrder(ctx context.Context, exchangeID, symbol string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failCancels > 0 {
		p.failCancels--
		return domain.NewExchangeError("cancel_order", fmt.Errorf("injected failure"))
	}

	snap, ok := p.orders[exchangeID]
	if !ok {
		return domain.NewExchangeError("cancel_order", domain.ErrOrderNotFound)
	}
	if snap.Status == domain.StatusFilled || snap.Status == domain.StatusCanceled {
		return nil
	}
	snap.Status = domain.StatusCanceled
	snap.Timestamp = time.Now().UTC()
	return nil
}

// FetchOrder returns the venue-side snapshot.
func (p *PaperExchange) FetchOrder(ctx context.Context, exchangeID, symbol string) (domain.OrderSnapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.failFetches > 0 {
		p.failFetches--
		return domain.OrderSnapshot{}, domain.NewExchangeError("fetch_order", fmt.Errorf("injected failure"))
	}

	snap, ok := p.orders[exchangeID]
	if !ok {
		return domain.OrderSnapshot{}, domain.NewExchangeError("fetch_order", domain.ErrOrderNotFound)
	}
	return *snap, nil
}

// FetchTicker returns the last traded price.
func (p *PaperExchange) FetchTicker(ctx context.Context, symbol string) (decimal.Decimal, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	price, ok := p.tickers[symbol]
	if !ok {
		return decimal.Zero, domain.NewExchangeError("fetch_ticker", fmt.Errorf("no ticker for %s", symbol))
	}
	return price, nil
}

// CheckSufficientBalance verifies virtual funds for an order.
// BUY needs amount*price of the quote currency, SELL needs amount of base.
func (p *PaperExchange) CheckSufficientBalance(ctx context.Context, symbol string, side domain.Side, amount, price decimal.Decimal) (domain.BalanceCheck, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	base, quote := splitSymbol(symbol)

	var currency string
	var required decimal.Decimal
	if side == domain.SideBuy {
		currency = quote
		required = amount.Mul(price)
	} else {
		currency = base
		required = amount
	}

	available := p.balance(currency)
	return domain.BalanceCheck{
		OK:        available.GreaterThanOrEqual(required),
		Currency:  currency,
		Available: available,
		Required:  required,
	}, nil
}

// FetchCurrencyPair returns registered metadata.
func (p *PaperExchange) FetchCurrencyPair(ctx context.Context, symbol string) (domain.CurrencyPair, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pair, ok := p.pairs[symbol]
	if !ok {
		return domain.CurrencyPair{}, domain.NewExchangeError("fetch_currency_pair", fmt.Errorf("unknown symbol %s", symbol))
	}
	pair.FetchedAt = time.Now().UTC()
	return pair, nil
}

// Fill executes qty of a resting order at the given price, moving virtual
// balances and fees. Drives paper-mode trading and test scenarios.
func (p *PaperExchange) Fill(exchangeID string, qty, price decimal.Decimal) error {
	// Zero qty would divide by a zero FilledAmount in the average below.
	if !qty.IsPositive() {
		return fmt.Errorf("fill qty must be positive, got %s", qty)
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	snap, ok := p.orders[exchangeID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if snap.Status != domain.StatusOpen && snap.Status != domain.StatusPartiallyFilled {
		return fmt.Errorf("order %s not fillable (%s)", exchangeID, snap.Status)
	}

	remaining := snap.Amount.Sub(snap.FilledAmount)
	if qty.GreaterThan(remaining) {
		qty = remaining
	}

	// Weighted average price over partial fills.
	prevNotional := snap.AveragePrice.Mul(snap.FilledAmount)
	snap.FilledAmount = snap.FilledAmount.Add(qty)
	snap.AveragePrice = prevNotional.Add(price.Mul(qty)).Div(snap.FilledAmount)

	fee := decimal.Zero
	if pair, ok := p.pairs[snap.Symbol]; ok {
		fee = price.Mul(qty).Mul(pair.TakerFeePct).Div(decimal.NewFromInt(100))
	}
	snap.Fees = snap.Fees.Add(fee)

	base, quote := splitSymbol(snap.Symbol)
	notional := price.Mul(qty)
	if p.sides[exchangeID] == domain.SideSell {
		p.balances[base] = p.balance(base).Sub(qty)
		p.balances[quote] = p.balance(quote).Add(notional).Sub(fee)
	} else {
		p.balances[quote] = p.balance(quote).Sub(notional).Sub(fee)
		p.balances[base] = p.balance(base).Add(qty)
	}

	if snap.FilledAmount.GreaterThanOrEqual(snap.Amount) {
		snap.Status = domain.StatusFilled
	} else {
		snap.Status = domain.StatusPartiallyFilled
	}
	snap.Timestamp = time.Now().UTC()
	return nil
}

// FillAll fills the full remaining amount at the order's limit price.
func (p *PaperExchange) FillAll(exchangeID string) error {
	p.mu.Lock()
	snap, ok := p.orders[exchangeID]
	if !ok {
		p.mu.Unlock()
		return domain.ErrOrderNotFound
	}
	remaining := snap.Amount.Sub(snap.FilledAmount)
	price := snap.Price
	p.mu.Unlock()

	return p.Fill(exchangeID, remaining, price)
}

func splitSymbol(symbol string) (base, quote string) {
	parts := strings.SplitN(symbol, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return symbol, "USDT"
}
