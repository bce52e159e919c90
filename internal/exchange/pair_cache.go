package exchange

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sni10/new-autotrade-sub001/internal/domain"
)

// PairCache serves currency pair metadata with a TTL, refreshing from the
// exchange on miss or expiry. Pair limits change rarely but silently, so
// the engine never trades against metadata older than the TTL.
type PairCache struct {
	exchange domain.Exchange
	ttl      time.Duration

	mu    sync.RWMutex
	pairs map[string]domain.CurrencyPair
}

// NewPairCache creates a cache over the exchange with the given TTL.
func NewPairCache(exchange domain.Exchange, ttl time.Duration) *PairCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &PairCache{
		exchange: exchange,
		ttl:      ttl,
		pairs:    make(map[string]domain.CurrencyPair),
	}
}

// Get returns fresh metadata for a symbol, fetching when needed.
// A fetch failure with a stale entry on hand returns the stale entry,
// so a brief venue outage does not stop trading on known limits.
func (c *PairCache) Get(ctx context.Context, symbol string) (domain.CurrencyPair, error) {
	c.mu.RLock()
	pair, ok := c.pairs[symbol]
	c.mu.RUnlock()

	if ok && pair.Fresh(c.ttl, time.Now()) {
		return pair, nil
	}

	fetched, err := c.exchange.FetchCurrencyPair(ctx, symbol)
	if err != nil {
		if ok {
			slog.Warn("pair cache: refresh failed, serving stale metadata",
				slog.String("symbol", symbol),
				slog.Any("error", err))
			return pair, nil
		}
		return domain.CurrencyPair{}, err
	}

	if err := fetched.Validate(); err != nil {
		return domain.CurrencyPair{}, err
	}

	c.mu.Lock()
	c.pairs[symbol] = fetched
	c.mu.Unlock()
	return fetched, nil
}

// Warm prefetches metadata for a list of symbols at startup.
func (c *PairCache) Warm(ctx context.Context, symbols []string) error {
	for _, symbol := range symbols {
		if _, err := c.Get(ctx, symbol); err != nil {
			return err
		}
	}
	return nil
}
