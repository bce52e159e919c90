package exchange

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/sni10/new-autotrade-sub001/internal/domain"
	"github.com/sni10/new-autotrade-sub001/internal/infra"
)

// tickerMessage is the wire format pushed by the price stream.
type tickerMessage struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// TickerFeed subscribes to a price stream over WebSocket and keeps the
// last observed price per symbol. Implements infra.WSHandler so the
// worker owns the connection lifecycle.
type TickerFeed struct {
	url     string
	symbols []string

	mu     sync.RWMutex
	prices map[string]tickerEntry

	worker *infra.WSWorker
}

type tickerEntry struct {
	price decimal.Decimal
	at    time.Time
}

// NewTickerFeed creates a feed for the given stream URL and symbols.
func NewTickerFeed(url string, symbols []string) *TickerFeed {
	f := &TickerFeed{
		url:     url,
		symbols: symbols,
		prices:  make(map[string]tickerEntry),
	}
	f.worker = infra.NewWSWorker(f)
	return f
}

// Start begins streaming. Stop with Stop.
func (f *TickerFeed) Start(ctx context.Context) { f.worker.Start(ctx) }

// Stop closes the stream and waits for the worker to exit.
func (f *TickerFeed) Stop() { f.worker.Stop() }

func (f *TickerFeed) GetURL() string { return f.url }
func (f *TickerFeed) ID() string     { return "ticker-feed" }

// OnConnect subscribes to the configured symbols.
func (f *TickerFeed) OnConnect(ctx context.Context, conn *websocket.Conn) error {
	sub := map[string]any{"op": "subscribe", "channel": "ticker", "symbols": f.symbols}
	data, err := json.Marshal(sub)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

// OnMessage parses a ticker frame and updates the cache. Malformed
// frames are logged and dropped; the stream must survive venue quirks.
func (f *TickerFeed) OnMessage(ctx context.Context, msg []byte) {
	var tick tickerMessage
	if err := json.Unmarshal(msg, &tick); err != nil {
		slog.Debug("ticker feed: unparseable frame", slog.String("error", err.Error()))
		return
	}
	if tick.Symbol == "" || tick.Price == "" {
		return
	}
	price, err := decimal.NewFromString(tick.Price)
	if err != nil {
		slog.Warn("ticker feed: bad price",
			slog.String("symbol", tick.Symbol),
			slog.String("price", tick.Price))
		return
	}

	f.mu.Lock()
	f.prices[tick.Symbol] = tickerEntry{price: price, at: time.Now()}
	f.mu.Unlock()
}

func (f *TickerFeed) OnPing(ctx context.Context, conn *websocket.Conn) error {
	return conn.WriteMessage(websocket.PingMessage, nil)
}

// LastPrice returns the cached price and its age. ok is false when the
// symbol was never seen.
func (f *TickerFeed) LastPrice(symbol string) (price decimal.Decimal, age time.Duration, ok bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	entry, ok := f.prices[symbol]
	if !ok {
		return decimal.Zero, 0, false
	}
	return entry.price, time.Since(entry.at), true
}

// handleFrame is exposed for tests that feed frames without a socket.
func (f *TickerFeed) handleFrame(msg []byte) { f.OnMessage(context.Background(), msg) }

// PriceSource answers the single question the monitors ask: what is the
// market trading at right now.
type PriceSource interface {
	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// CachedPriceSource serves prices from the WebSocket cache and falls
// back to a REST fetch when the cache is missing or stale.
type CachedPriceSource struct {
	feed     *TickerFeed
	exchange domain.Exchange
	maxAge   time.Duration
}

// NewCachedPriceSource wires the feed and the REST fallback together.
// feed may be nil, in which case every lookup goes to the exchange.
func NewCachedPriceSource(feed *TickerFeed, exchange domain.Exchange, maxAge time.Duration) *CachedPriceSource {
	if maxAge <= 0 {
		maxAge = 10 * time.Second
	}
	return &CachedPriceSource{feed: feed, exchange: exchange, maxAge: maxAge}
}

func (s *CachedPriceSource) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	if s.feed != nil {
		if price, age, ok := s.feed.LastPrice(symbol); ok && age <= s.maxAge {
			return price, nil
		}
	}
	return s.exchange.FetchTicker(ctx, symbol)
}
