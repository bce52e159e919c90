package infra

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token bucket. Thread-safe; one instance guards one
// group of exchange endpoints.
type RateLimiter struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
}

// NewRateLimiter creates a limiter with the given burst size and refill
// rate (requests per second).
func NewRateLimiter(burst int, perSecond float64) *RateLimiter {
	return &RateLimiter{
		tokens:     float64(burst),
		maxTokens:  float64(burst),
		refillRate: perSecond,
		lastRefill: time.Now(),
	}
}

// Wait blocks until a token is available or the context is done.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		if r.TryAcquire() {
			return nil
		}
		wait := time.Duration(float64(time.Second) / r.refillRate)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// TryAcquire takes a token without blocking. Returns false when the
// bucket is empty.
func (r *RateLimiter) TryAcquire() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.refill()
	if r.tokens >= 1 {
		r.tokens--
		return true
	}
	return false
}

// refill adds tokens based on elapsed time. Caller holds the mutex.
func (r *RateLimiter) refill() {
	now := time.Now()
	r.tokens += now.Sub(r.lastRefill).Seconds() * r.refillRate
	if r.tokens > r.maxTokens {
		r.tokens = r.maxTokens
	}
	r.lastRefill = now
}

// LimiterSet groups the per-endpoint limiters for one exchange.
// Injected by the composition root instead of living in package globals,
// so tests can build their own.
type LimiterSet struct {
	Order   *RateLimiter
	Account *RateLimiter
	Market  *RateLimiter
}

// NewLimiterSet builds the standard three-bucket set. Burst is half the
// per-second rate to stay conservative against IP bans.
func NewLimiterSet(orderPerSec, accountPerSec, marketPerSec float64) *LimiterSet {
	burst := func(rate float64) int {
		b := int(rate / 2)
		if b < 1 {
			b = 1
		}
		return b
	}
	return &LimiterSet{
		Order:   NewRateLimiter(burst(orderPerSec), orderPerSec),
		Account: NewRateLimiter(burst(accountPerSec), accountPerSec),
		Market:  NewRateLimiter(burst(marketPerSec), marketPerSec),
	}
}
