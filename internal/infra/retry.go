package infra

import (
	"context"
	"errors"
	"time"
)

const maxBackoff = 60 * time.Second

// RetryConfig controls the shared retry-with-backoff utility. Every
// service that talks to the exchange goes through the same loop instead of
// rolling its own.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Factor      float64
}

// DefaultRetryConfig matches the order-placement policy: 3 attempts,
// 1s base delay, doubling.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   1 * time.Second,
		Factor:      2,
	}
}

// Backoff returns the delay before the given retry (0-based).
// Logic: BaseDelay * Factor^retry, capped at 60s.
func (c RetryConfig) Backoff(retry int) time.Duration {
	if retry < 0 {
		return c.BaseDelay
	}
	d := float64(c.BaseDelay)
	for i := 0; i < retry; i++ {
		d *= c.Factor
		if time.Duration(d) > maxBackoff {
			return maxBackoff
		}
	}
	return time.Duration(d)
}

type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps an error so Retry gives up immediately. Used for
// validation and balance failures where another attempt cannot help.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Retry runs op up to MaxAttempts times with exponential backoff between
// attempts. The attempt number (1-based) is passed to op so callers can
// keep per-attempt counters. Returns nil on first success, the unwrapped
// error on a Permanent failure, or the last error once attempts are
// exhausted. Context cancellation aborts the wait, not an in-flight op.
func Retry(ctx context.Context, cfg RetryConfig, op func(attempt int) error) error {
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(cfg.Backoff(attempt - 2)):
			}
		}

		err := op(attempt)
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		lastErr = err
	}

	return lastErr
}
