package infra

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreaker_ClosedPassesThrough(t *testing.T) {
	cb := DefaultCircuitBreaker("test")

	if err := cb.Do(func() error { return nil }); err != nil {
		t.Errorf("Do() error = %v", err)
	}
	if cb.State() != BreakerClosed {
		t.Errorf("state = %s, want CLOSED", cb.State())
	}
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("test", 3, 2, 100*time.Millisecond)
	boom := errors.New("boom")

	cb.Do(func() error { return boom })
	cb.Do(func() error { return boom })
	if cb.State() != BreakerClosed {
		t.Error("should still be CLOSED after 2 failures")
	}

	cb.Do(func() error { return boom })
	if cb.State() != BreakerOpen {
		t.Fatalf("state = %s, want OPEN after 3 failures", cb.State())
	}

	// While open, ops are rejected without running.
	ran := false
	err := cb.Do(func() error { ran = true; return nil })
	if !errors.Is(err, ErrBreakerOpen) {
		t.Errorf("err = %v, want ErrBreakerOpen", err)
	}
	if ran {
		t.Error("op ran while breaker open")
	}
}

func TestCircuitBreaker_RecoversThroughHalfOpen(t *testing.T) {
	cb := NewCircuitBreaker("test", 2, 2, 20*time.Millisecond)
	boom := errors.New("boom")

	cb.Do(func() error { return boom })
	cb.Do(func() error { return boom })
	if cb.State() != BreakerOpen {
		t.Fatal("expected OPEN")
	}

	time.Sleep(30 * time.Millisecond)

	// First probe transitions to half-open.
	if err := cb.Do(func() error { return nil }); err != nil {
		t.Fatalf("probe rejected: %v", err)
	}
	if cb.State() != BreakerHalfOpen {
		t.Errorf("state = %s, want HALF_OPEN after 1 success", cb.State())
	}

	if err := cb.Do(func() error { return nil }); err != nil {
		t.Fatal(err)
	}
	if cb.State() != BreakerClosed {
		t.Errorf("state = %s, want CLOSED after 2 successes", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := NewCircuitBreaker("test", 2, 1, 20*time.Millisecond)
	boom := errors.New("boom")

	cb.Do(func() error { return boom })
	cb.Do(func() error { return boom })
	time.Sleep(30 * time.Millisecond)

	cb.Do(func() error { return boom }) // failed probe
	if cb.State() != BreakerOpen {
		t.Errorf("state = %s, want OPEN after failed probe", cb.State())
	}
}
