package infra

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryConfig_Backoff(t *testing.T) {
	cfg := DefaultRetryConfig()

	tests := []struct {
		retry int
		want  time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{10, 60 * time.Second},  // capped
		{100, 60 * time.Second}, // still capped
	}
	for _, tt := range tests {
		if got := cfg.Backoff(tt.retry); got != tt.want {
			t.Errorf("Backoff(%d) = %s, want %s", tt.retry, got, tt.want)
		}
	}
}

func TestRetry_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), DefaultRetryConfig(), func(attempt int) error {
		calls = attempt
		return nil
	})
	if err != nil {
		t.Fatalf("Retry returned %v", err)
	}
	if calls != 1 {
		t.Errorf("op called %d times, want 1", calls)
	}
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, Factor: 2}
	boom := errors.New("boom")
	calls := 0

	err := Retry(context.Background(), cfg, func(attempt int) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want boom", err)
	}
	if calls != 3 {
		t.Errorf("op called %d times, want 3", calls)
	}
}

func TestRetry_PermanentStopsImmediately(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 5, BaseDelay: time.Millisecond, Factor: 2}
	fatal := errors.New("bad input")
	calls := 0

	err := Retry(context.Background(), cfg, func(attempt int) error {
		calls++
		return Permanent(fatal)
	})
	if !errors.Is(err, fatal) {
		t.Errorf("err = %v, want bad input", err)
	}
	if calls != 1 {
		t.Errorf("op called %d times, want 1", calls)
	}
}

func TestRetry_ContextCancelAbortsWait(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, BaseDelay: time.Hour, Factor: 2}
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := Retry(ctx, cfg, func(attempt int) error {
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
