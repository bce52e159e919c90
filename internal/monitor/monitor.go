package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// loop drives one background monitor: a ticker, a cooperative stop and a
// per-iteration recover so a single bad tick never kills the loop.
type loop struct {
	name     string
	interval time.Duration
	tick     func(ctx context.Context)
	log      *slog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func newLoop(name string, interval time.Duration, log *slog.Logger, tick func(ctx context.Context)) *loop {
	return &loop{name: name, interval: interval, tick: tick, log: log}
}

// Start launches the loop. The first tick runs after one interval.
func (l *loop) Start(ctx context.Context) {
	ctx, l.cancel = context.WithCancel(ctx)
	l.wg.Add(1)

	go func() {
		defer l.wg.Done()
		l.log.Info("monitor started",
			slog.String("monitor", l.name),
			slog.Duration("interval", l.interval))

		ticker := time.NewTicker(l.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				l.log.Info("monitor stopped", slog.String("monitor", l.name))
				return
			case <-ticker.C:
				l.safeTick(ctx)
			}
		}
	}()
}

// Stop signals the loop and waits for the current tick to finish.
func (l *loop) Stop() {
	if l.cancel != nil {
		l.cancel()
	}
	l.wg.Wait()
}

func (l *loop) safeTick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("monitor tick panicked",
				slog.String("monitor", l.name),
				slog.Any("panic", r))
		}
	}()
	l.tick(ctx)
}
