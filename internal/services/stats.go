package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sni10/new-autotrade-sub001/internal/storage"
)

const statsMetadataKey = "execution_stats"

// ExecutionStats counts trade executions across the life of the process
// and survives restarts through the metadata store.
type ExecutionStats struct {
	mu sync.Mutex

	Attempts  int64           `json:"attempts"`
	Successes int64           `json:"successes"`
	Failures  int64           `json:"failures"`
	Volume    decimal.Decimal `json:"volume"` // quote currency committed
	Fees      decimal.Decimal `json:"fees"`

	meta storage.MetadataStore
}

// NewExecutionStats creates stats backed by the metadata store and loads
// any previously persisted counters. meta may be nil in tests.
func NewExecutionStats(ctx context.Context, meta storage.MetadataStore) *ExecutionStats {
	s := &ExecutionStats{meta: meta}
	if meta == nil {
		return s
	}

	raw, err := meta.GetMetadata(ctx, statsMetadataKey)
	if err != nil || raw == "" {
		return s
	}
	if err := json.Unmarshal([]byte(raw), s); err != nil {
		slog.Warn("execution stats: discarding corrupt persisted state",
			slog.Any("error", err))
	}
	return s
}

// RecordSuccess counts one successful execution with its committed
// volume and fees.
func (s *ExecutionStats) RecordSuccess(ctx context.Context, volume, fees decimal.Decimal) {
	s.mu.Lock()
	s.Attempts++
	s.Successes++
	s.Volume = s.Volume.Add(volume)
	s.Fees = s.Fees.Add(fees)
	s.mu.Unlock()
	s.persist(ctx)
}

// RecordFailure counts one failed execution.
func (s *ExecutionStats) RecordFailure(ctx context.Context) {
	s.mu.Lock()
	s.Attempts++
	s.Failures++
	s.mu.Unlock()
	s.persist(ctx)
}

// Counters returns the integer counters for snapshots.
func (s *ExecutionStats) Counters() map[string]int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return map[string]int64{
		"attempts":  s.Attempts,
		"successes": s.Successes,
		"failures":  s.Failures,
	}
}

func (s *ExecutionStats) persist(ctx context.Context) {
	if s.meta == nil {
		return
	}

	s.mu.Lock()
	raw, err := json.Marshal(s)
	s.mu.Unlock()
	if err != nil {
		return
	}
	if err := s.meta.UpsertMetadata(ctx, statsMetadataKey, string(raw), time.Now().Unix()); err != nil {
		slog.Warn("execution stats: persist failed", slog.Any("error", err))
	}
}
