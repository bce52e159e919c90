package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/sni10/new-autotrade-sub001/internal/domain"
)

// Snapshot is a point-in-time capture of engine state: everything still
// open plus the run counters. Written on shutdown so an operator can
// inspect what the engine was holding without opening the database.
type Snapshot struct {
	TsUnix     int64            `json:"ts"`
	OpenOrders []*domain.Order  `json:"open_orders"`
	OpenDeals  []*domain.Deal   `json:"open_deals"`
	Counters   map[string]int64 `json:"counters,omitempty"`
}

// SnapshotManager handles saving and loading snapshots.
type SnapshotManager struct {
	dir  string
	keep int
}

// NewSnapshotManager creates a manager that retains the newest `keep`
// snapshot files in dir.
func NewSnapshotManager(dir string, keep int) *SnapshotManager {
	if keep < 1 {
		keep = 3
	}
	return &SnapshotManager{dir: dir, keep: keep}
}

// Save writes a snapshot to disk and prunes old files.
func (sm *SnapshotManager) Save(snap *Snapshot) error {
	if err := os.MkdirAll(sm.dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	if snap.TsUnix == 0 {
		snap.TsUnix = time.Now().Unix()
	}
	path := filepath.Join(sm.dir, fmt.Sprintf("snapshot_%d.json", snap.TsUnix))

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}

	slog.Info("Snapshot saved",
		slog.String("path", path),
		slog.Int("open_orders", len(snap.OpenOrders)),
		slog.Int("open_deals", len(snap.OpenDeals)))

	return sm.prune()
}

// LoadLatest loads the most recent snapshot from disk.
// Returns nil with no error when no snapshot exists.
func (sm *SnapshotManager) LoadLatest() (*Snapshot, error) {
	files, err := sm.list()
	if err != nil || len(files) == 0 {
		return nil, err
	}

	data, err := os.ReadFile(files[len(files)-1])
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

// list returns snapshot paths sorted oldest first.
func (sm *SnapshotManager) list() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(sm.dir, "snapshot_*.json"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

func (sm *SnapshotManager) prune() error {
	files, err := sm.list()
	if err != nil {
		return err
	}
	for len(files) > sm.keep {
		if err := os.Remove(files[0]); err != nil {
			return fmt.Errorf("failed to prune snapshot: %w", err)
		}
		files = files[1:]
	}
	return nil
}
