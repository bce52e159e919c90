package storage

import (
	"testing"
	"time"

	"github.com/sni10/new-autotrade-sub001/internal/domain"
)

func TestSnapshotManager_SaveAndLoadLatest(t *testing.T) {
	sm := NewSnapshotManager(t.TempDir(), 3)

	order := newTestOrder(t)
	order.MarkPlaced("ex-1", time.Now())

	if err := sm.Save(&Snapshot{
		TsUnix:     100,
		OpenOrders: []*domain.Order{order},
		Counters:   map[string]int64{"attempts": 7},
	}); err != nil {
		t.Fatal(err)
	}
	if err := sm.Save(&Snapshot{TsUnix: 200}); err != nil {
		t.Fatal(err)
	}

	got, err := sm.LoadLatest()
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || got.TsUnix != 200 {
		t.Fatalf("latest = %+v, want ts 200", got)
	}
}

func TestSnapshotManager_LoadLatestEmpty(t *testing.T) {
	sm := NewSnapshotManager(t.TempDir(), 3)

	got, err := sm.LoadLatest()
	if err != nil {
		t.Fatal(err)
	}
	if got != nil {
		t.Errorf("expected nil snapshot, got %+v", got)
	}
}

func TestSnapshotManager_PrunesOldFiles(t *testing.T) {
	sm := NewSnapshotManager(t.TempDir(), 2)

	for ts := int64(1000); ts < 1005; ts++ {
		if err := sm.Save(&Snapshot{TsUnix: ts}); err != nil {
			t.Fatal(err)
		}
	}

	files, err := sm.list()
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Errorf("retained %d snapshots, want 2", len(files))
	}

	got, err := sm.LoadLatest()
	if err != nil {
		t.Fatal(err)
	}
	if got.TsUnix != 1004 {
		t.Errorf("latest ts = %d, want 1004", got.TsUnix)
	}
}
