package history

import (
	"context"
	"testing"
	"time"

	"github.com/rickgao/bridge-sync-core/internal/model"
)

func TestMemoryStorageLastTimesDefaultToEpoch(t *testing.T) {
	m := NewMemoryStorage()
	ctx := context.Background()

	got, err := m.LastHistoryOrderTime(ctx, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.IsZero() {
		t.Fatalf("LastHistoryOrderTime() = %v, want zero value", got)
	}

	got, err = m.LastDealTime(ctx, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.IsZero() {
		t.Fatalf("LastDealTime() = %v, want zero value", got)
	}
}

func TestMemoryStorageTracksMaxTimePerInstance(t *testing.T) {
	m := NewMemoryStorage()
	ctx := context.Background()

	t1 := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)

	m.OnHistoryOrderAdded(0, model.HistoryOrder{ID: "h1", InstanceID: 0, DoneTime: t1})
	m.OnHistoryOrderAdded(0, model.HistoryOrder{ID: "h2", InstanceID: 0, DoneTime: t2})
	m.OnHistoryOrderAdded(1, model.HistoryOrder{ID: "h3", InstanceID: 1, DoneTime: t2.Add(24 * time.Hour)})

	got, _ := m.LastHistoryOrderTime(ctx, 0)
	if !got.Equal(t2) {
		t.Fatalf("LastHistoryOrderTime(0) = %v, want %v", got, t2)
	}

	got1, _ := m.LastHistoryOrderTime(ctx, 1)
	if !got1.Equal(t2.Add(24 * time.Hour)) {
		t.Fatalf("LastHistoryOrderTime(1) = %v, want %v", got1, t2.Add(24*time.Hour))
	}
}

func TestMemoryStorageClear(t *testing.T) {
	m := NewMemoryStorage()
	m.OnDealAdded(0, model.Deal{ID: "d1", Time: time.Now()})

	if err := m.Clear(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.Deals()) != 0 {
		t.Fatalf("Deals() after Clear = %d, want 0", len(m.Deals()))
	}
}
