// Package history implements the append-only deal/history-order record
// consumed by the sync controller to resume synchronization from the
// last-seen timestamp (spec §4.3, component C3).
//
// lastHistoryOrderTime and lastDealTime are modeled as asynchronous
// (context-taking, error-returning) per the spec's open question on
// historyStorage's sync/async contract — the source left it ambiguous,
// and an asynchronous contract is the only one that also serves the
// SQL-backed implementation.
package history

import (
	"context"
	"sync"
	"time"

	"github.com/rickgao/bridge-sync-core/internal/listener"
	"github.com/rickgao/bridge-sync-core/internal/model"
)

// Storage is the History Storage contract (spec §4.3).
type Storage interface {
	Initialize(ctx context.Context) error
	LastHistoryOrderTime(ctx context.Context, instanceIndex int) (time.Time, error)
	LastDealTime(ctx context.Context, instanceIndex int) (time.Time, error)
	Clear(ctx context.Context) error
	listener.SyncListener
}

// MemoryStorage is the in-memory history backend, grounded on the
// teacher's kalshi/internal/market/state.go mutex-guarded map pattern.
type MemoryStorage struct {
	listener.Base

	mu            sync.RWMutex
	historyOrders []model.HistoryOrder
	deals         []model.Deal
}

// NewMemoryStorage creates an empty in-memory history store.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (m *MemoryStorage) Initialize(ctx context.Context) error { return nil }

func (m *MemoryStorage) LastHistoryOrderTime(ctx context.Context, instanceIndex int) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var last time.Time
	for _, o := range m.historyOrders {
		if o.InstanceID != instanceIndex {
			continue
		}
		if o.DoneTime.After(last) {
			last = o.DoneTime
		}
	}
	return last, nil
}

func (m *MemoryStorage) LastDealTime(ctx context.Context, instanceIndex int) (time.Time, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var last time.Time
	for _, d := range m.deals {
		if d.InstanceID != instanceIndex {
			continue
		}
		if d.Time.After(last) {
			last = d.Time
		}
	}
	return last, nil
}

func (m *MemoryStorage) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.historyOrders = nil
	m.deals = nil
	return nil
}

func (m *MemoryStorage) OnHistoryOrderAdded(instanceIndex int, order model.HistoryOrder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.historyOrders = append(m.historyOrders, order)
}

func (m *MemoryStorage) OnDealAdded(instanceIndex int, deal model.Deal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deals = append(m.deals, deal)
}

// HistoryOrders returns a copy of all recorded history orders.
func (m *MemoryStorage) HistoryOrders() []model.HistoryOrder {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.HistoryOrder, len(m.historyOrders))
	copy(out, m.historyOrders)
	return out
}

// Deals returns a copy of all recorded deals.
func (m *MemoryStorage) Deals() []model.Deal {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]model.Deal, len(m.deals))
	copy(out, m.deals)
	return out
}

var (
	_ Storage = (*MemoryStorage)(nil)
)
