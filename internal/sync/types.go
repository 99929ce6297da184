package sync

import (
	"context"
	"time"
)

// instanceState is the per-replica sync state (spec §3, "Per-Instance
// Sync State"), keyed by integer instance index per spec §9's
// "Instance-keyed maps" note.
type instanceState struct {
	instanceIndex                      int
	lastSynchronizationID              string
	lastDisconnectedSynchronizationID  string
	shouldSynchronize                  uint64 // 0 means "no authoritative attempt"
	ordersSynchronized                 map[string]struct{}
	dealsSynchronized                  map[string]struct{}
	synchronizationRetryInterval       time.Duration
	synchronized                       bool
	disconnected                       bool
}

func newInstanceState(instanceIndex int) *instanceState {
	return &instanceState{
		instanceIndex:       instanceIndex,
		ordersSynchronized:  make(map[string]struct{}),
		dealsSynchronized:   make(map[string]struct{}),
	}
}

const (
	synchronizeRetryInitial = 1 * time.Second
	synchronizeRetryCap     = 300 * time.Second
)

// SubscribeLoop is the capability the sync controller drives on the
// subscribe loop (C6) in response to connect/reconnect events (spec
// §4.5). Kept as an injected interface rather than a direct dependency
// so C5 and C6 stay decoupled (spec §9, "Cyclic ownership" — the same
// principle applied one level over).
type SubscribeLoop interface {
	CancelBackoff()
	Subscribe(ctx context.Context)
}
