// Package sync implements the per-connection synchronization controller
// (spec §4.5, component C5): drives synchronize, tracks deal/order sync
// completion tokens, tears state down on disconnect, and exposes a
// waitSynchronized barrier.
//
// Grounded on the teacher's internal/connection.manager reconnect loop
// (exponential backoff over a cancellable sleep, state guarded by one
// mutex) generalized from a fixed connection pool to a per-instance-index
// state map.
package sync

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/bridge-sync-core/internal/history"
	"github.com/rickgao/bridge-sync-core/internal/listener"
	"github.com/rickgao/bridge-sync-core/internal/syncid"
	"github.com/rickgao/bridge-sync-core/internal/transport"
)

// Config configures the Controller.
type Config struct {
	AccountID        string
	Application      string // e.g. "MetaApi" or "CopyFactory"; drives the default waitSynchronized pattern
	HistoryStartTime time.Time
}

// Controller owns the per-instance sync state map for one connection.
type Controller struct {
	listener.Base

	cfg       Config
	transport transport.Transport
	history   history.Storage
	logger    *slog.Logger

	subscribedSymbols func() []string
	subscribeLoop     SubscribeLoop

	tokenCounter atomic.Uint64

	mu        sync.Mutex
	instances map[int]*instanceState

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

var _ listener.SyncListener = (*Controller)(nil)

// New creates a Controller. subscribedSymbols supplies the market-data
// symbols to resubscribe after a successful synchronize; it is typically
// the owning connection facade's subscription set.
func New(cfg Config, t transport.Transport, hist history.Storage, subscribedSymbols func() []string, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if subscribedSymbols == nil {
		subscribedSymbols = func() []string { return nil }
	}
	return &Controller{
		cfg:               cfg,
		transport:         t,
		history:           hist,
		logger:            logger,
		subscribedSymbols: subscribedSymbols,
		instances:         make(map[int]*instanceState),
	}
}

// SetSubscribeLoop wires the subscribe loop this controller cancels and
// kicks off in response to connect/reconnect events.
func (c *Controller) SetSubscribeLoop(sl SubscribeLoop) {
	c.subscribeLoop = sl
}

// Start prepares the controller's background context. Must be called
// before any listener hook fires.
func (c *Controller) Start(ctx context.Context) {
	c.ctx, c.cancel = context.WithCancel(ctx)
}

// Stop cancels all in-flight retry loops and waits for them to exit.
func (c *Controller) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
}

func (c *Controller) getOrCreateLocked(instanceIndex int) *instanceState {
	st, ok := c.instances[instanceIndex]
	if !ok {
		st = newInstanceState(instanceIndex)
		c.instances[instanceIndex] = st
	}
	return st
}

// synchronize performs one synchronize attempt (spec §4.5, "synchronize").
func (c *Controller) synchronize(ctx context.Context, instanceIndex int) (string, error) {
	historyOrderTime, err := c.history.LastHistoryOrderTime(ctx, instanceIndex)
	if err != nil {
		return "", err
	}
	if historyOrderTime.Before(c.cfg.HistoryStartTime) {
		historyOrderTime = c.cfg.HistoryStartTime
	}

	dealTime, err := c.history.LastDealTime(ctx, instanceIndex)
	if err != nil {
		return "", err
	}
	if dealTime.Before(c.cfg.HistoryStartTime) {
		dealTime = c.cfg.HistoryStartTime
	}

	sid := syncid.New()

	c.mu.Lock()
	st := c.getOrCreateLocked(instanceIndex)
	st.lastSynchronizationID = sid
	c.mu.Unlock()

	if err := c.transport.Synchronize(ctx, c.cfg.AccountID, instanceIndex, sid, historyOrderTime, dealTime); err != nil {
		return sid, err
	}
	return sid, nil
}

// ensureSynchronized is the bounded retry loop over a cancellable sleep
// (spec §9, "Retry recursion": reimplemented as a loop, not recursive
// rescheduling).
func (c *Controller) ensureSynchronized(ctx context.Context, instanceIndex int, token uint64) {
	for {
		_, err := c.synchronize(ctx, instanceIndex)
		if err == nil {
			for _, symbol := range c.subscribedSymbols() {
				if err := c.transport.SubscribeToMarketData(ctx, c.cfg.AccountID, instanceIndex, symbol); err != nil {
					c.logger.Warn("resubscribe to market data failed", "account_id", c.cfg.AccountID, "symbol", symbol, "error", err)
				}
			}

			c.mu.Lock()
			st := c.getOrCreateLocked(instanceIndex)
			st.synchronized = true
			st.synchronizationRetryInterval = synchronizeRetryInitial
			c.mu.Unlock()
			return
		}

		c.logger.Warn("synchronize failed, scheduling retry",
			"account_id", c.cfg.AccountID, "instance_index", instanceIndex, "error", err, "time", time.Now())

		c.mu.Lock()
		st := c.getOrCreateLocked(instanceIndex)
		if st.shouldSynchronize != token {
			c.mu.Unlock()
			return
		}
		interval := st.synchronizationRetryInterval
		if interval <= 0 {
			interval = synchronizeRetryInitial
		}
		next := interval * 2
		if next > synchronizeRetryCap {
			next = synchronizeRetryCap
		}
		st.synchronizationRetryInterval = next
		c.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}

		c.mu.Lock()
		st = c.getOrCreateLocked(instanceIndex)
		if st.shouldSynchronize != token {
			c.mu.Unlock()
			return
		}
		c.mu.Unlock()
	}
}

// OnConnected implements listener.SyncListener.
func (c *Controller) OnConnected(instanceIndex int, replicas int) {
	if c.subscribeLoop != nil {
		c.subscribeLoop.CancelBackoff()
	}

	token := c.tokenCounter.Add(1)

	c.mu.Lock()
	st := c.getOrCreateLocked(instanceIndex)
	st.shouldSynchronize = token
	st.synchronizationRetryInterval = synchronizeRetryInitial
	st.synchronized = false
	st.disconnected = false
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.ensureSynchronized(c.ctx, instanceIndex, token)
	}()

	c.mu.Lock()
	for idx := range c.instances {
		if idx != instanceIndex && idx >= replicas {
			delete(c.instances, idx)
		}
	}
	c.mu.Unlock()
}

// OnDisconnected implements listener.SyncListener.
func (c *Controller) OnDisconnected(instanceIndex int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.getOrCreateLocked(instanceIndex)
	st.lastDisconnectedSynchronizationID = st.lastSynchronizationID
	st.lastSynchronizationID = ""
	st.shouldSynchronize = 0
	st.synchronized = false
	st.disconnected = true
}

// OnReconnected implements listener.SyncListener.
func (c *Controller) OnReconnected() {
	if c.subscribeLoop == nil {
		return
	}
	c.subscribeLoop.CancelBackoff()
	go c.subscribeLoop.Subscribe(c.ctx)
}

// OnDealSynchronizationFinished implements listener.SyncListener.
func (c *Controller) OnDealSynchronizationFinished(instanceIndex int, synchronizationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.getOrCreateLocked(instanceIndex)
	st.dealsSynchronized[synchronizationID] = struct{}{}
}

// OnOrderSynchronizationFinished implements listener.SyncListener.
func (c *Controller) OnOrderSynchronizationFinished(instanceIndex int, synchronizationID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.getOrCreateLocked(instanceIndex)
	st.ordersSynchronized[synchronizationID] = struct{}{}
}

// Synchronized reports the connection-wide synchronized flag: true if
// any instance state is synchronized (spec §3, "synchronized").
func (c *Controller) Synchronized() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, st := range c.instances {
		if st.synchronized {
			return true
		}
	}
	return false
}

// IsSynchronized reports whether the given instance (or, if nil, any
// instance) has a completed sync for the given synchronization id (or,
// if nil, that instance's lastSynchronizationID).
func (c *Controller) IsSynchronized(instanceIndex *int, synchronizationID *string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	check := func(st *instanceState) bool {
		sid := st.lastSynchronizationID
		if synchronizationID != nil {
			sid = *synchronizationID
		}
		_, orders := st.ordersSynchronized[sid]
		_, deals := st.dealsSynchronized[sid]
		return orders && deals
	}

	if instanceIndex != nil {
		st, ok := c.instances[*instanceIndex]
		return ok && check(st)
	}
	for _, st := range c.instances {
		if check(st) {
			return true
		}
	}
	return false
}

// WaitOptions configures WaitSynchronized.
type WaitOptions struct {
	InstanceIndex           *int
	SynchronizationID       *string
	ApplicationPattern      string
	TimeoutInSeconds        float64 // 0 means default (300)
	IntervalInMilliseconds  int     // 0 is a valid, very tight poll interval
}

const defaultWaitTimeout = 300 * time.Second

// WaitSynchronized polls IsSynchronized until true or the deadline
// passes (spec §4.5, "waitSynchronized").
func (c *Controller) WaitSynchronized(ctx context.Context, opts WaitOptions) error {
	timeout := defaultWaitTimeout
	if opts.TimeoutInSeconds > 0 {
		timeout = time.Duration(opts.TimeoutInSeconds * float64(time.Second))
	}
	interval := time.Duration(opts.IntervalInMilliseconds) * time.Millisecond
	if interval <= 0 {
		interval = time.Millisecond
	}

	pattern := opts.ApplicationPattern
	if pattern == "" {
		pattern = syncid.ApplicationPattern(c.cfg.Application)
	}

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if c.IsSynchronized(opts.InstanceIndex, opts.SynchronizationID) {
			instanceIndex := 0
			if opts.InstanceIndex != nil {
				instanceIndex = *opts.InstanceIndex
			}
			return c.transport.WaitSynchronized(ctx, c.cfg.AccountID, instanceIndex, pattern, time.Until(deadline))
		}

		if !time.Now().Before(deadline) {
			return &TimeoutError{
				AccountID:         c.cfg.AccountID,
				SynchronizationID: c.relevantSyncID(opts.InstanceIndex, opts.SynchronizationID),
			}
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// relevantSyncID resolves the sync id named in a TimeoutError message:
// arg > state's lastSynchronizationId > lastDisconnectedSynchronizationId.
func (c *Controller) relevantSyncID(instanceIndex *int, synchronizationID *string) string {
	if synchronizationID != nil {
		return *synchronizationID
	}

	idx := 0
	if instanceIndex != nil {
		idx = *instanceIndex
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	st, ok := c.instances[idx]
	if !ok {
		return ""
	}
	if st.lastSynchronizationID != "" {
		return st.lastSynchronizationID
	}
	return st.lastDisconnectedSynchronizationID
}
