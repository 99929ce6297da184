// Package subscribe implements the cancellable, exponentially-backed-off
// resubscription task (spec §4.6, component C6). It runs at most one
// subscribe attempt loop at a time and is cancelled by connect/reconnect
// signals from the sync controller (C5) or by the facade's close().
//
// Grounded on the teacher's internal/connection.manager.reconnect: a
// cancellable sleep (time.After) doubling a bounded backoff, generalized
// from a fixed retry loop to one that can also be resolved early by an
// external signal rather than only by context cancellation.
package subscribe

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	initialBackoff = 3 * time.Second
	maxBackoff     = 300 * time.Second
)

// Transport is the minimal outbound surface the subscribe loop drives.
type Transport interface {
	Subscribe(ctx context.Context, accountID string) error
}

// Loop is the one-at-a-time subscribe coroutine (spec §4.6).
type Loop struct {
	accountID string
	transport Transport
	logger    *slog.Logger

	mu             sync.Mutex
	isSubscribing  bool
	shouldRetry    bool
	cancelBackoff  chan struct{}
}

// New creates a Loop bound to one account.
func New(accountID string, t Transport, logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{accountID: accountID, transport: t, logger: logger}
}

// IsSubscribing reports whether a subscribe loop is currently running.
func (l *Loop) IsSubscribing() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.isSubscribing
}

// Subscribe runs the one-at-a-time resubscription loop until cancelled
// or closed. A second concurrent call while one is already running is a
// no-op (spec §4.6, "one-at-a-time coroutine").
func (l *Loop) Subscribe(ctx context.Context) {
	l.mu.Lock()
	if l.isSubscribing {
		l.mu.Unlock()
		return
	}
	l.isSubscribing = true
	l.shouldRetry = true
	l.cancelBackoff = make(chan struct{})
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.isSubscribing = false
		l.mu.Unlock()
	}()

	backoff := initialBackoff
	for {
		l.mu.Lock()
		shouldRetry := l.shouldRetry
		l.mu.Unlock()
		if !shouldRetry {
			return
		}

		if err := l.transport.Subscribe(ctx, l.accountID); err != nil {
			l.logger.Warn("subscribe failed", "account_id", l.accountID, "error", err)
		}

		if !l.sleepCancellable(ctx, backoff) {
			return
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// sleepCancellable waits for d, ctx cancellation, or CancelBackoff.
// Returns true on natural expiry (continue looping), false if cancelled
// (caller should stop).
func (l *Loop) sleepCancellable(ctx context.Context, d time.Duration) bool {
	l.mu.Lock()
	cancel := l.cancelBackoff
	l.mu.Unlock()

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-cancel:
		return false
	case <-ctx.Done():
		return false
	}
}

// CancelBackoff resolves any pending backoff wait early and stops the
// loop (spec §4.6, "External triggers"). Safe to call when no loop is
// running.
func (l *Loop) CancelBackoff() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.shouldRetry = false
	if l.cancelBackoff != nil {
		select {
		case <-l.cancelBackoff:
			// already closed
		default:
			close(l.cancelBackoff)
		}
	}
}
