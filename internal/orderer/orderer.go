// Package orderer reorders out-of-sequence frames from a streaming
// transport and raises a gap alert after a configurable silence (spec
// §4.1, component C1).
//
// Grounded on the teacher's internal/router package: the periodic
// single-goroutine drain loop mirrors router.go's routeLoop, and the
// bounded, mutex-guarded per-key buffer generalizes buffer.go's
// GrowableBuffer from a fixed-type ring to a sequence-sorted wait-list
// that evicts from the low end instead of growing.
package orderer

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// OutOfOrderHandler is invoked when a wait-list head has sat unconsumed
// longer than the configured timeout (spec §4.1, "Gap alert task").
type OutOfOrderHandler func(accountID string, instanceIndex int, expectedSequenceNumber, actualSequenceNumber int64, packet []byte, receivedAt time.Time)

// Config configures the Orderer.
type Config struct {
	// OrderingTimeout is how long a wait-list head may sit before the gap
	// alert fires. Default 60s (spec §5, "Timeouts").
	OrderingTimeout time.Duration
}

// DefaultConfig returns the spec's default ordering timeout.
func DefaultConfig() Config {
	return Config{OrderingTimeout: 60 * time.Second}
}

// Orderer reorders packets per (accountID, instanceIndex) key.
type Orderer struct {
	cfg     Config
	onGap   OutOfOrderHandler
	logger  *slog.Logger

	mu      sync.Mutex
	entries map[key]*entry

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates an Orderer. onGap may be nil (gap alerts are then dropped).
func New(cfg Config, onGap OutOfOrderHandler, logger *slog.Logger) *Orderer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.OrderingTimeout <= 0 {
		cfg.OrderingTimeout = DefaultConfig().OrderingTimeout
	}
	return &Orderer{
		cfg:     cfg,
		onGap:   onGap,
		logger:  logger,
		entries: make(map[key]*entry),
	}
}

// Start initializes per-instance maps and starts the 1-second gap-alert
// task.
func (o *Orderer) Start(ctx context.Context) {
	o.ctx, o.cancel = context.WithCancel(ctx)

	o.mu.Lock()
	o.entries = make(map[key]*entry)
	o.mu.Unlock()

	o.wg.Add(1)
	go o.gapAlertLoop()

	o.logger.Info("packet orderer started", "ordering_timeout", o.cfg.OrderingTimeout)
}

// Stop cancels the periodic task.
func (o *Orderer) Stop() {
	if o.cancel != nil {
		o.cancel()
	}
	o.wg.Wait()
	o.logger.Info("packet orderer stopped")
}

// RestoreOrder consumes one input packet and returns zero or more
// ready-to-dispatch packets in ascending sequence order (spec §4.1).
// RestoreOrder never returns an error: malformed packets pass through
// unchanged, and starvation beyond wait-list capacity silently drops the
// oldest buffered entries.
func (o *Orderer) RestoreOrder(p Packet) []Packet {
	if p.SequenceNumber == nil {
		return []Packet{p}
	}

	k := key{accountID: p.AccountID, instanceIndex: p.InstanceIndex}

	o.mu.Lock()
	defer o.mu.Unlock()

	e, ok := o.entries[k]
	if !ok {
		e = &entry{}
		o.entries[k] = e
	}

	if p.Type == "synchronizationStarted" && p.SynchronizationID != "" {
		e.started = true
		e.outOfOrderEmitted = false
		e.expected = *p.SequenceNumber
		e.lastSessionStart = p.SequenceTimestamp
		e.waitList = pruneStale(e.waitList, e.lastSessionStart)

		out := []Packet{p}
		out = append(out, drainConsecutive(e)...)
		return out
	}

	if p.SequenceTimestamp < e.lastSessionStart {
		return nil
	}

	seq := *p.SequenceNumber
	switch {
	case seq == e.expected:
		return []Packet{p}

	case seq == e.expected+1:
		e.expected = seq
		out := []Packet{p}
		out = append(out, drainConsecutive(e)...)
		return out

	default:
		e.waitList = insertSorted(e.waitList, p)
		for len(e.waitList) > waitListCapacity {
			e.waitList = e.waitList[1:]
		}
		return nil
	}
}

// pruneStale drops wait-list entries whose SequenceTimestamp precedes the
// new session start.
func pruneStale(waitList []Packet, sessionStart int64) []Packet {
	kept := waitList[:0]
	for _, p := range waitList {
		if p.SequenceTimestamp >= sessionStart {
			kept = append(kept, p)
		}
	}
	return kept
}

// insertSorted inserts p into waitList, keeping it sorted by
// SequenceNumber ascending.
func insertSorted(waitList []Packet, p Packet) []Packet {
	i := sort.Search(len(waitList), func(i int) bool {
		return *waitList[i].SequenceNumber >= *p.SequenceNumber
	})
	waitList = append(waitList, Packet{})
	copy(waitList[i+1:], waitList[i:])
	waitList[i] = p
	return waitList
}

// drainConsecutive repeatedly takes the wait-list head while it is
// consecutive with the (possibly advancing) expected sequence number.
func drainConsecutive(e *entry) []Packet {
	var out []Packet
	for len(e.waitList) > 0 {
		head := e.waitList[0]
		seq := *head.SequenceNumber
		if seq == e.expected {
			e.waitList = e.waitList[1:]
			out = append(out, head)
			continue
		}
		if seq == e.expected+1 {
			e.expected = seq
			e.waitList = e.waitList[1:]
			out = append(out, head)
			continue
		}
		break
	}
	return out
}

// gapAlertLoop fires OnOutOfOrderPacket at most once per key between
// synchronizationStarted events (spec §4.1, "Gap alert task").
func (o *Orderer) gapAlertLoop() {
	defer o.wg.Done()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-o.ctx.Done():
			return
		case now := <-ticker.C:
			o.checkGaps(now)
		}
	}
}

func (o *Orderer) checkGaps(now time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for k, e := range o.entries {
		if !e.started || e.outOfOrderEmitted || len(e.waitList) == 0 {
			continue
		}
		head := e.waitList[0]
		if now.Sub(head.ReceivedAt) <= o.cfg.OrderingTimeout {
			continue
		}

		e.outOfOrderEmitted = true
		if o.onGap != nil {
			o.onGap(k.accountID, k.instanceIndex, e.expected+1, *head.SequenceNumber, head.Payload, head.ReceivedAt)
		}
	}
}
