// Package health implements the uptime accumulator and quote-freshness
// heuristic described in spec §4.4 (component C4). It ticks once a
// second, samples the owning connection, and folds the result into three
// fixed-size ring buffers (1h/1d/1w).
//
// Grounded on the teacher's internal/poller.Poller ticker-loop shape
// (context-cancellable goroutine, wg-guarded Start/Stop); the ring
// buffers generalize a bounded sliding window the same way
// internal/router.buffer bounds its queue, but by fixed-size overwrite
// instead of evict-on-overflow. Metrics are exported via
// prometheus/client_golang, the pack's metrics library (see
// internal/metrics in the teacher, reserved there but never wired).
package health

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rickgao/bridge-sync-core/internal/listener"
	"github.com/rickgao/bridge-sync-core/internal/model"
)

const quoteFreshnessWindow = 60 * time.Second

const (
	windowSizeHour = 3600
	windowSizeDay  = 86400
	windowSizeWeek = 604800
)

// ConnectionStatus is the back-pointer capability the health monitor
// reads from its owning connection facade (spec §9, "Cyclic ownership":
// C7 owns C4, C4 reads back from C7 via an injected interface, never
// shared ownership).
type ConnectionStatus interface {
	Connected() bool
	ConnectedToBroker() bool
	Synchronized() bool
	SubscribedSymbols() []string
	Specification(symbol string) (model.SymbolSpecification, bool)
}

// Uptime reports the rounded-percent uptime for each sliding window.
type Uptime struct {
	OneHour int
	OneDay  int
	OneWeek int
}

// Status is the instantaneous health snapshot (spec §4.4, healthStatus).
type Status struct {
	Connected             bool
	ConnectedToBroker     bool
	Synchronized          bool
	QuoteStreamingHealthy bool
	Healthy               bool
	Message               string
}

// Config configures the Monitor.
type Config struct {
	AccountID string
	// Now overrides the wall clock; nil defaults to time.Now. Tests
	// inject a controllable clock here.
	Now func() time.Time
}

// Monitor is the per-connection health tracker.
type Monitor struct {
	cfg    Config
	status ConnectionStatus
	logger *slog.Logger
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu              sync.Mutex
	hour            *ring
	day             *ring
	week            *ring
	lastBrokerTime  map[string]time.Time
	lastWallClock   map[string]time.Time

	registerer  prometheus.Registerer
	uptimeGauge *prometheus.GaugeVec
	healthyGauge *prometheus.GaugeVec
}

// New creates a Monitor bound to status. registerer may be nil to skip
// Prometheus registration (e.g. in tests).
func New(cfg Config, status ConnectionStatus, registerer prometheus.Registerer, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	m := &Monitor{
		cfg:            cfg,
		status:         status,
		logger:         logger,
		now:            now,
		hour:           newRing(windowSizeHour),
		day:            newRing(windowSizeDay),
		week:           newRing(windowSizeWeek),
		lastBrokerTime: make(map[string]time.Time),
		lastWallClock:  make(map[string]time.Time),
		registerer:     registerer,
	}

	if registerer != nil {
		m.uptimeGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bridge_sync_uptime_percent",
			Help: "Rolling connection uptime percentage by window.",
		}, []string{"account_id", "window"})
		m.healthyGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "bridge_sync_healthy",
			Help: "1 if the connection is fully healthy, 0 otherwise.",
		}, []string{"account_id"})
		registerer.MustRegister(m.uptimeGauge, m.healthyGauge)
	}

	return m
}

// Start begins the 1-second sampling loop.
func (m *Monitor) Start(ctx context.Context) {
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.wg.Add(1)
	go m.run()
	m.logger.Info("health monitor started", "account_id", m.cfg.AccountID)
}

// Stop cancels the sampling loop and waits for it to exit.
func (m *Monitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.wg.Wait()
	m.logger.Info("health monitor stopped", "account_id", m.cfg.AccountID)
}

func (m *Monitor) run() {
	defer m.wg.Done()

	ticker := time.NewTicker(1 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.sample()
		}
	}
}

func (m *Monitor) sample() {
	st := m.currentStatus()

	m.mu.Lock()
	defer m.mu.Unlock()
	healthy := st.Healthy
	m.hour.add(healthy)
	m.day.add(healthy)
	m.week.add(healthy)

	if m.uptimeGauge != nil {
		m.uptimeGauge.WithLabelValues(m.cfg.AccountID, "1h").Set(float64(m.hour.uptime()))
		m.uptimeGauge.WithLabelValues(m.cfg.AccountID, "1d").Set(float64(m.day.uptime()))
		m.uptimeGauge.WithLabelValues(m.cfg.AccountID, "1w").Set(float64(m.week.uptime()))
	}
	if m.healthyGauge != nil {
		v := 0.0
		if healthy {
			v = 1.0
		}
		m.healthyGauge.WithLabelValues(m.cfg.AccountID).Set(v)
	}
}

// Uptime returns the current rounded-percent uptime for each window.
func (m *Monitor) Uptime() Uptime {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Uptime{
		OneHour: m.hour.uptime(),
		OneDay:  m.day.uptime(),
		OneWeek: m.week.uptime(),
	}
}

// HealthStatus returns the instantaneous health snapshot (spec §4.4).
func (m *Monitor) HealthStatus() Status {
	return m.currentStatus()
}

func (m *Monitor) currentStatus() Status {
	connected := m.status.Connected()
	connectedToBroker := m.status.ConnectedToBroker()
	synchronized := m.status.Synchronized()
	quotesHealthy := m.quotesHealthy()
	healthy := connected && connectedToBroker && synchronized && quotesHealthy

	return Status{
		Connected:             connected,
		ConnectedToBroker:     connectedToBroker,
		Synchronized:          synchronized,
		QuoteStreamingHealthy: quotesHealthy,
		Healthy:               healthy,
		Message:               healthMessage(connected, connectedToBroker, synchronized, quotesHealthy),
	}
}

// healthMessage lists causes in the fixed order of spec §4.4 (P6).
func healthMessage(connected, connectedToBroker, synchronized, quotesHealthy bool) string {
	if connected && connectedToBroker && synchronized && quotesHealthy {
		return "Connection to broker is stable. No health issues detected."
	}

	var reasons []string
	if !connected {
		reasons = append(reasons, "connection to API server is not established or lost")
	}
	if !connectedToBroker {
		reasons = append(reasons, "connection to broker is not established or lost")
	}
	if !synchronized {
		reasons = append(reasons, "local terminal state is not synchronized to broker")
	}
	if !quotesHealthy {
		reasons = append(reasons, "quotes are not streamed from the broker within reasonable time")
	}

	return fmt.Sprintf("Connection is not healthy because %s.", strings.Join(reasons, " and "))
}

// quotesHealthy implements spec §3, "Quote freshness".
func (m *Monitor) quotesHealthy() bool {
	symbols := m.status.SubscribedSymbols()
	if len(symbols) == 0 {
		return true
	}

	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, symbol := range symbols {
		wallClock, ok := m.lastWallClock[symbol]
		if !ok || now.Sub(wallClock) > quoteFreshnessWindow {
			continue
		}
		brokerTime, ok := m.lastBrokerTime[symbol]
		if !ok {
			continue
		}
		spec, ok := m.status.Specification(symbol)
		if !ok {
			continue
		}
		if spec.InSession(brokerTime) {
			return true
		}
	}
	return false
}

var _ listener.SyncListener = (*PriceListener)(nil)

// PriceListener adapts Monitor's price-freshness tracking to the
// SyncListener capability set (spec §4.4, "Price-update ingestion").
type PriceListener struct {
	listener.Base
	monitor *Monitor
}

// NewPriceListener wraps m as a SyncListener.
func NewPriceListener(m *Monitor) *PriceListener {
	return &PriceListener{monitor: m}
}

func (l *PriceListener) OnSymbolPriceUpdated(instanceIndex int, price model.SymbolPrice) {
	m := l.monitor
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastBrokerTime[price.Symbol] = price.Time
	m.lastWallClock[price.Symbol] = m.now()
}

// ring is a fixed-size, overwrite-on-wrap boolean sliding window with an
// incrementally maintained true-count, so uptime() never rescans the
// buffer.
type ring struct {
	data   []bool
	sum    int
	idx    int
	filled int
	size   int
}

func newRing(size int) *ring {
	return &ring{data: make([]bool, size), size: size}
}

func (r *ring) add(v bool) {
	if r.filled == r.size {
		if r.data[r.idx] {
			r.sum--
		}
	} else {
		r.filled++
	}
	r.data[r.idx] = v
	if v {
		r.sum++
	}
	r.idx = (r.idx + 1) % r.size
}

func (r *ring) uptime() int {
	if r.filled == 0 {
		return 100
	}
	return int(math.Round(100 * float64(r.sum) / float64(r.filled)))
}
