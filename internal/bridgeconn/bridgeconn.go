// Package bridgeconn implements the connection facade (spec §4.7,
// component C7): aggregates the terminal state, history storage, health
// monitor, sync controller, and subscribe loop behind one account-scoped
// API, registers them as listeners with the transport, and delegates
// trade/query operations.
//
// Grounded on the teacher's internal/api.Client functional-options
// constructor (Option func(*Connection)) and kalshi/internal/market's
// registry-owns-state aggregation shape.
package bridgeconn

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/rickgao/bridge-sync-core/internal/health"
	"github.com/rickgao/bridge-sync-core/internal/history"
	"github.com/rickgao/bridge-sync-core/internal/listener"
	"github.com/rickgao/bridge-sync-core/internal/model"
	"github.com/rickgao/bridge-sync-core/internal/state"
	"github.com/rickgao/bridge-sync-core/internal/subscribe"
	syncctl "github.com/rickgao/bridge-sync-core/internal/sync"
	"github.com/rickgao/bridge-sync-core/internal/trade"
	"github.com/rickgao/bridge-sync-core/internal/transport"
)

// Config configures a Connection.
type Config struct {
	AccountID        string
	Application      string
	HistoryStartTime time.Time // zero value means epoch zero
}

// Option customizes a Connection at construction time.
type Option func(*Connection)

// WithHistoryStorage overrides the default in-memory history storage
// (e.g. with history.NewSQLStorage for a durable backend).
func WithHistoryStorage(s history.Storage) Option {
	return func(c *Connection) { c.history = s }
}

// WithMetricsRegisterer enables Prometheus metrics export for the health
// monitor. Omit to skip registration (the default, and what tests use).
func WithMetricsRegisterer(r prometheus.Registerer) Option {
	return func(c *Connection) { c.metricsRegisterer = r }
}

// Connection is one logical connection to a remote trading account (spec
// §3, "Connection").
type Connection struct {
	cfg       Config
	transport transport.Transport
	logger    *slog.Logger

	history           history.Storage
	metricsRegisterer prometheus.Registerer

	terminalState  *state.TerminalState
	stateListener  *state.Listener
	syncController *syncctl.Controller
	subscribeLoop  *subscribe.Loop
	healthMonitor  *health.Monitor
	priceListener  *health.PriceListener

	mu                sync.Mutex
	subscribedSymbols map[string]struct{}
	closed            bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New constructs a Connection bound to t. Call Initialize before use and
// Close when done.
func New(cfg Config, t transport.Transport, logger *slog.Logger, opts ...Option) *Connection {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Connection{
		cfg:               cfg,
		transport:         t,
		logger:            logger,
		history:           history.NewMemoryStorage(),
		subscribedSymbols: make(map[string]struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.terminalState = state.New()
	c.stateListener = state.NewListener(c.terminalState)

	c.syncController = syncctl.New(syncctl.Config{
		AccountID:        cfg.AccountID,
		Application:      cfg.Application,
		HistoryStartTime: cfg.HistoryStartTime,
	}, t, c.history, c.SubscribedSymbols, logger.With("component", "sync"))

	c.subscribeLoop = subscribe.New(cfg.AccountID, t, logger.With("component", "subscribe"))
	c.syncController.SetSubscribeLoop(c.subscribeLoop)

	c.healthMonitor = health.New(health.Config{AccountID: cfg.AccountID}, c, c.metricsRegisterer, logger.With("component", "health"))
	c.priceListener = health.NewPriceListener(c.healthMonitor)

	return c
}

// Initialize prepares history storage and starts the sync controller,
// subscribe loop, and health monitor (spec §4.7, "Lifecycle").
func (c *Connection) Initialize(ctx context.Context) error {
	c.ctx, c.cancel = context.WithCancel(ctx)

	if err := c.history.Initialize(c.ctx); err != nil {
		return fmt.Errorf("bridgeconn: initialize history: %w", err)
	}

	c.syncController.Start(c.ctx)
	c.healthMonitor.Start(c.ctx)
	go c.subscribeLoop.Subscribe(c.ctx)

	c.transport.AddSynchronizationListener(c.cfg.AccountID, c.stateListener)
	c.transport.AddSynchronizationListener(c.cfg.AccountID, c.history)
	c.transport.AddSynchronizationListener(c.cfg.AccountID, c.priceListener)
	c.transport.AddSynchronizationListener(c.cfg.AccountID, c.syncController)
	c.transport.AddSynchronizationListener(c.cfg.AccountID, c)
	c.transport.AddReconnectListener(c.cfg.AccountID, c)

	return nil
}

// Close tears the connection down. Idempotent (spec §4.7).
func (c *Connection) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.transport.Unsubscribe(ctx, c.cfg.AccountID)

	c.transport.RemoveSynchronizationListener(c.cfg.AccountID, c.stateListener)
	c.transport.RemoveSynchronizationListener(c.cfg.AccountID, c.history)
	c.transport.RemoveSynchronizationListener(c.cfg.AccountID, c.priceListener)
	c.transport.RemoveSynchronizationListener(c.cfg.AccountID, c.syncController)
	c.transport.RemoveSynchronizationListener(c.cfg.AccountID, c)

	c.healthMonitor.Stop()
	c.syncController.Stop()
	if c.cancel != nil {
		c.cancel()
	}

	return err
}

// --- health.ConnectionStatus ---

// Connected reports the replica's transport connectedness.
func (c *Connection) Connected() bool { return c.terminalState.Connected() }

// ConnectedToBroker reports the replica's broker connectedness.
func (c *Connection) ConnectedToBroker() bool { return c.terminalState.ConnectedToBroker() }

// Synchronized reports the connection-wide synchronized flag.
func (c *Connection) Synchronized() bool { return c.syncController.Synchronized() }

// Specification delegates to the terminal state replica.
func (c *Connection) Specification(symbol string) (model.SymbolSpecification, bool) {
	return c.terminalState.Specification(symbol)
}

// SubscribedSymbols returns the current market-data subscription set.
func (c *Connection) SubscribedSymbols() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.subscribedSymbols))
	for s := range c.subscribedSymbols {
		out = append(out, s)
	}
	return out
}

// --- listener.SyncListener (facade registers itself; no hooks of its
// own are needed beyond the no-op Base, but it must satisfy the
// interface to be registered alongside C2/C3/C4) ---

var _ listener.SyncListener = (*Connection)(nil)

// OnReconnected implements transport.ReconnectListener; the facade
// itself has nothing to do here beyond what the sync controller already
// performs via its own OnReconnected hook, but registering keeps the
// facade visible to future extension points.
func (c *Connection) OnReconnected() {}

func (c *Connection) OnConnected(instanceIndex int, replicas int)                        {}
func (c *Connection) OnDisconnected(instanceIndex int)                                    {}
func (c *Connection) OnDealSynchronizationFinished(instanceIndex int, synchronizationID string)  {}
func (c *Connection) OnOrderSynchronizationFinished(instanceIndex int, synchronizationID string) {}
func (c *Connection) OnAccountInformationUpdated(instanceIndex int, info model.AccountInformation) {}
func (c *Connection) OnPositionUpdated(instanceIndex int, position model.Position)         {}
func (c *Connection) OnPositionRemoved(instanceIndex int, positionID string)               {}
func (c *Connection) OnOrderUpdated(instanceIndex int, order model.Order)                  {}
func (c *Connection) OnOrderCompleted(instanceIndex int, orderID string)                   {}
func (c *Connection) OnHistoryOrderAdded(instanceIndex int, order model.HistoryOrder)      {}
func (c *Connection) OnDealAdded(instanceIndex int, deal model.Deal)                       {}
func (c *Connection) OnSymbolSpecificationUpdated(instanceIndex int, spec model.SymbolSpecification) {
}
func (c *Connection) OnSymbolPriceUpdated(instanceIndex int, price model.SymbolPrice) {}
func (c *Connection) OnOutOfOrderPacket(accountID string, instanceIndex int, expectedSequenceNumber, actualSequenceNumber int64, packet []byte, receivedAt int64) {
}

// --- Subscription management (spec §4.7) ---

// SubscribeToMarketData records symbol in the subscription set and
// delegates to the transport.
func (c *Connection) SubscribeToMarketData(ctx context.Context, symbol string, instanceIndex int) error {
	c.mu.Lock()
	c.subscribedSymbols[symbol] = struct{}{}
	c.mu.Unlock()
	return c.transport.SubscribeToMarketData(ctx, c.cfg.AccountID, instanceIndex, symbol)
}

// UnsubscribeFromMarketData delegates to the transport but, preserving
// the source's observable behavior (spec §9 open question), keeps the
// symbol in the subscription set rather than removing it.
func (c *Connection) UnsubscribeFromMarketData(ctx context.Context, symbol string, instanceIndex int) error {
	c.mu.Lock()
	c.subscribedSymbols[symbol] = struct{}{}
	c.mu.Unlock()
	return c.transport.UnsubscribeFromMarketData(ctx, c.cfg.AccountID, instanceIndex, symbol)
}

// --- Trade operations (spec §4.7, §6) ---

// Trade issues a single tagged trade request.
func (c *Connection) Trade(ctx context.Context, request trade.Request) (*transport.TradeResult, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}
	return c.transport.Trade(ctx, c.cfg.AccountID, request)
}

// --- History lifecycle (spec §4.7) ---

// RemoveHistory clears local storage then the transport's record for
// application (empty string means all applications).
func (c *Connection) RemoveHistory(ctx context.Context, application string) error {
	if err := c.history.Clear(ctx); err != nil {
		return err
	}
	return c.transport.RemoveHistory(ctx, c.cfg.AccountID, application)
}

// RemoveApplication clears local storage then the transport's
// application-scoped state.
func (c *Connection) RemoveApplication(ctx context.Context) error {
	if err := c.history.Clear(ctx); err != nil {
		return err
	}
	return c.transport.RemoveApplication(ctx, c.cfg.AccountID)
}

// --- Read queries: pure delegation to the transport (spec §4.7) ---

func (c *Connection) GetAccountInformation(ctx context.Context) (model.AccountInformation, error) {
	return c.transport.GetAccountInformation(ctx, c.cfg.AccountID)
}

func (c *Connection) GetPositions(ctx context.Context) ([]model.Position, error) {
	return c.transport.GetPositions(ctx, c.cfg.AccountID)
}

func (c *Connection) GetOrders(ctx context.Context) ([]model.Order, error) {
	return c.transport.GetOrders(ctx, c.cfg.AccountID)
}

func (c *Connection) GetHistoryOrdersByTicket(ctx context.Context, ticket string) ([]model.HistoryOrder, error) {
	return c.transport.GetHistoryOrdersByTicket(ctx, c.cfg.AccountID, ticket)
}

func (c *Connection) GetHistoryOrdersByPosition(ctx context.Context, positionID string) ([]model.HistoryOrder, error) {
	return c.transport.GetHistoryOrdersByPosition(ctx, c.cfg.AccountID, positionID)
}

func (c *Connection) GetHistoryOrdersByTimeRange(ctx context.Context, r transport.HistoryTimeRange) ([]model.HistoryOrder, error) {
	return c.transport.GetHistoryOrdersByTimeRange(ctx, c.cfg.AccountID, r)
}

func (c *Connection) GetDealsByTicket(ctx context.Context, ticket string) ([]model.Deal, error) {
	return c.transport.GetDealsByTicket(ctx, c.cfg.AccountID, ticket)
}

func (c *Connection) GetDealsByPosition(ctx context.Context, positionID string) ([]model.Deal, error) {
	return c.transport.GetDealsByPosition(ctx, c.cfg.AccountID, positionID)
}

func (c *Connection) GetDealsByTimeRange(ctx context.Context, r transport.HistoryTimeRange) ([]model.Deal, error) {
	return c.transport.GetDealsByTimeRange(ctx, c.cfg.AccountID, r)
}

func (c *Connection) GetSymbolSpecification(ctx context.Context, symbol string) (model.SymbolSpecification, error) {
	return c.transport.GetSymbolSpecification(ctx, c.cfg.AccountID, symbol)
}

func (c *Connection) GetSymbolPrice(ctx context.Context, symbol string) (model.SymbolPrice, error) {
	return c.transport.GetSymbolPrice(ctx, c.cfg.AccountID, symbol)
}

func (c *Connection) SaveUptime(ctx context.Context) error {
	u := c.healthMonitor.Uptime()
	return c.transport.SaveUptime(ctx, c.cfg.AccountID, map[string]float64{
		"1h": float64(u.OneHour),
		"1d": float64(u.OneDay),
		"1w": float64(u.OneWeek),
	})
}

// WaitSynchronized delegates to the sync controller.
func (c *Connection) WaitSynchronized(ctx context.Context, opts syncctl.WaitOptions) error {
	return c.syncController.WaitSynchronized(ctx, opts)
}

// HealthStatus delegates to the health monitor.
func (c *Connection) HealthStatus() health.Status { return c.healthMonitor.HealthStatus() }

// Uptime delegates to the health monitor.
func (c *Connection) Uptime() health.Uptime { return c.healthMonitor.Uptime() }
