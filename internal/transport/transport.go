// Package transport defines the black-box boundary between the sync core
// and the cloud terminal's streaming/trading endpoint (spec §6). The core
// only depends on the Transport interface; ws.go provides one concrete
// implementation over a websocket, grounded on the teacher's
// internal/connection.Client.
package transport

import (
	"context"
	"errors"
	"time"

	"github.com/rickgao/bridge-sync-core/internal/listener"
	"github.com/rickgao/bridge-sync-core/internal/model"
	"github.com/rickgao/bridge-sync-core/internal/trade"
)

// Errors surfaced by outbound calls (spec §7, TransportError/TradeError).
var (
	ErrNotConnected = errors.New("transport: not connected")
	ErrTimeout      = errors.New("transport: operation timed out")
)

// TradeError wraps a non-success trade result returned by the terminal.
type TradeError struct {
	Code    string
	Message string
}

func (e *TradeError) Error() string { return "trade rejected: " + e.Code + ": " + e.Message }

// TradeResult is the outcome of a successful trade call.
type TradeResult struct {
	OrderID    string
	PositionID string
	Price      float64
}

// HistoryTimeRange bounds a history query.
type HistoryTimeRange struct {
	From time.Time
	To   time.Time
}

// Transport is the outbound call surface the sync core drives (spec §6).
// It is implemented by the websocket terminal client in ws.go and, in
// tests, by hand-written fakes.
type Transport interface {
	// Lifecycle / listener registration.
	AddSynchronizationListener(accountID string, l listener.SyncListener)
	RemoveSynchronizationListener(accountID string, l listener.SyncListener)
	AddReconnectListener(accountID string, l ReconnectListener)

	Subscribe(ctx context.Context, accountID string) error
	Unsubscribe(ctx context.Context, accountID string) error
	Reconnect(ctx context.Context, accountID string) error

	Synchronize(ctx context.Context, accountID string, instanceIndex int, synchronizationID string, startingHistoryOrderTime, startingDealTime time.Time) error
	WaitSynchronized(ctx context.Context, accountID string, instanceIndex int, applicationPattern string, timeout time.Duration) error

	SubscribeToMarketData(ctx context.Context, accountID string, instanceIndex int, symbol string) error
	UnsubscribeFromMarketData(ctx context.Context, accountID string, instanceIndex int, symbol string) error

	Trade(ctx context.Context, accountID string, request trade.Request) (*TradeResult, error)

	RemoveHistory(ctx context.Context, accountID string, application string) error
	RemoveApplication(ctx context.Context, accountID string) error

	// Read queries, pure delegation per spec §4.7.
	GetAccountInformation(ctx context.Context, accountID string) (model.AccountInformation, error)
	GetPositions(ctx context.Context, accountID string) ([]model.Position, error)
	GetOrders(ctx context.Context, accountID string) ([]model.Order, error)
	GetHistoryOrdersByTicket(ctx context.Context, accountID, ticket string) ([]model.HistoryOrder, error)
	GetHistoryOrdersByPosition(ctx context.Context, accountID, positionID string) ([]model.HistoryOrder, error)
	GetHistoryOrdersByTimeRange(ctx context.Context, accountID string, r HistoryTimeRange) ([]model.HistoryOrder, error)
	GetDealsByTicket(ctx context.Context, accountID, ticket string) ([]model.Deal, error)
	GetDealsByPosition(ctx context.Context, accountID, positionID string) ([]model.Deal, error)
	GetDealsByTimeRange(ctx context.Context, accountID string, r HistoryTimeRange) ([]model.Deal, error)
	GetSymbolSpecification(ctx context.Context, accountID, symbol string) (model.SymbolSpecification, error)
	GetSymbolPrice(ctx context.Context, accountID, symbol string) (model.SymbolPrice, error)
	SaveUptime(ctx context.Context, accountID string, uptime map[string]float64) error
}

// ReconnectListener is notified when the transport has re-established its
// connection after a disconnect (spec §4.5, onReconnected).
type ReconnectListener interface {
	OnReconnected()
}
