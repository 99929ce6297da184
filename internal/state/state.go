// Package state holds the read-only in-memory replica of one account's
// terminal state (spec §4.2, component C2): account info, positions,
// orders, symbol specifications and prices, and connectedness flags.
// Mutated exclusively by dispatched packets via the SyncListener
// interface; consumer code only reads.
//
// Grounded on the teacher's kalshi/internal/market/state.go registryState:
// a single mutex-guarded struct with locked/unlocked method pairs,
// generalized from a ticker-keyed market cache to the broader replica
// this spec needs.
package state

import (
	"sync"

	"github.com/rickgao/bridge-sync-core/internal/listener"
	"github.com/rickgao/bridge-sync-core/internal/model"
)

// TerminalState is the per-connection in-memory replica.
type TerminalState struct {
	mu sync.RWMutex

	connected         bool
	connectedToBroker bool

	accountInformation model.AccountInformation
	positions          map[string]model.Position
	orders             map[string]model.Order
	specifications     map[string]model.SymbolSpecification
	prices             map[string]model.SymbolPrice
}

// New creates an empty TerminalState.
func New() *TerminalState {
	return &TerminalState{
		positions:      make(map[string]model.Position),
		orders:         make(map[string]model.Order),
		specifications: make(map[string]model.SymbolSpecification),
		prices:         make(map[string]model.SymbolPrice),
	}
}

// Connected reports whether the transport reports this connection as
// connected to the cloud terminal service.
func (s *TerminalState) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// ConnectedToBroker reports whether the terminal itself is connected to
// the broker (a weaker condition than Connected alone implies).
func (s *TerminalState) ConnectedToBroker() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connectedToBroker
}

// Specification returns the quote-session schedule for symbol, if known.
func (s *TerminalState) Specification(symbol string) (model.SymbolSpecification, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	spec, ok := s.specifications[symbol]
	return spec, ok
}

// AccountInformation returns the latest known account snapshot.
func (s *TerminalState) AccountInformation() model.AccountInformation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accountInformation
}

// Positions returns a copy of all currently open positions.
func (s *TerminalState) Positions() []model.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Position, 0, len(s.positions))
	for _, p := range s.positions {
		out = append(out, p)
	}
	return out
}

// Orders returns a copy of all currently pending orders.
func (s *TerminalState) Orders() []model.Order {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Order, 0, len(s.orders))
	for _, o := range s.orders {
		out = append(out, o)
	}
	return out
}

// Price returns the last known quote for symbol.
func (s *TerminalState) Price(symbol string) (model.SymbolPrice, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.prices[symbol]
	return p, ok
}

// setConnectedLocked centralizes the connectedToBroker derivation:
// the replica treats broker connectivity as following the transport's
// connectedness until a disconnect arrives (spec §4.2 only promises
// `connected` and `connectedToBroker` as exposed flags, not their wire
// source — the health monitor is the only consumer that reads them
// together).
func (s *TerminalState) setConnectedLocked(connected bool) {
	s.connected = connected
	if !connected {
		s.connectedToBroker = false
	}
}

var _ listener.SyncListener = (*Listener)(nil)

// Listener adapts TerminalState to the SyncListener capability set.
// Kept distinct from TerminalState itself so read access never requires
// satisfying the full listener interface.
type Listener struct {
	listener.Base
	state *TerminalState
}

// NewListener wraps state as a SyncListener.
func NewListener(s *TerminalState) *Listener {
	return &Listener{state: s}
}

func (l *Listener) OnConnected(instanceIndex int, replicas int) {
	s := l.state
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setConnectedLocked(true)
	s.connectedToBroker = true
}

func (l *Listener) OnDisconnected(instanceIndex int) {
	s := l.state
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setConnectedLocked(false)
}

func (l *Listener) OnReconnected() {
	s := l.state
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setConnectedLocked(true)
	s.connectedToBroker = true
}

func (l *Listener) OnAccountInformationUpdated(instanceIndex int, info model.AccountInformation) {
	s := l.state
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accountInformation = info
}

func (l *Listener) OnPositionUpdated(instanceIndex int, position model.Position) {
	s := l.state
	s.mu.Lock()
	defer s.mu.Unlock()
	s.positions[position.ID] = position
}

func (l *Listener) OnPositionRemoved(instanceIndex int, positionID string) {
	s := l.state
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.positions, positionID)
}

func (l *Listener) OnOrderUpdated(instanceIndex int, order model.Order) {
	s := l.state
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.ID] = order
}

func (l *Listener) OnOrderCompleted(instanceIndex int, orderID string) {
	s := l.state
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.orders, orderID)
}

func (l *Listener) OnSymbolSpecificationUpdated(instanceIndex int, spec model.SymbolSpecification) {
	s := l.state
	s.mu.Lock()
	defer s.mu.Unlock()
	s.specifications[spec.Symbol] = spec
}

func (l *Listener) OnSymbolPriceUpdated(instanceIndex int, price model.SymbolPrice) {
	s := l.state
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices[price.Symbol] = price
}
