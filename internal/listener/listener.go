// Package listener defines the synchronization listener capability set
// that the packet orderer dispatches ordered frames to, and that the
// transport's lifecycle events drive directly (spec §9 "Listener
// interface"). Terminal state, history storage, the health monitor, and
// the connection facade all implement it; so may consumer code.
package listener

import "github.com/rickgao/bridge-sync-core/internal/model"

// SyncListener is the dispatch point for every packet-ordered event and
// every transport lifecycle event. Every hook has a default no-op via
// Base, so an implementer only overrides what it cares about.
type SyncListener interface {
	OnConnected(instanceIndex int, replicas int)
	OnDisconnected(instanceIndex int)
	OnReconnected()

	OnDealSynchronizationFinished(instanceIndex int, synchronizationID string)
	OnOrderSynchronizationFinished(instanceIndex int, synchronizationID string)

	OnAccountInformationUpdated(instanceIndex int, info model.AccountInformation)
	OnPositionUpdated(instanceIndex int, position model.Position)
	OnPositionRemoved(instanceIndex int, positionID string)
	OnOrderUpdated(instanceIndex int, order model.Order)
	OnOrderCompleted(instanceIndex int, orderID string)
	OnHistoryOrderAdded(instanceIndex int, order model.HistoryOrder)
	OnDealAdded(instanceIndex int, deal model.Deal)
	OnSymbolSpecificationUpdated(instanceIndex int, spec model.SymbolSpecification)
	OnSymbolPriceUpdated(instanceIndex int, price model.SymbolPrice)

	OnOutOfOrderPacket(accountID string, instanceIndex int, expectedSequenceNumber, actualSequenceNumber int64, packet []byte, receivedAt int64)
}

// Base implements SyncListener with every hook a no-op. Embed it to
// satisfy the interface while overriding only the handlers a listener
// needs.
type Base struct{}

func (Base) OnConnected(instanceIndex int, replicas int)  {}
func (Base) OnDisconnected(instanceIndex int)              {}
func (Base) OnReconnected()                                {}

func (Base) OnDealSynchronizationFinished(instanceIndex int, synchronizationID string)  {}
func (Base) OnOrderSynchronizationFinished(instanceIndex int, synchronizationID string) {}

func (Base) OnAccountInformationUpdated(instanceIndex int, info model.AccountInformation) {}
func (Base) OnPositionUpdated(instanceIndex int, position model.Position)                 {}
func (Base) OnPositionRemoved(instanceIndex int, positionID string)                        {}
func (Base) OnOrderUpdated(instanceIndex int, order model.Order)                           {}
func (Base) OnOrderCompleted(instanceIndex int, orderID string)                            {}
func (Base) OnHistoryOrderAdded(instanceIndex int, order model.HistoryOrder)               {}
func (Base) OnDealAdded(instanceIndex int, deal model.Deal)                                {}
func (Base) OnSymbolSpecificationUpdated(instanceIndex int, spec model.SymbolSpecification) {}
func (Base) OnSymbolPriceUpdated(instanceIndex int, price model.SymbolPrice)                {}

func (Base) OnOutOfOrderPacket(accountID string, instanceIndex int, expectedSequenceNumber, actualSequenceNumber int64, packet []byte, receivedAt int64) {
}
