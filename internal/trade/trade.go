// Package trade models outbound trade requests as a closed sum type (spec
// §6, "Trade request shape"): one struct per actionType instead of an
// untyped map, discriminated by an ActionType method. Every variant
// implements Request; shared fields come from the embedded
// CommonOptions, MarketOptions or PendingOptions.
package trade

import "fmt"

// ActionType discriminates the trade request variants.
type ActionType string

const (
	ActionOrderTypeBuy           ActionType = "ORDER_TYPE_BUY"
	ActionOrderTypeSell          ActionType = "ORDER_TYPE_SELL"
	ActionOrderTypeBuyLimit      ActionType = "ORDER_TYPE_BUY_LIMIT"
	ActionOrderTypeSellLimit     ActionType = "ORDER_TYPE_SELL_LIMIT"
	ActionOrderTypeBuyStop       ActionType = "ORDER_TYPE_BUY_STOP"
	ActionOrderTypeSellStop      ActionType = "ORDER_TYPE_SELL_STOP"
	ActionOrderTypeBuyStopLimit  ActionType = "ORDER_TYPE_BUY_STOP_LIMIT"
	ActionOrderTypeSellStopLimit ActionType = "ORDER_TYPE_SELL_STOP_LIMIT"
	ActionPositionModify         ActionType = "POSITION_MODIFY"
	ActionPositionPartial        ActionType = "POSITION_PARTIAL"
	ActionPositionCloseID        ActionType = "POSITION_CLOSE_ID"
	ActionPositionCloseBy        ActionType = "POSITION_CLOSE_BY"
	ActionPositionsCloseSymbol   ActionType = "POSITIONS_CLOSE_SYMBOL"
	ActionOrderModify            ActionType = "ORDER_MODIFY"
	ActionOrderCancel            ActionType = "ORDER_CANCEL"
)

// Request is implemented by every trade request variant.
type Request interface {
	ActionType() ActionType
	Validate() error
}

// CommonOptions holds the fields shared across every variant (spec §6,
// "Common options").
type CommonOptions struct {
	Comment  string
	ClientID string
	Magic    int64
	Slippage float64
}

func (o CommonOptions) validate() error {
	if len(o.Comment)+len(o.ClientID) > 26 {
		return fmt.Errorf("trade: comment+clientId length %d exceeds 26", len(o.Comment)+len(o.ClientID))
	}
	if o.Slippage < 0 {
		return fmt.Errorf("trade: slippage %v must be >= 0", o.Slippage)
	}
	return nil
}

// MarketOptions extends CommonOptions for market-executed variants.
type MarketOptions struct {
	CommonOptions
	FillingModes []string
}

// PendingOptions extends CommonOptions for pending-order variants.
type PendingOptions struct {
	CommonOptions
	Expiration *Expiration
}

// Expiration describes a pending order's time-in-force.
type Expiration struct {
	Type ExpirationType
	Time *int64 // epoch millis, required when Type is ExpirationSpecified
}

type ExpirationType string

const (
	ExpirationGTC        ExpirationType = "ORDER_TIME_GTC"
	ExpirationDay        ExpirationType = "ORDER_TIME_DAY"
	ExpirationSpecified  ExpirationType = "ORDER_TIME_SPECIFIED"
	ExpirationSpecifiedDay ExpirationType = "ORDER_TIME_SPECIFIED_DAY"
)

// MarketOrder is ORDER_TYPE_BUY / ORDER_TYPE_SELL.
type MarketOrder struct {
	MarketOptions
	Action     ActionType // ActionOrderTypeBuy or ActionOrderTypeSell
	Symbol     string
	Volume     float64
	StopLoss   *float64
	TakeProfit *float64
}

func (r MarketOrder) ActionType() ActionType { return r.Action }

func (r MarketOrder) Validate() error {
	if r.Action != ActionOrderTypeBuy && r.Action != ActionOrderTypeSell {
		return fmt.Errorf("trade: invalid action %q for MarketOrder", r.Action)
	}
	if r.Symbol == "" {
		return fmt.Errorf("trade: symbol required")
	}
	if r.Volume <= 0 {
		return fmt.Errorf("trade: volume must be > 0")
	}
	return r.MarketOptions.validate()
}

// PendingOrder covers the four LIMIT/STOP/STOP_LIMIT variants.
type PendingOrder struct {
	PendingOptions
	Action         ActionType
	Symbol         string
	Volume         float64
	OpenPrice      float64
	StopLimitPrice *float64 // only for *_STOP_LIMIT
	StopLoss       *float64
	TakeProfit     *float64
}

func (r PendingOrder) ActionType() ActionType { return r.Action }

func (r PendingOrder) Validate() error {
	switch r.Action {
	case ActionOrderTypeBuyLimit, ActionOrderTypeSellLimit, ActionOrderTypeBuyStop, ActionOrderTypeSellStop:
	case ActionOrderTypeBuyStopLimit, ActionOrderTypeSellStopLimit:
		if r.StopLimitPrice == nil {
			return fmt.Errorf("trade: stopLimitPrice required for %s", r.Action)
		}
	default:
		return fmt.Errorf("trade: invalid action %q for PendingOrder", r.Action)
	}
	if r.Symbol == "" {
		return fmt.Errorf("trade: symbol required")
	}
	if r.Volume <= 0 {
		return fmt.Errorf("trade: volume must be > 0")
	}
	return r.PendingOptions.validate()
}

// PositionModify is POSITION_MODIFY.
type PositionModify struct {
	CommonOptions
	PositionID string
	StopLoss   *float64
	TakeProfit *float64
}

func (r PositionModify) ActionType() ActionType { return ActionPositionModify }

func (r PositionModify) Validate() error {
	if r.PositionID == "" {
		return fmt.Errorf("trade: positionId required")
	}
	return r.CommonOptions.validate()
}

// PositionPartial is POSITION_PARTIAL.
type PositionPartial struct {
	MarketOptions
	PositionID string
	Volume     float64
}

func (r PositionPartial) ActionType() ActionType { return ActionPositionPartial }

func (r PositionPartial) Validate() error {
	if r.PositionID == "" {
		return fmt.Errorf("trade: positionId required")
	}
	if r.Volume <= 0 {
		return fmt.Errorf("trade: volume must be > 0")
	}
	return r.MarketOptions.validate()
}

// PositionCloseID is POSITION_CLOSE_ID.
type PositionCloseID struct {
	MarketOptions
	PositionID string
}

func (r PositionCloseID) ActionType() ActionType { return ActionPositionCloseID }

func (r PositionCloseID) Validate() error {
	if r.PositionID == "" {
		return fmt.Errorf("trade: positionId required")
	}
	return r.MarketOptions.validate()
}

// PositionCloseBy is POSITION_CLOSE_BY.
type PositionCloseBy struct {
	MarketOptions
	PositionID      string
	CloseByPositionID string
}

func (r PositionCloseBy) ActionType() ActionType { return ActionPositionCloseBy }

func (r PositionCloseBy) Validate() error {
	if r.PositionID == "" || r.CloseByPositionID == "" {
		return fmt.Errorf("trade: positionId and closeByPositionId required")
	}
	return r.MarketOptions.validate()
}

// PositionsCloseSymbol is POSITIONS_CLOSE_SYMBOL.
type PositionsCloseSymbol struct {
	MarketOptions
	Symbol string
}

func (r PositionsCloseSymbol) ActionType() ActionType { return ActionPositionsCloseSymbol }

func (r PositionsCloseSymbol) Validate() error {
	if r.Symbol == "" {
		return fmt.Errorf("trade: symbol required")
	}
	return r.MarketOptions.validate()
}

// OrderModify is ORDER_MODIFY.
type OrderModify struct {
	CommonOptions
	OrderID    string
	OpenPrice  float64
	StopLoss   *float64
	TakeProfit *float64
}

func (r OrderModify) ActionType() ActionType { return ActionOrderModify }

func (r OrderModify) Validate() error {
	if r.OrderID == "" {
		return fmt.Errorf("trade: orderId required")
	}
	return r.CommonOptions.validate()
}

// OrderCancel is ORDER_CANCEL.
type OrderCancel struct {
	CommonOptions
	OrderID string
}

func (r OrderCancel) ActionType() ActionType { return ActionOrderCancel }

func (r OrderCancel) Validate() error {
	if r.OrderID == "" {
		return fmt.Errorf("trade: orderId required")
	}
	return r.CommonOptions.validate()
}
