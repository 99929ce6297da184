package model

import "time"

// AccountInformation is a snapshot of account-level balances and settings
// as reported by the terminal. Updated exclusively by dispatched packets.
type AccountInformation struct {
	Broker   string
	Currency string
	Balance  float64
	Equity   float64
	Margin   float64
}

// Position is an open position on the account, replicated from the
// terminal's position stream.
type Position struct {
	ID         string
	Symbol     string
	Type       string // "POSITION_TYPE_BUY" or "POSITION_TYPE_SELL"
	Volume     float64
	OpenPrice  float64
	StopLoss   float64
	TakeProfit float64
	UpdateTime time.Time
}

// Order is a pending order on the account.
type Order struct {
	ID         string
	Symbol     string
	Type       string // e.g. "ORDER_TYPE_BUY_LIMIT"
	Volume     float64
	OpenPrice  float64
	StopLoss   float64
	TakeProfit float64
	UpdateTime time.Time
}

// HistoryOrder is a terminated order retained for history queries.
type HistoryOrder struct {
	ID         string
	Symbol     string
	Type       string
	State      string
	DoneTime   time.Time
	InstanceID int
}

// Deal is an executed trade retained for history queries.
type Deal struct {
	ID         string
	OrderID    string
	PositionID string
	Symbol     string
	Type       string
	Volume     float64
	Price      float64
	Time       time.Time
	InstanceID int
}

// QuoteSession is one broker-defined weekday interval during which prices
// are expected to stream for a symbol.
type QuoteSession struct {
	Weekday   time.Weekday
	StartHour int
	StartMin  int
	EndHour   int
	EndMin    int
}

// Contains reports whether t, interpreted on the given weekday, falls
// inside the session's start/end clock interval.
func (s QuoteSession) Contains(t time.Time) bool {
	if t.Weekday() != s.Weekday {
		return false
	}
	minutes := t.Hour()*60 + t.Minute()
	start := s.StartHour*60 + s.StartMin
	end := s.EndHour*60 + s.EndMin
	return minutes >= start && minutes < end
}

// SymbolSpecification describes a tradeable symbol's quote-session
// schedule, keyed by weekday.
type SymbolSpecification struct {
	Symbol   string
	Sessions []QuoteSession
}

// InSession reports whether t falls inside any of the specification's
// quote sessions.
func (s SymbolSpecification) InSession(t time.Time) bool {
	for _, sess := range s.Sessions {
		if sess.Contains(t) {
			return true
		}
	}
	return false
}

// SymbolPrice is a streamed quote update for a symbol.
type SymbolPrice struct {
	Symbol string
	Bid    float64
	Ask    float64
	Time   time.Time // broker-local time of the quote
}
