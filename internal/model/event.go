package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Action identifies what a TradeEvent did to the position.
type Action string

const (
	ActionOpenLong    Action = "OPEN_LONG"
	ActionOpenShort   Action = "OPEN_SHORT"
	ActionCloseLong   Action = "CLOSE_LONG"
	ActionCloseShort  Action = "CLOSE_SHORT"
	ActionForcedClose Action = "FORCED_CLOSE"
)

// IsOpen reports whether the action opens a position.
func (a Action) IsOpen() bool {
	return a == ActionOpenLong || a == ActionOpenShort
}

// IsClose reports whether the action closes a position.
func (a Action) IsClose() bool {
	return a == ActionCloseLong || a == ActionCloseShort || a == ActionForcedClose
}

// OpenAction returns the opening action for a side.
func OpenAction(side Side) Action {
	if side == SideShort {
		return ActionOpenShort
	}
	return ActionOpenLong
}

// CloseAction returns the regular closing action for a side.
func CloseAction(side Side) Action {
	if side == SideShort {
		return ActionCloseShort
	}
	return ActionCloseLong
}

// TradeEvent is one row of the trade ledger.
// ReturnPct and PnL are only set on close events.
type TradeEvent struct {
	Date      time.Time           `json:"date"`
	Action    Action              `json:"action"`
	Side      Side                `json:"side"` // side of the position opened or closed
	Price     float64             `json:"price"`
	Quantity  int64               `json:"quantity"`
	CashAfter decimal.Decimal     `json:"cash_after"`
	Reason    string              `json:"reason"`
	ReturnPct *float64            `json:"return_pct,omitempty"`
	PnL       decimal.NullDecimal `json:"pnl"`
}

// IsClose reports whether the event closed a position.
func (e *TradeEvent) IsClose() bool { return e.Action.IsClose() }
