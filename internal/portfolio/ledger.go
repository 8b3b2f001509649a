// Package portfolio records trades, values the portfolio bar by bar and
// derives performance statistics from both.
package portfolio

import (
	"fmt"

	"github.com/shopspring/decimal"

	"trading-backtest/internal/model"
)

// Ledger is the append-only trade log of one run. Record rejects any event
// that would break open/close alternation or date ordering.
type Ledger struct {
	events   []model.TradeEvent
	open     *model.TradeEvent
	realized decimal.Decimal
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{
		events: make([]model.TradeEvent, 0, 16),
	}
}

// Record appends ev after validating it against the ledger state.
func (l *Ledger) Record(ev model.TradeEvent) error {
	if n := len(l.events); n > 0 {
		last := l.events[n-1].Date
		switch {
		case ev.Date.Before(last):
			return l.violation(ev, "dated before the previous event %s", last.Format(model.DateLayout))
		case ev.Date.Equal(last) && ev.Action != model.ActionForcedClose:
			return l.violation(ev, "shares the date of the previous event")
		}
	}

	switch {
	case ev.Action.IsOpen():
		if l.open != nil {
			return l.violation(ev, "a %s position is already open", l.open.Side)
		}
		if ev.Side != model.SideLong && ev.Side != model.SideShort {
			return l.violation(ev, "opens side %q", ev.Side)
		}
		if ev.PnL.Valid || ev.ReturnPct != nil {
			return l.violation(ev, "open event carries a result")
		}
	case ev.Action.IsClose():
		if l.open == nil {
			return l.violation(ev, "no position is open")
		}
		if ev.Side != l.open.Side {
			return l.violation(ev, "closes %s but %s is open", ev.Side, l.open.Side)
		}
		if ev.Action != model.ActionForcedClose && ev.Action != model.CloseAction(ev.Side) {
			return l.violation(ev, "does not close a %s position", ev.Side)
		}
		if ev.Quantity != l.open.Quantity {
			return l.violation(ev, "closes %d units of %d", ev.Quantity, l.open.Quantity)
		}
		if !ev.PnL.Valid || ev.ReturnPct == nil {
			return l.violation(ev, "close event has no result")
		}
	default:
		return l.violation(ev, "unknown action")
	}

	l.events = append(l.events, ev)
	if ev.Action.IsOpen() {
		open := ev
		l.open = &open
	} else {
		l.open = nil
		l.realized = l.realized.Add(ev.PnL.Decimal)
	}
	return nil
}

func (l *Ledger) violation(ev model.TradeEvent, format string, args ...any) error {
	return &model.InternalConsistencyError{
		Reason: fmt.Sprintf("ledger: %s on %s ", ev.Action, ev.Date.Format(model.DateLayout)) + fmt.Sprintf(format, args...),
	}
}

// Events returns a copy of the recorded events in order.
func (l *Ledger) Events() []model.TradeEvent {
	cp := make([]model.TradeEvent, len(l.events))
	copy(cp, l.events)
	return cp
}

// Len returns the number of recorded events.
func (l *Ledger) Len() int { return len(l.events) }

// IsOpen reports whether the last event opened a position.
func (l *Ledger) IsOpen() bool { return l.open != nil }

// RealizedPnL returns the sum of P&L over all close events.
func (l *Ledger) RealizedPnL() decimal.Decimal { return l.realized }
