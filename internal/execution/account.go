// Package execution simulates fills against a single cash account.
//
// Every fill happens at the given price with no slippage or commission.
// Cash is kept in shopspring/decimal so that realized P&L reconciles with the
// final balance to the cent.
package execution

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"trading-backtest/internal/model"
)

// Account holds the cash balance and the single live position of one run.
// It is not safe for concurrent use; each run owns its own Account.
type Account struct {
	cash decimal.Decimal
	pos  model.Position
}

// NewAccount creates a flat account funded with initial.
func NewAccount(initial decimal.Decimal) *Account {
	return &Account{
		cash: initial,
		pos:  model.Position{Side: model.SideFlat},
	}
}

// Cash returns the current cash balance.
func (a *Account) Cash() decimal.Decimal { return a.cash }

// Position returns a copy of the live position.
func (a *Account) Position() model.Position { return a.pos }

// Size returns the largest whole quantity the current cash buys at price.
func (a *Account) Size(price float64) int64 {
	if price <= 0 || !a.cash.IsPositive() {
		return 0
	}
	p := decimal.NewFromFloat(price)
	q := a.cash.Div(p).Floor().IntPart()
	// Div rounds to DivisionPrecision places; step back if that rounded up.
	for q > 0 && decimal.NewFromInt(q).Mul(p).GreaterThan(a.cash) {
		q--
	}
	return q
}

// Open enters side at price using all available cash. Both sides reserve
// q*price from cash. It returns false without error when the cash does not
// cover a single unit.
func (a *Account) Open(date time.Time, side model.Side, price float64, reason string) (model.TradeEvent, bool, error) {
	if !a.pos.IsFlat() {
		return model.TradeEvent{}, false, &model.InternalConsistencyError{
			Reason: fmt.Sprintf("open %s on %s while %s is held", side, date.Format(model.DateLayout), a.pos.Side),
		}
	}
	if side != model.SideLong && side != model.SideShort {
		return model.TradeEvent{}, false, &model.InternalConsistencyError{Reason: fmt.Sprintf("cannot open side %q", side)}
	}
	q := a.Size(price)
	if q == 0 {
		return model.TradeEvent{}, false, nil
	}

	cost := decimal.NewFromInt(q).Mul(decimal.NewFromFloat(price))
	a.cash = a.cash.Sub(cost)
	a.pos = model.Position{Side: side, EntryPrice: price, Quantity: q, EntryDate: date}

	return model.TradeEvent{
		Date:      date,
		Action:    model.OpenAction(side),
		Side:      side,
		Price:     price,
		Quantity:  q,
		CashAfter: a.cash,
		Reason:    reason,
	}, true, nil
}

// Close exits the live position at price. action must be a closing action
// (CLOSE_LONG, CLOSE_SHORT or FORCED_CLOSE) consistent with the held side.
func (a *Account) Close(date time.Time, action model.Action, price float64, reason string) (model.TradeEvent, error) {
	if a.pos.IsFlat() {
		return model.TradeEvent{}, &model.InternalConsistencyError{
			Reason: fmt.Sprintf("%s on %s with no open position", action, date.Format(model.DateLayout)),
		}
	}
	if action != model.ActionForcedClose && action != model.CloseAction(a.pos.Side) {
		return model.TradeEvent{}, &model.InternalConsistencyError{
			Reason: fmt.Sprintf("%s does not close a %s position", action, a.pos.Side),
		}
	}

	pos := a.pos
	a.cash = a.cash.Add(pos.MarkToMarket(price))
	pnl := pos.UnrealizedPnL(price)
	ret := (price - pos.EntryPrice) / pos.EntryPrice * 100
	if pos.Side == model.SideShort {
		ret = (pos.EntryPrice - price) / pos.EntryPrice * 100
	}
	a.pos = model.Position{Side: model.SideFlat}

	return model.TradeEvent{
		Date:      date,
		Action:    action,
		Side:      pos.Side,
		Price:     price,
		Quantity:  pos.Quantity,
		CashAfter: a.cash,
		Reason:    reason,
		ReturnPct: &ret,
		PnL:       decimal.NewNullDecimal(pnl),
	}, nil
}
