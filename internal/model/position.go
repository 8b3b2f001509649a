package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of the live position.
type Side string

const (
	SideFlat  Side = "FLAT"
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// Position represents the single live position of a backtest run.
type Position struct {
	Side       Side      `json:"side"`
	EntryPrice float64   `json:"entry_price"`
	Quantity   int64     `json:"quantity"`
	EntryDate  time.Time `json:"entry_date"`
}

// IsFlat reports whether no position is held.
func (p Position) IsFlat() bool {
	return p.Side == SideFlat || p.Side == ""
}

// MarkToMarket returns the position's contribution to portfolio value at price.
// A long is worth q*price. A short is worth the cash reserved at entry plus the
// spread accrued since: q*entry + q*(entry-price).
func (p Position) MarkToMarket(price float64) decimal.Decimal {
	q := decimal.NewFromInt(p.Quantity)
	switch p.Side {
	case SideLong:
		return q.Mul(decimal.NewFromFloat(price))
	case SideShort:
		entry := decimal.NewFromFloat(p.EntryPrice)
		return q.Mul(entry).Add(q.Mul(entry.Sub(decimal.NewFromFloat(price))))
	default:
		return decimal.Zero
	}
}

// UnrealizedPnL returns the open profit or loss at price.
func (p Position) UnrealizedPnL(price float64) decimal.Decimal {
	if p.IsFlat() {
		return decimal.Zero
	}
	q := decimal.NewFromInt(p.Quantity)
	entry := decimal.NewFromFloat(p.EntryPrice)
	diff := decimal.NewFromFloat(price).Sub(entry)
	if p.Side == SideShort {
		diff = diff.Neg()
	}
	return q.Mul(diff)
}
