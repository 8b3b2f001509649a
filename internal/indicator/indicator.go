// Package indicator provides technical indicator calculations over daily bars.
//
// All rolling indicators implement the Indicator interface and are fed one bar
// at a time, so a value at bar i only ever depends on bars 0..i. Compute runs
// them over a whole PriceSeries and returns one Frame per bar.
package indicator

import "trading-backtest/internal/model"

// Indicator is the interface for all rolling indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "SMA_20", "MAX_20").
	Name() string

	// Update feeds the next bar and recalculates.
	Update(bar model.Bar)

	// Value returns the current value. Meaningless until Ready.
	Value() float64

	// Ready returns true when enough bars have been accumulated.
	Ready() bool
}

// Source selects the bar field an indicator is computed over.
type Source func(model.Bar) float64

var (
	Close  Source = func(b model.Bar) float64 { return b.Close }
	High   Source = func(b model.Bar) float64 { return b.High }
	Volume Source = func(b model.Bar) float64 { return float64(b.Volume) }
)

// Level is one derived reading. Valid is false while the indicator is still
// warming up; an invalid Level must never be compared against.
type Level struct {
	Value float64
	Valid bool
}

// Of returns the indicator's current reading as a Level.
func Of(ind Indicator) Level {
	if !ind.Ready() {
		return Level{}
	}
	return Level{Value: ind.Value(), Valid: true}
}

// AllValid reports whether every level is defined.
func AllValid(levels ...Level) bool {
	for _, l := range levels {
		if !l.Valid {
			return false
		}
	}
	return true
}
