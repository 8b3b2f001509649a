// Package testutil builds synthetic price series for tests.
package testutil

import (
	"math"
	"time"

	"trading-backtest/internal/model"
)

// Start is the date of the first bar of every generated series.
var Start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// Day returns the date of the i-th generated bar.
func Day(i int) time.Time { return Start.AddDate(0, 0, i) }

// Flat returns a bar with open = high = low = close.
func Flat(i int, price float64, volume int64) model.Bar {
	return model.Bar{Date: Day(i), Open: price, High: price, Low: price, Close: price, Volume: volume}
}

// OHLC returns a bar with explicit prices.
func OHLC(i int, o, h, l, c float64, volume int64) model.Bar {
	return model.Bar{Date: Day(i), Open: o, High: h, Low: l, Close: c, Volume: volume}
}

// Closes builds a series of flat bars from closing prices.
func Closes(symbol string, volume int64, closes ...float64) model.PriceSeries {
	s := model.PriceSeries{Symbol: symbol, Bars: make([]model.Bar, len(closes))}
	for i, c := range closes {
		s.Bars[i] = Flat(i, c, volume)
	}
	return s
}

// Constant builds n flat bars at price.
func Constant(symbol string, n int, price float64, volume int64) model.PriceSeries {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = price
	}
	return Closes(symbol, volume, closes...)
}

// Append adds a bar dated the day after the current last bar. Only the
// prices and volume of b are used.
func Append(s model.PriceSeries, b model.Bar) model.PriceSeries {
	b.Date = Day(len(s.Bars))
	s.Bars = append(s.Bars, b)
	return s
}

// Dip builds 20 bars at base, one bar at dip, then a rebound held at
// rebound for the remaining bars, n bars total.
func Dip(symbol string, n int, base, dip, rebound float64) model.PriceSeries {
	closes := make([]float64, n)
	for i := range closes {
		switch {
		case i < 20:
			closes[i] = base
		case i == 20:
			closes[i] = dip
		default:
			closes[i] = rebound
		}
	}
	return Closes(symbol, 1000, closes...)
}

// Breakout builds 61 flat bars at 50 followed by one bar closing at 60 on
// triple volume.
func Breakout(symbol string) model.PriceSeries {
	s := Constant(symbol, 61, 50, 1000)
	return Append(s, OHLC(0, 50, 60, 50, 60, 3000))
}

// Pivot builds bars with high 110, low 90, close 100 followed by a bar that
// breaks below L1 on heavy volume.
func Pivot(symbol string, n int) model.PriceSeries {
	s := model.PriceSeries{Symbol: symbol}
	for i := 0; i < n-1; i++ {
		s.Bars = append(s.Bars, OHLC(i, 100, 110, 90, 100, 1000))
	}
	return Append(s, OHLC(0, 99, 99.5, 97, 98, 3000))
}

// Wave builds a deterministic oscillating series with drifting volume, long
// enough to trigger the bollinger and breakout strategies several times. Its
// volume never spikes far enough above the 10-bar mean for pivot entries;
// use PivotSwings for those.
func Wave(symbol string, n int, phase float64) model.PriceSeries {
	s := model.PriceSeries{Symbol: symbol, Bars: make([]model.Bar, n)}
	prevClose := 100.0
	for i := 0; i < n; i++ {
		x := float64(i) + phase
		c := 100 + 12*math.Sin(x/7) + 6*math.Sin(x/2.3) + 0.05*x
		o := prevClose
		hi := math.Max(o, c) + 1 + math.Abs(math.Sin(x))
		lo := math.Min(o, c) - 1 - math.Abs(math.Cos(x))
		vol := int64(1000 + 900*math.Abs(math.Sin(x/3)))
		s.Bars[i] = OHLC(i, o, hi, lo, c, vol)
		prevClose = c
	}
	return s
}

// PivotSwings builds cycles of 14 bars followed by 6 quiet bars. Each cycle
// is 10 bars with high 110, low 90, close 100 and then:
//
//	+10 breaks below L1 on triple volume, short at 98
//	+11 trades through L3, short covered at 96.5
//	+12 breaks above H1 on triple volume, long at 97.5
//	+13 trades through H3, long sold at 98.2
//
// so every cycle produces one short and one long round trip for the pivot
// strategy with default parameters.
func PivotSwings(symbol string, cycles int) model.PriceSeries {
	s := model.PriceSeries{Symbol: symbol}
	for c := 0; c < cycles; c++ {
		for i := 0; i < 10; i++ {
			s = Append(s, OHLC(0, 100, 110, 90, 100, 1000))
		}
		s = Append(s, OHLC(0, 99, 99.5, 97, 98, 3000))
		s = Append(s, OHLC(0, 97.5, 97.8, 96, 96.5, 1000))
		s = Append(s, OHLC(0, 96.5, 98, 96.4, 97.5, 3000))
		s = Append(s, OHLC(0, 97.6, 98.5, 97.5, 98.2, 1000))
	}
	for i := 0; i < 6; i++ {
		s = Append(s, OHLC(0, 98.2, 98.5, 97.9, 98.2, 1000))
	}
	return s
}
