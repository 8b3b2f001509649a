package indicator

import (
	"fmt"

	"trading-backtest/internal/model"
)

// Params holds the window lengths used by Compute.
type Params struct {
	BollingerWindow int
	BollingerK      float64
	FastMA          int // MA10
	TrendMA         int // MA20
	LongMA          int // MA60
	HighWindow      int // High20
	VolumeFast      int // VolumeMA5
	VolumeSlow      int // VolumeMA10
}

// DefaultParams returns the standard daily-bar windows.
func DefaultParams() Params {
	return Params{
		BollingerWindow: 20,
		BollingerK:      2,
		FastMA:          10,
		TrendMA:         20,
		LongMA:          60,
		HighWindow:      20,
		VolumeFast:      5,
		VolumeSlow:      10,
	}
}

// Validate rejects non-positive windows and band widths.
func (p Params) Validate() error {
	windows := []struct {
		name string
		v    int
	}{
		{"bollinger_window", p.BollingerWindow},
		{"fast_ma", p.FastMA},
		{"trend_ma", p.TrendMA},
		{"long_ma", p.LongMA},
		{"high_window", p.HighWindow},
		{"volume_fast", p.VolumeFast},
		{"volume_slow", p.VolumeSlow},
	}
	for _, w := range windows {
		if w.v <= 0 {
			return &model.InvalidParameterError{Param: w.name, Reason: fmt.Sprintf("must be > 0, got %d", w.v)}
		}
	}
	// sample standard deviation needs two points
	if p.BollingerWindow < 2 {
		return &model.InvalidParameterError{Param: "bollinger_window", Reason: fmt.Sprintf("must be >= 2, got %d", p.BollingerWindow)}
	}
	if p.BollingerK <= 0 {
		return &model.InvalidParameterError{Param: "k", Reason: fmt.Sprintf("must be > 0, got %g", p.BollingerK)}
	}
	return nil
}
