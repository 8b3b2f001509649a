package strategy

import (
	"fmt"

	"trading-backtest/internal/indicator"
	"trading-backtest/internal/model"
)

const BreakoutName = "breakout"

// Breakout buys a close above the prior 20-day high when the close is above
// the 20 and 60 day averages on above-average volume. It exits on a fixed
// stop loss, a fixed take profit, or a close under the 10 day average.
type Breakout struct {
	params     map[string]float64
	stopLoss   float64 // percent
	takeProfit float64 // percent
}

// NewBreakout creates the trend breakout strategy. Parameters:
// stop_loss_pct, take_profit_pct.
func NewBreakout(overrides map[string]float64) (*Breakout, error) {
	p, err := mergeParams(BreakoutName, map[string]float64{"stop_loss_pct": 6, "take_profit_pct": 15}, overrides)
	if err != nil {
		return nil, err
	}
	sl, tp := p["stop_loss_pct"], p["take_profit_pct"]
	if sl <= 0 || sl >= 100 {
		return nil, &model.InvalidParameterError{Param: "stop_loss_pct", Reason: fmt.Sprintf("must be in (0, 100), got %g", sl)}
	}
	if tp <= 0 {
		return nil, &model.InvalidParameterError{Param: "take_profit_pct", Reason: fmt.Sprintf("must be > 0, got %g", tp)}
	}
	return &Breakout{params: p, stopLoss: sl, takeProfit: tp}, nil
}

func (b *Breakout) Name() string                 { return BreakoutName }
func (b *Breakout) MinBars() int                 { return indicator.DefaultParams().LongMA }
func (b *Breakout) Indicators() indicator.Params { return indicator.DefaultParams() }
func (b *Breakout) Params() map[string]float64   { return copyParams(b.params) }

// Entry compares against the previous bar's 20-day high; the current bar's
// own high is part of its window and must not set the threshold.
func (b *Breakout) Entry(prev, cur *indicator.Frame) (Signal, bool) {
	if prev == nil || !prev.MA60.Valid {
		return Signal{}, false
	}
	if !indicator.AllValid(cur.MA20, cur.MA60, prev.High20, cur.VolumeMA5) {
		return Signal{}, false
	}
	if cur.Close > cur.MA20.Value &&
		cur.Close > cur.MA60.Value &&
		cur.Close > prev.High20.Value &&
		float64(cur.Volume) > cur.VolumeMA5.Value {
		return Signal{Side: model.SideLong, Reason: "breakout above 20-day high"}, true
	}
	return Signal{}, false
}

func (b *Breakout) Exit(pos model.Position, _, cur *indicator.Frame) (string, bool) {
	switch {
	case cur.Close <= pos.EntryPrice*(1-b.stopLoss/100):
		return fmt.Sprintf("stop loss (-%.1f%%)", b.stopLoss), true
	case cur.Close >= pos.EntryPrice*(1+b.takeProfit/100):
		return fmt.Sprintf("take profit (+%.1f%%)", b.takeProfit), true
	case cur.MA10.Valid && cur.Close < cur.MA10.Value:
		return "below MA10", true
	}
	return "", false
}
