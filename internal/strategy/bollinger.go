package strategy

import (
	"fmt"

	"trading-backtest/internal/indicator"
	"trading-backtest/internal/model"
)

const BollingerName = "bollinger"

// Bollinger buys when the close crosses back above the lower band and sells
// when it reaches the upper band. Long only.
type Bollinger struct {
	params map[string]float64
	window int
	k      float64
}

// NewBollinger creates the mean-reversion strategy. Parameters: window, k.
func NewBollinger(overrides map[string]float64) (*Bollinger, error) {
	p, err := mergeParams(BollingerName, map[string]float64{"window": 20, "k": 2}, overrides)
	if err != nil {
		return nil, err
	}
	w, err := window("window", p["window"], 2)
	if err != nil {
		return nil, err
	}
	if p["k"] <= 0 {
		return nil, &model.InvalidParameterError{Param: "k", Reason: fmt.Sprintf("must be > 0, got %g", p["k"])}
	}
	return &Bollinger{params: p, window: w, k: p["k"]}, nil
}

func (b *Bollinger) Name() string               { return BollingerName }
func (b *Bollinger) MinBars() int               { return b.window }
func (b *Bollinger) Params() map[string]float64 { return copyParams(b.params) }

func (b *Bollinger) Indicators() indicator.Params {
	p := indicator.DefaultParams()
	p.BollingerWindow = b.window
	p.BollingerK = b.k
	return p
}

func (b *Bollinger) Entry(prev, cur *indicator.Frame) (Signal, bool) {
	if prev == nil || !indicator.AllValid(prev.Lower, cur.Lower) {
		return Signal{}, false
	}
	if prev.Close <= prev.Lower.Value && cur.Close > cur.Lower.Value {
		return Signal{Side: model.SideLong, Reason: "close crossed above lower band"}, true
	}
	return Signal{}, false
}

func (b *Bollinger) Exit(_ model.Position, _, cur *indicator.Frame) (string, bool) {
	if cur.Upper.Valid && cur.Close >= cur.Upper.Value {
		return "close reached upper band", true
	}
	return "", false
}
