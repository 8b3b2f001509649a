package strategy

import (
	"fmt"

	"trading-backtest/internal/indicator"
	"trading-backtest/internal/model"
)

const PivotName = "pivot"

// Pivot trades breaks of the Camarilla H1/L1 levels on heavy volume, in the
// direction confirmed by the central pivot range. Both sides.
type Pivot struct {
	params    map[string]float64
	threshold float64
}

// NewPivot creates the pivot strategy. Parameters: volume_threshold.
func NewPivot(overrides map[string]float64) (*Pivot, error) {
	p, err := mergeParams(PivotName, map[string]float64{"volume_threshold": 1.2}, overrides)
	if err != nil {
		return nil, err
	}
	if p["volume_threshold"] <= 0 {
		return nil, &model.InvalidParameterError{
			Param:  "volume_threshold",
			Reason: fmt.Sprintf("must be > 0, got %g", p["volume_threshold"]),
		}
	}
	return &Pivot{params: p, threshold: p["volume_threshold"]}, nil
}

func (p *Pivot) Name() string                 { return PivotName }
func (p *Pivot) MinBars() int                 { return 20 }
func (p *Pivot) Indicators() indicator.Params { return indicator.DefaultParams() }
func (p *Pivot) Params() map[string]float64   { return copyParams(p.params) }

func (p *Pivot) Entry(_, cur *indicator.Frame) (Signal, bool) {
	if !indicator.AllValid(cur.BC, cur.TC, cur.H1, cur.L1, cur.VolumeMA10) {
		return Signal{}, false
	}
	heavy := float64(cur.Volume) > cur.VolumeMA10.Value*p.threshold
	if !heavy {
		return Signal{}, false
	}
	if cur.Close > cur.BC.Value && cur.High > cur.H1.Value {
		return Signal{Side: model.SideLong, Reason: "break above H1 on volume"}, true
	}
	if cur.Close < cur.TC.Value && cur.Low < cur.L1.Value {
		return Signal{Side: model.SideShort, Reason: "break below L1 on volume"}, true
	}
	return Signal{}, false
}

func (p *Pivot) Exit(pos model.Position, _, cur *indicator.Frame) (string, bool) {
	if !indicator.AllValid(cur.PP, cur.H1, cur.H3, cur.L1, cur.L3) {
		return "", false
	}
	switch pos.Side {
	case model.SideLong:
		switch {
		case cur.High >= cur.H3.Value:
			return "take profit (H3)", true
		case cur.Low <= cur.L1.Value:
			return "stop loss (L1)", true
		case cur.Close < cur.PP.Value:
			return "close below pivot", true
		}
	case model.SideShort:
		switch {
		case cur.Low <= cur.L3.Value:
			return "take profit (L3)", true
		case cur.High >= cur.H1.Value:
			return "stop loss (H1)", true
		case cur.Close > cur.PP.Value:
			return "close above pivot", true
		}
	}
	return "", false
}
