package indicator

import (
	"trading-backtest/internal/model"
)

// Frame is one bar together with every level derived from bars 0..Index.
type Frame struct {
	model.Bar
	Index int

	// Bollinger
	Mid, Upper, Lower Level

	// Trend
	MA10, MA20, MA60 Level
	High20           Level
	VolumeMA5        Level
	VolumeMA10       Level

	// Pivots from the previous bar; undefined on the first bar.
	PP, BC, TC     Level
	H1, H2, H3, H4 Level
	L1, L2, L3, L4 Level
}

// Engine computes all frame levels for a single series.
// Designed for single-goroutine usage: one Engine per run.
type Engine struct {
	params Params

	mid    *SMA
	std    *StdDev
	ma10   *SMA
	ma20   *SMA
	ma60   *SMA
	high20 *RollingMax
	vol5   *SMA
	vol10  *SMA

	prev    model.Bar
	hasPrev bool
	index   int
}

// NewEngine creates an engine. The params must already be validated.
func NewEngine(p Params) *Engine {
	return &Engine{
		params: p,
		mid:    NewSMA("CLOSE", Close, p.BollingerWindow),
		std:    NewStdDev("CLOSE", Close, p.BollingerWindow),
		ma10:   NewSMA("CLOSE", Close, p.FastMA),
		ma20:   NewSMA("CLOSE", Close, p.TrendMA),
		ma60:   NewSMA("CLOSE", Close, p.LongMA),
		high20: NewRollingMax("HIGH", High, p.HighWindow),
		vol5:   NewSMA("VOLUME", Volume, p.VolumeFast),
		vol10:  NewSMA("VOLUME", Volume, p.VolumeSlow),
	}
}

// Process feeds the next bar and returns its frame.
func (e *Engine) Process(bar model.Bar) Frame {
	for _, ind := range e.indicators() {
		ind.Update(bar)
	}

	f := Frame{
		Bar:        bar,
		Index:      e.index,
		Mid:        Of(e.mid),
		MA10:       Of(e.ma10),
		MA20:       Of(e.ma20),
		MA60:       Of(e.ma60),
		High20:     Of(e.high20),
		VolumeMA5:  Of(e.vol5),
		VolumeMA10: Of(e.vol10),
	}
	if f.Mid.Valid && e.std.Ready() {
		width := e.params.BollingerK * e.std.Value()
		f.Upper = Level{Value: f.Mid.Value + width, Valid: true}
		f.Lower = Level{Value: f.Mid.Value - width, Valid: true}
	}
	if e.hasPrev {
		p := PivotsFrom(e.prev)
		f.PP = defined(p.PP)
		f.BC = defined(p.BC)
		f.TC = defined(p.TC)
		f.H1, f.H2, f.H3, f.H4 = defined(p.H[0]), defined(p.H[1]), defined(p.H[2]), defined(p.H[3])
		f.L1, f.L2, f.L3, f.L4 = defined(p.L[0]), defined(p.L[1]), defined(p.L[2]), defined(p.L[3])
	}

	e.prev = bar
	e.hasPrev = true
	e.index++
	return f
}

func (e *Engine) indicators() []Indicator {
	return []Indicator{e.mid, e.std, e.ma10, e.ma20, e.ma60, e.high20, e.vol5, e.vol10}
}

// Compute returns one frame per bar of series. A level at index i depends
// only on bars 0..i.
func Compute(series model.PriceSeries, p Params) ([]Frame, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	e := NewEngine(p)
	frames := make([]Frame, len(series.Bars))
	for i, bar := range series.Bars {
		frames[i] = e.Process(bar)
	}
	return frames, nil
}

func defined(v float64) Level { return Level{Value: v, Valid: true} }
