package indicator

import (
	"strconv"

	"github.com/montanaflynn/stats"

	"trading-backtest/internal/model"
)

// SMA calculates the simple moving average of a source over a trailing window
// that includes the current bar.
type SMA struct {
	name    string
	src     Source
	win     *Window
	current float64
}

// NewSMA creates a moving average of src over period bars.
func NewSMA(label string, src Source, period int) *SMA {
	return &SMA{
		name: "SMA_" + label + "_" + strconv.Itoa(period),
		src:  src,
		win:  NewWindow(period),
	}
}

func (s *SMA) Name() string { return s.name }

func (s *SMA) Update(bar model.Bar) {
	s.win.Push(s.src(bar))
	if !s.win.Ready() {
		return
	}
	if m, err := stats.Mean(s.win.Values()); err == nil {
		s.current = m
	}
}

func (s *SMA) Value() float64 { return s.current }
func (s *SMA) Ready() bool    { return s.win.Ready() }

// StdDev calculates the rolling sample standard deviation (divisor n-1).
type StdDev struct {
	name    string
	src     Source
	win     *Window
	current float64
}

// NewStdDev creates a sample standard deviation of src over period bars.
// period must be at least 2.
func NewStdDev(label string, src Source, period int) *StdDev {
	return &StdDev{
		name: "STD_" + label + "_" + strconv.Itoa(period),
		src:  src,
		win:  NewWindow(period),
	}
}

func (s *StdDev) Name() string { return s.name }

func (s *StdDev) Update(bar model.Bar) {
	s.win.Push(s.src(bar))
	if !s.win.Ready() {
		return
	}
	if sd, err := stats.StandardDeviationSample(s.win.Values()); err == nil {
		s.current = sd
	}
}

func (s *StdDev) Value() float64 { return s.current }
func (s *StdDev) Ready() bool    { return s.win.Ready() }

// RollingMax tracks the maximum of a source over a trailing window.
type RollingMax struct {
	name    string
	src     Source
	win     *Window
	current float64
}

// NewRollingMax creates a rolling maximum of src over period bars.
func NewRollingMax(label string, src Source, period int) *RollingMax {
	return &RollingMax{
		name: "MAX_" + label + "_" + strconv.Itoa(period),
		src:  src,
		win:  NewWindow(period),
	}
}

func (m *RollingMax) Name() string { return m.name }

func (m *RollingMax) Update(bar model.Bar) {
	m.win.Push(m.src(bar))
	if !m.win.Ready() {
		return
	}
	if v, err := stats.Max(m.win.Values()); err == nil {
		m.current = v
	}
}

func (m *RollingMax) Value() float64 { return m.current }
func (m *RollingMax) Ready() bool    { return m.win.Ready() }
