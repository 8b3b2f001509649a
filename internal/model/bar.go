package model

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// DateLayout is the calendar-date format used for every serialized bar date.
const DateLayout = "2006-01-02"

// Bar represents one trading day of OHLCV data for a single instrument.
// Bars are created by the data source and are read-only to the engine.
type Bar struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// Validate checks price positivity, volume sign and the OHLC envelope
// low <= min(open, close) <= max(open, close) <= high.
func (b *Bar) Validate() error {
	prices := [4]struct {
		name string
		v    float64
	}{{"open", b.Open}, {"high", b.High}, {"low", b.Low}, {"close", b.Close}}
	for _, p := range prices {
		if math.IsNaN(p.v) || math.IsInf(p.v, 0) || p.v <= 0 {
			return &InvalidParameterError{Param: p.name, Reason: fmt.Sprintf("bar %s: price %v must be positive", b.Day(), p.v)}
		}
	}
	if b.Volume < 0 {
		return &InvalidParameterError{Param: "volume", Reason: fmt.Sprintf("bar %s: volume %d is negative", b.Day(), b.Volume)}
	}
	lo, hi := math.Min(b.Open, b.Close), math.Max(b.Open, b.Close)
	if b.Low > lo || hi > b.High {
		return &InvalidParameterError{Param: "ohlc", Reason: fmt.Sprintf("bar %s: low=%v open=%v close=%v high=%v out of envelope",
			b.Day(), b.Low, b.Open, b.Close, b.High)}
	}
	return nil
}

// Day returns the bar date formatted as YYYY-MM-DD.
func (b *Bar) Day() string {
	return b.Date.Format(DateLayout)
}

// JSON returns the JSON-encoded bar (ignoring errors, bars always encode).
func (b *Bar) JSON() []byte {
	data, _ := json.Marshal(b)
	return data
}

// PriceSeries is the chronologically sorted daily history of one instrument.
type PriceSeries struct {
	Symbol string `json:"symbol"`
	Bars   []Bar  `json:"bars"`
}

// Len returns the number of bars.
func (s *PriceSeries) Len() int { return len(s.Bars) }

// First returns the earliest bar. The series must not be empty.
func (s *PriceSeries) First() Bar { return s.Bars[0] }

// Last returns the latest bar. The series must not be empty.
func (s *PriceSeries) Last() Bar { return s.Bars[len(s.Bars)-1] }

// Validate checks every bar and that dates are strictly increasing.
// Loaders are expected to reject malformed data before it reaches the engine,
// so a failure here is reported as an invalid parameter.
func (s *PriceSeries) Validate() error {
	for i := range s.Bars {
		if err := s.Bars[i].Validate(); err != nil {
			return err
		}
		if i > 0 && !s.Bars[i].Date.After(s.Bars[i-1].Date) {
			return &InvalidParameterError{
				Param:  "series",
				Reason: fmt.Sprintf("%s: bar %d (%s) is not after %s", s.Symbol, i, s.Bars[i].Day(), s.Bars[i-1].Day()),
			}
		}
	}
	return nil
}
