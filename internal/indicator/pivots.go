package indicator

import "trading-backtest/internal/model"

// camarillaDivisors are the range divisors for levels 1..4.
var camarillaDivisors = [4]float64{12, 6, 4, 2}

const camarillaFactor = 1.1

// Pivots holds the central pivot range and Camarilla levels derived from one
// prior bar.
type Pivots struct {
	PP, BC, TC float64
	H          [4]float64 // H1..H4
	L          [4]float64 // L1..L4
}

// PivotsFrom computes the levels that apply to the bar after prev.
func PivotsFrom(prev model.Bar) Pivots {
	h, l, c := prev.High, prev.Low, prev.Close

	var p Pivots
	p.PP = (h + l + c) / 3
	p.BC = (h + l) / 2
	p.TC = 2*p.PP - p.BC

	rng := h - l
	for i, d := range camarillaDivisors {
		step := rng * camarillaFactor / d
		p.H[i] = c + step
		p.L[i] = c - step
	}
	return p
}
