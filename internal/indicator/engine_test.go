package indicator

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-backtest/internal/model"
	"trading-backtest/internal/testutil"
)

func TestCompute_WarmUp(t *testing.T) {
	series := testutil.Constant("AAA", 70, 100, 500)
	frames, err := Compute(series, DefaultParams())
	require.NoError(t, err)
	require.Len(t, frames, 70)

	for i, f := range frames {
		assert.Equal(t, i, f.Index)
		assert.Equal(t, i >= 19, f.Mid.Valid, "mid at %d", i)
		assert.Equal(t, i >= 19, f.Lower.Valid, "lower at %d", i)
		assert.Equal(t, i >= 9, f.MA10.Valid, "ma10 at %d", i)
		assert.Equal(t, i >= 59, f.MA60.Valid, "ma60 at %d", i)
		assert.Equal(t, i >= 4, f.VolumeMA5.Valid, "vol5 at %d", i)
		assert.Equal(t, i >= 9, f.VolumeMA10.Valid, "vol10 at %d", i)
		assert.Equal(t, i >= 1, f.PP.Valid, "pp at %d", i)
		assert.Equal(t, i >= 1, f.L4.Valid, "l4 at %d", i)
	}
}

func TestCompute_BandMonotonicity(t *testing.T) {
	closes := make([]float64, 80)
	for i := range closes {
		closes[i] = 100 + float64((i*7)%13) - float64((i*3)%5)
	}
	frames, err := Compute(testutil.Closes("AAA", 1000, closes...), DefaultParams())
	require.NoError(t, err)

	for _, f := range frames {
		if !f.Mid.Valid {
			continue
		}
		assert.LessOrEqual(t, f.Lower.Value, f.Mid.Value)
		assert.LessOrEqual(t, f.Mid.Value, f.Upper.Value)
	}
}

func TestCompute_BollingerDip(t *testing.T) {
	frames, err := Compute(testutil.Dip("AAA", 25, 100, 90, 95), DefaultParams())
	require.NoError(t, err)

	// flat window: zero width
	assert.InDelta(t, 100.0, frames[19].Lower.Value, 1e-9)
	assert.InDelta(t, 100.0, frames[19].Upper.Value, 1e-9)

	assert.InDelta(t, 99.5, frames[20].Mid.Value, 1e-9)
	assert.InDelta(t, 95.028, frames[20].Lower.Value, 0.001)

	assert.InDelta(t, 99.25, frames[21].Mid.Value, 1e-9)
	assert.InDelta(t, 94.356, frames[21].Lower.Value, 0.001)
}

func TestCompute_IsCausal(t *testing.T) {
	series := testutil.Breakout("AAA")
	full, err := Compute(series, DefaultParams())
	require.NoError(t, err)

	truncated := model.PriceSeries{Symbol: "AAA", Bars: series.Bars[:61]}
	head, err := Compute(truncated, DefaultParams())
	require.NoError(t, err)

	assert.Equal(t, head, full[:61])
	// the breakout bar's own high is in its window but not the previous one
	assert.InDelta(t, 50.0, full[60].High20.Value, 1e-9)
	assert.InDelta(t, 60.0, full[61].High20.Value, 1e-9)
}

func TestCompute_PivotLevelsUsePreviousBar(t *testing.T) {
	frames, err := Compute(testutil.Pivot("AAA", 20), DefaultParams())
	require.NoError(t, err)

	last := frames[19]
	assert.InDelta(t, 100.0, last.PP.Value, 1e-9)
	assert.InDelta(t, 101.83, last.H1.Value, 0.01)
	assert.InDelta(t, 98.17, last.L1.Value, 0.01)
	assert.InDelta(t, 1200.0, last.VolumeMA10.Value, 1e-9)
}

func TestParams_Validate(t *testing.T) {
	tests := []struct {
		name  string
		mod   func(*Params)
		param string
	}{
		{"zero window", func(p *Params) { p.BollingerWindow = 0 }, "bollinger_window"},
		{"single point window", func(p *Params) { p.BollingerWindow = 1 }, "bollinger_window"},
		{"negative k", func(p *Params) { p.BollingerK = -1 }, "k"},
		{"zero long ma", func(p *Params) { p.LongMA = 0 }, "long_ma"},
		{"negative volume window", func(p *Params) { p.VolumeSlow = -5 }, "volume_slow"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := DefaultParams()
			tt.mod(&p)
			err := p.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, model.ErrInvalidParameter))

			var ipe *model.InvalidParameterError
			require.ErrorAs(t, err, &ipe)
			assert.Equal(t, tt.param, ipe.Param)

			_, err = Compute(testutil.Constant("AAA", 5, 10, 1), p)
			assert.ErrorIs(t, err, model.ErrInvalidParameter)
		})
	}

	assert.NoError(t, DefaultParams().Validate())
}
