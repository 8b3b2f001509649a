package model_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-backtest/internal/model"
)

func day(i int) time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i) }

func TestBar_Validate(t *testing.T) {
	ok := model.Bar{Date: day(0), Open: 10, High: 12, Low: 9, Close: 11, Volume: 0}
	require.NoError(t, ok.Validate())

	tests := map[string]func(b *model.Bar){
		"zero open":      func(b *model.Bar) { b.Open = 0 },
		"nan close":      func(b *model.Bar) { b.Close = math.NaN() },
		"inf high":       func(b *model.Bar) { b.High = math.Inf(1) },
		"negative vol":   func(b *model.Bar) { b.Volume = -1 },
		"high below max": func(b *model.Bar) { b.High = 10.5 },
		"low above min":  func(b *model.Bar) { b.Low = 10.5 },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			b := ok
			mutate(&b)
			err := b.Validate()
			assert.ErrorIs(t, err, model.ErrInvalidParameter)
		})
	}
}

func TestPriceSeries_Validate(t *testing.T) {
	bar := func(i int) model.Bar { return model.Bar{Date: day(i), Open: 1, High: 1, Low: 1, Close: 1} }

	s := model.PriceSeries{Symbol: "X", Bars: []model.Bar{bar(0), bar(1), bar(3)}}
	assert.NoError(t, s.Validate())
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, day(3), s.Last().Date)

	dup := model.PriceSeries{Symbol: "X", Bars: []model.Bar{bar(0), bar(1), bar(1)}}
	assert.ErrorIs(t, dup.Validate(), model.ErrInvalidParameter)

	unsorted := model.PriceSeries{Symbol: "X", Bars: []model.Bar{bar(2), bar(1)}}
	assert.Error(t, unsorted.Validate())
}

func TestPosition_MarkToMarket(t *testing.T) {
	long := model.Position{Side: model.SideLong, EntryPrice: 100, Quantity: 10}
	assert.True(t, long.MarkToMarket(110).Equal(decimal.NewFromInt(1100)))
	assert.True(t, long.UnrealizedPnL(110).Equal(decimal.NewFromInt(100)))

	short := model.Position{Side: model.SideShort, EntryPrice: 100, Quantity: 10}
	assert.True(t, short.MarkToMarket(90).Equal(decimal.NewFromInt(1100)))
	assert.True(t, short.MarkToMarket(110).Equal(decimal.NewFromInt(900)))
	assert.True(t, short.UnrealizedPnL(110).Equal(decimal.NewFromInt(-100)))

	flat := model.Position{Side: model.SideFlat}
	assert.True(t, flat.IsFlat())
	assert.True(t, flat.MarkToMarket(50).IsZero())
	assert.True(t, model.Position{}.IsFlat())
}

func TestActions(t *testing.T) {
	assert.Equal(t, model.ActionOpenShort, model.OpenAction(model.SideShort))
	assert.Equal(t, model.ActionCloseLong, model.CloseAction(model.SideLong))
	assert.True(t, model.ActionForcedClose.IsClose())
	assert.False(t, model.ActionOpenLong.IsClose())
}

func TestParsePeriod(t *testing.T) {
	for in, want := range map[string]int{"": 0, "all": 0, "1y": 365, "2Y": 730, " 3y ": 1095, "5y": 1825} {
		got, err := model.ParsePeriod(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := model.ParsePeriod("6m")
	var pe *model.InvalidParameterError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, "period", pe.Param)
}

func TestPriceSeries_Trailing(t *testing.T) {
	s := model.PriceSeries{Symbol: "X"}
	for i := 0; i < 400; i++ {
		s.Bars = append(s.Bars, model.Bar{Date: day(i), Open: 1, High: 1, Low: 1, Close: 1})
	}

	got := s.Trailing(365)
	require.Len(t, got.Bars, 366) // cutoff day included
	assert.Equal(t, day(34), got.Bars[0].Date)
	assert.Equal(t, "X", got.Symbol)

	assert.Len(t, s.Trailing(0).Bars, 400)
	assert.Len(t, s.Trailing(5000).Bars, 400)
	assert.Len(t, s.Bars, 400)
}

func TestErrors(t *testing.T) {
	err := error(&model.InsufficientDataError{Symbol: "X", Have: 3, Need: 20})
	assert.ErrorIs(t, err, model.ErrInsufficientData)
	assert.Contains(t, err.Error(), "have 3 bars, need 20")
	assert.ErrorIs(t, &model.InternalConsistencyError{Reason: "x"}, model.ErrInternalConsistency)
}
