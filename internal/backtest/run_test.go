package backtest

import (
	"context"
	"reflect"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-backtest/internal/model"
	"trading-backtest/internal/strategy"
	"trading-backtest/internal/testutil"
)

func mustStrategy(t *testing.T, name string, overrides map[string]float64) strategy.Strategy {
	t.Helper()
	s, err := strategy.DefaultRegistry().New(name, overrides)
	require.NoError(t, err)
	return s
}

func actions(events []model.TradeEvent) []model.Action {
	out := make([]model.Action, len(events))
	for i, ev := range events {
		out[i] = ev.Action
	}
	return out
}

// ────────────────────────────────────────────────────────────
// Scenarios
// ────────────────────────────────────────────────────────────

func TestRun_BollingerDipForcedClose(t *testing.T) {
	series := testutil.Dip("AAA", 25, 100, 90, 95)
	res, err := Run(context.Background(), series, mustStrategy(t, strategy.BollingerName, nil), 100000)
	require.NoError(t, err)

	require.Equal(t, []model.Action{model.ActionOpenLong, model.ActionForcedClose}, actions(res.Trades))

	open, closed := res.Trades[0], res.Trades[1]
	assert.Equal(t, testutil.Day(21), open.Date)
	assert.Equal(t, 95.0, open.Price)
	assert.Equal(t, int64(1052), open.Quantity)
	assert.Equal(t, testutil.Day(24), closed.Date)
	assert.Equal(t, ForcedCloseReason, closed.Reason)
	assert.Equal(t, 95.0, closed.Price)

	assert.True(t, decimal.NewFromInt(100000).Equal(res.FinalCapital))
	assert.Len(t, res.Curve, 25)
	assert.Equal(t, 1, res.Stats.NumTrades)
}

func TestRun_BollingerExitAtUpperBand(t *testing.T) {
	closes := make([]float64, 0, 24)
	for i := 0; i < 20; i++ {
		closes = append(closes, 100)
	}
	closes = append(closes, 90, 95, 110, 110)
	series := testutil.Closes("AAA", 1000, closes...)

	res, err := Run(context.Background(), series, mustStrategy(t, strategy.BollingerName, nil), 100000)
	require.NoError(t, err)

	require.Equal(t, []model.Action{model.ActionOpenLong, model.ActionCloseLong}, actions(res.Trades))
	closed := res.Trades[1]
	assert.Equal(t, testutil.Day(22), closed.Date)
	assert.Equal(t, "close reached upper band", closed.Reason)
	assert.True(t, decimal.NewFromInt(15780).Equal(closed.PnL.Decimal))
	assert.True(t, decimal.NewFromInt(115780).Equal(res.FinalCapital))
	assert.InDelta(t, 15.78, res.TotalReturnPct, 1e-9)
	assert.InDelta(t, 10.0, res.BuyHoldReturnPct, 1e-9)
	assert.Equal(t, 1, res.Stats.Wins)
}

func TestRun_BreakoutOnLastBar(t *testing.T) {
	series := testutil.Breakout("AAA")
	res, err := Run(context.Background(), series, mustStrategy(t, strategy.BreakoutName, nil), 100000)
	require.NoError(t, err)

	require.Equal(t, []model.Action{model.ActionOpenLong, model.ActionForcedClose}, actions(res.Trades))
	assert.Equal(t, testutil.Day(61), res.Trades[0].Date)
	assert.Equal(t, 60.0, res.Trades[0].Price)
	// the forced close shares the final date with the open
	assert.Equal(t, testutil.Day(61), res.Trades[1].Date)
}

func TestRun_CapitalBelowOneUnit(t *testing.T) {
	series := testutil.Dip("BIG", 25, 1000000, 900000, 950000)
	res, err := Run(context.Background(), series, mustStrategy(t, strategy.BollingerName, nil), 100000)
	require.NoError(t, err)

	assert.Empty(t, res.Trades)
	assert.True(t, decimal.NewFromInt(100000).Equal(res.FinalCapital))
	for _, pt := range res.Curve {
		assert.True(t, decimal.NewFromInt(100000).Equal(pt.Value))
		assert.Equal(t, model.SideFlat, pt.Side)
	}
}

func TestRun_PivotShort(t *testing.T) {
	series := testutil.Pivot("AAA", 20)
	res, err := Run(context.Background(), series, mustStrategy(t, strategy.PivotName, nil), 100000)
	require.NoError(t, err)

	require.Equal(t, []model.Action{model.ActionOpenShort, model.ActionForcedClose}, actions(res.Trades))
	assert.Equal(t, model.SideShort, res.Trades[0].Side)
	assert.Equal(t, 98.0, res.Trades[0].Price)
	assert.Equal(t, int64(1020), res.Trades[0].Quantity)
	assert.Equal(t, model.SideShort, res.Trades[1].Side)
	assert.Equal(t, model.SideShort, res.Curve[19].Side)
}

func TestRun_PivotRoundTrips(t *testing.T) {
	series := testutil.PivotSwings("AAA", 1)
	res, err := Run(context.Background(), series, mustStrategy(t, strategy.PivotName, nil), 100000)
	require.NoError(t, err)

	require.Equal(t, []model.Action{
		model.ActionOpenShort, model.ActionCloseShort,
		model.ActionOpenLong, model.ActionCloseLong,
	}, actions(res.Trades))

	short, cover := res.Trades[0], res.Trades[1]
	assert.Equal(t, testutil.Day(10), short.Date)
	assert.Equal(t, 98.0, short.Price)
	assert.Equal(t, int64(1020), short.Quantity)
	assert.True(t, decimal.NewFromInt(40).Equal(short.CashAfter), short.CashAfter.String())

	// cover adds back q*entry + q*(entry - close)
	assert.Equal(t, testutil.Day(11), cover.Date)
	assert.Equal(t, "take profit (L3)", cover.Reason)
	assert.Equal(t, 96.5, cover.Price)
	want := decimal.NewFromInt(40).
		Add(decimal.NewFromInt(1020 * 98)).
		Add(decimal.NewFromInt(1020).Mul(decimal.RequireFromString("1.5")))
	assert.True(t, want.Equal(cover.CashAfter), cover.CashAfter.String())
	assert.True(t, decimal.NewFromInt(1530).Equal(cover.PnL.Decimal))
	require.NotNil(t, cover.ReturnPct)
	assert.InDelta(t, 1.5/98*100, *cover.ReturnPct, 1e-9)

	long, sell := res.Trades[2], res.Trades[3]
	assert.Equal(t, testutil.Day(12), long.Date)
	assert.Equal(t, int64(1041), long.Quantity)
	assert.Equal(t, testutil.Day(13), sell.Date)
	assert.Equal(t, "take profit (H3)", sell.Reason)
	assert.True(t, decimal.RequireFromString("728.7").Equal(sell.PnL.Decimal), sell.PnL.Decimal.String())

	assert.True(t, decimal.RequireFromString("102258.7").Equal(res.FinalCapital), res.FinalCapital.String())
	assert.Equal(t, 2, res.Stats.Wins)
	assert.Equal(t, model.SideFlat, res.Curve[len(res.Curve)-1].Side)
}

// ────────────────────────────────────────────────────────────
// Properties
// ────────────────────────────────────────────────────────────

func TestRun_Invariants(t *testing.T) {
	warmup := map[string]int{
		strategy.BollingerName: 20,
		strategy.BreakoutName:  60,
		strategy.PivotName:     9,
	}
	waves := []model.PriceSeries{
		testutil.Wave("WAVE", 300, 0),
		testutil.Wave("WAVE", 300, 3.5),
		testutil.Wave("WAVE", 300, 11),
	}
	fixtures := map[string][]model.PriceSeries{
		strategy.BollingerName: waves,
		strategy.BreakoutName:  waves,
		strategy.PivotName: {
			testutil.PivotSwings("SWING", 1),
			testutil.PivotSwings("SWING", 3),
			testutil.PivotSwings("SWING", 8),
		},
	}
	for _, name := range strategy.DefaultRegistry().List() {
		require.NotEmpty(t, fixtures[name], "%s: no fixtures", name)
		for _, series := range fixtures[name] {
			res, err := Run(context.Background(), series, mustStrategy(t, name, nil), 50000)
			require.NoError(t, err, name)
			require.NotEmpty(t, res.Trades, "%s: fixture produced no trades", name)

			// capital conservation
			realized := decimal.Zero
			for _, ev := range res.Trades {
				if ev.IsClose() {
					realized = realized.Add(ev.PnL.Decimal)
				}
			}
			assert.True(t, res.InitialCapital.Add(realized).Equal(res.FinalCapital), "%s: conservation", name)
			assert.True(t, res.Curve[len(res.Curve)-1].Value.Equal(res.FinalCapital), "%s: last snapshot", name)

			// single position, alternating open/close, forced liquidation
			require.Zero(t, len(res.Trades)%2, "%s: unbalanced ledger", name)
			for i, ev := range res.Trades {
				assert.Equal(t, i%2 == 0, ev.Action.IsOpen(), "%s: event %d", name, i)
				assert.False(t, ev.CashAfter.IsNegative() && ev.Action.IsOpen(), "%s: negative cash on open", name)

				// no trade before warm-up
				assert.False(t, ev.Date.Before(testutil.Day(warmup[name])), "%s: trade at %s", name, ev.Date)
			}
			if n := len(res.Trades); n > 0 && res.Trades[n-1].Action == model.ActionForcedClose {
				assert.Equal(t, series.Last().Date, res.Trades[n-1].Date)
				assert.Equal(t, series.Last().Close, res.Trades[n-1].Price)
			}

			assert.Len(t, res.Curve, len(series.Bars))
			assert.Equal(t, res.Stats.NumTrades, len(res.Trades)/2)
		}
	}
}

func TestRun_Deterministic(t *testing.T) {
	series := testutil.Wave("WAVE", 250, 1)
	for _, name := range strategy.DefaultRegistry().List() {
		strat := mustStrategy(t, name, nil)
		a, err := Run(context.Background(), series, strat, 100000)
		require.NoError(t, err)
		b, err := Run(context.Background(), series, strat, 100000)
		require.NoError(t, err)

		assert.True(t, reflect.DeepEqual(a, b), "%s: results differ", name)
		assert.Equal(t, a.RunID, b.RunID)
	}
}

func TestRun_RunIDCoversCapitalAndWindow(t *testing.T) {
	series := testutil.Wave("WAVE", 300, 0)
	strat := mustStrategy(t, strategy.BollingerName, nil)

	full, err := Run(context.Background(), series, strat, 100000)
	require.NoError(t, err)
	small, err := Run(context.Background(), series, strat, 5000)
	require.NoError(t, err)
	trailing, err := Run(context.Background(), series.Trailing(120), strat, 100000)
	require.NoError(t, err)

	// all three end on the same bar with the same params
	assert.NotEqual(t, full.RunID, small.RunID)
	assert.NotEqual(t, full.RunID, trailing.RunID)
	assert.NotEqual(t, small.RunID, trailing.RunID)
}

func TestRun_InputUnchanged(t *testing.T) {
	series := testutil.Wave("WAVE", 120, 0)
	before := make([]model.Bar, len(series.Bars))
	copy(before, series.Bars)

	_, err := Run(context.Background(), series, mustStrategy(t, strategy.PivotName, nil), 100000)
	require.NoError(t, err)
	assert.Equal(t, before, series.Bars)
}

// ────────────────────────────────────────────────────────────
// Errors
// ────────────────────────────────────────────────────────────

func TestRun_InsufficientData(t *testing.T) {
	tests := []struct {
		name string
		bars int
		need int
	}{
		{strategy.BollingerName, 19, 20},
		{strategy.BreakoutName, 59, 60},
		{strategy.PivotName, 0, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			series := testutil.Constant("AAA", tt.bars, 100, 1000)
			res, err := Run(context.Background(), series, mustStrategy(t, tt.name, nil), 100000)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, model.ErrInsufficientData)

			var ide *model.InsufficientDataError
			require.ErrorAs(t, err, &ide)
			assert.Equal(t, tt.bars, ide.Have)
			assert.Equal(t, tt.need, ide.Need)
		})
	}
}

func TestRun_InvalidCapital(t *testing.T) {
	series := testutil.Constant("AAA", 30, 100, 1000)
	for _, c := range []float64{0, -1} {
		_, err := Run(context.Background(), series, mustStrategy(t, strategy.BollingerName, nil), c)
		assert.ErrorIs(t, err, model.ErrInvalidParameter, "capital %v", c)
	}
}

func TestRun_InvalidSeries(t *testing.T) {
	series := testutil.Constant("AAA", 30, 100, 1000)
	series.Bars[10].Date = series.Bars[9].Date

	_, err := Run(context.Background(), series, mustStrategy(t, strategy.BollingerName, nil), 100000)
	assert.ErrorIs(t, err, model.ErrInvalidParameter)
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Run(ctx, testutil.Constant("AAA", 30, 100, 1000), mustStrategy(t, strategy.BollingerName, nil), 100000)
	assert.ErrorIs(t, err, context.Canceled)
}
