package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-backtest/internal/model"
	"trading-backtest/internal/testutil"
)

var summaries = []model.Summary{
	{RunID: "a", Symbol: "AAA", Strategy: "bollinger", TotalReturnPct: 12, WinRatePct: 50, FinalCapital: 112000},
	{RunID: "b", Symbol: "BBB", Strategy: "bollinger", TotalReturnPct: -4, WinRatePct: 0, FinalCapital: 96000},
	{RunID: "c", Symbol: "CCC", Strategy: "pivot", TotalReturnPct: 10, WinRatePct: 100, FinalCapital: 110000},
	{RunID: "d", Symbol: "DDD", Strategy: "pivot", TotalReturnPct: 30, WinRatePct: 60, FinalCapital: 130000},
}

func symbols(ss []model.Summary) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = s.Symbol
	}
	return out
}

func TestProfitable(t *testing.T) {
	got := Profitable(summaries, DefaultMinReturnPct)
	assert.Equal(t, []string{"DDD", "AAA", "CCC"}, symbols(got))
	assert.Empty(t, Profitable(summaries, 50))
}

func TestTopN(t *testing.T) {
	assert.Equal(t, []string{"DDD"}, symbols(TopN(summaries, "pivot", 1)))
	assert.Equal(t, []string{"AAA", "BBB"}, symbols(TopN(summaries, "bollinger", 5)))
	assert.Equal(t, []string{"DDD", "AAA", "CCC", "BBB"}, symbols(TopN(summaries, "", -1)))
}

func TestByStrategy(t *testing.T) {
	got := ByStrategy(summaries, DefaultMinReturnPct)
	require.Len(t, got, 2)

	assert.Equal(t, StrategyOverview{
		Strategy: "bollinger", Runs: 2, Profitable: 1, AvgReturnPct: 4, MaxReturnPct: 12, AvgWinRatePct: 25,
	}, got[0])
	assert.Equal(t, "pivot", got[1].Strategy)
	assert.Equal(t, 2, got[1].Profitable)
	assert.Equal(t, 20.0, got[1].AvgReturnPct)
}

func TestRenderSummaries(t *testing.T) {
	var buf bytes.Buffer
	RenderSummaries(&buf, summaries[:1])
	out := buf.String()
	assert.Contains(t, out, "Symbol")
	assert.Contains(t, out, "AAA")
	assert.Contains(t, out, "112,000.00")
	assert.Contains(t, out, "12.00%")
}

func TestRenderTrades(t *testing.T) {
	ret := 15.78
	res := &model.BacktestResult{Trades: []model.TradeEvent{
		{Date: testutil.Day(21), Action: model.ActionOpenLong, Price: 95, Quantity: 1052,
			CashAfter: decimal.NewFromInt(60), Reason: "close crossed above lower band"},
		{Date: testutil.Day(22), Action: model.ActionCloseLong, Price: 110, Quantity: 1052,
			CashAfter: decimal.NewFromInt(115780), Reason: "close reached upper band", ReturnPct: &ret,
			PnL: decimal.NewNullDecimal(decimal.NewFromInt(15780))},
	}}
	var buf bytes.Buffer
	RenderTrades(&buf, res)
	out := buf.String()
	assert.Contains(t, out, "2024-01-22")
	assert.Contains(t, out, "1,052")
	assert.Contains(t, out, "115,780.00")
	assert.Contains(t, out, "15,780.00")
	assert.Contains(t, out, "close reached upper band")
}

func TestRenderOverview(t *testing.T) {
	var buf bytes.Buffer
	RenderOverview(&buf, ByStrategy(summaries, DefaultMinReturnPct))
	assert.Contains(t, buf.String(), "1 (50.0%)")
	assert.Contains(t, buf.String(), "2 (100.0%)")
}

func TestRenderRanking(t *testing.T) {
	var buf bytes.Buffer
	RenderRanking(&buf, []model.Ranking{
		{RunID: "DDD-pivot-20240301-0a1b2c3d", TotalReturnPct: 30},
		{RunID: "CCC-pivot-20240301-4e5f6a7b", TotalReturnPct: 1234.5},
	})
	out := buf.String()
	assert.Contains(t, out, "DDD-pivot-20240301-0a1b2c3d")
	assert.Contains(t, out, "1,234.50%")
	assert.Less(t, strings.Index(out, "DDD"), strings.Index(out, "CCC"))
}
