// Package report renders backtest summaries and ledgers as console tables
// and screens batch results.
package report

import (
	"fmt"
	"io"
	"sort"

	"github.com/montanaflynn/stats"
	"github.com/olekukonko/tablewriter"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"trading-backtest/internal/model"
)

// DefaultMinReturnPct is the total return a run needs to count as profitable.
const DefaultMinReturnPct = 10.0

var printer = message.NewPrinter(language.English)

func money(v float64) string { return printer.Sprintf("%.2f", v) }
func pct(v float64) string   { return printer.Sprintf("%.2f%%", v) }

// Profitable returns the summaries with TotalReturnPct >= minReturnPct, best
// first.
func Profitable(summaries []model.Summary, minReturnPct float64) []model.Summary {
	out := make([]model.Summary, 0, len(summaries))
	for _, s := range summaries {
		if s.TotalReturnPct >= minReturnPct {
			out = append(out, s)
		}
	}
	sortByReturn(out)
	return out
}

// TopN returns the n best summaries of strategy. An empty strategy matches
// every run.
func TopN(summaries []model.Summary, strategy string, n int) []model.Summary {
	var out []model.Summary
	for _, s := range summaries {
		if strategy == "" || s.Strategy == strategy {
			out = append(out, s)
		}
	}
	sortByReturn(out)
	if n >= 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func sortByReturn(s []model.Summary) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].TotalReturnPct != s[j].TotalReturnPct {
			return s[i].TotalReturnPct > s[j].TotalReturnPct
		}
		return s[i].RunID < s[j].RunID
	})
}

// StrategyOverview aggregates the runs of one strategy.
type StrategyOverview struct {
	Strategy      string
	Runs          int
	Profitable    int
	AvgReturnPct  float64
	MaxReturnPct  float64
	AvgWinRatePct float64
}

// ByStrategy aggregates summaries per strategy, sorted by strategy name.
func ByStrategy(summaries []model.Summary, minReturnPct float64) []StrategyOverview {
	returns := map[string][]float64{}
	winRates := map[string][]float64{}
	profitable := map[string]int{}
	for _, s := range summaries {
		returns[s.Strategy] = append(returns[s.Strategy], s.TotalReturnPct)
		winRates[s.Strategy] = append(winRates[s.Strategy], s.WinRatePct)
		if s.TotalReturnPct >= minReturnPct {
			profitable[s.Strategy]++
		}
	}

	out := make([]StrategyOverview, 0, len(returns))
	for name, rs := range returns {
		avg, _ := stats.Mean(rs)
		hi, _ := stats.Max(rs)
		wr, _ := stats.Mean(winRates[name])
		out = append(out, StrategyOverview{
			Strategy:      name,
			Runs:          len(rs),
			Profitable:    profitable[name],
			AvgReturnPct:  avg,
			MaxReturnPct:  hi,
			AvgWinRatePct: wr,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Strategy < out[j].Strategy })
	return out
}

func newTable(w io.Writer, header []string) *tablewriter.Table {
	table := tablewriter.NewWriter(w)
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	return table
}

// RenderSummaries writes one row per run.
func RenderSummaries(w io.Writer, summaries []model.Summary) {
	table := newTable(w, []string{"Symbol", "Strategy", "Final", "Return", "Buy&Hold", "Trades", "Win rate", "Avg trade", "Max DD"})
	for _, s := range summaries {
		table.Append([]string{
			s.Symbol,
			s.Strategy,
			money(s.FinalCapital),
			pct(s.TotalReturnPct),
			pct(s.BuyHoldReturnPct),
			fmt.Sprintf("%d", s.NumTrades),
			pct(s.WinRatePct),
			pct(s.AvgReturnPct),
			pct(s.MaxDrawdownPct),
		})
	}
	table.Render()
}

// RenderTrades writes the ledger of one run.
func RenderTrades(w io.Writer, res *model.BacktestResult) {
	table := newTable(w, []string{"Date", "Action", "Price", "Qty", "Cash", "Return", "PnL", "Reason"})
	for _, ev := range res.Trades {
		ret, pnl := "", ""
		if ev.ReturnPct != nil {
			ret = pct(*ev.ReturnPct)
		}
		if ev.PnL.Valid {
			pnl = money(ev.PnL.Decimal.InexactFloat64())
		}
		table.Append([]string{
			ev.Date.Format(model.DateLayout),
			string(ev.Action),
			money(ev.Price),
			printer.Sprintf("%d", ev.Quantity),
			money(ev.CashAfter.InexactFloat64()),
			ret,
			pnl,
			ev.Reason,
		})
	}
	table.Render()
}

// RenderRanking writes a leaderboard, best first.
func RenderRanking(w io.Writer, ranking []model.Ranking) {
	table := newTable(w, []string{"#", "Run", "Return"})
	for i, r := range ranking {
		table.Append([]string{fmt.Sprintf("%d", i+1), r.RunID, pct(r.TotalReturnPct)})
	}
	table.Render()
}

// RenderOverview writes one row per strategy.
func RenderOverview(w io.Writer, overviews []StrategyOverview) {
	table := newTable(w, []string{"Strategy", "Runs", "Profitable", "Avg return", "Max return", "Avg win rate"})
	for _, o := range overviews {
		share := 0.0
		if o.Runs > 0 {
			share = float64(o.Profitable) / float64(o.Runs) * 100
		}
		table.Append([]string{
			o.Strategy,
			fmt.Sprintf("%d", o.Runs),
			fmt.Sprintf("%d (%.1f%%)", o.Profitable, share),
			pct(o.AvgReturnPct),
			pct(o.MaxReturnPct),
			pct(o.AvgWinRatePct),
		})
	}
	table.Render()
}
