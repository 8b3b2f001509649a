package portfolio

import (
	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"

	"trading-backtest/internal/model"
)

// ComputeStats derives trade and curve statistics. Only close events count as
// trades; a run with no closed trades has zero trade statistics.
func ComputeStats(events []model.TradeEvent, curve []model.PortfolioSnapshot) model.Stats {
	var s model.Stats
	var returns []float64
	profit, loss := decimal.Zero, decimal.Zero
	for _, ev := range events {
		if !ev.IsClose() || ev.ReturnPct == nil {
			continue
		}
		returns = append(returns, *ev.ReturnPct)
		switch pnl := ev.PnL.Decimal; {
		case pnl.IsPositive():
			s.Wins++
			profit = profit.Add(pnl)
		case pnl.IsNegative():
			s.Losses++
			loss = loss.Add(pnl.Abs())
		}
	}

	s.NumTrades = len(returns)
	s.MaxDrawdownPct = MaxDrawdownPct(curve)
	if s.NumTrades == 0 {
		return s
	}

	s.WinRatePct = float64(s.Wins) / float64(s.NumTrades) * 100
	s.AvgReturnPct, _ = stats.Mean(returns)
	s.MaxReturnPct, _ = stats.Max(returns)
	s.MinReturnPct, _ = stats.Min(returns)
	if loss.IsPositive() {
		s.ProfitFactor = profit.Div(loss).InexactFloat64()
	}
	return s
}

// MaxDrawdownPct returns the largest peak-to-trough fall of the curve as a
// percentage of the peak.
func MaxDrawdownPct(curve []model.PortfolioSnapshot) float64 {
	if len(curve) == 0 {
		return 0
	}
	hundred := decimal.NewFromInt(100)
	peak := curve[0].Value
	maxDD := decimal.Zero
	for _, pt := range curve {
		if pt.Value.GreaterThan(peak) {
			peak = pt.Value
		}
		if !peak.IsPositive() {
			continue
		}
		dd := peak.Sub(pt.Value).Div(peak).Mul(hundred)
		if dd.GreaterThan(maxDD) {
			maxDD = dd
		}
	}
	return maxDD.InexactFloat64()
}

// ReturnPct returns (final - initial) / initial * 100.
func ReturnPct(initial, final decimal.Decimal) float64 {
	if initial.IsZero() {
		return 0
	}
	return final.Sub(initial).Div(initial).Mul(decimal.NewFromInt(100)).InexactFloat64()
}

// BuyHoldReturnPct returns the percentage move from the first close to the
// last close of the series.
func BuyHoldReturnPct(series model.PriceSeries) float64 {
	if len(series.Bars) == 0 {
		return 0
	}
	first, last := series.First().Close, series.Last().Close
	return (last - first) / first * 100
}
