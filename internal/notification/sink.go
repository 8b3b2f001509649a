package notification

import (
	"context"
	"fmt"

	"trading-backtest/internal/model"
)

var _ model.ResultSink = (*ResultAlerts)(nil)

// ResultAlerts is a ResultSink that raises an alert for every run whose
// total return reaches MinReturnPct. Other runs are ignored.
type ResultAlerts struct {
	Notifier     Notifier
	MinReturnPct float64
}

func (a *ResultAlerts) Name() string { return "notify" }

func (a *ResultAlerts) SaveResult(ctx context.Context, res *model.BacktestResult) error {
	if res.TotalReturnPct < a.MinReturnPct {
		return nil
	}
	return a.Notifier.Send(ctx, Alert{
		Level: AlertInfo,
		Title: fmt.Sprintf("%s %s returned %.2f%%", res.Symbol, res.Strategy, res.TotalReturnPct),
		Message: fmt.Sprintf("%d trades, win rate %.1f%%, max drawdown %.2f%%, buy & hold %.2f%%",
			res.Stats.NumTrades, res.Stats.WinRatePct, res.Stats.MaxDrawdownPct, res.BuyHoldReturnPct),
		RunID: res.RunID,
	})
}
