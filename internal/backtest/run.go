// Package backtest drives a strategy over a price series and fans runs out
// across a bounded worker pool.
package backtest

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/shopspring/decimal"

	"trading-backtest/internal/execution"
	"trading-backtest/internal/indicator"
	"trading-backtest/internal/logger"
	"trading-backtest/internal/model"
	"trading-backtest/internal/portfolio"
	"trading-backtest/internal/strategy"
)

// ForcedCloseReason is recorded when a position is still open after the last bar.
const ForcedCloseReason = "end of data"

// Run simulates strat over series starting from initialCapital in cash.
//
// ctx is only checked before the run starts; once started a run always
// completes. The result is fully determined by the inputs.
func Run(ctx context.Context, series model.PriceSeries, strat strategy.Strategy, initialCapital float64) (*model.BacktestResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if math.IsNaN(initialCapital) || math.IsInf(initialCapital, 0) || initialCapital <= 0 {
		return nil, &model.InvalidParameterError{
			Param:  "initial_capital",
			Reason: fmt.Sprintf("must be a positive amount, got %g", initialCapital),
		}
	}
	need := strat.MinBars()
	if need < 1 {
		need = 1
	}
	if series.Len() < need {
		return nil, &model.InsufficientDataError{Symbol: series.Symbol, Have: series.Len(), Need: need}
	}
	if err := series.Validate(); err != nil {
		return nil, err
	}
	frames, err := indicator.Compute(series, strat.Indicators())
	if err != nil {
		return nil, err
	}

	params := strat.Params()
	runID := logger.GenerateRunID(series.Symbol, strat.Name(), params, initialCapital, series.First().Date, series.Last().Date)
	ctx = logger.WithRunID(ctx, runID)
	log := slog.Default().With(logger.LogWithRun(ctx)...)
	log.Debug("backtest started", "symbol", series.Symbol, "strategy", strat.Name(), "bars", len(frames))

	initial := decimal.NewFromFloat(initialCapital)
	r := &runner{
		strat:   strat,
		account: execution.NewAccount(initial),
		ledger:  portfolio.NewLedger(),
		curve:   make([]model.PortfolioSnapshot, len(frames)),
		log:     log,
	}
	for i := range frames {
		var prev *indicator.Frame
		if i > 0 {
			prev = &frames[i-1]
		}
		if err := r.step(prev, &frames[i]); err != nil {
			return nil, err
		}
	}
	if err := r.liquidate(&frames[len(frames)-1]); err != nil {
		return nil, err
	}
	if err := r.reconcile(initial); err != nil {
		return nil, err
	}

	final := r.account.Cash()
	trades := r.ledger.Events()
	res := &model.BacktestResult{
		RunID:            runID,
		Symbol:           series.Symbol,
		Strategy:         strat.Name(),
		Params:           params,
		StartDate:        series.First().Date,
		EndDate:          series.Last().Date,
		InitialCapital:   initial,
		FinalCapital:     final,
		TotalReturnPct:   portfolio.ReturnPct(initial, final),
		BuyHoldReturnPct: portfolio.BuyHoldReturnPct(series),
		Trades:           trades,
		Curve:            r.curve,
		Stats:            portfolio.ComputeStats(trades, r.curve),
	}
	log.Debug("backtest finished",
		"final_capital", final.StringFixed(2),
		"return_pct", res.TotalReturnPct,
		"trades", res.Stats.NumTrades,
		"events", r.ledger.Len(),
	)
	return res, nil
}

// runner holds the mutable state of one run. Position state lives in the
// account: FLAT until an entry fills, then LONG or SHORT until an exit.
type runner struct {
	strat   strategy.Strategy
	account *execution.Account
	ledger  *portfolio.Ledger
	curve   []model.PortfolioSnapshot
	log     *slog.Logger
}

// step applies at most one transition for the bar and then values the
// portfolio at its close.
func (r *runner) step(prev, cur *indicator.Frame) error {
	pos := r.account.Position()
	if pos.IsFlat() {
		if sig, ok := r.strat.Entry(prev, cur); ok {
			ev, filled, err := r.account.Open(cur.Date, sig.Side, cur.Close, sig.Reason)
			if err != nil {
				return err
			}
			if filled {
				if err := r.record(ev); err != nil {
					return err
				}
			} else {
				r.log.Debug("entry skipped: cash below one unit", "date", cur.Day(), "price", cur.Close)
			}
		}
	} else if reason, ok := r.strat.Exit(pos, prev, cur); ok {
		ev, err := r.account.Close(cur.Date, model.CloseAction(pos.Side), cur.Close, reason)
		if err != nil {
			return err
		}
		if err := r.record(ev); err != nil {
			return err
		}
	}

	r.curve[cur.Index] = portfolio.Valuate(cur.Bar, r.account.Position(), r.account.Cash())
	return nil
}

// liquidate closes any open position at the last bar's close.
func (r *runner) liquidate(last *indicator.Frame) error {
	if r.account.Position().IsFlat() {
		return nil
	}
	ev, err := r.account.Close(last.Date, model.ActionForcedClose, last.Close, ForcedCloseReason)
	if err != nil {
		return err
	}
	return r.record(ev)
}

func (r *runner) record(ev model.TradeEvent) error {
	if err := r.ledger.Record(ev); err != nil {
		return err
	}
	r.log.Debug("trade",
		"date", ev.Date.Format(model.DateLayout),
		"action", ev.Action,
		"price", ev.Price,
		"qty", ev.Quantity,
		"reason", ev.Reason,
	)
	return nil
}

// reconcile checks that cash moved only through realized P&L and that the
// final curve point agrees with the final cash.
func (r *runner) reconcile(initial decimal.Decimal) error {
	if r.ledger.IsOpen() {
		return &model.InternalConsistencyError{Reason: "ledger still holds an open position after liquidation"}
	}
	final := r.account.Cash()
	if want := initial.Add(r.ledger.RealizedPnL()); !want.Equal(final) {
		return &model.InternalConsistencyError{
			Reason: fmt.Sprintf("final capital %s != initial %s + realized %s", final, initial, r.ledger.RealizedPnL()),
		}
	}
	if last := r.curve[len(r.curve)-1]; !last.Value.Equal(final) {
		return &model.InternalConsistencyError{
			Reason: fmt.Sprintf("last portfolio value %s != final capital %s", last.Value, final),
		}
	}
	return nil
}
