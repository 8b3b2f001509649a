package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"trading-backtest/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

var _ model.SeriesReader = (*Reader)(nil)

// ErrRunNotFound is returned by ReadResult for an unknown run ID.
var ErrRunNotFound = errors.New("sqlite: run not found")

// Reader provides read-only access to stored runs and bars.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	slog.Debug("sqlite reader opened", "path", dbPath)
	return &Reader{db: db}, nil
}

// ListRuns returns the summary of every stored run, best return first.
func (r *Reader) ListRuns(ctx context.Context) ([]model.Summary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT run_id, symbol, strategy, initial_capital, final_capital, total_return_pct,
		       num_trades, win_rate_pct, avg_return_pct, max_drawdown_pct, buy_hold_return_pct
		FROM backtest_runs
		ORDER BY total_return_pct DESC, run_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query runs: %w", err)
	}
	defer rows.Close()

	var out []model.Summary
	for rows.Next() {
		var s model.Summary
		var initial, final decimal.Decimal
		if err := rows.Scan(&s.RunID, &s.Symbol, &s.Strategy, &initial, &final, &s.TotalReturnPct,
			&s.NumTrades, &s.WinRatePct, &s.AvgReturnPct, &s.MaxDrawdownPct, &s.BuyHoldReturnPct); err != nil {
			return nil, fmt.Errorf("sqlite scan run: %w", err)
		}
		s.InitialCapital = initial.InexactFloat64()
		s.FinalCapital = final.InexactFloat64()
		out = append(out, s)
	}
	return out, rows.Err()
}

// ReadResult loads a full run, including its ledger and curve.
func (r *Reader) ReadResult(ctx context.Context, runID string) (*model.BacktestResult, error) {
	var (
		res              model.BacktestResult
		params           string
		startDay, endDay string
	)
	st := &res.Stats
	err := r.db.QueryRowContext(ctx, `
		SELECT run_id, symbol, strategy, params, start_date, end_date,
		       initial_capital, final_capital, total_return_pct, buy_hold_return_pct,
		       num_trades, wins, losses, win_rate_pct, avg_return_pct,
		       max_return_pct, min_return_pct, max_drawdown_pct, profit_factor
		FROM backtest_runs WHERE run_id = ?
	`, runID).Scan(&res.RunID, &res.Symbol, &res.Strategy, &params, &startDay, &endDay,
		&res.InitialCapital, &res.FinalCapital, &res.TotalReturnPct, &res.BuyHoldReturnPct,
		&st.NumTrades, &st.Wins, &st.Losses, &st.WinRatePct, &st.AvgReturnPct,
		&st.MaxReturnPct, &st.MinReturnPct, &st.MaxDrawdownPct, &st.ProfitFactor)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, fmt.Errorf("sqlite read run: %w", err)
	}
	if err := json.Unmarshal([]byte(params), &res.Params); err != nil {
		return nil, fmt.Errorf("unmarshal params: %w", err)
	}
	if res.StartDate, err = time.Parse(model.DateLayout, startDay); err != nil {
		return nil, err
	}
	if res.EndDate, err = time.Parse(model.DateLayout, endDay); err != nil {
		return nil, err
	}

	if res.Trades, err = r.ReadTrades(ctx, runID); err != nil {
		return nil, err
	}
	if res.Curve, err = r.readCurve(ctx, runID); err != nil {
		return nil, err
	}
	return &res, nil
}

// ReadTrades returns the ledger of runID in recording order.
func (r *Reader) ReadTrades(ctx context.Context, runID string) ([]model.TradeEvent, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT date, action, side, price, quantity, cash_after, reason, return_pct, pnl
		FROM backtest_trades
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("sqlite query trades: %w", err)
	}
	defer rows.Close()

	var events []model.TradeEvent
	for rows.Next() {
		var (
			ev           model.TradeEvent
			day          string
			action, side string
			ret          sql.NullFloat64
		)
		if err := rows.Scan(&day, &action, &side, &ev.Price, &ev.Quantity, &ev.CashAfter, &ev.Reason, &ret, &ev.PnL); err != nil {
			return nil, fmt.Errorf("sqlite scan trade: %w", err)
		}
		if ev.Date, err = time.Parse(model.DateLayout, day); err != nil {
			return nil, err
		}
		ev.Action, ev.Side = model.Action(action), model.Side(side)
		if ret.Valid {
			v := ret.Float64
			ev.ReturnPct = &v
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (r *Reader) readCurve(ctx context.Context, runID string) ([]model.PortfolioSnapshot, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT date, price, side, value FROM backtest_curve
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("sqlite query curve: %w", err)
	}
	defer rows.Close()

	var curve []model.PortfolioSnapshot
	for rows.Next() {
		var pt model.PortfolioSnapshot
		var day, side string
		if err := rows.Scan(&day, &pt.Price, &side, &pt.Value); err != nil {
			return nil, fmt.Errorf("sqlite scan curve: %w", err)
		}
		if pt.Date, err = time.Parse(model.DateLayout, day); err != nil {
			return nil, err
		}
		pt.Side = model.Side(side)
		curve = append(curve, pt)
	}
	return curve, rows.Err()
}

// ReadSeries reads the daily bars of symbol ordered by date.
func (r *Reader) ReadSeries(ctx context.Context, symbol string) (model.PriceSeries, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT date, open, high, low, close, volume
		FROM daily_bars
		WHERE symbol = ?
		ORDER BY date ASC
	`, symbol)
	if err != nil {
		return model.PriceSeries{}, fmt.Errorf("sqlite query daily_bars: %w", err)
	}
	defer rows.Close()

	series := model.PriceSeries{Symbol: symbol}
	for rows.Next() {
		var b model.Bar
		var day string
		if err := rows.Scan(&day, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return model.PriceSeries{}, fmt.Errorf("sqlite scan daily_bars: %w", err)
		}
		if b.Date, err = time.Parse(model.DateLayout, day); err != nil {
			return model.PriceSeries{}, err
		}
		series.Bars = append(series.Bars, b)
	}
	return series, rows.Err()
}

// ListSymbols returns the distinct symbols in daily_bars.
func (r *Reader) ListSymbols(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT symbol FROM daily_bars ORDER BY symbol ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		symbols = append(symbols, s)
	}
	return symbols, rows.Err()
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
