// Package sqlite persists backtest runs, trade ledgers, value curves and
// daily bars in a single SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"trading-backtest/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// dsnOptions puts the database in WAL mode so a Reader can query while the
// Writer commits.
const dsnOptions = "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"

var (
	_ model.ResultSink   = (*Writer)(nil)
	_ model.SeriesWriter = (*Writer)(nil)
)

// WriterConfig configures the SQLite writer.
type WriterConfig struct {
	DBPath string // path to SQLite database file, e.g. "data/backtest.db"
}

// Writer is a single-connection SQLite writer. Every result is committed in
// its own transaction.
type Writer struct {
	db *sql.DB
}

// DB returns the underlying sql.DB for health checks.
func (w *Writer) DB() *sql.DB { return w.db }

func (w *Writer) Name() string { return "sqlite" }

// New creates a new SQLite Writer, initializes the database with WAL mode and schema.
func New(cfg WriterConfig) (*Writer, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+dsnOptions)
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Set connection pool for single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	slog.Info("sqlite opened", "path", cfg.DBPath)
	return &Writer{db: db}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS backtest_runs (
			run_id              TEXT    PRIMARY KEY,
			symbol              TEXT    NOT NULL,
			strategy            TEXT    NOT NULL,
			params              TEXT    NOT NULL,
			start_date          TEXT    NOT NULL,
			end_date            TEXT    NOT NULL,
			initial_capital     TEXT    NOT NULL,
			final_capital       TEXT    NOT NULL,
			total_return_pct    REAL    NOT NULL,
			buy_hold_return_pct REAL    NOT NULL,
			num_trades          INTEGER NOT NULL,
			wins                INTEGER NOT NULL,
			losses              INTEGER NOT NULL,
			win_rate_pct        REAL    NOT NULL,
			avg_return_pct      REAL    NOT NULL,
			max_return_pct      REAL    NOT NULL,
			min_return_pct      REAL    NOT NULL,
			max_drawdown_pct    REAL    NOT NULL,
			profit_factor       REAL    NOT NULL,
			created_at          INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS backtest_trades (
			run_id     TEXT    NOT NULL,
			seq        INTEGER NOT NULL,
			date       TEXT    NOT NULL,
			action     TEXT    NOT NULL,
			side       TEXT    NOT NULL,
			price      REAL    NOT NULL,
			quantity   INTEGER NOT NULL,
			cash_after TEXT    NOT NULL,
			reason     TEXT    NOT NULL,
			return_pct REAL,
			pnl        TEXT,
			PRIMARY KEY (run_id, seq)
		);

		CREATE TABLE IF NOT EXISTS backtest_curve (
			run_id TEXT    NOT NULL,
			seq    INTEGER NOT NULL,
			date   TEXT    NOT NULL,
			price  REAL    NOT NULL,
			side   TEXT    NOT NULL,
			value  TEXT    NOT NULL,
			PRIMARY KEY (run_id, seq)
		);

		CREATE TABLE IF NOT EXISTS daily_bars (
			symbol TEXT    NOT NULL,
			date   TEXT    NOT NULL,
			open   REAL    NOT NULL,
			high   REAL    NOT NULL,
			low    REAL    NOT NULL,
			close  REAL    NOT NULL,
			volume INTEGER NOT NULL,
			PRIMARY KEY (symbol, date)
		);
	`)
	return err
}

// SaveResult replaces any earlier copy of the run and writes its summary,
// ledger and curve in a single transaction.
func (w *Writer) SaveResult(ctx context.Context, res *model.BacktestResult) error {
	params, err := json.Marshal(res.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}

	start := time.Now()
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, table := range []string{"backtest_trades", "backtest_curve"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE run_id = ?`, res.RunID); err != nil {
			return fmt.Errorf("sqlite clear %s: %w", table, err)
		}
	}

	st := res.Stats
	_, err = tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO backtest_runs (
			run_id, symbol, strategy, params, start_date, end_date,
			initial_capital, final_capital, total_return_pct, buy_hold_return_pct,
			num_trades, wins, losses, win_rate_pct, avg_return_pct,
			max_return_pct, min_return_pct, max_drawdown_pct, profit_factor, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, res.RunID, res.Symbol, res.Strategy, string(params),
		res.StartDate.Format(model.DateLayout), res.EndDate.Format(model.DateLayout),
		res.InitialCapital, res.FinalCapital, res.TotalReturnPct, res.BuyHoldReturnPct,
		st.NumTrades, st.Wins, st.Losses, st.WinRatePct, st.AvgReturnPct,
		st.MaxReturnPct, st.MinReturnPct, st.MaxDrawdownPct, st.ProfitFactor, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("sqlite insert run: %w", err)
	}

	if err := insertTrades(ctx, tx, res); err != nil {
		return err
	}
	if err := insertCurve(ctx, tx, res); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	slog.Debug("sqlite committed run",
		"run_id", res.RunID, "trades", len(res.Trades), "curve", len(res.Curve), "dur", time.Since(start))
	return nil
}

func insertTrades(ctx context.Context, tx *sql.Tx, res *model.BacktestResult) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO backtest_trades (run_id, seq, date, action, side, price, quantity, cash_after, reason, return_pct, pnl)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, ev := range res.Trades {
		var ret sql.NullFloat64
		if ev.ReturnPct != nil {
			ret = sql.NullFloat64{Float64: *ev.ReturnPct, Valid: true}
		}
		_, err := stmt.ExecContext(ctx, res.RunID, i, ev.Date.Format(model.DateLayout), string(ev.Action), string(ev.Side),
			ev.Price, ev.Quantity, ev.CashAfter, ev.Reason, ret, ev.PnL)
		if err != nil {
			return fmt.Errorf("sqlite insert trade %d: %w", i, err)
		}
	}
	return nil
}

func insertCurve(ctx context.Context, tx *sql.Tx, res *model.BacktestResult) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO backtest_curve (run_id, seq, date, price, side, value)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, pt := range res.Curve {
		if _, err := stmt.ExecContext(ctx, res.RunID, i, pt.Date.Format(model.DateLayout), pt.Price, string(pt.Side), pt.Value); err != nil {
			return fmt.Errorf("sqlite insert curve %d: %w", i, err)
		}
	}
	return nil
}

// WriteSeries upserts the bars of a series into daily_bars.
func (w *Writer) WriteSeries(ctx context.Context, series model.PriceSeries) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO daily_bars (symbol, date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range series.Bars {
		if _, err := stmt.ExecContext(ctx, series.Symbol, b.Date.Format(model.DateLayout), b.Open, b.High, b.Low, b.Close, b.Volume); err != nil {
			return fmt.Errorf("sqlite insert bar %s %s: %w", series.Symbol, b.Day(), err)
		}
	}
	return tx.Commit()
}

// Close closes the database.
func (w *Writer) Close() error {
	return w.db.Close()
}
