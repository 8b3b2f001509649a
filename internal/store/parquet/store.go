// Package parquet stores daily bars and backtest results as Parquet files.
package parquet

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"trading-backtest/internal/model"
)

// Compile-time interface checks.
var (
	_ model.SeriesReader = (*Store)(nil)
	_ model.SeriesWriter = (*Store)(nil)
	_ model.ResultSink   = (*Store)(nil)
)

// Store keeps one file per symbol at <DataDir>/daily/<SYMBOL>.parquet and
// result files under <DataDir>/results/.
type Store struct {
	DataDir string
}

// New creates a Store rooted at dataDir.
func New(dataDir string) *Store {
	return &Store{DataDir: dataDir}
}

func (s *Store) Name() string { return "parquet" }

// ---------------------------------------------------------------------------
// Parquet record types (on-disk schema)
// ---------------------------------------------------------------------------

// BarRecord is the Parquet schema for daily bar data.
type BarRecord struct {
	Symbol    string  `parquet:"symbol"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"` // Unix ms, UTC midnight
	Open      float64 `parquet:"open"`
	High      float64 `parquet:"high"`
	Low       float64 `parquet:"low"`
	Close     float64 `parquet:"close"`
	Volume    int64   `parquet:"volume"`
}

// TradeRecord is the Parquet schema for ledger events.
type TradeRecord struct {
	RunID     string   `parquet:"run_id"`
	Timestamp int64    `parquet:"timestamp,timestamp(millisecond)"`
	Action    string   `parquet:"action"`
	Side      string   `parquet:"side"`
	Price     float64  `parquet:"price"`
	Quantity  int64    `parquet:"quantity"`
	CashAfter string   `parquet:"cash_after"` // decimal string
	Reason    string   `parquet:"reason"`
	ReturnPct *float64 `parquet:"return_pct,optional"`
	PnL       *string  `parquet:"pnl,optional"`
}

// CurveRecord is the Parquet schema for the portfolio value curve.
type CurveRecord struct {
	RunID     string  `parquet:"run_id"`
	Timestamp int64   `parquet:"timestamp,timestamp(millisecond)"`
	Price     float64 `parquet:"price"`
	Side      string  `parquet:"side"`
	Value     string  `parquet:"value"` // decimal string
}

func (s *Store) barPath(symbol string) string {
	return filepath.Join(s.DataDir, "daily", symbol+".parquet")
}

// WriteSeries replaces the stored bars of series.Symbol.
func (s *Store) WriteSeries(_ context.Context, series model.PriceSeries) error {
	records := make([]BarRecord, len(series.Bars))
	for i, b := range series.Bars {
		records[i] = BarRecord{
			Symbol:    series.Symbol,
			Timestamp: b.Date.UnixMilli(),
			Open:      b.Open,
			High:      b.High,
			Low:       b.Low,
			Close:     b.Close,
			Volume:    b.Volume,
		}
	}
	if err := writeParquetFile(s.barPath(series.Symbol), records); err != nil {
		return fmt.Errorf("parquet: writing bars for %s: %w", series.Symbol, err)
	}
	return nil
}

// ReadSeries reads the bars of symbol sorted by date.
func (s *Store) ReadSeries(_ context.Context, symbol string) (model.PriceSeries, error) {
	records, err := readParquetFile[BarRecord](s.barPath(symbol))
	if err != nil {
		return model.PriceSeries{}, fmt.Errorf("parquet: reading bars for %s: %w", symbol, err)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Timestamp < records[j].Timestamp })

	series := model.PriceSeries{Symbol: symbol, Bars: make([]model.Bar, len(records))}
	for i, r := range records {
		series.Bars[i] = model.Bar{
			Date:   time.UnixMilli(r.Timestamp).UTC(),
			Open:   r.Open,
			High:   r.High,
			Low:    r.Low,
			Close:  r.Close,
			Volume: r.Volume,
		}
	}
	return series, nil
}

// ListSymbols lists all symbols that have bar data.
func (s *Store) ListSymbols(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(s.DataDir, "daily"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var symbols []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".parquet") {
			symbols = append(symbols, strings.TrimSuffix(e.Name(), ".parquet"))
		}
	}
	sort.Strings(symbols)
	return symbols, nil
}

// SaveResult writes <DataDir>/results/<run_id>_trades.parquet and
// <DataDir>/results/<run_id>_curve.parquet.
func (s *Store) SaveResult(_ context.Context, res *model.BacktestResult) error {
	trades := make([]TradeRecord, len(res.Trades))
	for i, ev := range res.Trades {
		trades[i] = TradeRecord{
			RunID:     res.RunID,
			Timestamp: ev.Date.UnixMilli(),
			Action:    string(ev.Action),
			Side:      string(ev.Side),
			Price:     ev.Price,
			Quantity:  ev.Quantity,
			CashAfter: ev.CashAfter.String(),
			Reason:    ev.Reason,
			ReturnPct: ev.ReturnPct,
		}
		if ev.PnL.Valid {
			pnl := ev.PnL.Decimal.String()
			trades[i].PnL = &pnl
		}
	}
	curve := make([]CurveRecord, len(res.Curve))
	for i, pt := range res.Curve {
		curve[i] = CurveRecord{
			RunID:     res.RunID,
			Timestamp: pt.Date.UnixMilli(),
			Price:     pt.Price,
			Side:      string(pt.Side),
			Value:     pt.Value.String(),
		}
	}

	dir := filepath.Join(s.DataDir, "results")
	if err := writeParquetFile(filepath.Join(dir, res.RunID+"_trades.parquet"), trades); err != nil {
		return fmt.Errorf("parquet: writing trades for %s: %w", res.RunID, err)
	}
	if err := writeParquetFile(filepath.Join(dir, res.RunID+"_curve.parquet"), curve); err != nil {
		return fmt.Errorf("parquet: writing curve for %s: %w", res.RunID, err)
	}
	return nil
}

// ReadTrades loads the trade records written for runID.
func (s *Store) ReadTrades(runID string) ([]TradeRecord, error) {
	return readParquetFile[TradeRecord](filepath.Join(s.DataDir, "results", runID+"_trades.parquet"))
}

func writeParquetFile[T any](path string, records []T) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(path, records)
}

func readParquetFile[T any](path string) ([]T, error) {
	rows, err := parquet.ReadFile[T](path)
	if err != nil {
		return nil, err
	}
	return rows, nil
}
