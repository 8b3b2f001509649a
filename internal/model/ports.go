package model

import "context"

// ── Storage Port Interfaces ──
// These interfaces decouple the engine from concrete stores (CSV, Parquet,
// SQLite, Redis). Each store satisfies one or more of them.

// SeriesReader loads the daily history of one instrument.
type SeriesReader interface {
	// ReadSeries returns the bars for symbol sorted ascending by date.
	ReadSeries(ctx context.Context, symbol string) (PriceSeries, error)

	// ListSymbols returns the symbols available in the store, sorted.
	ListSymbols(ctx context.Context) ([]string, error)
}

// SeriesWriter persists the daily history of one instrument.
type SeriesWriter interface {
	WriteSeries(ctx context.Context, series PriceSeries) error
}

// ResultSink consumes finished backtest results (persistence, publishing).
type ResultSink interface {
	// SaveResult stores or forwards one result. It must not mutate it.
	SaveResult(ctx context.Context, res *BacktestResult) error
}
