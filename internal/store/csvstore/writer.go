package csvstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gocarina/gocsv"

	"trading-backtest/internal/model"
)

type tradeRow struct {
	RunID     string  `csv:"run_id"`
	Symbol    string  `csv:"symbol"`
	Strategy  string  `csv:"strategy"`
	Date      string  `csv:"date"`
	Action    string  `csv:"action"`
	Side      string  `csv:"side"`
	Price     float64 `csv:"price"`
	Quantity  int64   `csv:"quantity"`
	CashAfter string  `csv:"cash_after"`
	ReturnPct string  `csv:"return_pct"`
	PnL       string  `csv:"pnl"`
	Reason    string  `csv:"reason"`
}

type curveRow struct {
	Date  string  `csv:"date"`
	Price float64 `csv:"price"`
	Side  string  `csv:"side"`
	Value string  `csv:"value"`
}

type barOut struct {
	Date   string  `csv:"Date"`
	Open   float64 `csv:"Open"`
	High   float64 `csv:"High"`
	Low    float64 `csv:"Low"`
	Close  float64 `csv:"Close"`
	Volume int64   `csv:"Volume"`
}

// WriteTrades writes the trade rows of every result.
func WriteTrades(w io.Writer, results ...*model.BacktestResult) error {
	rows := make([]tradeRow, 0)
	for _, res := range results {
		for _, ev := range res.Trades {
			row := tradeRow{
				RunID:     res.RunID,
				Symbol:    res.Symbol,
				Strategy:  res.Strategy,
				Date:      ev.Date.Format(model.DateLayout),
				Action:    string(ev.Action),
				Side:      string(ev.Side),
				Price:     ev.Price,
				Quantity:  ev.Quantity,
				CashAfter: ev.CashAfter.StringFixed(2),
				Reason:    ev.Reason,
			}
			if ev.ReturnPct != nil {
				row.ReturnPct = strconv.FormatFloat(*ev.ReturnPct, 'f', 4, 64)
			}
			if ev.PnL.Valid {
				row.PnL = ev.PnL.Decimal.StringFixed(2)
			}
			rows = append(rows, row)
		}
	}
	return gocsv.Marshal(&rows, w)
}

// WriteCurve writes one row per bar of the portfolio value curve.
func WriteCurve(w io.Writer, res *model.BacktestResult) error {
	rows := make([]curveRow, len(res.Curve))
	for i, pt := range res.Curve {
		rows[i] = curveRow{
			Date:  pt.Date.Format(model.DateLayout),
			Price: pt.Price,
			Side:  string(pt.Side),
			Value: pt.Value.StringFixed(2),
		}
	}
	return gocsv.Marshal(&rows, w)
}

// WriteSummaries writes one row per run.
func WriteSummaries(w io.Writer, summaries []model.Summary) error {
	return gocsv.Marshal(&summaries, w)
}

// WriteSeries writes bars in the layout LoadSeries reads.
func WriteSeries(w io.Writer, series model.PriceSeries) error {
	rows := make([]barOut, len(series.Bars))
	for i, b := range series.Bars {
		rows[i] = barOut{
			Date:   b.Date.Format(model.DateLayout),
			Open:   b.Open,
			High:   b.High,
			Low:    b.Low,
			Close:  b.Close,
			Volume: b.Volume,
		}
	}
	return gocsv.Marshal(&rows, w)
}

// WriteFile creates path (and its directory) and hands it to write.
func WriteFile(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("csvstore: mkdir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("csvstore: create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		f.Close()
		return fmt.Errorf("csvstore: write %s: %w", path, err)
	}
	return f.Close()
}

// WriteSeries stores series at the path ReadSeries reads it from.
func (s *Store) WriteSeries(_ context.Context, series model.PriceSeries) error {
	return WriteFile(s.Path(series.Symbol), func(w io.Writer) error { return WriteSeries(w, series) })
}

// Exporter is a ResultSink writing <Dir>/<run_id>_trades.csv and
// <Dir>/<run_id>_curve.csv for every result.
type Exporter struct {
	Dir string
}

func (e *Exporter) Name() string { return "csv" }

func (e *Exporter) SaveResult(_ context.Context, res *model.BacktestResult) error {
	trades := filepath.Join(e.Dir, res.RunID+"_trades.csv")
	if err := WriteFile(trades, func(w io.Writer) error { return WriteTrades(w, res) }); err != nil {
		return err
	}
	curve := filepath.Join(e.Dir, res.RunID+"_curve.csv")
	return WriteFile(curve, func(w io.Writer) error { return WriteCurve(w, res) })
}
