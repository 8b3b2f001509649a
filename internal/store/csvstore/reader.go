// Package csvstore loads daily price history from CSV files and exports
// backtest results as CSV tables.
package csvstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"trading-backtest/internal/model"
)

// FileSuffix is appended to the symbol to form a price file name.
const FileSuffix = "_price_data.csv"

// dateLayouts are tried in order when parsing the Date column.
var dateLayouts = []string{
	model.DateLayout,
	"2006-01-02 15:04:05",
	"2006/01/02",
	time.RFC3339,
}

// requiredColumns must all appear in the header row. gocsv leaves a field
// at its zero value when its column is missing, so the header is checked
// before any row is decoded.
var requiredColumns = []string{"Date", "Open", "High", "Low", "Close", "Volume"}

// headerCheckReader rejects files whose header lacks a required column.
type headerCheckReader struct {
	gocsv.CSVReader
}

func (r headerCheckReader) ReadAll() ([][]string, error) {
	rows, err := r.CSVReader.ReadAll()
	if err != nil || len(rows) == 0 {
		return rows, err
	}
	have := make(map[string]bool, len(rows[0]))
	for _, h := range rows[0] {
		have[h] = true
	}
	var missing []string
	for _, col := range requiredColumns {
		if !have[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &model.InvalidParameterError{
			Param:  "csv header",
			Reason: fmt.Sprintf("missing column(s) %s", strings.Join(missing, ", ")),
		}
	}
	return rows, nil
}

// barRow is the on-disk layout: Date,Open,High,Low,Close,Volume.
type barRow struct {
	Date   string  `csv:"Date"`
	Open   float64 `csv:"Open"`
	High   float64 `csv:"High"`
	Low    float64 `csv:"Low"`
	Close  float64 `csv:"Close"`
	Volume float64 `csv:"Volume"`
}

func (r barRow) toModel() (model.Bar, error) {
	d, err := parseDate(r.Date)
	if err != nil {
		return model.Bar{}, err
	}
	if r.Volume < 0 || r.Volume != float64(int64(r.Volume)) {
		return model.Bar{}, fmt.Errorf("volume %v is not a whole non-negative number", r.Volume)
	}
	return model.Bar{
		Date:   d,
		Open:   r.Open,
		High:   r.High,
		Low:    r.Low,
		Close:  r.Close,
		Volume: int64(r.Volume),
	}, nil
}

func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

// Store reads <Dir>/<SYMBOL>_price_data.csv files.
type Store struct {
	Dir string
}

// New creates a CSV store rooted at dir.
func New(dir string) *Store {
	return &Store{Dir: dir}
}

func (s *Store) Name() string { return "csv" }

// Path returns the file path for symbol.
func (s *Store) Path(symbol string) string {
	return filepath.Join(s.Dir, symbol+FileSuffix)
}

// ReadSeries loads the series for symbol.
func (s *Store) ReadSeries(_ context.Context, symbol string) (model.PriceSeries, error) {
	return LoadSeries(s.Path(symbol), symbol)
}

// ListSymbols returns the symbols with a price file in Dir, sorted.
func (s *Store) ListSymbols(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("csvstore: list %s: %w", s.Dir, err)
	}
	var symbols []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), FileSuffix) {
			continue
		}
		symbols = append(symbols, strings.TrimSuffix(e.Name(), FileSuffix))
	}
	sort.Strings(symbols)
	return symbols, nil
}

// LoadSeries reads one CSV file into a validated series sorted by date.
func LoadSeries(path, symbol string) (model.PriceSeries, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.PriceSeries{}, fmt.Errorf("csvstore: open %s: %w", path, err)
	}
	defer f.Close()

	series, err := ParseSeries(f, symbol)
	if err != nil {
		return model.PriceSeries{}, fmt.Errorf("csvstore: %s: %w", path, err)
	}
	return series, nil
}

// ParseSeries parses CSV rows, sorts them ascending and rejects missing
// columns, malformed rows and duplicate dates.
func ParseSeries(r io.Reader, symbol string) (model.PriceSeries, error) {
	var rows []barRow
	if err := gocsv.UnmarshalCSV(headerCheckReader{gocsv.DefaultCSVReader(r)}, &rows); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return model.PriceSeries{Symbol: symbol}, nil
		}
		return model.PriceSeries{}, fmt.Errorf("parse csv: %w", err)
	}

	bars := make([]model.Bar, 0, len(rows))
	for i, row := range rows {
		bar, err := row.toModel()
		if err != nil {
			return model.PriceSeries{}, fmt.Errorf("row %d: %w", i+2, err)
		}
		if err := bar.Validate(); err != nil {
			return model.PriceSeries{}, fmt.Errorf("row %d: %w", i+2, err)
		}
		bars = append(bars, bar)
	}

	sort.SliceStable(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })
	for i := 1; i < len(bars); i++ {
		if bars[i].Date.Equal(bars[i-1].Date) {
			return model.PriceSeries{}, &model.InvalidParameterError{
				Param:  "series",
				Reason: fmt.Sprintf("%s: duplicate date %s", symbol, bars[i].Day()),
			}
		}
	}
	return model.PriceSeries{Symbol: symbol, Bars: bars}, nil
}
