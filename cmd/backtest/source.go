package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"trading-backtest/internal/model"
	"trading-backtest/internal/store/csvstore"
	"trading-backtest/internal/store/parquet"
	"trading-backtest/internal/store/sqlite"
)

// openSource returns the bar reader selected by --source and a func that
// releases it.
func openSource(cmd *cobra.Command) (model.SeriesReader, func(), error) {
	kind, _ := cmd.Flags().GetString("source")
	dir, _ := cmd.Flags().GetString("dir")
	dbPath, _ := cmd.Flags().GetString("sqlite")
	return newSource(kind, dir, dbPath)
}

func newSource(kind, dir, dbPath string) (model.SeriesReader, func(), error) {
	switch strings.ToLower(kind) {
	case "", "csv":
		return csvstore.New(dir), func() {}, nil
	case "parquet":
		return parquet.New(dir), func() {}, nil
	case "sqlite":
		if dbPath == "" {
			return nil, nil, fmt.Errorf("--source sqlite needs --sqlite")
		}
		r, err := sqlite.NewReader(dbPath)
		if err != nil {
			return nil, nil, err
		}
		return r, func() { r.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown source %q (want csv, parquet or sqlite)", kind)
	}
}

// parseParams turns ["k=2.5", "window=30"] into a parameter map.
func parseParams(pairs []string) (map[string]float64, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]float64, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("--param %q: want key=value", p)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("--param %q: %w", p, err)
		}
		out[k] = f
	}
	return out, nil
}

// splitList splits a comma-separated flag value, dropping blanks.
func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
