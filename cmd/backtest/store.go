package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"trading-backtest/config"
	"trading-backtest/internal/model"
	"trading-backtest/internal/report"
	"trading-backtest/internal/store/parquet"
	"trading-backtest/internal/store/redis"
	"trading-backtest/internal/store/sqlite"
)

// newImportCmd copies bars from --source into a Parquet or SQLite store.
func newImportCmd() *cobra.Command {
	var to, dest string
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Copy price history from --source into a Parquet or SQLite store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			src, closeSrc, err := openSource(cmd)
			if err != nil {
				return err
			}
			defer closeSrc()

			var dst model.SeriesWriter
			switch strings.ToLower(to) {
			case "parquet":
				if dest == "" {
					return fmt.Errorf("--to parquet needs --dest")
				}
				dst = parquet.New(dest)
			case "sqlite":
				dbPath := dest
				if dbPath == "" {
					dbPath, _ = cmd.Flags().GetString("sqlite")
				}
				if dbPath == "" {
					return fmt.Errorf("--to sqlite needs --dest or --sqlite")
				}
				w, err := sqlite.New(sqlite.WriterConfig{DBPath: dbPath})
				if err != nil {
					return err
				}
				defer w.Close()
				dst = w
			default:
				return fmt.Errorf("unknown target %q (want parquet or sqlite)", to)
			}

			symbols, err := src.ListSymbols(ctx)
			if err != nil {
				return err
			}
			bars := 0
			for _, sym := range symbols {
				if err := ctx.Err(); err != nil {
					return err
				}
				series, err := src.ReadSeries(ctx, sym)
				if err != nil {
					return err
				}
				if err := dst.WriteSeries(ctx, series); err != nil {
					return err
				}
				bars += len(series.Bars)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d symbols, %d bars\n", len(symbols), bars)
			return nil
		},
	}
	cmd.Flags().StringVar(&to, "to", "parquet", "target store: parquet or sqlite")
	cmd.Flags().StringVar(&dest, "dest", "", "target data directory (parquet) or database path (sqlite)")
	return cmd
}

// newRunsCmd lists stored runs, or shows the ledger of one. With --redis it
// reads the published leaderboard and cached summaries instead of SQLite.
func newRunsCmd(cfg *config.Config) *cobra.Command {
	var runID, redisAddr, redisPassword, strat, symbol string
	var top int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List backtest runs stored in SQLite or published to Redis",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if redisAddr != "" {
				return showPublished(cmd.Context(), cmd.OutOrStdout(), redis.Config{Addr: redisAddr, Password: redisPassword}, strat, symbol, top)
			}

			dbPath, _ := cmd.Flags().GetString("sqlite")
			if dbPath == "" {
				return fmt.Errorf("--sqlite or --redis is required")
			}
			r, err := sqlite.NewReader(dbPath)
			if err != nil {
				return err
			}
			defer r.Close()

			out := cmd.OutOrStdout()
			if runID != "" {
				res, err := r.ReadResult(cmd.Context(), runID)
				if err != nil {
					return err
				}
				report.RenderSummaries(out, []model.Summary{res.Summary()})
				report.RenderTrades(out, res)
				return nil
			}

			runs, err := r.ListRuns(cmd.Context())
			if err != nil {
				return err
			}
			report.RenderSummaries(out, report.TopN(runs, strat, top))
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&runID, "run-id", "", "show the trades of this run")
	f.IntVar(&top, "top", -1, "list at most this many runs (-1 for all; 10 for a Redis leaderboard)")
	f.StringVar(&strat, "strategy", "", "only runs of this strategy (required with --redis)")
	f.StringVar(&symbol, "symbol", "", "with --redis, show the cached summary of this symbol")
	f.StringVar(&redisAddr, "redis", cfg.RedisAddr, "read the leaderboard published to this Redis address")
	f.StringVar(&redisPassword, "redis-password", cfg.RedisPassword, "Redis password")
	return cmd
}

func showPublished(ctx context.Context, out io.Writer, rc redis.Config, strat, symbol string, top int) error {
	if strat == "" {
		return fmt.Errorf("--strategy is required with --redis")
	}
	pub, err := redis.New(rc)
	if err != nil {
		return err
	}
	defer pub.Close()

	if symbol != "" {
		s, err := pub.Latest(ctx, symbol, strat)
		if err != nil {
			return err
		}
		if s == nil {
			fmt.Fprintf(out, "no cached summary for %s %s\n", symbol, strat)
			return nil
		}
		report.RenderSummaries(out, []model.Summary{*s})
		return nil
	}

	if top <= 0 {
		top = 10
	}
	ranking, err := pub.Leaderboard(ctx, strat, int64(top))
	if err != nil {
		return err
	}
	report.RenderRanking(out, ranking)
	return nil
}
