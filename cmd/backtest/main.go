// cmd/backtest runs daily-bar backtests for one symbol or for every symbol
// in a data directory, and manages the stores results and bars live in.
//
// Usage:
//
//	backtest run --symbol 2330 --strategy breakout --param stop_loss_pct=5
//	backtest batch --dir data/stock_prices --workers 8 --sqlite data/backtest.db
//	backtest import --dir data/stock_prices --to parquet --dest data
//	backtest runs --sqlite data/backtest.db
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"trading-backtest/config"
	"trading-backtest/internal/logger"
)

func main() {
	if err := config.LoadEnvFile(os.Getenv("ENV_FILE")); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(cfg).ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func newRootCmd(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "backtest",
		Short:         "Backtest daily-bar trading strategies",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			level, _ := cmd.Flags().GetString("log-level")
			logger.Init("backtest", logger.ParseLevel(level))
		},
	}

	pf := root.PersistentFlags()
	pf.String("log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	pf.String("dir", cfg.DataDir, "price data directory")
	pf.String("source", "csv", "bar source: csv, parquet or sqlite")
	pf.String("sqlite", cfg.SQLitePath, "SQLite database path (results, and bars for --source sqlite)")

	root.AddCommand(newRunCmd(cfg), newBatchCmd(cfg), newImportCmd(), newRunsCmd(cfg))
	return root
}
