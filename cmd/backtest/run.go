package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"trading-backtest/config"
	"trading-backtest/internal/backtest"
	"trading-backtest/internal/model"
	"trading-backtest/internal/report"
	"trading-backtest/internal/store/csvstore"
	"trading-backtest/internal/strategy"
)

func newRunCmd(cfg *config.Config) *cobra.Command {
	var (
		symbol, csvPath, strat, period, outDir string
		params                                 []string
		capital                                float64
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Backtest one strategy on one symbol",
		RunE: func(cmd *cobra.Command, _ []string) error {
			overrides, err := parseParams(params)
			if err != nil {
				return err
			}
			days, err := model.ParsePeriod(period)
			if err != nil {
				return err
			}
			s, err := strategy.DefaultRegistry().New(strat, overrides)
			if err != nil {
				return err
			}

			var series model.PriceSeries
			if csvPath != "" {
				if symbol == "" {
					symbol = strings.TrimSuffix(filepath.Base(csvPath), csvstore.FileSuffix)
				}
				series, err = csvstore.LoadSeries(csvPath, symbol)
			} else {
				if symbol == "" {
					return fmt.Errorf("--symbol or --csv is required")
				}
				src, closeSrc, openErr := openSource(cmd)
				if openErr != nil {
					return openErr
				}
				defer closeSrc()
				series, err = src.ReadSeries(cmd.Context(), symbol)
			}
			if err != nil {
				return err
			}
			series = series.Trailing(days)

			res, err := backtest.Run(cmd.Context(), series, s, capital)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			report.RenderSummaries(out, []model.Summary{res.Summary()})
			if len(res.Trades) > 0 {
				report.RenderTrades(out, res)
			}

			if outDir != "" {
				exp := &csvstore.Exporter{Dir: outDir}
				if err := exp.SaveResult(cmd.Context(), res); err != nil {
					return err
				}
				fmt.Fprintf(out, "wrote %s\n", filepath.Join(outDir, res.RunID+"_trades.csv"))
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&symbol, "symbol", "", "instrument symbol")
	f.StringVar(&csvPath, "csv", "", "read bars from this CSV file instead of --source")
	f.StringVar(&strat, "strategy", "bollinger", "strategy: "+strings.Join(strategy.DefaultRegistry().List(), ", "))
	f.StringArrayVar(&params, "param", nil, "strategy parameter override key=value (repeatable)")
	f.Float64Var(&capital, "capital", cfg.InitialCapital, "initial capital")
	f.StringVar(&period, "period", "all", "look-back period: 1y, 2y, 3y, 5y or all")
	f.StringVar(&outDir, "out", "", "directory for trade and curve CSV exports")
	return cmd
}
