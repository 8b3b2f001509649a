package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"trading-backtest/config"
	"trading-backtest/internal/backtest"
	"trading-backtest/internal/metrics"
	"trading-backtest/internal/model"
	"trading-backtest/internal/notification"
	"trading-backtest/internal/report"
	"trading-backtest/internal/store/csvstore"
	"trading-backtest/internal/store/redis"
	"trading-backtest/internal/store/sqlite"
	"trading-backtest/internal/strategy"
)

type batchOptions struct {
	strategiesFile string
	symbols        string
	period         string
	workers        int
	capital        float64
	redisAddr      string
	redisPassword  string
	metricsAddr    string
	webhookURL     string
	minReturn      float64
	top            int
	outDir         string
}

func newBatchCmd(cfg *config.Config) *cobra.Command {
	var o batchOptions
	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Backtest every strategy of a set on every symbol",
		RunE: func(cmd *cobra.Command, _ []string) error {
			src, closeSrc, err := openSource(cmd)
			if err != nil {
				return err
			}
			defer closeSrc()
			dbPath, _ := cmd.Flags().GetString("sqlite")
			return runBatch(cmd.Context(), cmd.OutOrStdout(), src, dbPath, o)
		},
	}

	f := cmd.Flags()
	f.StringVar(&o.strategiesFile, "strategies", cfg.StrategiesFile, "YAML strategy set (default: every strategy with default parameters)")
	f.StringVar(&o.symbols, "symbols", "", "comma-separated symbols (default: every symbol in the source)")
	f.StringVar(&o.period, "period", "all", "look-back period: 1y, 2y, 3y, 5y or all")
	f.IntVar(&o.workers, "workers", cfg.Workers, "concurrent backtests")
	f.Float64Var(&o.capital, "capital", cfg.InitialCapital, "initial capital per run")
	f.StringVar(&o.redisAddr, "redis", cfg.RedisAddr, "Redis address for publishing summaries (empty disables)")
	f.StringVar(&o.redisPassword, "redis-password", cfg.RedisPassword, "Redis password")
	f.StringVar(&o.metricsAddr, "metrics-addr", cfg.MetricsAddr, "serve /metrics and /healthz on this address (empty disables)")
	f.StringVar(&o.webhookURL, "webhook", cfg.WebhookURL, "POST an alert here for every profitable run (default: log it)")
	f.Float64Var(&o.minReturn, "min-return", report.DefaultMinReturnPct, "total return % a run needs to count as profitable")
	f.IntVar(&o.top, "top", 5, "runs listed per strategy")
	f.StringVar(&o.outDir, "out", "", "directory for summary, trade and curve CSV exports")
	return cmd
}

func runBatch(ctx context.Context, out io.Writer, src model.SeriesReader, dbPath string, o batchOptions) error {
	days, err := model.ParsePeriod(o.period)
	if err != nil {
		return err
	}
	sets, err := config.LoadStrategies(o.strategiesFile)
	if err != nil {
		return err
	}
	registry := strategy.DefaultRegistry()
	// reject bad names and parameters before any data is read
	for _, sc := range sets {
		if _, err := registry.New(sc.Name, sc.Params); err != nil {
			return err
		}
	}

	symbols := splitList(o.symbols)
	if len(symbols) == 0 {
		if symbols, err = src.ListSymbols(ctx); err != nil {
			return err
		}
	}
	if len(symbols) == 0 {
		return errors.New("no symbols to backtest")
	}

	var jobs []backtest.Job
	for _, sym := range symbols {
		series, err := src.ReadSeries(ctx, sym)
		if err != nil {
			slog.Warn("skipping symbol", "symbol", sym, "error", err)
			continue
		}
		series = series.Trailing(days)
		for _, sc := range sets {
			s, _ := registry.New(sc.Name, sc.Params)
			jobs = append(jobs, backtest.Job{Series: series, Strategy: s, InitialCapital: o.capital})
		}
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	health := metrics.NewHealthStatus()

	var (
		sinks backtest.Sinks
		rdb   *goredis.Client
		w     *sqlite.Writer
	)
	if dbPath != "" {
		if w, err = sqlite.New(sqlite.WriterConfig{DBPath: dbPath}); err != nil {
			return err
		}
		defer w.Close()
		health.CheckSQLite(ctx, w.DB())
		sinks = append(sinks, w)
	}
	if o.redisAddr != "" {
		pub, err := redis.New(redis.Config{Addr: o.redisAddr, Password: o.redisPassword})
		if err != nil {
			return err
		}
		defer pub.Close()
		pub.Breaker().OnStateChange = func(from, to redis.State) {
			slog.Warn("redis circuit breaker", "from", from.String(), "to", to.String())
			m.SetBreakerState(int(to))
		}
		rdb = pub.Client()
		health.CheckRedis(ctx, rdb)
		sinks = append(sinks, pub)
	}
	var notifier notification.Notifier = notification.NewLogNotifier(nil)
	if o.webhookURL != "" {
		notifier = notification.NewWebhookNotifier(o.webhookURL)
	}
	sinks = append(sinks, &notification.ResultAlerts{Notifier: notifier, MinReturnPct: o.minReturn})
	if o.outDir != "" {
		sinks = append(sinks, &csvstore.Exporter{Dir: filepath.Join(o.outDir, "runs")})
	}

	if o.metricsAddr != "" {
		srv := metrics.NewServer(o.metricsAddr, health, reg)
		srv.Start()
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Stop(stopCtx)
		}()
		var sqlDB *sql.DB
		if w != nil {
			sqlDB = w.DB()
		}
		health.StartLivenessChecker(ctx, rdb, sqlDB, 15*time.Second)
	}

	b := &backtest.Batch{Workers: o.workers, Sink: sinks, Metrics: m, Health: health}
	outcomes, runErr := b.Run(ctx, jobs)

	summaries := make([]model.Summary, 0, len(outcomes))
	for _, res := range backtest.Results(outcomes) {
		summaries = append(summaries, res.Summary())
	}
	printBatchReport(out, outcomes, summaries, sets, o)

	if o.outDir != "" {
		if err := writeSummaryFiles(o.outDir, summaries, o.minReturn); err != nil {
			return err
		}
	}
	return runErr
}

func printBatchReport(out io.Writer, outcomes []backtest.Outcome, summaries []model.Summary, sets []config.StrategyConfig, o batchOptions) {
	failed, sinkFailed := 0, 0
	for _, oc := range outcomes {
		if oc.Failed() {
			failed++
		}
		if oc.SinkErr != nil {
			sinkFailed++
		}
	}
	fmt.Fprintf(out, "runs: %d  ok: %d  failed: %d  sink errors: %d\n\n", len(outcomes), len(summaries), failed, sinkFailed)
	if len(summaries) == 0 {
		return
	}

	report.RenderOverview(out, report.ByStrategy(summaries, o.minReturn))

	seen := map[string]bool{}
	for _, sc := range sets {
		if seen[sc.Name] {
			continue
		}
		seen[sc.Name] = true
		fmt.Fprintf(out, "\n%s top %d\n", sc.Name, o.top)
		report.RenderSummaries(out, report.TopN(summaries, sc.Name, o.top))
	}

	profitable := report.Profitable(summaries, o.minReturn)
	fmt.Fprintf(out, "\nprofitable (>= %.1f%%): %d\n", o.minReturn, len(profitable))
}

func writeSummaryFiles(dir string, summaries []model.Summary, minReturn float64) error {
	all := report.TopN(summaries, "", -1)
	if err := csvstore.WriteFile(filepath.Join(dir, "summary_all.csv"), func(w io.Writer) error {
		return csvstore.WriteSummaries(w, all)
	}); err != nil {
		return err
	}
	profitable := report.Profitable(summaries, minReturn)
	return csvstore.WriteFile(filepath.Join(dir, "summary_profitable.csv"), func(w io.Writer) error {
		return csvstore.WriteSummaries(w, profitable)
	})
}
