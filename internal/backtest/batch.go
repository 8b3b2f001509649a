package backtest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"trading-backtest/internal/metrics"
	"trading-backtest/internal/model"
	"trading-backtest/internal/strategy"
)

// Job is one (series, strategy) pair to simulate.
type Job struct {
	Series         model.PriceSeries
	Strategy       strategy.Strategy
	InitialCapital float64
}

// Outcome is the result of one Job. Exactly one of Result and Err is set.
// SinkErr reports a failure to hand a successful Result to the sink; it does
// not invalidate the Result.
type Outcome struct {
	BatchID  string
	Symbol   string
	Strategy string
	Result   *model.BacktestResult
	Err      error
	SinkErr  error
	Duration time.Duration
}

// Failed reports whether the run itself failed.
func (o Outcome) Failed() bool { return o.Err != nil }

// Batch runs many jobs on a bounded worker pool. Runs share no mutable
// state; each job gets its own account, ledger and indicator engine.
type Batch struct {
	Workers int              // <= 0 means GOMAXPROCS
	Sink    model.ResultSink // optional
	Metrics *metrics.Metrics // optional
	Health  *metrics.HealthStatus
	Logger  *slog.Logger
}

// Run executes jobs and returns one outcome per job, in job order. A failed
// run never aborts its siblings. When ctx is cancelled, jobs that have not
// started yet are recorded with ctx's error and Run returns that error.
func (b *Batch) Run(ctx context.Context, jobs []Job) ([]Outcome, error) {
	log := b.Logger
	if log == nil {
		log = slog.Default()
	}
	workers := b.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	batchID := uuid.NewString()
	log = log.With("batch_id", batchID)
	if b.Health != nil {
		b.Health.SetJobsTotal(len(jobs))
	}

	log.Info("batch started", "jobs", len(jobs), "workers", workers)
	start := time.Now()

	outcomes := make([]Outcome, len(jobs))
	var g errgroup.Group
	g.SetLimit(workers)
	for i := range jobs {
		i := i
		outcomes[i] = Outcome{BatchID: batchID, Symbol: jobs[i].Series.Symbol, Strategy: jobs[i].Strategy.Name()}
		if err := ctx.Err(); err != nil {
			outcomes[i].Err = err
			continue
		}
		g.Go(func() error {
			// cancellation is cooperative: checked between runs, never inside one
			if err := ctx.Err(); err != nil {
				outcomes[i].Err = err
				return nil
			}
			b.runJob(ctx, log, jobs[i], &outcomes[i])
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, o := range outcomes {
		if o.Failed() {
			failed++
		}
	}
	log.Info("batch finished", "jobs", len(jobs), "failed", failed, "elapsed", time.Since(start).Round(time.Millisecond).String())

	return outcomes, ctx.Err()
}

func (b *Batch) runJob(ctx context.Context, log *slog.Logger, job Job, out *Outcome) {
	b.Metrics.RunStarted()
	defer b.Metrics.RunDone()

	start := time.Now()
	res, err := Run(ctx, job.Series, job.Strategy, job.InitialCapital)
	out.Duration = time.Since(start)

	if err != nil {
		out.Err = fmt.Errorf("%s/%s: %w", out.Symbol, out.Strategy, err)
		log.Warn("backtest failed", "symbol", out.Symbol, "strategy", out.Strategy, "error", err)
		b.Metrics.ObserveRun(out.Strategy, Status(err), out.Duration, 0, len(job.Series.Bars))
		if b.Health != nil {
			b.Health.JobFinished(true)
		}
		return
	}

	out.Result = res
	b.Metrics.ObserveRun(out.Strategy, Status(nil), out.Duration, res.Stats.NumTrades, len(job.Series.Bars))
	if b.Health != nil {
		b.Health.JobFinished(false)
	}

	if b.Sink != nil {
		out.SinkErr = b.save(ctx, res)
		if out.SinkErr != nil {
			log.Warn("result sink failed", "run_id", res.RunID, "error", out.SinkErr)
		}
	}
}

// Status maps a run error to the status label used in metrics.
func Status(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, model.ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, model.ErrInvalidParameter):
		return "invalid_parameter"
	case errors.Is(err, model.ErrInternalConsistency):
		return "internal_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "error"
	}
}

// Results returns the successful results in job order.
func Results(outcomes []Outcome) []*model.BacktestResult {
	out := make([]*model.BacktestResult, 0, len(outcomes))
	for _, o := range outcomes {
		if o.Result != nil {
			out = append(out, o.Result)
		}
	}
	return out
}
