package backtest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trading-backtest/internal/logger"
	"trading-backtest/internal/metrics"
	"trading-backtest/internal/model"
	"trading-backtest/internal/strategy"
	"trading-backtest/internal/testutil"
)

var quiet = logger.New(io.Discard, "backtest", slog.LevelError)

type recordingSink struct {
	name   string
	failOn string

	mu   sync.Mutex
	runs []string
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) SaveResult(_ context.Context, res *model.BacktestResult) error {
	if res.Symbol == s.failOn {
		return errors.New("sink unavailable")
	}
	s.mu.Lock()
	s.runs = append(s.runs, res.RunID)
	s.mu.Unlock()
	return nil
}

func batchJobs(t *testing.T) []Job {
	var jobs []Job
	for i, sym := range []string{"AAA", "BBB", "CCC"} {
		series := testutil.Wave(sym, 200, float64(i)*2.7)
		for _, name := range strategy.DefaultRegistry().List() {
			jobs = append(jobs, Job{Series: series, Strategy: mustStrategy(t, name, nil), InitialCapital: 100000})
		}
	}
	// too short for any strategy
	jobs = append(jobs, Job{
		Series:         testutil.Constant("TINY", 5, 10, 100),
		Strategy:       mustStrategy(t, strategy.BreakoutName, nil),
		InitialCapital: 100000,
	})
	return jobs
}

func TestBatch_OutcomesInJobOrder(t *testing.T) {
	jobs := batchJobs(t)
	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics(reg)
	health := metrics.NewHealthStatus()

	b := &Batch{Workers: 3, Metrics: m, Health: health, Logger: quiet}
	outcomes, err := b.Run(context.Background(), jobs)
	require.NoError(t, err)
	require.Len(t, outcomes, len(jobs))

	batchID := outcomes[0].BatchID
	require.NotEmpty(t, batchID)
	for i, o := range outcomes {
		assert.Equal(t, jobs[i].Series.Symbol, o.Symbol)
		assert.Equal(t, jobs[i].Strategy.Name(), o.Strategy)
		assert.Equal(t, batchID, o.BatchID)
	}

	last := outcomes[len(outcomes)-1]
	assert.True(t, last.Failed())
	assert.Nil(t, last.Result)
	assert.ErrorIs(t, last.Err, model.ErrInsufficientData)

	for _, o := range outcomes[:len(outcomes)-1] {
		require.NoError(t, o.Err)
		require.NotNil(t, o.Result)
		assert.Equal(t, o.Symbol, o.Result.Symbol)
	}
	assert.Len(t, Results(outcomes), len(jobs)-1)

	assert.Equal(t, 3.0, promtest.ToFloat64(m.RunsTotal.WithLabelValues(strategy.BollingerName, "ok")))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.RunsTotal.WithLabelValues(strategy.BreakoutName, "insufficient_data")))
	assert.Equal(t, 0.0, promtest.ToFloat64(m.BatchInFlight))
	assert.Equal(t, len(jobs), health.JobsDone)
	assert.Equal(t, 1, health.JobsFailed)
}

func TestBatch_MatchesSequentialRuns(t *testing.T) {
	jobs := batchJobs(t)
	b := &Batch{Workers: 8, Logger: quiet}
	outcomes, err := b.Run(context.Background(), jobs)
	require.NoError(t, err)

	for i, job := range jobs[:len(jobs)-1] {
		want, err := Run(context.Background(), job.Series, job.Strategy, job.InitialCapital)
		require.NoError(t, err)
		assert.Equal(t, want, outcomes[i].Result, "job %d", i)
	}
}

func TestBatch_SinkFailureKeepsResult(t *testing.T) {
	good := &recordingSink{name: "memory"}
	flaky := &recordingSink{name: "flaky", failOn: "BBB"}
	m := metrics.NewMetrics(prometheus.NewRegistry())

	b := &Batch{Workers: 2, Sink: Sinks{good, flaky}, Metrics: m, Logger: quiet}
	jobs := batchJobs(t)
	outcomes, err := b.Run(context.Background(), jobs)
	require.NoError(t, err)

	for _, o := range outcomes {
		if o.Failed() {
			continue
		}
		require.NotNil(t, o.Result)
		if o.Symbol == "BBB" {
			assert.Error(t, o.SinkErr)
			assert.Contains(t, o.SinkErr.Error(), "flaky")
		} else {
			assert.NoError(t, o.SinkErr)
		}
	}

	assert.Len(t, good.runs, len(jobs)-1)
	assert.Len(t, flaky.runs, len(jobs)-1-3)
	assert.Equal(t, 3.0, promtest.ToFloat64(m.SinkErrors.WithLabelValues("flaky")))
	assert.Equal(t, 0.0, promtest.ToFloat64(m.SinkErrors.WithLabelValues("memory")))
}

func TestBatch_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	jobs := batchJobs(t)
	b := &Batch{Workers: 2, Logger: quiet}
	outcomes, err := b.Run(ctx, jobs)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, outcomes, len(jobs))
	for _, o := range outcomes {
		assert.ErrorIs(t, o.Err, context.Canceled)
		assert.Nil(t, o.Result)
	}
}

func TestBatch_EmptyAndDefaultWorkers(t *testing.T) {
	b := &Batch{}
	outcomes, err := b.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
}

func TestSinks_JoinsErrors(t *testing.T) {
	res := &model.BacktestResult{Symbol: "AAA", RunID: "r1"}
	a := &recordingSink{name: "a", failOn: "AAA"}
	b := &recordingSink{name: "b", failOn: "AAA"}
	c := &recordingSink{name: "c"}

	err := Sinks{a, b, c}.SaveResult(context.Background(), res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "a: sink unavailable")
	assert.Contains(t, err.Error(), "b: sink unavailable")
	assert.Equal(t, []string{"r1"}, c.runs)
}

func TestStatus(t *testing.T) {
	assert.Equal(t, "ok", Status(nil))
	assert.Equal(t, "insufficient_data", Status(&model.InsufficientDataError{}))
	assert.Equal(t, "invalid_parameter", Status(&model.InvalidParameterError{}))
	assert.Equal(t, "internal_error", Status(&model.InternalConsistencyError{}))
	assert.Equal(t, "cancelled", Status(context.Canceled))
	assert.Equal(t, "error", Status(errors.New("boom")))
}
