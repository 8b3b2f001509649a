package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"trading-backtest/internal/model"
)

// Sinks fans a result out to several sinks. Every sink is tried; the
// failures are joined.
type Sinks []model.ResultSink

func (s Sinks) SaveResult(ctx context.Context, res *model.BacktestResult) error {
	var errs []error
	for _, sink := range s {
		if err := sink.SaveResult(ctx, res); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", SinkName(sink), err))
		}
	}
	return errors.Join(errs...)
}

// SinkName returns the sink's Name() when it has one.
func SinkName(s model.ResultSink) string {
	if n, ok := s.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "sink"
}

// save hands res to each configured sink, timing them individually.
func (b *Batch) save(ctx context.Context, res *model.BacktestResult) error {
	sinks, ok := b.Sink.(Sinks)
	if !ok {
		sinks = Sinks{b.Sink}
	}
	var errs []error
	for _, sink := range sinks {
		start := time.Now()
		err := sink.SaveResult(ctx, res)
		b.Metrics.ObserveSink(SinkName(sink), time.Since(start), err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", SinkName(sink), err))
		}
	}
	return errors.Join(errs...)
}
