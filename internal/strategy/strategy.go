// Package strategy defines the entry/exit rules the backtest driver runs.
//
// A Strategy is a pair of pure predicates over indicator frames. It holds no
// per-run state, so one value can be shared by any number of concurrent runs.
// Position tracking, sizing and bookkeeping live in the driver.
package strategy

import (
	"fmt"
	"sort"

	"trading-backtest/internal/indicator"
	"trading-backtest/internal/model"
)

// Signal is an entry decision.
type Signal struct {
	Side   model.Side
	Reason string
}

// Strategy is the interface that all trading strategies must implement.
type Strategy interface {
	// Name returns the unique identifier for this strategy.
	Name() string

	// MinBars is the shortest series the strategy can be run on.
	MinBars() int

	// Indicators returns the windows the strategy's frames are computed with.
	Indicators() indicator.Params

	// Params returns the effective parameters, defaults included.
	Params() map[string]float64

	// Entry is evaluated only while flat. prev is nil on the first bar.
	Entry(prev, cur *indicator.Frame) (Signal, bool)

	// Exit is evaluated only while a position is open and returns the exit reason.
	Exit(pos model.Position, prev, cur *indicator.Frame) (string, bool)
}

// Factory builds a strategy from parameter overrides.
type Factory func(overrides map[string]float64) (Strategy, error)

// Registry holds a named collection of strategy factories.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry creates an empty strategy Registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// DefaultRegistry returns a registry holding every built-in strategy.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(BollingerName, func(o map[string]float64) (Strategy, error) { return NewBollinger(o) })
	r.Register(BreakoutName, func(o map[string]float64) (Strategy, error) { return NewBreakout(o) })
	r.Register(PivotName, func(o map[string]float64) (Strategy, error) { return NewPivot(o) })
	return r
}

// Register adds a factory under name, replacing any previous one.
func (r *Registry) Register(name string, f Factory) {
	r.factories[name] = f
}

// New builds the named strategy. An unknown name is an InvalidParameterError.
func (r *Registry) New(name string, overrides map[string]float64) (Strategy, error) {
	f, ok := r.factories[name]
	if !ok {
		return nil, &model.InvalidParameterError{
			Param:  "strategy",
			Reason: fmt.Sprintf("unknown strategy %q (known: %v)", name, r.List()),
		}
	}
	return f(overrides)
}

// List returns a sorted slice of all registered strategy names.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// mergeParams overlays overrides on defaults. Keys the strategy does not
// know are rejected.
func mergeParams(strategy string, defaults, overrides map[string]float64) (map[string]float64, error) {
	out := make(map[string]float64, len(defaults))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range overrides {
		if _, ok := defaults[k]; !ok {
			return nil, &model.InvalidParameterError{
				Param:  k,
				Reason: fmt.Sprintf("not a parameter of %s", strategy),
			}
		}
		out[k] = v
	}
	return out, nil
}

func copyParams(p map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// window converts a float parameter into a window length.
func window(name string, v float64, min int) (int, error) {
	n := int(v)
	if float64(n) != v || n < min {
		return 0, &model.InvalidParameterError{
			Param:  name,
			Reason: fmt.Sprintf("must be an integer >= %d, got %g", min, v),
		}
	}
	return n, nil
}
