package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// StrategyConfig names one strategy and its parameter overrides.
type StrategyConfig struct {
	Name   string             `yaml:"name"`
	Params map[string]float64 `yaml:"params"`
}

type strategiesFile struct {
	Strategies []StrategyConfig `yaml:"strategies"`
}

// DefaultStrategies runs every built-in strategy with default parameters.
func DefaultStrategies() []StrategyConfig {
	return []StrategyConfig{{Name: "bollinger"}, {Name: "breakout"}, {Name: "pivot"}}
}

// LoadStrategies reads a strategy set such as
//
//	strategies:
//	  - name: breakout
//	    params: {stop_loss_pct: 6, take_profit_pct: 15}
//
// An empty path returns DefaultStrategies. Names and parameters are checked
// later by the strategy registry.
func LoadStrategies(path string) ([]StrategyConfig, error) {
	if path == "" {
		return DefaultStrategies(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f strategiesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if len(f.Strategies) == 0 {
		return nil, fmt.Errorf("%s: no strategies listed", path)
	}
	for i, s := range f.Strategies {
		if s.Name == "" {
			return nil, fmt.Errorf("%s: strategy %d has no name", path, i)
		}
	}
	return f.Strategies, nil
}
