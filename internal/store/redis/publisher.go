// Package redis publishes backtest summaries to Redis: a latest-summary key
// per (symbol, strategy), a per-strategy leaderboard and a PubSub channel.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"trading-backtest/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	defaultSummaryTTL   = 24 * time.Hour
	defaultMaxFailures  = 5
	defaultResetTimeout = 10 * time.Second
)

var _ model.ResultSink = (*Publisher)(nil)

// SummaryKey holds the latest summary JSON of one (symbol, strategy) pair.
func SummaryKey(symbol, strategy string) string {
	return "backtest:summary:" + symbol + ":" + strategy
}

// LeaderboardKey is the sorted set of run IDs scored by total return.
func LeaderboardKey(strategy string) string {
	return "backtest:leaderboard:" + strategy
}

// Channel is the PubSub channel summaries of strategy are published on.
func Channel(strategy string) string {
	return "pub:backtest:" + strategy
}

// Config configures the Redis publisher.
type Config struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int

	SummaryTTL   time.Duration // lifetime of summary keys (default 24h)
	MaxFailures  int           // consecutive failures before the breaker opens (default 5)
	ResetTimeout time.Duration // open time before a half-open probe (default 10s)
}

func (c *Config) withDefaults() {
	if c.SummaryTTL <= 0 {
		c.SummaryTTL = defaultSummaryTTL
	}
	if c.MaxFailures <= 0 {
		c.MaxFailures = defaultMaxFailures
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = defaultResetTimeout
	}
}

// Publisher writes summaries through a circuit breaker so an unreachable
// Redis fails fast instead of stalling every job.
type Publisher struct {
	client *goredis.Client
	cb     *CircuitBreaker
	ttl    time.Duration
}

// New creates a Publisher and pings the server.
func New(cfg Config) (*Publisher, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	slog.Info("redis connected", "addr", cfg.Addr)
	return NewPublisher(client, cfg), nil
}

// NewPublisher wraps an existing client without pinging it.
func NewPublisher(client *goredis.Client, cfg Config) *Publisher {
	cfg.withDefaults()
	return &Publisher{
		client: client,
		cb:     NewCircuitBreaker(cfg.MaxFailures, cfg.ResetTimeout),
		ttl:    cfg.SummaryTTL,
	}
}

// Client returns the underlying Redis client for health checks.
func (p *Publisher) Client() *goredis.Client { return p.client }

// Breaker exposes the circuit breaker so callers can hook OnStateChange.
func (p *Publisher) Breaker() *CircuitBreaker { return p.cb }

func (p *Publisher) Name() string { return "redis" }

// SaveResult pipelines SET summary + ZADD leaderboard + PUBLISH.
func (p *Publisher) SaveResult(ctx context.Context, res *model.BacktestResult) error {
	summary := res.Summary()
	data := string(summary.JSON())

	return p.cb.Execute(func() error {
		pipe := p.client.TxPipeline()
		pipe.Set(ctx, SummaryKey(res.Symbol, res.Strategy), data, p.ttl)
		pipe.ZAdd(ctx, LeaderboardKey(res.Strategy), &goredis.Z{Score: res.TotalReturnPct, Member: res.RunID})
		pipe.Publish(ctx, Channel(res.Strategy), data)

		if _, err := pipe.Exec(ctx); err != nil {
			return fmt.Errorf("redis publish %s: %w", res.RunID, err)
		}
		return nil
	})
}

// Latest returns the stored summary for (symbol, strategy), or nil when
// none exists.
func (p *Publisher) Latest(ctx context.Context, symbol, strategy string) (*model.Summary, error) {
	data, err := p.client.Get(ctx, SummaryKey(symbol, strategy)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis GET %s: %w", SummaryKey(symbol, strategy), err)
	}
	var s model.Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal summary: %w", err)
	}
	return &s, nil
}

// Leaderboard returns the top n runs of strategy by total return.
func (p *Publisher) Leaderboard(ctx context.Context, strategy string, n int64) ([]model.Ranking, error) {
	if n <= 0 {
		return nil, nil
	}
	zs, err := p.client.ZRevRangeWithScores(ctx, LeaderboardKey(strategy), 0, n-1).Result()
	if err != nil {
		return nil, fmt.Errorf("redis ZREVRANGE %s: %w", LeaderboardKey(strategy), err)
	}
	out := make([]model.Ranking, 0, len(zs))
	for _, z := range zs {
		out = append(out, model.Ranking{RunID: fmt.Sprint(z.Member), TotalReturnPct: z.Score})
	}
	return out, nil
}

// Close closes the Redis client.
func (p *Publisher) Close() error {
	return p.client.Close()
}
