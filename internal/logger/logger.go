// Package logger provides structured logging using Go 1.21's log/slog.
// It sets up a JSON handler with service-level context and provides
// run ID propagation through context.Context.
package logger

import (
	"context"
	"fmt"
	"hash/fnv"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"
)

type ctxKey string

const runIDKey ctxKey = "run_id"

// Init creates and returns a structured logger for the given service.
// The logger outputs JSON to stdout with the service name embedded.
func Init(service string, level slog.Level) *slog.Logger {
	logger := New(os.Stdout, service, level)

	// Set as default so log/slog.Info() etc. also use structured output
	slog.SetDefault(logger)

	return logger
}

// New creates a JSON logger writing to w without touching the default logger.
func New(w io.Writer, service string, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler).With(
		slog.String("service", service),
	)
}

// ParseLevel maps "debug", "info", "warn" and "error" to slog levels.
// Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithRunID stores a run ID in the context for downstream propagation.
func WithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey, runID)
}

// RunID extracts the run ID from context. Returns "" if not set.
func RunID(ctx context.Context) string {
	if v, ok := ctx.Value(runIDKey).(string); ok {
		return v
	}
	return ""
}

// GenerateRunID derives a run ID from the run's inputs.
// Format: "{symbol}-{strategy}-{lastBarYYYYMMDD}-{inputsHash}". The hash
// covers the parameters, the initial capital and the first bar's date, so
// runs over a trailing window or with another capital get their own ID.
func GenerateRunID(symbol, strategy string, params map[string]float64, initialCapital float64, firstBar, lastBar time.Time) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	h := fnv.New32a()
	for _, k := range keys {
		fmt.Fprintf(h, "%s=%g;", k, params[k])
	}
	fmt.Fprintf(h, "capital=%g;from=%s;", initialCapital, firstBar.Format("20060102"))
	return fmt.Sprintf("%s-%s-%s-%08x", symbol, strategy, lastBar.Format("20060102"), h.Sum32())
}

// LogWithRun returns slog attributes including the run ID from context.
// Usage: slog.Info("msg", logger.LogWithRun(ctx)...)
func LogWithRun(ctx context.Context) []any {
	rid := RunID(ctx)
	if rid == "" {
		return nil
	}
	return []any{slog.String("run_id", rid)}
}
