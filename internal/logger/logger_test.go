package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestInit(t *testing.T) {
	logger := Init("test-service", slog.LevelInfo)
	if logger == nil {
		t.Fatal("expected non-nil logger")
	}
}

func TestNew_WritesServiceAttr(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "backtest", slog.LevelInfo)
	log.Debug("dropped")
	log.Info("kept", "symbol", "AAA")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), buf.String())
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if rec["service"] != "backtest" || rec["symbol"] != "AAA" {
		t.Errorf("unexpected record %v", rec)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		" INFO ":  slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRunID_RoundTrip(t *testing.T) {
	ctx := context.Background()

	// No run ID set
	if rid := RunID(ctx); rid != "" {
		t.Errorf("expected empty run id, got %q", rid)
	}

	// Set and retrieve
	ctx = WithRunID(ctx, "test-run-123")
	if rid := RunID(ctx); rid != "test-run-123" {
		t.Errorf("expected 'test-run-123', got %q", rid)
	}
}

func TestGenerateRunID(t *testing.T) {
	first := time.Date(2023, 1, 16, 0, 0, 0, 0, time.UTC)
	last := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	params := map[string]float64{"window": 20, "k": 2}
	rid := GenerateRunID("2330", "bollinger", params, 100000, first, last)

	if !strings.HasPrefix(rid, "2330-bollinger-20240115-") {
		t.Errorf("unexpected run id prefix: %s", rid)
	}
	// Map iteration order must not leak into the ID
	for i := 0; i < 10; i++ {
		if again := GenerateRunID("2330", "bollinger", map[string]float64{"k": 2, "window": 20}, 100000, first, last); again != rid {
			t.Fatalf("run id not deterministic: %s vs %s", rid, again)
		}
	}

	others := map[string]string{
		"params":    GenerateRunID("2330", "bollinger", map[string]float64{"window": 20, "k": 2.5}, 100000, first, last),
		"capital":   GenerateRunID("2330", "bollinger", params, 5000, first, last),
		"first bar": GenerateRunID("2330", "bollinger", params, 100000, first.AddDate(0, 6, 0), last),
	}
	for name, other := range others {
		if other == rid {
			t.Errorf("different %s produced the same run id %s", name, rid)
		}
	}
}

func TestLogWithRun(t *testing.T) {
	ctx := context.Background()

	// No run ID
	attrs := LogWithRun(ctx)
	if attrs != nil {
		t.Errorf("expected nil attrs when no run id, got %v", attrs)
	}

	ctx = WithRunID(ctx, "abc-123")
	attrs = LogWithRun(ctx)
	if len(attrs) == 0 {
		t.Fatal("expected non-empty attrs with run id set")
	}
}
