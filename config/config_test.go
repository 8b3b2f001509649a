package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"DATA_DIR", "INITIAL_CAPITAL", "WORKERS", "REDIS_ADDR", "SQLITE_PATH", "METRICS_ADDR", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, 100000.0, cfg.InitialCapital)
	assert.Equal(t, 4, cfg.Workers)
	assert.Empty(t, cfg.RedisAddr)
	assert.Empty(t, cfg.SQLitePath)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATA_DIR", "/tmp/prices")
	t.Setenv("INITIAL_CAPITAL", "250000")
	t.Setenv("WORKERS", "0") // invalid, default kept
	t.Setenv("REDIS_ADDR", "localhost:6379")

	cfg := Load()
	assert.Equal(t, "/tmp/prices", cfg.DataDir)
	assert.Equal(t, 250000.0, cfg.InitialCapital)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	assert.NoError(t, LoadEnvFile(filepath.Join(dir, "missing.env")))

	path := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(path, []byte("BACKTEST_TEST_WORKERS=7\n"), 0o644))
	t.Cleanup(func() { os.Unsetenv("BACKTEST_TEST_WORKERS") })

	require.NoError(t, LoadEnvFile(path))
	assert.Equal(t, 7, getEnvInt("BACKTEST_TEST_WORKERS", 1))
}

func TestLoadStrategies(t *testing.T) {
	got, err := LoadStrategies("")
	require.NoError(t, err)
	assert.Equal(t, DefaultStrategies(), got)

	path := filepath.Join(t.TempDir(), "strategies.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
strategies:
  - name: bollinger
    params:
      window: 30
      k: 2.5
  - name: pivot
`), 0o644))

	got, err = LoadStrategies(path)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, StrategyConfig{Name: "bollinger", Params: map[string]float64{"window": 30, "k": 2.5}}, got[0])
	assert.Equal(t, "pivot", got[1].Name)
	assert.Nil(t, got[1].Params)
}

func TestLoadStrategies_Errors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
		return p
	}

	tests := map[string]string{
		"missing file": filepath.Join(dir, "nope.yaml"),
		"empty list":   write("empty.yaml", "strategies: []\n"),
		"no name":      write("noname.yaml", "strategies:\n  - params: {k: 2}\n"),
		"bad yaml":     write("bad.yaml", "strategies: [\n"),
		"bad param":    write("param.yaml", "strategies:\n  - name: pivot\n    params: {volume_threshold: high}\n"),
	}
	for name, path := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadStrategies(path)
			assert.Error(t, err)
		})
	}
}
