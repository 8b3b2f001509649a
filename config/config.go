// Package config loads runtime settings from the environment (optionally
// seeded from a .env file) and strategy sets from YAML.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Data
	DataDir        string
	StrategiesFile string
	InitialCapital float64
	Workers        int

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string
	WebhookURL    string

	LogLevel string
}

// LoadEnvFile loads path (".env" when empty) into the environment. A missing
// file is not an error; variables already set are not overridden.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load reads configuration from environment variables with sensible defaults.
// Redis, SQLite and the metrics server are disabled while their variable is empty.
func Load() *Config {
	return &Config{
		DataDir:        getEnv("DATA_DIR", "data"),
		StrategiesFile: getEnv("STRATEGIES_FILE", ""),
		InitialCapital: getEnvFloat("INITIAL_CAPITAL", 100000),
		Workers:        getEnvInt("WORKERS", 4),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", ""),
		MetricsAddr:   getEnv("METRICS_ADDR", ""),
		WebhookURL:    getEnv("WEBHOOK_URL", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("config: invalid number, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return f
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		slog.Warn("config: invalid positive integer, using default", "key", key, "value", v, "default", fallback)
		return fallback
	}
	return n
}
