package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the backtest engine.
// Every method is safe to call on a nil *Metrics.
type Metrics struct {
	RunsTotal     *prometheus.CounterVec   // labels: strategy, status
	RunDuration   *prometheus.HistogramVec // labels: strategy
	TradesTotal   *prometheus.CounterVec   // labels: strategy
	BarsProcessed prometheus.Counter
	BatchInFlight prometheus.Gauge

	// Result sinks
	SinkErrors   *prometheus.CounterVec   // labels: sink
	SinkWriteDur *prometheus.HistogramVec // labels: sink

	// Circuit breaker
	RedisCircuitBreakerState prometheus.Gauge // 0=closed, 1=open, 2=half-open
	RedisCircuitBreakerTrips prometheus.Counter
}

// NewMetrics creates all metrics and registers them with reg.
// A nil reg registers with the process-wide default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backtest_runs_total",
			Help: "Backtest runs finished (by strategy and status)",
		}, []string{"strategy", "status"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "backtest_run_duration_seconds",
			Help:    "Wall time of a single backtest run",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}, []string{"strategy"}),
		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backtest_trades_total",
			Help: "Closed round-trip trades (by strategy)",
		}, []string{"strategy"}),
		BarsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtest_bars_processed_total",
			Help: "Daily bars evaluated across all runs",
		}),
		BatchInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "backtest_batch_in_flight",
			Help: "Runs currently executing in the batch worker pool",
		}),

		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "backtest_sink_errors_total",
			Help: "Result sink failures (by sink)",
		}, []string{"sink"}),
		SinkWriteDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "backtest_sink_write_duration_seconds",
			Help:    "Result sink write latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"sink"}),

		RedisCircuitBreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "backtest_redis_circuit_breaker_state",
			Help: "Redis circuit breaker state (0=closed, 1=open, 2=half-open)",
		}),
		RedisCircuitBreakerTrips: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "backtest_redis_circuit_breaker_trips_total",
			Help: "Times the Redis circuit breaker tripped open",
		}),
	}

	reg.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.TradesTotal,
		m.BarsProcessed,
		m.BatchInFlight,
		m.SinkErrors,
		m.SinkWriteDur,
		m.RedisCircuitBreakerState,
		m.RedisCircuitBreakerTrips,
	)

	return m
}

// ObserveRun records one finished run.
func (m *Metrics) ObserveRun(strategy, status string, dur time.Duration, trades, bars int) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(strategy, status).Inc()
	m.RunDuration.WithLabelValues(strategy).Observe(dur.Seconds())
	m.TradesTotal.WithLabelValues(strategy).Add(float64(trades))
	m.BarsProcessed.Add(float64(bars))
}

// RunStarted and RunDone track the worker pool occupancy.
func (m *Metrics) RunStarted() {
	if m != nil {
		m.BatchInFlight.Inc()
	}
}

func (m *Metrics) RunDone() {
	if m != nil {
		m.BatchInFlight.Dec()
	}
}

// ObserveSink records one sink write and its outcome.
func (m *Metrics) ObserveSink(sink string, dur time.Duration, err error) {
	if m == nil {
		return
	}
	m.SinkWriteDur.WithLabelValues(sink).Observe(dur.Seconds())
	if err != nil {
		m.SinkErrors.WithLabelValues(sink).Inc()
	}
}

// SetBreakerState mirrors the Redis circuit breaker state. A transition
// into open (1) counts as a trip.
func (m *Metrics) SetBreakerState(state int) {
	if m == nil {
		return
	}
	m.RedisCircuitBreakerState.Set(float64(state))
	if state == 1 {
		m.RedisCircuitBreakerTrips.Inc()
	}
}

// HealthStatus represents batch progress and sink health.
type HealthStatus struct {
	mu sync.RWMutex

	JobsTotal      int       `json:"jobs_total"`
	JobsDone       int       `json:"jobs_done"`
	JobsFailed     int       `json:"jobs_failed"`
	LastRunAt      time.Time `json:"last_run_at"`
	RedisEnabled   bool      `json:"redis_enabled"`
	RedisConnected bool      `json:"redis_connected"`
	SQLiteEnabled  bool      `json:"sqlite_enabled"`
	SQLiteOK       bool      `json:"sqlite_ok"`

	// Liveness probe results
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{
		StartedAt: time.Now(),
	}
}

// SetJobsTotal records the size of the batch.
func (h *HealthStatus) SetJobsTotal(n int) {
	h.mu.Lock()
	h.JobsTotal = n
	h.mu.Unlock()
}

// JobFinished records one completed job.
func (h *HealthStatus) JobFinished(failed bool) {
	h.mu.Lock()
	h.JobsDone++
	if failed {
		h.JobsFailed++
	}
	h.LastRunAt = time.Now()
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisEnabled = true
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteEnabled = true
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs periodic dependency checks. Nil clients are skipped.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
				if rdb != nil {
					h.CheckRedis(probeCtx, rdb)
				}
				if sqlDB != nil {
					h.CheckSQLite(probeCtx, sqlDB)
				}
				cancel()
			}
		}
	}()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if (h.RedisEnabled && !h.RedisConnected) || (h.SQLiteEnabled && !h.SQLiteOK) {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	lastRun := ""
	if !h.LastRunAt.IsZero() {
		lastRun = h.LastRunAt.Format(time.RFC3339)
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		JobsTotal       int     `json:"jobs_total"`
		JobsDone        int     `json:"jobs_done"`
		JobsFailed      int     `json:"jobs_failed"`
		LastRunAt       string  `json:"last_run_at"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		JobsTotal:       h.JobsTotal,
		JobsDone:        h.JobsDone,
		JobsFailed:      h.JobsFailed,
		LastRunAt:       lastRun,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server. A nil gatherer serves the
// default registry.
func NewServer(addr string, health *HealthStatus, gatherer prometheus.Gatherer) *Server {
	mux := http.NewServeMux()
	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	} else {
		mux.Handle("/metrics", promhttp.Handler())
	}
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		health: health,
		addr:   addr,
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Handler exposes the server's routes, mainly for tests.
func (s *Server) Handler() http.Handler { return s.srv.Handler }

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("metrics server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
