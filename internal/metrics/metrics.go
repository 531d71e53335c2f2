package metrics

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the analysis service.
type Metrics struct {
	// HTTP surface
	HTTPRequests *prometheus.CounterVec   // labels: route, code
	HTTPDuration *prometheus.HistogramVec // labels: route

	// Pipeline stages
	ComputeDur      *prometheus.HistogramVec // labels: op=indicators|trend|predict|movers
	StoreErrors     prometheus.Counter
	PredictorErrors prometheus.Counter
	RowsServed      prometheus.Counter

	// Circuit breakers
	BreakerState *prometheus.GaugeVec   // labels: name. 0=closed, 1=open, 2=half-open
	BreakerTrips *prometheus.CounterVec // labels: name

	// Live push
	WSClients       prometheus.Gauge
	WSDroppedFrames prometheus.Counter

	// Scheduled sweeps
	SweepsTotal      prometheus.Counter
	SweepFailures    prometheus.Gauge
	SweepDur         prometheus.Histogram
	LastSweepSuccess prometheus.Gauge
}

// NewMetrics registers all metrics on the default registry.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith registers all metrics on reg.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketlens_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "marketlens_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),

		ComputeDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "marketlens_compute_duration_seconds",
			Help:    "Analysis latency per operation, including the store fetch",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"op"}),
		StoreErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketlens_store_errors_total",
			Help: "Series store failures other than not-found",
		}),
		PredictorErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketlens_predictor_errors_total",
			Help: "Predictor load or inference failures",
		}),
		RowsServed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketlens_indicator_rows_total",
			Help: "Indicator rows computed",
		}),

		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "marketlens_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		}, []string{"name"}),
		BreakerTrips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketlens_circuit_breaker_trips_total",
			Help: "Times a circuit breaker tripped open",
		}, []string{"name"}),

		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketlens_ws_clients",
			Help: "Connected websocket clients",
		}),
		WSDroppedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketlens_ws_dropped_frames_total",
			Help: "Frames dropped because a client send buffer was full",
		}),

		SweepsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketlens_sweeps_total",
			Help: "Completed trend sweeps",
		}),
		SweepFailures: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketlens_sweep_failures",
			Help: "Symbols that failed in the last sweep",
		}),
		SweepDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "marketlens_sweep_duration_seconds",
			Help:    "Wall time of a full sweep",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
		}),
		LastSweepSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketlens_last_sweep_timestamp_seconds",
			Help: "Unix time of the last completed sweep",
		}),
	}

	reg.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.ComputeDur,
		m.StoreErrors,
		m.PredictorErrors,
		m.RowsServed,
		m.BreakerState,
		m.BreakerTrips,
		m.WSClients,
		m.WSDroppedFrames,
		m.SweepsTotal,
		m.SweepFailures,
		m.SweepDur,
		m.LastSweepSuccess,
	)

	return m
}

// ObserveBreaker returns a state-change hook for a circuit breaker. States
// are passed as their gauge values.
func (m *Metrics) ObserveBreaker(name string, from, to int) {
	m.BreakerState.WithLabelValues(name).Set(float64(to))
	if to == 1 && from != 1 {
		m.BreakerTrips.WithLabelValues(name).Inc()
	}
}

// Pinger is anything that can report reachability, e.g. a SQL store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthStatus represents the system health.
type HealthStatus struct {
	mu sync.RWMutex

	StoreDriver    string `json:"store_driver"`
	StoreOK        bool   `json:"store_ok"`
	RedisEnabled   bool   `json:"redis_enabled"`
	RedisConnected bool   `json:"redis_connected"`
	PredictorKind  string `json:"predictor_kind"`
	LastSweepAt    time.Time `json:"last_sweep_at"`

	// Liveness probe results
	StoreLatencyMs float64   `json:"store_latency_ms"`
	RedisLatencyMs float64   `json:"redis_latency_ms"`
	LastCheckAt    time.Time `json:"last_check_at"`
	StartedAt      time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus(storeDriver, predictorKind string) *HealthStatus {
	return &HealthStatus{
		StoreDriver:   storeDriver,
		PredictorKind: predictorKind,
		StartedAt:     time.Now(),
	}
}

func (h *HealthStatus) SetLastSweep(t time.Time) {
	h.mu.Lock()
	h.LastSweepAt = t
	h.mu.Unlock()
}

// CheckStore pings the series store and records latency + health.
func (h *HealthStatus) CheckStore(ctx context.Context, p Pinger) {
	start := time.Now()
	err := p.Ping(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.StoreOK = err == nil
	h.StoreLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
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

// StartLivenessChecker runs periodic dependency checks. Either probe may be nil.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, store Pinger, rdb *goredis.Client, interval time.Duration) {
	check := func() {
		probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if store != nil {
			h.CheckStore(probeCtx, store)
		}
		if rdb != nil {
			h.CheckRedis(probeCtx, rdb)
		}
	}
	check()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				check()
			}
		}
	}()
}

// Report is the JSON body served by ServeHTTP.
type Report struct {
	Status         string  `json:"status"`
	Uptime         string  `json:"uptime"`
	StoreDriver    string  `json:"store_driver"`
	StoreOK        bool    `json:"store_ok"`
	StoreLatencyMs float64 `json:"store_latency_ms"`
	RedisEnabled   bool    `json:"redis_enabled"`
	RedisConnected bool    `json:"redis_connected"`
	RedisLatencyMs float64 `json:"redis_latency_ms"`
	PredictorKind  string  `json:"predictor_kind"`
	LastSweepAt    string  `json:"last_sweep_at,omitempty"`
	LastCheckAt    string  `json:"last_check_at"`
}

// Snapshot returns the current report and the HTTP code it maps to.
func (h *HealthStatus) Snapshot() (Report, int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK

	if h.RedisEnabled && !h.RedisConnected {
		overallStatus = "degraded"
	}
	if !h.StoreOK {
		overallStatus = "unhealthy"
		httpCode = http.StatusServiceUnavailable
	}

	r := Report{
		Status:         overallStatus,
		Uptime:         time.Since(h.StartedAt).Round(time.Second).String(),
		StoreDriver:    h.StoreDriver,
		StoreOK:        h.StoreOK,
		StoreLatencyMs: h.StoreLatencyMs,
		RedisEnabled:   h.RedisEnabled,
		RedisConnected: h.RedisConnected,
		RedisLatencyMs: h.RedisLatencyMs,
		PredictorKind:  h.PredictorKind,
		LastCheckAt:    h.LastCheckAt.Format(time.RFC3339),
	}
	if !h.LastSweepAt.IsZero() {
		r.LastSweepAt = h.LastSweepAt.Format(time.RFC3339)
	}
	return r, httpCode
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	report, httpCode := h.Snapshot()

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(report)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	health *HealthStatus
	addr   string
	srv    *http.Server
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
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

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		log.Printf("[metrics] server listening on %s", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Printf("[metrics] server error: %v", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
