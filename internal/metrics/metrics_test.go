package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestHealth_StoreDownIsUnhealthy(t *testing.T) {
	h := NewHealthStatus("sqlite", "file")
	h.CheckStore(context.Background(), fakePinger{err: errors.New("locked")})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var r Report
	if err := json.NewDecoder(rec.Body).Decode(&r); err != nil {
		t.Fatal(err)
	}
	if r.Status != "unhealthy" || r.StoreOK {
		t.Errorf("unexpected report: %+v", r)
	}
}

func TestHealth_StoreUpIsHealthy(t *testing.T) {
	h := NewHealthStatus("sqlite", "file")
	h.CheckStore(context.Background(), fakePinger{})

	r, code := h.Snapshot()
	if code != http.StatusOK || r.Status != "healthy" {
		t.Errorf("expected healthy/200, got %s/%d", r.Status, code)
	}
	if r.LastSweepAt != "" {
		t.Errorf("no sweep yet, got %q", r.LastSweepAt)
	}
}

// gathered returns the first sample of a metric family as gauge or counter.
func gathered(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatal(err)
	}
	for _, mf := range mfs {
		if mf.GetName() != name || len(mf.GetMetric()) == 0 {
			continue
		}
		m := mf.GetMetric()[0]
		if m.GetCounter() != nil {
			return m.GetCounter().GetValue()
		}
		return m.GetGauge().GetValue()
	}
	t.Fatalf("metric %s not gathered", name)
	return 0
}

func TestObserveBreaker(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWith(reg)

	m.ObserveBreaker("predictor", 0, 1)
	m.ObserveBreaker("predictor", 1, 2)
	m.ObserveBreaker("predictor", 2, 1)

	if got := gathered(t, reg, "marketlens_circuit_breaker_trips_total"); got != 2 {
		t.Errorf("trips = %v, want 2", got)
	}
	if got := gathered(t, reg, "marketlens_circuit_breaker_state"); got != 1 {
		t.Errorf("state = %v, want 1", got)
	}
}
