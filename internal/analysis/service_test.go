package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"testing"
	"time"

	"marketlens/internal/forecast"
	"marketlens/internal/metrics"
	"marketlens/internal/model"

	"github.com/prometheus/client_golang/prometheus"
)

// ── fakes ──

type memStore struct {
	series map[string]model.Series
	info   []model.StockInfo
	err    error
}

func newMemStore() *memStore {
	return &memStore{series: make(map[string]model.Series)}
}

func (m *memStore) add(symbol string, closes ...float64) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := model.Series{Symbol: symbol}
	for i, c := range closes {
		s.Points = append(s.Points, model.PricePoint{
			Date: start.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c,
		})
	}
	m.series[symbol] = s
}

func (m *memStore) Fetch(_ context.Context, symbol string, _ model.DateRange) (model.Series, error) {
	if m.err != nil {
		return model.Series{}, m.err
	}
	s, ok := m.series[model.NormalizeSymbol(symbol)]
	if !ok {
		return model.Series{}, model.NotFoundf("symbol %s", symbol)
	}
	return s.Clone(), nil
}

func (m *memStore) Symbols(context.Context) ([]string, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []string
	for k := range m.series {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) Search(_ context.Context, q string, limit int) ([]model.StockInfo, error) {
	var out []model.StockInfo
	for _, si := range m.info {
		if strings.Contains(strings.ToLower(si.Symbol+si.CompanyName), strings.ToLower(q)) {
			out = append(out, si)
		}
	}
	return out, nil
}

func (m *memStore) ByCategory(_ context.Context, c string) ([]model.StockInfo, error) {
	var out []model.StockInfo
	for _, si := range m.info {
		if strings.EqualFold(si.Category, c) {
			out = append(out, si)
		}
	}
	return out, nil
}

func (m *memStore) AllStocks(context.Context) ([]model.StockInfo, error) { return m.info, nil }

func (m *memStore) Categories(context.Context) ([]string, error) { return []string{"Banking"}, nil }

// recentStore adds the single-query RecentCloser path.
type recentStore struct {
	*memStore
	calls int
}

func (r *recentStore) RecentCloses(ctx context.Context, n int) (map[string][]float64, error) {
	r.calls++
	out := make(map[string][]float64)
	for sym, s := range r.series {
		closes := s.Closes()
		for i := len(closes) - 1; i >= 0 && len(out[sym]) < n; i-- {
			out[sym] = append(out[sym], closes[i])
		}
	}
	return out, nil
}

type mapSource map[string]forecast.Predictor

func (m mapSource) Load(_ context.Context, symbol string) (forecast.Predictor, error) {
	p, ok := m[symbol]
	if !ok {
		return nil, model.NotFoundf("model for %s", symbol)
	}
	return p, nil
}

func ramp(n int, from, step float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = from + float64(i)*step
	}
	return out
}

// ── Indicators / Trend ──

func TestIndicators_ResamplesAndComputes(t *testing.T) {
	st := newMemStore()
	st.add("NABIL", ramp(400, 100, 1)...)
	svc := New(Options{Store: st})

	rows, err := svc.Indicators(context.Background(), "nabil", model.TF6M)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 180 {
		t.Fatalf("6M should keep the last 180 rows, got %d", len(rows))
	}
	if rows[len(rows)-1].Close.Float64 != 499 {
		t.Errorf("last close = %v", rows[len(rows)-1].Close)
	}

	weekly, err := svc.Indicators(context.Background(), "NABIL", model.TF1W)
	if err != nil {
		t.Fatal(err)
	}
	if len(weekly) >= 400 || len(weekly) < 57 {
		t.Errorf("weekly bucket count out of range: %d", len(weekly))
	}
}

func TestIndicators_Errors(t *testing.T) {
	svc := New(Options{Store: newMemStore()})

	_, err := svc.Indicators(context.Background(), "NONE", model.TF1Y)
	if !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}

	_, err = svc.Indicators(context.Background(), "NONE", model.Timeframe("2D"))
	if !errors.Is(err, model.ErrUnknownTimeframe) {
		t.Errorf("expected ErrUnknownTimeframe, got %v", err)
	}
}

func TestStoreFailureIsUpstream(t *testing.T) {
	st := newMemStore()
	st.err = errors.New("disk I/O error")
	reg := prometheus.NewRegistry()
	svc := New(Options{Store: st, Metrics: metrics.NewMetricsWith(reg)})

	_, err := svc.Trend(context.Background(), "NABIL")
	var ue *model.UpstreamError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UpstreamError, got %v", err)
	}
}

func TestTrend(t *testing.T) {
	st := newMemStore()
	st.add("UP", ramp(60, 100, 1)...)
	svc := New(Options{Store: st})

	v, err := svc.Trend(context.Background(), "up")
	if err != nil {
		t.Fatal(err)
	}
	if v.ShortTerm != model.Uptrend || v.MidTerm != model.Uptrend || v.LongTerm != model.Uptrend {
		t.Errorf("rising series should be uptrend everywhere: %+v", v)
	}
	if v.Confidence <= 0 {
		t.Errorf("expected positive confidence, got %v", v.Confidence)
	}
}

// ── Predict ──

func TestPredict_ModelLookupFirst(t *testing.T) {
	st := newMemStore()
	st.add("SHORT", 1, 2, 3)
	svc := New(Options{Store: st, Models: mapSource{}})

	_, err := svc.Predict(context.Background(), "short")
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("missing model must be NotFound even with short history, got %v", err)
	}
}

func TestPredict_NoSourceIsNotFound(t *testing.T) {
	svc := New(Options{Store: newMemStore()})
	if _, err := svc.Predict(context.Background(), "X"); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestPredict_InsufficientHistory(t *testing.T) {
	st := newMemStore()
	st.add("SHORT", ramp(10, 1, 1)...)
	svc := New(Options{Store: st, Models: mapSource{"SHORT": forecast.Flat}})

	_, err := svc.Predict(context.Background(), "SHORT")
	var ih *model.InsufficientHistoryError
	if !errors.As(err, &ih) || ih.Have != 10 || ih.Need != 60 {
		t.Errorf("expected InsufficientHistoryError{10,60}, got %v", err)
	}
}

func TestPredict_FlatModel(t *testing.T) {
	st := newMemStore()
	st.add("NABIL", ramp(80, 500, 0.5)...)
	svc := New(Options{Store: st, Models: mapSource{"NABIL": forecast.Flat}})

	rep, err := svc.Predict(context.Background(), "nabil")
	if err != nil {
		t.Fatal(err)
	}
	if rep.Symbol != "NABIL" || len(rep.Horizons) != 4 {
		t.Fatalf("unexpected report: %+v", rep)
	}
	for _, h := range rep.Horizons {
		if h.Trend != model.Sideways || h.Confidence != 0 {
			t.Errorf("flat model should be Sideways/0: %+v", h)
		}
		if math.Abs(h.Price.Float64-rep.CurrentClose) > 1e-9 {
			t.Errorf("%s price %v, want %v", h.Name, h.Price.Float64, rep.CurrentClose)
		}
	}
}

// ── Movers ──

func TestMovers_FallbackFetch(t *testing.T) {
	st := newMemStore()
	st.add("UPA", 100, 110)
	st.add("UPB", 100, 105)
	st.add("DOWN", 100, 90)
	st.add("FLAT", 100, 100)
	st.add("ONE", 100)
	st.info = []model.StockInfo{{Symbol: "UPA", CompanyName: "Up Alpha Ltd"}}
	svc := New(Options{Store: st})

	mv, err := svc.Movers(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(mv.Gainers) != 2 || mv.Gainers[0].Symbol != "UPA" || mv.Gainers[1].Symbol != "UPB" {
		t.Fatalf("gainers: %+v", mv.Gainers)
	}
	if mv.Gainers[0].ChangePercent != 10 || mv.Gainers[0].CompanyName != "Up Alpha Ltd" {
		t.Errorf("unexpected top gainer: %+v", mv.Gainers[0])
	}
	if mv.Gainers[1].CompanyName != "UPB" {
		t.Errorf("company name should fall back to symbol, got %q", mv.Gainers[1].CompanyName)
	}
	if len(mv.Losers) != 1 || mv.Losers[0].ChangePercent != -10 {
		t.Errorf("losers: %+v", mv.Losers)
	}
	if got := mv.Gainers[0].Last7Days; len(got) != 2 || got[0] != 110 {
		t.Errorf("last 7 days should be newest first: %v", got)
	}
}

func TestMovers_RecentCloserPathAndLimit(t *testing.T) {
	st := &recentStore{memStore: newMemStore()}
	for i := 0; i < 15; i++ {
		st.add(fmt.Sprintf("S%02d", i), ramp(10, 100, float64(i+1))...)
	}
	svc := New(Options{Store: st})

	mv, err := svc.Movers(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if st.calls != 1 {
		t.Errorf("expected one RecentCloses call, got %d", st.calls)
	}
	if len(mv.Gainers) != 10 {
		t.Errorf("gainers should be capped at 10, got %d", len(mv.Gainers))
	}
	for i := 1; i < len(mv.Gainers); i++ {
		if mv.Gainers[i].ChangePercent > mv.Gainers[i-1].ChangePercent {
			t.Fatalf("gainers not descending at %d", i)
		}
	}
	if len(mv.Gainers[0].Last7Days) != 7 {
		t.Errorf("expected 7 recent closes, got %d", len(mv.Gainers[0].Last7Days))
	}
	if len(mv.Losers) != 0 || mv.Losers == nil {
		t.Errorf("losers should be an empty list: %#v", mv.Losers)
	}
}

func TestMovers_EmptyIsNotFound(t *testing.T) {
	svc := New(Options{Store: newMemStore()})
	if _, err := svc.Movers(context.Background(), 10); !errors.Is(err, model.ErrNotFound) {
		t.Errorf("expected NotFound, got %v", err)
	}
}

func TestBuildMover_RoundsChange(t *testing.T) {
	m, ok := buildMover("x", []float64{3, 7})
	if !ok {
		t.Fatal("expected mover")
	}
	if m.ChangePercent != -57.14 {
		t.Errorf("change = %v, want -57.14", m.ChangePercent)
	}
	if _, ok := buildMover("x", []float64{3, 0}); ok {
		t.Error("zero previous close must be skipped")
	}
}

func TestBuildMover_SkipsNonFinite(t *testing.T) {
	for _, closes := range [][]float64{
		{math.Inf(1), 10},
		{10, math.NaN()},
		{math.Inf(-1), math.Inf(1)},
	} {
		if _, ok := buildMover("x", closes); ok {
			t.Errorf("closes %v should be skipped", closes)
		}
	}
}

func TestMovers_NonFiniteCloseDoesNotPanic(t *testing.T) {
	st := &recentStore{memStore: newMemStore()}
	st.add("AAA", 10, 11)
	st.add("BBB", 10, math.Inf(1))
	svc := New(Options{Store: st})

	mv, err := svc.Movers(context.Background(), 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(mv.Gainers) != 1 || mv.Gainers[0].Symbol != "AAA" {
		t.Errorf("gainers = %+v, want only AAA", mv.Gainers)
	}
}

// ── Catalog / Sweep ──

func TestCatalogPassthrough(t *testing.T) {
	st := newMemStore()
	st.info = []model.StockInfo{
		{Symbol: "NABIL", CompanyName: "Nabil Bank", Category: "Banking"},
		{Symbol: "NHPC", CompanyName: "National Hydro", Category: "Hydro"},
	}
	svc := New(Options{Store: st})
	ctx := context.Background()

	got, err := svc.Search(ctx, "nab", 10)
	if err != nil || len(got) != 1 || got[0].Symbol != "NABIL" {
		t.Errorf("search: %v %+v", err, got)
	}
	if got, _ := svc.Search(ctx, "  ", 10); len(got) != 0 {
		t.Errorf("blank query should return nothing, got %+v", got)
	}
	if got, _ := svc.ByCategory(ctx, "hydro"); len(got) != 1 {
		t.Errorf("by category: %+v", got)
	}
}

func TestSweep_CountsFailures(t *testing.T) {
	st := newMemStore()
	st.add("UP", ramp(30, 100, 1)...)
	st.add("DOWN", ramp(30, 200, -1)...)
	reg := prometheus.NewRegistry()
	svc := New(Options{Store: st, Metrics: metrics.NewMetricsWith(reg)})

	run, err := svc.Sweep(context.Background(), []string{"up", "down", "missing"})
	if err != nil {
		t.Fatal(err)
	}
	if len(run.Results) != 3 || run.Failures != 1 {
		t.Fatalf("unexpected run: %+v", run)
	}
	if run.Results[0].Verdict.ShortTerm != model.Uptrend || run.Results[1].Verdict.ShortTerm != model.Downtrend {
		t.Errorf("verdicts: %+v", run.Results)
	}
	if run.Results[2].Error == "" {
		t.Error("missing symbol should carry its error")
	}
	if run.FinishedAt.Before(run.StartedAt) {
		t.Error("finished before started")
	}

	all, err := svc.Sweep(context.Background(), nil)
	if err != nil || len(all.Results) != 2 || all.Failures != 0 {
		t.Errorf("sweep over all symbols: %v %+v", err, all)
	}
}
