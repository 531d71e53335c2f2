package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"marketlens/internal/model"

	"github.com/guregu/null/v6"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{DBPath: filepath.Join(t.TempDir(), "test.db")})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func seed(t *testing.T, s *Store) {
	t.Helper()
	ctx := context.Background()
	nabil := model.Series{Symbol: "nabil", Points: []model.PricePoint{
		{Date: day(2024, 1, 3), Open: 3, High: 4, Low: 2, Close: 3.5},
		{Date: day(2024, 1, 1), Open: 1, High: 2, Low: 0.5, Close: 1.5, CloseNorm: null.FloatFrom(0.1)},
		{Date: day(2024, 1, 2), Open: 2, High: 3, Low: 1, Close: 2.5},
	}}
	adbl := model.Series{Symbol: "ADBL", Points: []model.PricePoint{
		{Date: day(2024, 1, 1), Open: 10, High: 11, Low: 9, Close: 10},
		{Date: day(2024, 1, 2), Open: 10, High: 11, Low: 9, Close: 9},
	}}
	for _, sr := range []model.Series{nabil, adbl} {
		if err := s.UpsertSeries(ctx, sr); err != nil {
			t.Fatalf("upsert %s: %v", sr.Symbol, err)
		}
	}
	err := s.UpsertInfo(ctx, []model.StockInfo{
		{Symbol: "NABIL", CompanyName: "Nabil Bank", Category: "Commercial Banks"},
		{Symbol: "ADBL", CompanyName: "Agricultural Development Bank", Category: "Commercial Banks"},
		{Symbol: "NHPC", CompanyName: "", Category: "Hydro Power"},
	})
	if err != nil {
		t.Fatalf("upsert info: %v", err)
	}
}

func TestFetch_AscendingCaseInsensitive(t *testing.T) {
	s := openTemp(t)
	seed(t, s)

	got, err := s.Fetch(context.Background(), "Nabil", model.DateRange{})
	if err != nil {
		t.Fatal(err)
	}
	if got.Symbol != "NABIL" || got.Len() != 3 {
		t.Fatalf("unexpected series %+v", got)
	}
	for i, want := range []float64{1.5, 2.5, 3.5} {
		if got.Points[i].Close != want {
			t.Errorf("row %d close %v, want %v", i, got.Points[i].Close, want)
		}
	}
	if !got.Points[0].CloseNorm.Valid || got.Points[1].CloseNorm.Valid {
		t.Error("close_norm nullability not preserved")
	}
}

func TestFetch_DateRange(t *testing.T) {
	s := openTemp(t)
	seed(t, s)
	got, err := s.Fetch(context.Background(), "NABIL", model.DateRange{Since: day(2024, 1, 2)})
	if err != nil {
		t.Fatal(err)
	}
	if got.Len() != 2 || !got.Points[0].Date.Equal(day(2024, 1, 2)) {
		t.Errorf("unexpected range result %+v", got.Points)
	}
}

func TestFetch_NotFound(t *testing.T) {
	s := openTemp(t)
	seed(t, s)
	_, err := s.Fetch(context.Background(), "NOPE", model.DateRange{})
	if !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUpsert_Replaces(t *testing.T) {
	s := openTemp(t)
	seed(t, s)
	ctx := context.Background()
	err := s.UpsertSeries(ctx, model.Series{Symbol: "NABIL", Points: []model.PricePoint{
		{Date: day(2024, 1, 3), Open: 3, High: 4, Low: 2, Close: 99},
	}})
	if err != nil {
		t.Fatal(err)
	}
	got, _ := s.Fetch(ctx, "NABIL", model.DateRange{})
	if got.Len() != 3 || got.Points[2].Close != 99 {
		t.Errorf("expected replaced close 99, got %+v", got.Points)
	}
}

func TestSymbolsAndRecentCloses(t *testing.T) {
	s := openTemp(t)
	seed(t, s)
	ctx := context.Background()

	syms, err := s.Symbols(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(syms) != 2 || syms[0] != "ADBL" || syms[1] != "NABIL" {
		t.Errorf("unexpected symbols %v", syms)
	}

	recent, err := s.RecentCloses(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got := recent["NABIL"]; len(got) != 2 || got[0] != 3.5 || got[1] != 2.5 {
		t.Errorf("NABIL recent closes %v, want [3.5 2.5]", got)
	}
}

func TestRecentCloses_DropsNonFinite(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	// 9e999 overflows to +Inf in a REAL column.
	_, err := s.DB().ExecContext(ctx, `
		INSERT INTO stocks (date, symbol, open, high, low, close) VALUES
			('2024-01-01', 'BBB', 10, 10, 10, 10),
			('2024-01-02', 'BBB', 10, 10, 10, 9e999)`)
	if err != nil {
		t.Fatal(err)
	}

	recent, err := s.RecentCloses(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if got := recent["BBB"]; len(got) != 1 || got[0] != 10 {
		t.Errorf("BBB recent closes %v, want [10]", got)
	}
	got, err := s.Fetch(ctx, "BBB", model.DateRange{})
	if err != nil {
		t.Fatal(err)
	}
	if got.Len() != 1 {
		t.Errorf("Fetch kept %d points, want 1", got.Len())
	}
}

func TestCatalog(t *testing.T) {
	s := openTemp(t)
	seed(t, s)
	ctx := context.Background()

	hits, err := s.Search(ctx, "bank", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 2 {
		t.Errorf("expected 2 bank hits, got %+v", hits)
	}

	hydro, _ := s.ByCategory(ctx, "hydro power")
	if len(hydro) != 1 || hydro[0].Symbol != "NHPC" || hydro[0].CompanyName != "" {
		t.Errorf("unexpected category result %+v", hydro)
	}

	all, _ := s.AllStocks(ctx)
	if len(all) != 3 || all[0].Symbol != "ADBL" {
		t.Errorf("unexpected all stocks %+v", all)
	}

	cats, _ := s.Categories(ctx)
	if len(cats) != 2 || cats[0] != "Commercial Banks" || cats[1] != "Hydro Power" {
		t.Errorf("unexpected categories %v", cats)
	}
}

func TestRecordSweep(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	if _, err := s.LastSweep(ctx); !errors.Is(err, model.ErrNotFound) {
		t.Fatalf("expected ErrNotFound before any sweep, got %v", err)
	}

	run := model.SweepRun{
		StartedAt:  time.Unix(1700000000, 0).UTC(),
		FinishedAt: time.Unix(1700000005, 0).UTC(),
		Results: []model.SweepResult{
			{Symbol: "ADBL", Verdict: model.TrendVerdict{ShortTerm: model.Uptrend, MidTerm: model.Sideways, LongTerm: model.Downtrend, Confidence: 4.2}},
			{Symbol: "ZZZ", Error: "not found"},
		},
		Failures: 1,
	}
	if err := s.RecordSweep(ctx, run); err != nil {
		t.Fatal(err)
	}
	got, err := s.LastSweep(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.Failures != 1 || len(got.Results) != 2 || !got.StartedAt.Equal(run.StartedAt) {
		t.Fatalf("unexpected run %+v", got)
	}
	if got.Results[0].Verdict != run.Results[0].Verdict || got.Results[1].Error != "not found" {
		t.Errorf("results not round-tripped: %+v", got.Results)
	}
}
