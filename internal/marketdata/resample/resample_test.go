package resample

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"marketlens/internal/model"

	"github.com/guregu/null/v6"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// zigzag returns 100, 101, 99, 102, 98, ... for n consecutive days.
func zigzag(start time.Time, n int) model.Series {
	s := model.Series{Symbol: "ZIG"}
	for i := 0; i < n; i++ {
		k := float64((i + 1) / 2)
		c := 100.0
		if i%2 == 1 {
			c += k
		} else {
			c -= k
		}
		s.Points = append(s.Points, model.PricePoint{
			Date: start.AddDate(0, 0, i), Open: c - 0.5, High: c + 1, Low: c - 1, Close: c,
		})
	}
	return s
}

func TestResample_AllIsIdempotent(t *testing.T) {
	s := zigzag(day(2024, 1, 1), 50)
	once, err := Resample(s, model.TFAll)
	if err != nil {
		t.Fatal(err)
	}
	twice, err := Resample(once, model.TFAll)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(once, twice) {
		t.Error("ALL(ALL(s)) != ALL(s)")
	}
	if !reflect.DeepEqual(once.Points, s.Points) {
		t.Error("ALL should be an identity copy of a sorted series")
	}
}

func TestResample_Monthly_ZigZag120(t *testing.T) {
	s := zigzag(day(2024, 1, 1), 120) // 2024-01-01 .. 2024-04-29
	got, err := Resample(s, model.TF1M)
	if err != nil {
		t.Fatal(err)
	}
	if got.Len() != 4 {
		t.Fatalf("expected 4 month buckets, got %d", got.Len())
	}

	wantDates := []time.Time{day(2024, 1, 31), day(2024, 2, 29), day(2024, 3, 31), day(2024, 4, 30)}
	// first/last source index per month: Jan 0..30, Feb 31..59, Mar 60..90, Apr 91..119
	bounds := [][2]int{{0, 30}, {31, 59}, {60, 90}, {91, 119}}
	for i, p := range got.Points {
		if !p.Date.Equal(wantDates[i]) {
			t.Errorf("bucket %d: date %s, want %s", i, p.Date.Format(model.DateLayout), wantDates[i].Format(model.DateLayout))
		}
		first, last := s.Points[bounds[i][0]], s.Points[bounds[i][1]]
		if p.Open != first.Open {
			t.Errorf("bucket %d: open %.2f, want first %.2f", i, p.Open, first.Open)
		}
		if p.Close != last.Close {
			t.Errorf("bucket %d: close %.2f, want last %.2f", i, p.Close, last.Close)
		}
		if i > 0 && !p.Date.After(got.Points[i-1].Date) {
			t.Errorf("bucket %d not ascending", i)
		}
	}

	// high/low of January: zigzag widens, so max is the last odd index <= 30
	if got.Points[0].High != s.Points[29].High {
		t.Errorf("jan high %.2f, want %.2f", got.Points[0].High, s.Points[29].High)
	}
	if got.Points[0].Low != s.Points[30].Low {
		t.Errorf("jan low %.2f, want %.2f", got.Points[0].Low, s.Points[30].Low)
	}
}

func TestResample_Weekly_SundayLabelsAndGaps(t *testing.T) {
	s := model.Series{Symbol: "W", Points: []model.PricePoint{
		{Date: day(2024, 1, 3), Open: 1, High: 2, Low: 0.5, Close: 1.5},  // Wed
		{Date: day(2024, 1, 7), Open: 2, High: 3, Low: 1, Close: 2.5},    // Sun, same week
		{Date: day(2024, 1, 8), Open: 3, High: 4, Low: 2, Close: 3.5},    // Mon, next week
		{Date: day(2024, 1, 24), Open: 4, High: 5, Low: 3, Close: 4.5},   // two empty weeks skipped
	}}
	got, err := Resample(s, model.TF1W)
	if err != nil {
		t.Fatal(err)
	}
	want := []time.Time{day(2024, 1, 7), day(2024, 1, 14), day(2024, 1, 28)}
	if got.Len() != len(want) {
		t.Fatalf("expected %d buckets, got %d", len(want), got.Len())
	}
	for i, w := range want {
		if !got.Points[i].Date.Equal(w) {
			t.Errorf("bucket %d: %s, want %s", i, got.Points[i].Date.Format(model.DateLayout), w.Format(model.DateLayout))
		}
	}
	first := got.Points[0]
	if first.Open != 1 || first.Close != 2.5 || first.High != 3 || first.Low != 0.5 {
		t.Errorf("unexpected first week aggregate %+v", first)
	}
}

func TestResample_CloseNormLast(t *testing.T) {
	s := model.Series{Symbol: "N", Points: []model.PricePoint{
		{Date: day(2024, 5, 1), Close: 1, CloseNorm: null.FloatFrom(0.1)},
		{Date: day(2024, 5, 2), Close: 2, CloseNorm: null.FloatFrom(0.2)},
		{Date: day(2024, 5, 3), Close: 3},
	}}
	got, _ := Resample(s, model.TF1M)
	if !got.Points[0].CloseNorm.Valid || got.Points[0].CloseNorm.Float64 != 0.2 {
		t.Errorf("expected close_norm 0.2, got %+v", got.Points[0].CloseNorm)
	}
}

func TestResample_TailCountsRows(t *testing.T) {
	s := zigzag(day(2020, 1, 1), 400)
	got, err := Resample(s, model.TF1Y)
	if err != nil {
		t.Fatal(err)
	}
	if got.Len() != 365 {
		t.Fatalf("expected 365 rows, got %d", got.Len())
	}
	if !got.Points[0].Date.Equal(s.Points[35].Date) {
		t.Errorf("tail should start at row 35")
	}

	one, _ := Resample(s, model.TF1D)
	if one.Len() != 1 || !one.Points[0].Date.Equal(s.Points[399].Date) {
		t.Errorf("1D should keep only the last row, got %+v", one.Points)
	}

	short, _ := Resample(zigzag(day(2020, 1, 1), 10), model.TF5Y)
	if short.Len() != 10 {
		t.Errorf("tail longer than the series should keep everything, got %d", short.Len())
	}
}

func TestResample_SortsDefensively(t *testing.T) {
	s := zigzag(day(2024, 1, 1), 5)
	s.Points[0], s.Points[4] = s.Points[4], s.Points[0]
	orig := s.Clone()

	got, _ := Resample(s, model.TFAll)
	for i := 1; i < got.Len(); i++ {
		if !got.Points[i].Date.After(got.Points[i-1].Date) {
			t.Fatalf("row %d not ascending", i)
		}
	}
	if !reflect.DeepEqual(s, orig) {
		t.Error("input series was mutated")
	}
}

func TestResample_UnknownTimeframe(t *testing.T) {
	_, err := Resample(zigzag(day(2024, 1, 1), 3), model.Timeframe("2W"))
	if !errors.Is(err, model.ErrUnknownTimeframe) {
		t.Errorf("expected ErrUnknownTimeframe, got %v", err)
	}
}

func TestResample_SkipsNaNOpenHighLow(t *testing.T) {
	nan := math.NaN()
	s := model.Series{Symbol: "GAP", Points: []model.PricePoint{
		{Date: day(2024, 5, 1), Open: nan, High: nan, Low: nan, Close: 10},
		{Date: day(2024, 5, 2), Open: 10.5, High: 12, Low: 9, Close: 11},
		{Date: day(2024, 5, 3), Open: 11, High: nan, Low: 8.5, Close: 10},
		{Date: day(2024, 5, 6), Open: 10, High: 11, Low: nan, Close: 10.5},
	}}
	got, err := Resample(s, model.TF1M)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Points) != 1 {
		t.Fatalf("expected one bucket, got %d", len(got.Points))
	}
	b := got.Points[0]
	if b.Open != 10.5 || b.High != 12 || b.Low != 8.5 || b.Close != 10.5 {
		t.Errorf("unexpected bucket %+v", b)
	}

	all := model.Series{Symbol: "NUL", Points: []model.PricePoint{
		{Date: day(2024, 6, 3), Open: nan, High: nan, Low: nan, Close: 5},
	}}
	got, _ = Resample(all, model.TF1M)
	if !math.IsNaN(got.Points[0].High) || !math.IsNaN(got.Points[0].Low) {
		t.Errorf("all-NULL bucket should stay NaN, got %+v", got.Points[0])
	}
}
