package indicator

import (
	"fmt"
	"math"
	"testing"
)

// ────────────────────────────────────────────────────────────
// Helper
// ────────────────────────────────────────────────────────────

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}

// ────────────────────────────────────────────────────────────
// SMA Correctness
// ────────────────────────────────────────────────────────────

func TestSMA_Correctness_Period3(t *testing.T) {
	// Prices: 100, 102, 104, 103, 105
	// SMA after price 3: (100+102+104)/3 = 102
	// SMA after price 4: (102+104+103)/3 = 103
	// SMA after price 5: (104+103+105)/3 = 104
	sma := NewSMA(3)
	prices := []float64{100, 102, 104, 103, 105}
	expected := []float64{0, 0, 102.0, 103.0, 104.0}
	ready := []bool{false, false, true, true, true}

	for i, p := range prices {
		sma.Update(p)
		if sma.Ready() != ready[i] {
			t.Errorf("price %d: Ready()=%v, want %v", i, sma.Ready(), ready[i])
		}
		assertClose(t, fmt.Sprintf("SMA(3) price %d", i), sma.Value(), expected[i], 0.0001)
	}
}

func TestRollingMean_ShrinksAtStart(t *testing.T) {
	// min_periods=1: first value equals the first price, then the mean of
	// whatever is available until the window fills.
	rm := NewRollingMean(3, 1)
	prices := []float64{10, 20, 30, 40}
	expected := []float64{10, 15, 20, 30}
	for i, p := range prices {
		rm.Update(p)
		if !rm.Ready() {
			t.Errorf("price %d: expected ready", i)
		}
		assertClose(t, fmt.Sprintf("rolling mean %d", i), rm.Value(), expected[i], 1e-9)
	}
}

func TestSMA_ZeroWindowIsExactlyZero(t *testing.T) {
	rm := NewRollingMean(3, 1)
	for _, p := range []float64{0.1, 0.2, 0.3, 0, 0, 0} {
		rm.Update(p)
	}
	if rm.Value() != 0 {
		t.Errorf("expected exact 0 after window of zeros, got %g", rm.Value())
	}
}

// ────────────────────────────────────────────────────────────
// EMA Correctness
// ────────────────────────────────────────────────────────────

func TestEMA_SeededByFirstValue(t *testing.T) {
	// span 3 → α = 0.5
	// e1 = 1, e2 = 0.5*2 + 0.5*1 = 1.5, e3 = 0.5*3 + 0.5*1.5 = 2.25
	ema := NewEMA(3)
	expected := []float64{1, 1.5, 2.25}
	for i, p := range []float64{1, 2, 3} {
		ema.Update(p)
		assertClose(t, fmt.Sprintf("EMA(3) step %d", i), ema.Value(), expected[i], 1e-12)
	}
}

func TestEMA_Recurrence(t *testing.T) {
	ema := NewEMA(12)
	alpha := 2.0 / 13.0
	prices := []float64{50, 52, 51, 55, 53, 54, 58, 60, 57, 59}
	want := prices[0]
	for i, p := range prices {
		ema.Update(p)
		if i > 0 {
			want = alpha*p + (1-alpha)*want
		}
		assertClose(t, fmt.Sprintf("EMA(12) step %d", i), ema.Value(), want, 1e-9)
	}
}

// ────────────────────────────────────────────────────────────
// RSI Correctness
// ────────────────────────────────────────────────────────────

func TestRSI_RollingMean(t *testing.T) {
	// closes 10, 12, 11
	// row0: no delta → avg_loss 0 → 0
	// row1: gains [0,2] → 1, losses [0,0] → 0 → 0
	// row2: gains [0,2,0] → 2/3, losses [0,0,1] → 1/3 → RS 2 → 66.666..
	rsi := NewRSI(14)
	expected := []float64{0, 0, 200.0 / 3.0}
	for i, p := range []float64{10, 12, 11} {
		rsi.Update(p)
		assertClose(t, fmt.Sprintf("RSI step %d", i), rsi.Value(), expected[i], 1e-9)
	}
}

func TestRSI_MonotonicIncreaseIsZero(t *testing.T) {
	rsi := NewRSI(14)
	for i := 0; i < 60; i++ {
		rsi.Update(100 + float64(i))
		if rsi.Value() != 0 {
			t.Fatalf("step %d: RSI=%.4f, want 0 for all-gain series", i, rsi.Value())
		}
	}
}

func TestRSI_WindowDropsOldLosses(t *testing.T) {
	// one loss followed by period gains: the loss leaves the window and the
	// value falls back to 0
	rsi := NewRSI(3)
	for _, p := range []float64{10, 9, 10, 11, 12} {
		rsi.Update(p)
	}
	if rsi.Value() != 0 {
		t.Errorf("expected 0 once the loss left the window, got %.6f", rsi.Value())
	}
}

// ────────────────────────────────────────────────────────────
// Bollinger Correctness
// ────────────────────────────────────────────────────────────

func TestBollinger_Period20(t *testing.T) {
	// 1..20: mean 10.5, sample std sqrt(665/19) = sqrt(35)
	bb := NewBollinger(20, 2)
	for i := 1; i <= 20; i++ {
		bb.Update(float64(i))
		if i < 20 {
			if bb.Upper() != 0 || bb.Lower() != 0 || bb.Middle() != 0 {
				t.Fatalf("step %d: warm-up bands must be 0", i)
			}
		}
	}
	std := math.Sqrt(35)
	assertClose(t, "BB middle", bb.Middle(), 10.5, 1e-9)
	assertClose(t, "BB upper", bb.Upper(), 10.5+2*std, 1e-9)
	assertClose(t, "BB lower", bb.Lower(), 10.5-2*std, 1e-9)

	// slide by one: 2..21
	bb.Update(21)
	assertClose(t, "BB middle slid", bb.Middle(), 11.5, 1e-9)
	assertClose(t, "BB upper slid", bb.Upper(), 11.5+2*std, 1e-9)
}

func TestStdDev_FlatIsZero(t *testing.T) {
	d := NewStdDev(5)
	for i := 0; i < 10; i++ {
		d.Update(42.42)
	}
	if d.Value() != 0 {
		t.Errorf("flat window std = %g, want 0", d.Value())
	}
}

// ────────────────────────────────────────────────────────────
// Percent change
// ────────────────────────────────────────────────────────────

func TestPctChange(t *testing.T) {
	p := NewPctChange()
	cases := []struct {
		price float64
		want  float64
	}{
		{100, 0},  // first row
		{110, 10}, // +10%
		{99, -10}, // -10%
		{0, -100},
		{5, 0}, // from 0: +Inf coerced
		{5, 0},
	}
	for i, c := range cases {
		p.Update(c.price)
		assertClose(t, fmt.Sprintf("pct step %d", i), p.Value(), c.want, 1e-9)
	}

	z := NewPctChange()
	z.Update(0)
	z.Update(0) // 0/0 NaN coerced
	if z.Value() != 0 {
		t.Errorf("0/0 should be 0, got %g", z.Value())
	}
}

func TestRound(t *testing.T) {
	cases := []struct {
		in, want float64
	}{
		{1.005, 1.01}, // shortest repr is 1.005, rounds away from zero
		{2.344, 2.34},
		{-2.345, -2.35},
		{100, 100},
	}
	for _, c := range cases {
		if got := Round(c.in, 2); got != c.want {
			t.Errorf("Round(%v, 2) = %v, want %v", c.in, got, c.want)
		}
	}
	if !math.IsNaN(Round(math.NaN(), 2)) {
		t.Error("NaN should pass through")
	}
}
