package model

import (
	"math"
	"sort"
	"strings"
	"time"

	"github.com/guregu/null/v6"
)

// DateLayout is the wire format for calendar dates.
const DateLayout = "2006-01-02"

// PricePoint is one daily OHLC row for a single symbol.
// Date is a calendar day at UTC midnight.
type PricePoint struct {
	Date      time.Time  `json:"date"`
	Open      float64    `json:"open"`
	High      float64    `json:"high"`
	Low       float64    `json:"low"`
	Close     float64    `json:"close"`
	CloseNorm null.Float `json:"close_norm"` // optional upstream normalized close
}

// Day truncates t to its calendar day in UTC.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a "2006-01-02" date, also accepting RFC3339 timestamps
// (some stores keep full timestamps in the date column).
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		if len(s) >= 10 {
			if t2, err2 := time.Parse(DateLayout, s[:10]); err2 == nil {
				return t2, nil
			}
		}
		return time.Time{}, err
	}
	return Day(t), nil
}

// Series is an ordered sequence of price points for exactly one symbol.
// Transforms return new Series values; Points is never mutated in place.
type Series struct {
	Symbol string       `json:"symbol"`
	Points []PricePoint `json:"points"`
}

func (s Series) Len() int { return len(s.Points) }
func (s Series) Empty() bool { return len(s.Points) == 0 }

// Closes returns the close prices in series order.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Close
	}
	return out
}

// Last returns the most recent point.
func (s Series) Last() (PricePoint, bool) {
	if len(s.Points) == 0 {
		return PricePoint{}, false
	}
	return s.Points[len(s.Points)-1], true
}

// Clone returns a deep copy.
func (s Series) Clone() Series {
	pts := make([]PricePoint, len(s.Points))
	copy(pts, s.Points)
	return Series{Symbol: s.Symbol, Points: pts}
}

// Sorted returns a copy ordered ascending by date. The sort is stable so
// equal dates keep their relative order.
func (s Series) Sorted() Series {
	out := s.Clone()
	sort.SliceStable(out.Points, func(i, j int) bool {
		return out.Points[i].Date.Before(out.Points[j].Date)
	})
	return out
}

// Sanitized returns a sorted copy with rows whose close is NaN/Inf removed
// and duplicate dates collapsed (the later row wins).
func (s Series) Sanitized() Series {
	sorted := s.Sorted()
	out := Series{Symbol: s.Symbol, Points: make([]PricePoint, 0, len(sorted.Points))}
	for _, p := range sorted.Points {
		if !IsFinite(p.Close) {
			continue
		}
		p.Date = Day(p.Date)
		if n := len(out.Points); n > 0 && out.Points[n-1].Date.Equal(p.Date) {
			out.Points[n-1] = p
			continue
		}
		out.Points = append(out.Points, p)
	}
	return out
}

// IsFinite reports whether v is neither NaN nor ±Inf.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// DateRange bounds a fetch. Zero bounds are open.
type DateRange struct {
	Since time.Time
	Until time.Time
}

// Contains reports whether d falls within the range (inclusive).
func (r DateRange) Contains(d time.Time) bool {
	if !r.Since.IsZero() && d.Before(Day(r.Since)) {
		return false
	}
	if !r.Until.IsZero() && d.After(Day(r.Until)) {
		return false
	}
	return true
}

// NormalizeSymbol upper-cases and trims a ticker symbol.
func NormalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}
