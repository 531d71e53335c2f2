// Package resample converts an ascending daily series into a fixed-timeframe
// view: calendar week/month buckets, a trailing tail of N rows, or the whole
// series unchanged.
//
// Bucketing mirrors an incremental timeframe builder: each point is mapped to
// its bucket key, the forming bucket absorbs points until a point lands in a
// new bucket, and the forming bucket is then finalized and appended.
package resample

import (
	"fmt"
	"math"
	"time"

	"marketlens/internal/model"

	"github.com/guregu/null/v6"
)

// Kind is the windowing policy a timeframe maps to.
type Kind int

const (
	KindAll    Kind = iota // identity copy
	KindWeek               // calendar week buckets ending Sunday
	KindMonth              // calendar month buckets
	KindTail               // trailing N rows
)

// Policy is the resolved rule for one timeframe.
type Policy struct {
	Kind Kind
	Days int // KindTail only
}

var policies = map[model.Timeframe]Policy{
	model.TF1D:  {Kind: KindTail, Days: 1},
	model.TF1W:  {Kind: KindWeek},
	model.TF1M:  {Kind: KindMonth},
	model.TF6M:  {Kind: KindTail, Days: 180},
	model.TF1Y:  {Kind: KindTail, Days: 365},
	model.TF3Y:  {Kind: KindTail, Days: 1095},
	model.TF5Y:  {Kind: KindTail, Days: 1825},
	model.TFAll: {Kind: KindAll},
}

// PolicyFor returns the policy for tf. Every known timeframe maps to exactly
// one policy; anything else is ErrUnknownTimeframe.
func PolicyFor(tf model.Timeframe) (Policy, error) {
	p, ok := policies[tf]
	if !ok {
		return Policy{}, fmt.Errorf("%w: %q", model.ErrUnknownTimeframe, tf)
	}
	return p, nil
}

// Resample applies tf to s and returns a fresh ascending series. The input is
// re-sorted defensively and never modified.
func Resample(s model.Series, tf model.Timeframe) (model.Series, error) {
	p, err := PolicyFor(tf)
	if err != nil {
		return model.Series{}, err
	}
	sorted := s.Sorted()

	switch p.Kind {
	case KindWeek:
		return bucket(sorted, weekEnd), nil
	case KindMonth:
		return bucket(sorted, monthEnd), nil
	case KindTail:
		return Tail(sorted, p.Days), nil
	default:
		return sorted, nil
	}
}

// Tail keeps the trailing n rows of an already sorted series. It counts rows,
// not calendar days, so a gappy series covers more than n days.
func Tail(s model.Series, n int) model.Series {
	if n <= 0 || n >= len(s.Points) {
		return s.Clone()
	}
	pts := make([]model.PricePoint, n)
	copy(pts, s.Points[len(s.Points)-n:])
	return model.Series{Symbol: s.Symbol, Points: pts}
}

// weekEnd labels a date with the Sunday that closes its Monday-Sunday week.
func weekEnd(d time.Time) time.Time {
	d = model.Day(d)
	return d.AddDate(0, 0, (7-int(d.Weekday()))%7)
}

// monthEnd labels a date with the last day of its month.
func monthEnd(d time.Time) time.Time {
	y, m, _ := d.UTC().Date()
	return time.Date(y, m+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
}

// bucketState holds the forming aggregate for one bucket.
type bucketState struct {
	key     time.Time
	point   model.PricePoint
	started bool
}

// bucket aggregates open=first, high=max, low=min, close=last and
// close_norm=last (last non-null). NaN open/high/low values (NULL columns)
// are skipped, so a bucket is NaN only when every row is. Buckets with no
// source rows never appear.
func bucket(s model.Series, label func(time.Time) time.Time) model.Series {
	out := model.Series{Symbol: s.Symbol}
	var st bucketState

	for _, p := range s.Points {
		key := label(p.Date)
		if st.started && !key.Equal(st.key) {
			out.Points = append(out.Points, st.point)
			st.started = false
		}
		if !st.started {
			st = bucketState{
				key: key,
				point: model.PricePoint{
					Date:      key,
					Open:      p.Open,
					High:      p.High,
					Low:       p.Low,
					Close:     p.Close,
					CloseNorm: p.CloseNorm,
				},
				started: true,
			}
			continue
		}
		if math.IsNaN(st.point.Open) {
			st.point.Open = p.Open
		}
		st.point.High = nanMax(st.point.High, p.High)
		st.point.Low = nanMin(st.point.Low, p.Low)
		st.point.Close = p.Close
		if p.CloseNorm.Valid {
			st.point.CloseNorm = null.FloatFrom(p.CloseNorm.Float64)
		}
	}
	if st.started {
		out.Points = append(out.Points, st.point)
	}
	return out
}

// nanMax returns the larger of a and b, ignoring a NaN operand.
func nanMax(a, b float64) float64 {
	if math.IsNaN(a) || b > a {
		return b
	}
	return a
}

func nanMin(a, b float64) float64 {
	if math.IsNaN(a) || b < a {
		return b
	}
	return a
}
