// Package trend classifies a price series into short, mid and long term
// trend labels by comparing the latest close against moving averages.
//
// This is the history-window policy. The prediction-delta policy lives in
// the forecast package and uses a different band and input; the two are not
// meant to agree.
package trend

import (
	"math"

	"marketlens/internal/indicator"
	"marketlens/internal/model"
)

// Band is the fixed ±1% band around a moving average inside which the trend
// is Sideways.
const Band = 0.01

// Classifier computes MA-based trend verdicts.
type Classifier struct {
	ShortWindow int
	MidWindow   int
	LongWindow  int
}

// NewClassifier returns a classifier using MA5, MA20 and MA50.
func NewClassifier() *Classifier {
	return &Classifier{ShortWindow: 5, MidWindow: 20, LongWindow: 50}
}

// MovingAverages holds the latest value of each horizon's moving average.
type MovingAverages struct {
	Short float64
	Mid   float64
	Long  float64
}

// Averages returns the last-row moving averages of s using shrinking windows
// (min periods 1), so a short series still yields values.
func (c *Classifier) Averages(s model.Series) MovingAverages {
	short := indicator.NewRollingMean(c.ShortWindow, 1)
	mid := indicator.NewRollingMean(c.MidWindow, 1)
	long := indicator.NewRollingMean(c.LongWindow, 1)
	for _, p := range s.Points {
		short.Update(p.Close)
		mid.Update(p.Close)
		long.Update(p.Close)
	}
	return MovingAverages{Short: short.Value(), Mid: mid.Value(), Long: long.Value()}
}

// Classify labels each horizon against the latest close. An empty series
// returns ErrNoData.
func (c *Classifier) Classify(s model.Series) (model.TrendVerdict, error) {
	last, ok := s.Last()
	if !ok {
		return model.TrendVerdict{}, model.ErrNoData
	}
	ma := c.Averages(s)
	current := last.Close

	return model.TrendVerdict{
		ShortTerm:  Direction(current, ma.Short),
		MidTerm:    Direction(current, ma.Mid),
		LongTerm:   Direction(current, ma.Long),
		Confidence: Confidence(current, ma.Mid),
	}, nil
}

// Direction applies the band with strict comparisons: a close exactly on
// the band edge is Sideways.
func Direction(current, ma float64) model.Trend {
	switch {
	case current > ma*(1+Band):
		return model.Uptrend
	case current < ma*(1-Band):
		return model.Downtrend
	default:
		return model.Sideways
	}
}

// Confidence is min(|current-ma20|/ma20*100, 100) rounded to 2 decimals.
// A zero MA20 gives an infinite ratio (capped at 100) or 0/0, which is 0.
func Confidence(current, ma20 float64) float64 {
	v := math.Min(math.Abs(current-ma20)/math.Abs(ma20)*100, 100)
	if math.IsNaN(v) {
		return 0
	}
	return indicator.Round(v, 2)
}
