package forecast

import (
	"context"
	"fmt"
	"math"

	"marketlens/internal/indicator"
	"marketlens/internal/model"

	"github.com/guregu/null/v6"
)

// DefaultWindow is the number of trailing closes fed to the predictor.
const DefaultWindow = 60

// DefaultThreshold is the ±1% change inside which a projection is Sideways.
const DefaultThreshold = 0.01

// Horizon is a named number of days to project ahead.
type Horizon struct {
	Name string `yaml:"name" json:"name"`
	Days int    `yaml:"days" json:"days"`
}

// DefaultHorizons returns the standard horizons in report order.
func DefaultHorizons() []Horizon {
	return []Horizon{
		{Name: "very_short_term", Days: 3},
		{Name: "short_term", Days: 7},
		{Name: "mid_term", Days: 20},
		{Name: "long_term", Days: 60},
	}
}

// Projector runs iterative multi-step projections. It holds no per-request
// state; the scaler is refit on every call.
type Projector struct {
	Window    int
	Threshold float64
	Horizons  []Horizon
}

// NewProjector returns a projector with the default window, threshold and
// horizons.
func NewProjector() *Projector {
	return &Projector{
		Window:    DefaultWindow,
		Threshold: DefaultThreshold,
		Horizons:  DefaultHorizons(),
	}
}

// Project forecasts every horizon for s. Each horizon restarts from the same
// seed window; intermediate projections are never shared between horizons.
// Returns ErrInsufficientHistory when s has fewer points than the window,
// and an UpstreamError when the predictor fails.
func (p *Projector) Project(ctx context.Context, s model.Series, pred Predictor) (model.PredictionReport, error) {
	window := p.Window
	if window <= 0 {
		window = DefaultWindow
	}
	if s.Len() < window {
		return model.PredictionReport{}, &model.InsufficientHistoryError{Have: s.Len(), Need: window}
	}

	closes := s.Closes()
	scaler := FitScaler(closes)
	scaled := scaler.TransformAll(closes)
	seed := scaled[len(scaled)-window:]
	current := closes[len(closes)-1]

	report := model.PredictionReport{
		Symbol:       s.Symbol,
		CurrentClose: current,
		Horizons:     make([]model.HorizonProjection, 0, len(p.Horizons)),
	}
	for _, h := range p.Horizons {
		final, err := iterate(ctx, pred, seed, h.Days)
		if err != nil {
			return model.PredictionReport{}, model.Upstream(fmt.Sprintf("predict %s", h.Name), err)
		}
		proj := model.HorizonProjection{Name: h.Name, Days: h.Days, Trend: model.Sideways}
		price := scaler.Inverse(final)
		if indicator.Finite(price) {
			proj.Price = null.FloatFrom(price)
			trend, conf := DetermineTrend(current, price, p.threshold())
			proj.Trend, proj.Confidence = trend, indicator.Round(conf, 2)
		}
		if proj.Confidence > report.Confidence {
			report.Confidence = proj.Confidence
		}
		report.Horizons = append(report.Horizons, proj)
	}
	return report, nil
}

func (p *Projector) threshold() float64 {
	if p.Threshold <= 0 {
		return DefaultThreshold
	}
	return p.Threshold
}

// iterate feeds the trailing window to pred days times, appending each output
// and sliding the window forward. Returns the last appended value, or the
// seed's last value when days is 0.
func iterate(ctx context.Context, pred Predictor, seed []float64, days int) (float64, error) {
	n := len(seed)
	buf := make([]float64, n, n+days)
	copy(buf, seed)
	for i := 0; i < days; i++ {
		next, err := pred.Predict(ctx, buf[i:i+n:i+n])
		if err != nil {
			return 0, err
		}
		buf = append(buf, next)
	}
	return buf[len(buf)-1], nil
}

// DetermineTrend labels the relative change from current to predicted.
// Confidence is min(|Δ|·100, 100); a non-finite change is Sideways with 0.
func DetermineTrend(current, predicted, threshold float64) (model.Trend, float64) {
	change := (predicted - current) / current
	if !indicator.Finite(change) {
		return model.Sideways, 0
	}
	conf := math.Min(math.Abs(change)*100, 100)
	switch {
	case change > threshold:
		return model.Uptrend, conf
	case change < -threshold:
		return model.Downtrend, conf
	default:
		return model.Sideways, conf
	}
}
