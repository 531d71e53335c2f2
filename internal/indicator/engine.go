package indicator

import (
	"math"

	"marketlens/internal/model"

	"github.com/guregu/null/v6"
)

// Config holds the window lengths the Engine uses.
type Config struct {
	RollingWindow int     // rolling_mean_20, shrinking window
	EMAFast       int     // ema12
	EMASlow       int     // ema26
	RSIPeriod     int     // rsi14
	BBWindow      int     // strict Bollinger window
	BBMult        float64 // band width in standard deviations
}

// DefaultConfig returns the standard 20/12/26/14/20×2 configuration.
func DefaultConfig() Config {
	return Config{
		RollingWindow: 20,
		EMAFast:       12,
		EMASlow:       26,
		RSIPeriod:     14,
		BBWindow:      20,
		BBMult:        2,
	}
}

// Engine computes IndicatorRows for a series. It holds no state between
// calls and is safe for concurrent use.
type Engine struct {
	cfg Config
}

// NewEngine creates an indicator engine.
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.RollingWindow <= 0 {
		cfg.RollingWindow = def.RollingWindow
	}
	if cfg.EMAFast <= 0 {
		cfg.EMAFast = def.EMAFast
	}
	if cfg.EMASlow <= 0 {
		cfg.EMASlow = def.EMASlow
	}
	if cfg.RSIPeriod <= 0 {
		cfg.RSIPeriod = def.RSIPeriod
	}
	if cfg.BBWindow <= 0 {
		cfg.BBWindow = def.BBWindow
	}
	if cfg.BBMult <= 0 {
		cfg.BBMult = def.BBMult
	}
	return &Engine{cfg: cfg}
}

// rowIndicators holds fresh indicator instances for one Compute call. The
// typed fields are read when building a row; all is the update order.
type rowIndicators struct {
	pct     *PctChange
	rolling *SMA
	emaFast *EMA
	emaSlow *EMA
	rsi     *RSI
	bb      *Bollinger

	all []Indicator
}

func (e *Engine) newRowIndicators() *rowIndicators {
	ind := &rowIndicators{
		pct:     NewPctChange(),
		rolling: NewRollingMean(e.cfg.RollingWindow, 1),
		emaFast: NewEMA(e.cfg.EMAFast),
		emaSlow: NewEMA(e.cfg.EMASlow),
		rsi:     NewRSI(e.cfg.RSIPeriod),
		bb:      NewBollinger(e.cfg.BBWindow, e.cfg.BBMult),
	}
	ind.all = []Indicator{ind.pct, ind.rolling, ind.emaFast, ind.emaSlow, ind.rsi, ind.bb}
	return ind
}

// update feeds price to every indicator in the set.
func (ind *rowIndicators) update(price float64) {
	for _, in := range ind.all {
		in.Update(price)
	}
}

// Compute returns one row per point of s, in s's order. The series is expected
// to be resampled (ascending). The result never contains NaN or Inf: the final
// pass turns them into nulls.
func (e *Engine) Compute(s model.Series) []model.IndicatorRow {
	ind := e.newRowIndicators()
	rows := make([]model.IndicatorRow, 0, len(s.Points))

	for _, p := range s.Points {
		ind.update(p.Close)

		closeNorm := null.Float{}
		if p.CloseNorm.Valid {
			closeNorm = Clean(p.CloseNorm.Float64)
		}

		rows = append(rows, model.IndicatorRow{
			Date:           p.Date,
			Open:           Clean(p.Open),
			High:           Clean(p.High),
			Low:            Clean(p.Low),
			Close:          Clean(p.Close),
			CloseNorm:      closeNorm,
			AvgPrice:       Clean((p.High + p.Low) / 2),
			PriceChangePct: Clean(ind.pct.Value()),
			RollingMean20:  Clean(ind.rolling.Value()),
			EMA12:          Clean(ind.emaFast.Value()),
			EMA26:          Clean(ind.emaSlow.Value()),
			RSI14:          Clean(ind.rsi.Value()),
			BBUpper:        Clean(ind.bb.Upper()),
			BBLower:        Clean(ind.bb.Lower()),
			BBMA20:         Clean(ind.bb.Middle()),
		})
	}
	return rows
}

// Clean converts v to a null.Float, mapping NaN and ±Inf to null.
func Clean(v float64) null.Float {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return null.Float{}
	}
	return null.FloatFrom(v)
}

// Finite reports whether v is neither NaN nor infinite.
func Finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
