package model

import (
	"time"

	"github.com/guregu/null/v6"
)

// IndicatorRow is one output record per resampled period. Every numeric field
// is nullable: NaN/Inf never leave the indicator engine.
type IndicatorRow struct {
	Date           time.Time  `json:"date"`
	Open           null.Float `json:"open"`
	High           null.Float `json:"high"`
	Low            null.Float `json:"low"`
	Close          null.Float `json:"close"`
	CloseNorm      null.Float `json:"close_norm"`
	AvgPrice       null.Float `json:"avg_price"`
	PriceChangePct null.Float `json:"price_change_pct"`
	RollingMean20  null.Float `json:"rolling_mean_20"`
	EMA12          null.Float `json:"ema12"`
	EMA26          null.Float `json:"ema26"`
	RSI14          null.Float `json:"rsi14"`
	BBUpper        null.Float `json:"bb_upper"`
	BBLower        null.Float `json:"bb_lower"`
	BBMA20         null.Float `json:"bb_ma20"`
}

// Trend is a discrete direction label.
type Trend string

const (
	Uptrend   Trend = "Uptrend"
	Downtrend Trend = "Downtrend"
	Sideways  Trend = "Sideways"
)

// TrendVerdict is the moving-average based classification of a series.
// Confidence is shared across the three horizons.
type TrendVerdict struct {
	ShortTerm  Trend   `json:"short_term"`
	MidTerm    Trend   `json:"mid_term"`
	LongTerm   Trend   `json:"long_term"`
	Confidence float64 `json:"confidence"`
}

// HorizonProjection is the projected price and trend for one named horizon.
type HorizonProjection struct {
	Name       string     `json:"name"`
	Days       int        `json:"days"`
	Price      null.Float `json:"price"`
	Trend      Trend      `json:"trend"`
	Confidence float64    `json:"confidence"`
}

// PredictionReport aggregates every horizon; Confidence is the maximum of
// the per-horizon confidences.
type PredictionReport struct {
	Symbol       string              `json:"symbol"`
	CurrentClose float64             `json:"current_close"`
	Horizons     []HorizonProjection `json:"horizons"`
	Confidence   float64             `json:"confidence"`
}

// StockInfo is catalog metadata for a symbol.
type StockInfo struct {
	Symbol      string `json:"symbol"`
	CompanyName string `json:"company_name"`
	Category    string `json:"category"`
}

// Mover is one entry in the gainers/losers board.
type Mover struct {
	Symbol        string    `json:"symbol"`
	CompanyName   string    `json:"company_name"`
	Close         float64   `json:"close"`
	PrevClose     float64   `json:"prev_close"`
	ChangePercent float64   `json:"change_percent"`
	Last7Days     []float64 `json:"last_7_days"`
}

// MarketMovers holds the top gainers and losers.
type MarketMovers struct {
	Gainers []Mover `json:"top_gainers"`
	Losers  []Mover `json:"top_losers"`
}

// SweepResult is one symbol's outcome in a scheduled classification sweep.
type SweepResult struct {
	Symbol  string       `json:"symbol"`
	Verdict TrendVerdict `json:"verdict"`
	Error   string       `json:"error,omitempty"`
}

// SweepRun is a completed sweep over many symbols.
type SweepRun struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Results    []SweepResult `json:"results"`
	Failures   int           `json:"failures"`
}
