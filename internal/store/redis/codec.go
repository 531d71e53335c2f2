package redis

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"marketlens/internal/model"

	"github.com/guregu/null/v6"
)

const (
	seriesKeyPrefix = "series:"
	symbolsKey      = "symbols"
	stockInfoKey    = "stock_info"

	// SweepChannel carries completed sweep runs as JSON.
	SweepChannel = "pub:sweep"
)

// SeriesKey returns the sorted-set key for a symbol.
func SeriesKey(symbol string) string {
	return seriesKeyPrefix + model.NormalizeSymbol(symbol)
}

// dayScore is the sorted-set score of a date: whole days since the epoch.
func dayScore(d time.Time) float64 {
	return float64(model.Day(d).Unix() / 86400)
}

// pointJSON is the sorted-set member. Non-finite prices are stored as null.
type pointJSON struct {
	D string   `json:"d"`
	O *float64 `json:"o"`
	H *float64 `json:"h"`
	L *float64 `json:"l"`
	C float64  `json:"c"`
	N *float64 `json:"n,omitempty"`
}

func ptr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func deref(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}

func encodePoint(p model.PricePoint) (string, error) {
	if math.IsNaN(p.Close) || math.IsInf(p.Close, 0) {
		return "", fmt.Errorf("non-finite close on %s", p.Date.Format(model.DateLayout))
	}
	pj := pointJSON{
		D: model.Day(p.Date).Format(model.DateLayout),
		O: ptr(p.Open), H: ptr(p.High), L: ptr(p.Low), C: p.Close,
	}
	if p.CloseNorm.Valid {
		pj.N = ptr(p.CloseNorm.Float64)
	}
	b, err := json.Marshal(pj)
	return string(b), err
}

func decodePoint(member string) (model.PricePoint, error) {
	var pj pointJSON
	if err := json.Unmarshal([]byte(member), &pj); err != nil {
		return model.PricePoint{}, fmt.Errorf("decode point: %w", err)
	}
	d, err := model.ParseDate(pj.D)
	if err != nil {
		return model.PricePoint{}, fmt.Errorf("decode point date: %w", err)
	}
	p := model.PricePoint{
		Date: d, Open: deref(pj.O), High: deref(pj.H), Low: deref(pj.L), Close: pj.C,
	}
	if pj.N != nil {
		p.CloseNorm = null.FloatFrom(*pj.N)
	}
	return p, nil
}
