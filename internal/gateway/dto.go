package gateway

import (
	"marketlens/internal/model"

	"github.com/guregu/null/v6"
)

// RowOut is one indicator record with a plain YYYY-MM-DD date.
type RowOut struct {
	Date           string     `json:"date"`
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

func toRowsOut(rows []model.IndicatorRow) []RowOut {
	out := make([]RowOut, len(rows))
	for i, r := range rows {
		out[i] = RowOut{
			Date:           r.Date.Format(model.DateLayout),
			Open:           r.Open,
			High:           r.High,
			Low:            r.Low,
			Close:          r.Close,
			CloseNorm:      r.CloseNorm,
			AvgPrice:       r.AvgPrice,
			PriceChangePct: r.PriceChangePct,
			RollingMean20:  r.RollingMean20,
			EMA12:          r.EMA12,
			EMA26:          r.EMA26,
			RSI14:          r.RSI14,
			BBUpper:        r.BBUpper,
			BBLower:        r.BBLower,
			BBMA20:         r.BBMA20,
		}
	}
	return out
}

// StocksResponse is the body of /api/stocks.
type StocksResponse struct {
	Symbol    string   `json:"symbol"`
	Timeframe string   `json:"timeframe"`
	Records   []RowOut `json:"records"`
}

// TechnicalStatus is the body of /api/technical-status.
type TechnicalStatus struct {
	Symbol     string      `json:"symbol"`
	ShortTerm  model.Trend `json:"short_term"`
	MidTerm    model.Trend `json:"mid_term"`
	LongTerm   model.Trend `json:"long_term"`
	Confidence float64     `json:"confidence"`
}

// HorizonOut is one entry of PredictResponse.Predictions.
type HorizonOut struct {
	Days       int         `json:"days"`
	Price      null.Float  `json:"price"`
	Trend      model.Trend `json:"trend"`
	Confidence float64     `json:"confidence"`
}

// PredictResponse is the body of /api/predict. Predictions and Trend are
// keyed by horizon name.
type PredictResponse struct {
	Symbol       string                 `json:"symbol"`
	CurrentClose float64                `json:"current_close"`
	Predictions  map[string]HorizonOut  `json:"predictions"`
	Trend        map[string]model.Trend `json:"trend"`
	Confidence   float64                `json:"confidence"`
}

func toPredictResponse(r model.PredictionReport) PredictResponse {
	out := PredictResponse{
		Symbol:       r.Symbol,
		CurrentClose: r.CurrentClose,
		Predictions:  make(map[string]HorizonOut, len(r.Horizons)),
		Trend:        make(map[string]model.Trend, len(r.Horizons)),
		Confidence:   r.Confidence,
	}
	for _, h := range r.Horizons {
		out.Predictions[h.Name] = HorizonOut{Days: h.Days, Price: h.Price, Trend: h.Trend, Confidence: h.Confidence}
		out.Trend[h.Name] = h.Trend
	}
	return out
}

// ErrorBody is the JSON body of every error response.
type ErrorBody struct {
	Error   string   `json:"error"`
	Records []RowOut `json:"records,omitempty"`
}
