// Package indicator provides rolling technical indicators over daily closes.
//
// All indicators implement the Indicator interface: they are fed one price at
// a time in date order and expose the value for the latest row. The Engine
// drives a fixed set of them over a resampled series to build IndicatorRows.
package indicator

// Indicator is the interface for all streaming indicators.
type Indicator interface {
	// Update feeds the next price and recalculates.
	Update(price float64)

	// Value returns the current value. Warm-up behaviour is per indicator.
	Value() float64

	// Ready returns true once the indicator's minimum observation count is met.
	Ready() bool
}

var (
	_ Indicator = (*SMA)(nil)
	_ Indicator = (*EMA)(nil)
	_ Indicator = (*RSI)(nil)
	_ Indicator = (*Bollinger)(nil)
	_ Indicator = (*PctChange)(nil)
	_ Indicator = (*StdDev)(nil)
)
