package indicator

import "github.com/shopspring/decimal"

// Round rounds v to places decimal digits, half away from zero, on the
// shortest decimal representation of v. Non-finite values are returned as is.
func Round(v float64, places int32) float64 {
	if !Finite(v) {
		return v
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
