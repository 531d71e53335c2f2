package model

import (
	"fmt"
	"strings"
)

// Timeframe selects how a daily series is windowed before indicators run.
type Timeframe string

const (
	TF1D  Timeframe = "1D"
	TF1W  Timeframe = "1W"
	TF1M  Timeframe = "1M"
	TF6M  Timeframe = "6M"
	TF1Y  Timeframe = "1Y"
	TF3Y  Timeframe = "3Y"
	TF5Y  Timeframe = "5Y"
	TFAll Timeframe = "ALL"
)

var allTimeframes = []Timeframe{TF1D, TF1W, TF1M, TF6M, TF1Y, TF3Y, TF5Y, TFAll}

// AllTimeframes returns every supported selector in display order.
func AllTimeframes() []Timeframe {
	out := make([]Timeframe, len(allTimeframes))
	copy(out, allTimeframes)
	return out
}

// ParseTimeframe validates a selector. Unknown selectors are an error,
// never a silent fallback.
func ParseTimeframe(s string) (Timeframe, error) {
	tf := Timeframe(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range allTimeframes {
		if tf == known {
			return tf, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTimeframe, s)
}

func (tf Timeframe) String() string { return string(tf) }
