// Package forecast projects prices several days ahead by driving a
// single-step predictor iteratively, then labels each horizon by the
// predicted change against the current close.
package forecast

import (
	"context"
)

// Predictor maps a window of scaled closes (oldest first) to the next scaled
// close. Implementations must be safe for concurrent use and must not modify
// or retain window.
type Predictor interface {
	Predict(ctx context.Context, window []float64) (float64, error)
}

// PredictorFunc adapts a plain function to Predictor.
type PredictorFunc func(ctx context.Context, window []float64) (float64, error)

func (f PredictorFunc) Predict(ctx context.Context, window []float64) (float64, error) {
	return f(ctx, window)
}

// Source resolves the predictor for a symbol. A symbol without a model
// artifact yields model.ErrNotFound.
type Source interface {
	Load(ctx context.Context, symbol string) (Predictor, error)
}

// Flat is a predictor that repeats the newest value of the window.
var Flat = PredictorFunc(func(_ context.Context, window []float64) (float64, error) {
	if len(window) == 0 {
		return 0, nil
	}
	return window[len(window)-1], nil
})
