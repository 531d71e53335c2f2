package forecast

import "math"

// MinMaxScaler maps values linearly onto [0, 1] using the min and max seen
// by Fit. A zero range is treated as 1, so a flat history scales to 0.
type MinMaxScaler struct {
	Min   float64
	Max   float64
	scale float64
}

// FitScaler fits a scaler over every value.
func FitScaler(values []float64) *MinMaxScaler {
	s := &MinMaxScaler{}
	s.Fit(values)
	return s
}

// Fit computes the range over values, ignoring NaN.
func (s *MinMaxScaler) Fit(values []float64) {
	s.Min, s.Max = math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) {
			continue
		}
		s.Min = math.Min(s.Min, v)
		s.Max = math.Max(s.Max, v)
	}
	if math.IsInf(s.Min, 1) {
		s.Min, s.Max = 0, 0
	}
	rng := s.Max - s.Min
	if rng == 0 {
		rng = 1
	}
	s.scale = 1 / rng
}

// Transform maps v into scaled space.
func (s *MinMaxScaler) Transform(v float64) float64 {
	return (v - s.Min) * s.scale
}

// TransformAll maps every value into scaled space.
func (s *MinMaxScaler) TransformAll(values []float64) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = s.Transform(v)
	}
	return out
}

// Inverse maps a scaled value back to price space.
func (s *MinMaxScaler) Inverse(v float64) float64 {
	return v/s.scale + s.Min
}
