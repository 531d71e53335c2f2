package indicator

// SMA calculates a Simple Moving Average over a rolling window.
// Uses a preallocated circular buffer and a running sum.
//
// minPeriods controls warm-up: with minPeriods == period the window is strict
// and Value is 0 until full; with minPeriods == 1 the window shrinks at the
// start of the series and the first value equals the first price.
type SMA struct {
	period     int
	minPeriods int
	buf        []float64 // preallocated circular buffer
	idx        int       // current write position
	count      int       // total values received
	sum        float64
	nonZero    int // non-zero values currently in the window
	current    float64
}

// NewSMA creates a strict SMA: not ready until period values are seen.
func NewSMA(period int) *SMA {
	return NewRollingMean(period, period)
}

// NewRollingMean creates an SMA that reports a value once minPeriods values
// are in the window.
func NewRollingMean(period, minPeriods int) *SMA {
	if period < 1 {
		period = 1
	}
	if minPeriods < 1 {
		minPeriods = 1
	}
	if minPeriods > period {
		minPeriods = period
	}
	return &SMA{
		period:     period,
		minPeriods: minPeriods,
		buf:        make([]float64, period),
	}
}

func (s *SMA) Update(price float64) {
	if s.count >= s.period {
		// Subtract the oldest value being overwritten
		old := s.buf[s.idx]
		s.sum -= old
		if old != 0 {
			s.nonZero--
		}
	}

	s.buf[s.idx] = price
	s.sum += price
	if price != 0 {
		s.nonZero++
	}
	s.idx = (s.idx + 1) % s.period
	s.count++

	n := s.window()
	switch {
	case n < s.minPeriods:
		s.current = 0
	case s.nonZero == 0:
		// running sum can drift off zero once every non-zero value has left
		s.current = 0
	default:
		s.current = s.sum / float64(n)
	}
}

func (s *SMA) Value() float64 { return s.current }
func (s *SMA) Ready() bool    { return s.window() >= s.minPeriods }

// window returns the number of values currently held.
func (s *SMA) window() int {
	if s.count < s.period {
		return s.count
	}
	return s.period
}

// values returns the window contents, oldest first.
func (s *SMA) values() []float64 {
	n := s.window()
	out := make([]float64, n)
	start := s.idx - n
	if start < 0 {
		start += s.period
	}
	for i := 0; i < n; i++ {
		out[i] = s.buf[(start+i)%s.period]
	}
	return out
}

