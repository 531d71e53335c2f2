package indicator

// RSI calculates the Relative Strength Index from simple rolling means of
// gains and losses (not Wilder's recursive smoothing). The windows shrink at
// the start of the series.
//
// When the average loss is exactly zero the ratio is undefined and the value
// is 0, not 100. This holds for a strictly rising series too.
type RSI struct {
	period    int
	count     int
	prevClose float64
	gains     *SMA
	losses    *SMA
	current   float64
}

// NewRSI creates a new RSI indicator with the given period (typically 14).
func NewRSI(period int) *RSI {
	return &RSI{
		period: period,
		gains:  NewRollingMean(period, 1),
		losses: NewRollingMean(period, 1),
	}
}

func (r *RSI) Update(price float64) {
	r.count++

	gain, loss := 0.0, 0.0
	if r.count > 1 {
		delta := price - r.prevClose
		if delta > 0 {
			gain = delta
		} else if delta < 0 {
			loss = -delta
		}
	}
	r.prevClose = price

	r.gains.Update(gain)
	r.losses.Update(loss)

	avgLoss := r.losses.Value()
	if avgLoss == 0 {
		r.current = 0
		return
	}
	rs := r.gains.Value() / avgLoss
	r.current = 100.0 - (100.0 / (1.0 + rs))
}

func (r *RSI) Value() float64 { return r.current }
func (r *RSI) Ready() bool    { return r.count > 0 }

