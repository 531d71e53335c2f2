package indicator

import "math"

// StdDev is the sample standard deviation (n-1) over a strict window.
// Value is 0 until the window is full.
type StdDev struct {
	window  *SMA
	current float64
}

// NewStdDev creates a rolling sample standard deviation.
func NewStdDev(period int) *StdDev {
	return &StdDev{window: NewSMA(period)}
}

func (d *StdDev) Update(price float64) {
	d.window.Update(price)
	if !d.window.Ready() || d.window.period < 2 {
		d.current = 0
		return
	}
	// two-pass over the buffer; never negative
	vals := d.window.values()
	mean := 0.0
	for _, v := range vals {
		mean += v
	}
	mean /= float64(len(vals))
	ss := 0.0
	for _, v := range vals {
		ss += (v - mean) * (v - mean)
	}
	d.current = math.Sqrt(ss / float64(len(vals)-1))
}

func (d *StdDev) Value() float64 { return d.current }
func (d *StdDev) Ready() bool    { return d.window.Ready() }

// Bollinger computes Bollinger Bands: a strict SMA middle band with bands at
// ± mult sample standard deviations. All three are 0 during warm-up.
type Bollinger struct {
	period int
	mult   float64
	ma     *SMA
	std    *StdDev
}

// NewBollinger creates Bollinger Bands (typically period 20, mult 2).
func NewBollinger(period int, mult float64) *Bollinger {
	return &Bollinger{
		period: period,
		mult:   mult,
		ma:     NewSMA(period),
		std:    NewStdDev(period),
	}
}

func (b *Bollinger) Update(price float64) {
	b.ma.Update(price)
	b.std.Update(price)
}

// Value returns the middle band.
func (b *Bollinger) Value() float64 { return b.Middle() }
func (b *Bollinger) Ready() bool    { return b.ma.Ready() }

func (b *Bollinger) Middle() float64 {
	if !b.Ready() {
		return 0
	}
	return b.ma.Value()
}

func (b *Bollinger) Upper() float64 {
	if !b.Ready() {
		return 0
	}
	return b.ma.Value() + b.mult*b.std.Value()
}

func (b *Bollinger) Lower() float64 {
	if !b.Ready() {
		return 0
	}
	return b.ma.Value() - b.mult*b.std.Value()
}

// PctChange is the period-over-period percent change of the price. The first
// row and any non-finite ratio (previous price 0) report 0.
type PctChange struct {
	count   int
	prev    float64
	current float64
}

func NewPctChange() *PctChange { return &PctChange{} }

func (p *PctChange) Update(price float64) {
	p.count++
	if p.count == 1 {
		p.current = 0
		p.prev = price
		return
	}
	v := (price - p.prev) / p.prev * 100
	if math.IsNaN(v) || math.IsInf(v, 0) {
		v = 0
	}
	p.current = v
	p.prev = price
}

func (p *PctChange) Value() float64 { return p.current }
func (p *PctChange) Ready() bool    { return p.count > 1 }

