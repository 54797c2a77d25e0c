package dsp

import (
	"errors"
	"math"
)

// Biquad is a second-order IIR section in transposed direct form II.
// Coefficients follow the RBJ audio EQ cookbook and are normalised by a0.
type Biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
	z1, z2     float64
}

// NewHighpass returns a cookbook high-pass section at cutoff with quality q.
func NewHighpass(sampleRate, cutoff, q float64) *Biquad {
	w0 := 2 * math.Pi * cutoff / sampleRate
	cosW0, sinW0 := math.Cos(w0), math.Sin(w0)
	alpha := sinW0 / (2 * q)
	a0 := 1 + alpha
	return &Biquad{
		b0: (1 + cosW0) / 2 / a0,
		b1: -(1 + cosW0) / a0,
		b2: (1 + cosW0) / 2 / a0,
		a1: -2 * cosW0 / a0,
		a2: (1 - alpha) / a0,
	}
}

// NewLowpass returns a cookbook low-pass section at cutoff with quality q.
func NewLowpass(sampleRate, cutoff, q float64) *Biquad {
	w0 := 2 * math.Pi * cutoff / sampleRate
	cosW0, sinW0 := math.Cos(w0), math.Sin(w0)
	alpha := sinW0 / (2 * q)
	a0 := 1 + alpha
	return &Biquad{
		b0: (1 - cosW0) / 2 / a0,
		b1: (1 - cosW0) / a0,
		b2: (1 - cosW0) / 2 / a0,
		a1: -2 * cosW0 / a0,
		a2: (1 - alpha) / a0,
	}
}

// Process filters one sample.
func (b *Biquad) Process(x float64) float64 {
	y := b.b0*x + b.z1
	b.z1 = b.b1*x - b.a1*y + b.z2
	b.z2 = b.b2*x - b.a2*y
	return y
}

// Reset clears the delay line.
func (b *Biquad) Reset() {
	b.z1, b.z2 = 0, 0
}

// ButterworthQ returns the per-section quality factors of an even-order
// Butterworth filter.
func ButterworthQ(order int) []float64 {
	n := order / 2
	qs := make([]float64, n)
	for k := 1; k <= n; k++ {
		qs[k-1] = 1 / (2 * math.Sin(float64(2*k-1)*math.Pi/float64(2*order)))
	}
	return qs
}

// Cascade is a chain of biquad sections.
type Cascade []*Biquad

// Reset clears every section.
func (c Cascade) Reset() {
	for _, s := range c {
		s.Reset()
	}
}

// ProcessBuffer runs x through every section once.
func (c Cascade) ProcessBuffer(x []float64) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		for _, s := range c {
			v = s.Process(v)
		}
		out[i] = v
	}
	return out
}

// FiltFilt applies the cascade forward then backward, giving zero phase.
// Edges are padded by odd reflection to limit start-up transients.
func (c Cascade) FiltFilt(x []float64) []float64 {
	if len(x) == 0 {
		return nil
	}
	pad := 3 * (2*len(c) + 1)
	if pad > len(x)-1 {
		pad = len(x) - 1
	}

	ext := make([]float64, 0, len(x)+2*pad)
	for i := pad; i >= 1; i-- {
		ext = append(ext, 2*x[0]-x[i])
	}
	ext = append(ext, x...)
	last := len(x) - 1
	for i := 1; i <= pad; i++ {
		ext = append(ext, 2*x[last]-x[last-i])
	}

	c.Reset()
	fwd := c.ProcessBuffer(ext)
	reverse(fwd)
	c.Reset()
	back := c.ProcessBuffer(fwd)
	reverse(back)

	out := make([]float64, len(x))
	copy(out, back[pad:pad+len(x)])
	return out
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}

// NewButterworthBandpass builds a band-pass as a Butterworth high-pass at low
// cascaded with a Butterworth low-pass at high, each of the given even order.
// A high edge at or above 0.99 of Nyquist drops the low-pass stage.
func NewButterworthBandpass(sampleRate, low, high float64, order int) (Cascade, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sample rate must be positive")
	}
	if order < 2 || order%2 != 0 {
		return nil, errors.New("filter order must be even and >= 2")
	}
	nyquist := sampleRate / 2
	if low <= 0 || low >= nyquist {
		return nil, errors.New("low cutoff must be inside (0, nyquist)")
	}
	if high <= low {
		return nil, errors.New("high cutoff must be above low cutoff")
	}

	var c Cascade
	qs := ButterworthQ(order)
	for _, q := range qs {
		c = append(c, NewHighpass(sampleRate, low, q))
	}
	if high < 0.99*nyquist {
		for _, q := range qs {
			c = append(c, NewLowpass(sampleRate, high, q))
		}
	}
	return c, nil
}
