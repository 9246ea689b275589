package filters

import (
	"math"
)

// Biquad is one second-order IIR section in transposed Direct Form II,
// normalized so a0 == 1.
//
// Coefficients follow Robert Bristow-Johnson's cookbook formulae:
// https://webaudio.github.io/Audio-EQ-Cookbook/audio-eq-cookbook.html
type Biquad struct {
	b0, b1, b2 float64
	a1, a2     float64

	s1, s2 float64
}

// NewLowpassBiquad designs a cookbook low-pass section at cutoff Hz with
// quality factor q.
func NewLowpassBiquad(sampleRate, cutoff, q float64) *Biquad {
	w0 := 2.0 * math.Pi * cutoff / sampleRate
	cosW0 := math.Cos(w0)
	alpha := math.Sin(w0) / (2.0 * q)

	a0 := 1.0 + alpha
	return &Biquad{
		b0: (1.0 - cosW0) / 2.0 / a0,
		b1: (1.0 - cosW0) / a0,
		b2: (1.0 - cosW0) / 2.0 / a0,
		a1: -2.0 * cosW0 / a0,
		a2: (1.0 - alpha) / a0,
	}
}

// NewFirstOrderLowpass designs a bilinear-transform one-pole low-pass
// (b2 = a2 = 0), used for the odd section of odd-order designs.
func NewFirstOrderLowpass(sampleRate, cutoff float64) *Biquad {
	k := math.Tan(math.Pi * cutoff / sampleRate)
	return &Biquad{
		b0: k / (1.0 + k),
		b1: k / (1.0 + k),
		a1: (k - 1.0) / (k + 1.0),
	}
}

// Process filters one sample.
//
// y[n] = b0*x[n] + s1
// s1   = b1*x[n] - a1*y[n] + s2
// s2   = b2*x[n] - a2*y[n]
func (bq *Biquad) Process(x float64) float64 {
	y := bq.b0*x + bq.s1
	bq.s1 = bq.b1*x - bq.a1*y + bq.s2
	bq.s2 = bq.b2*x - bq.a2*y
	return y
}

// Reset clears the delay line.
func (bq *Biquad) Reset() {
	bq.s1, bq.s2 = 0, 0
}

// Prime sets the delay line to the steady state for a constant input x0,
// which removes the start-up transient of unity-DC-gain sections.
func (bq *Biquad) Prime(x0 float64) {
	y0 := bq.DCGain() * x0
	bq.s2 = bq.b2*x0 - bq.a2*y0
	bq.s1 = y0 - bq.b0*x0
}

// DCGain returns H(1).
func (bq *Biquad) DCGain() float64 {
	return (bq.b0 + bq.b1 + bq.b2) / (1.0 + bq.a1 + bq.a2)
}

// MagnitudeAt returns |H(e^jw)| at frequency Hz.
func (bq *Biquad) MagnitudeAt(sampleRate, frequency float64) float64 {
	w := 2.0 * math.Pi * frequency / sampleRate
	cosW, sinW := math.Cos(w), math.Sin(w)
	cos2W, sin2W := math.Cos(2*w), math.Sin(2*w)

	numReal := bq.b0 + bq.b1*cosW + bq.b2*cos2W
	numImag := -bq.b1*sinW - bq.b2*sin2W
	denReal := 1.0 + bq.a1*cosW + bq.a2*cos2W
	denImag := -bq.a1*sinW - bq.a2*sin2W

	return math.Sqrt((numReal*numReal + numImag*numImag) / (denReal*denReal + denImag*denImag))
}

// Coefficients returns b0, b1, b2, a1, a2.
func (bq *Biquad) Coefficients() (b0, b1, b2, a1, a2 float64) {
	return bq.b0, bq.b1, bq.b2, bq.a1, bq.a2
}
