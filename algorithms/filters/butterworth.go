package filters

import (
	"fmt"
	"math"
	"slices"
)

// Butterworth is a digital Butterworth low-pass realized as a cascade of
// second-order sections (plus one first-order section for odd orders).
//
// Section Q values come from the analog prototype pole angles measured
// from the negative real axis, theta_k = pi*(N-2k+1)/(2N) for
// k = 1..N/2, with Q_k = 1/(2*cos(theta_k)). The cookbook bilinear mapping
// of each section keeps the -3 dB point at the cutoff.
type Butterworth struct {
	sampleRate float64
	cutoff     float64
	order      int
	sections   []*Biquad
}

// NewButterworthLowpass designs an order-N low-pass at cutoff Hz.
func NewButterworthLowpass(sampleRate, cutoff float64, order int) (*Butterworth, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %v", sampleRate)
	}
	if cutoff <= 0 || cutoff >= sampleRate/2 {
		return nil, fmt.Errorf("cutoff must be between 0 and Nyquist (%v Hz), got %v", sampleRate/2, cutoff)
	}
	if order < 1 || order > 12 {
		return nil, fmt.Errorf("order must be between 1 and 12, got %d", order)
	}

	bw := &Butterworth{sampleRate: sampleRate, cutoff: cutoff, order: order}
	for k := 1; k <= order/2; k++ {
		theta := math.Pi * float64(order-2*k+1) / float64(2*order)
		q := 1.0 / (2.0 * math.Cos(theta))
		bw.sections = append(bw.sections, NewLowpassBiquad(sampleRate, cutoff, q))
	}
	if order%2 == 1 {
		bw.sections = append(bw.sections, NewFirstOrderLowpass(sampleRate, cutoff))
	}
	return bw, nil
}

// Order returns the filter order.
func (bw *Butterworth) Order() int {
	return bw.order
}

// Reset clears every section's state.
func (bw *Butterworth) Reset() {
	for _, s := range bw.sections {
		s.Reset()
	}
}

// prime puts every section in steady state for constant input x0.
func (bw *Butterworth) prime(x0 float64) {
	for _, s := range bw.sections {
		s.Prime(x0)
		x0 *= s.DCGain()
	}
}

// Process runs one sample through the cascade.
func (bw *Butterworth) Process(x float64) float64 {
	for _, s := range bw.sections {
		x = s.Process(x)
	}
	return x
}

// ProcessBuffer filters a whole buffer causally, starting from rest.
func (bw *Butterworth) ProcessBuffer(input []float64) []float64 {
	bw.Reset()
	out := make([]float64, len(input))
	for i, v := range input {
		out[i] = bw.Process(v)
	}
	return out
}

// MagnitudeAt returns the cascade's magnitude response at frequency Hz.
func (bw *Butterworth) MagnitudeAt(frequency float64) float64 {
	m := 1.0
	for _, s := range bw.sections {
		m *= s.MagnitudeAt(bw.sampleRate, frequency)
	}
	return m
}

// PadLength is the odd-extension length used by FiltFilt, matching the
// 3*(order+1) convention of common forward-backward implementations.
func (bw *Butterworth) PadLength() int {
	return 3 * (bw.order + 1)
}

// FiltFilt applies the filter forward then backward for zero phase
// distortion. The signal is extended at both ends by odd reflection and
// each pass starts from the steady state of its first sample.
func (bw *Butterworth) FiltFilt(input []float64) ([]float64, error) {
	pad := bw.PadLength()
	n := len(input)
	if n <= pad {
		return nil, fmt.Errorf("input length %d must exceed pad length %d", n, pad)
	}

	ext := make([]float64, 0, n+2*pad)
	for i := pad; i >= 1; i-- {
		ext = append(ext, 2*input[0]-input[i])
	}
	ext = append(ext, input...)
	for i := n - 2; i >= n-1-pad; i-- {
		ext = append(ext, 2*input[n-1]-input[i])
	}

	forward := bw.pass(ext)
	slices.Reverse(forward)
	backward := bw.pass(forward)
	slices.Reverse(backward)

	out := make([]float64, n)
	copy(out, backward[pad:pad+n])
	return out, nil
}

func (bw *Butterworth) pass(x []float64) []float64 {
	bw.Reset()
	bw.prime(x[0])
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = bw.Process(v)
	}
	return out
}
