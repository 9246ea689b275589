package spectral

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
)

// FFT wraps mjibson/go-dsp for real-valued signals.
type FFT struct {
	// Windowed applies a Hann window before transforming.
	Windowed bool
}

// NewFFT creates a transformer that applies a Hann window.
func NewFFT() *FFT {
	return &FFT{Windowed: true}
}

// Compute returns the complex spectrum of x.
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}

	in := x
	if f.Windowed {
		in = make([]float64, len(x))
		copy(in, x)
		window.Apply(in, window.Hann)
	}

	// go-dsp handles non-power-of-2 lengths
	return fft.FFTReal(in)
}

// MagnitudeSpectrum returns |X[k]| for k in [0, n/2].
func (f *FFT) MagnitudeSpectrum(x []float64) []float64 {
	bins := f.Compute(x)
	if len(bins) == 0 {
		return []float64{}
	}

	half := len(bins)/2 + 1
	mags := make([]float64, half)
	for k := range mags {
		mags[k] = cmplx.Abs(bins[k])
	}
	return mags
}

// BinFrequency converts bin k of an n-point transform to Hz.
func BinFrequency(k, n int, sampleRate float64) float64 {
	if n == 0 {
		return 0
	}
	return float64(k) * sampleRate / float64(n)
}
