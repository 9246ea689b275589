package spectral

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/imu-gait/algorithms/common"
	"github.com/RyanBlaney/imu-gait/report"
)

// DominantFrequency is the strongest periodic component of a signal within
// a frequency band.
type DominantFrequency struct {
	Hz        float64 `json:"hz"`
	Magnitude float64 `json:"magnitude"`
	Bin       int     `json:"bin"`
}

// PerMinute returns the frequency as cycles per minute.
func (d DominantFrequency) PerMinute() float64 {
	return d.Hz * 60
}

// FindDominantFrequency returns the magnitude-spectrum peak of the
// mean-removed signal between minHz and maxHz (inclusive). The peak
// location is refined by parabolic interpolation over neighbouring bins.
func FindDominantFrequency(signal []float64, sampleRate, minHz, maxHz float64) (DominantFrequency, error) {
	none := DominantFrequency{Hz: math.NaN(), Magnitude: math.NaN(), Bin: -1}
	n := len(signal)
	if n < 4 {
		return none, fmt.Errorf("signal of length %d too short: %w", n, report.ErrEstimatorFailure)
	}
	if sampleRate <= 0 || minHz < 0 || maxHz <= minHz {
		return none, fmt.Errorf("invalid band [%v, %v] at %v Hz: %w", minHz, maxHz, sampleRate, report.ErrEstimatorFailure)
	}

	centered := common.Subtract(signal, common.Mean(signal))
	mags := NewFFT().MagnitudeSpectrum(centered)

	best := -1
	for k := 1; k < len(mags); k++ {
		f := BinFrequency(k, n, sampleRate)
		if f < minHz || f > maxHz {
			continue
		}
		if best < 0 || mags[k] > mags[best] {
			best = k
		}
	}
	if best < 0 || mags[best] == 0 {
		return none, fmt.Errorf("no spectral energy in [%v, %v] Hz: %w", minHz, maxHz, report.ErrEstimatorFailure)
	}

	offset := 0.0
	if best > 0 && best < len(mags)-1 {
		a, b, c := mags[best-1], mags[best], mags[best+1]
		if den := a - 2*b + c; den != 0 {
			offset = 0.5 * (a - c) / den
		}
	}

	return DominantFrequency{
		Hz:        (float64(best) + offset) * sampleRate / float64(n),
		Magnitude: mags[best],
		Bin:       best,
	}, nil
}
