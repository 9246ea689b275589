// Package peaks finds local maxima in sampled signals under height and
// spacing constraints, in positive, negative and absolute variants.
package peaks

import (
	"fmt"
	"math"
	"slices"
	"strings"
)

// Polarity selects which excursions of a signal count as peaks.
type Polarity int

const (
	// Positive detects maxima of S.
	Positive Polarity = iota
	// Negative detects maxima of -S.
	Negative
	// Absolute detects maxima of |S|.
	Absolute
)

func (p Polarity) String() string {
	switch p {
	case Positive:
		return "positive"
	case Negative:
		return "negative"
	case Absolute:
		return "absolute"
	default:
		return fmt.Sprintf("polarity(%d)", int(p))
	}
}

// ParsePolarity accepts the String forms plus "pos", "neg" and "abs".
func ParsePolarity(s string) (Polarity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive", "pos", "":
		return Positive, nil
	case "negative", "neg":
		return Negative, nil
	case "absolute", "abs":
		return Absolute, nil
	default:
		return Positive, fmt.Errorf("unknown peak polarity %q", s)
	}
}

// FlagSuffix is appended to a column name to form its indicator column.
func (p Polarity) FlagSuffix() string {
	switch p {
	case Negative:
		return "_neg_peaks"
	case Absolute:
		return "_abs_peaks"
	default:
		return "_peaks"
	}
}

// AverageSuffix is appended to a column name to form its summary variable.
func (p Polarity) AverageSuffix() string {
	switch p {
	case Negative:
		return "_avg_neg_peak"
	case Absolute:
		return "_avg_abs_peak"
	default:
		return "_avg_peak"
	}
}

// Transform returns the signal detection actually runs on.
func (p Polarity) Transform(signal []float64) []float64 {
	out := make([]float64, len(signal))
	for i, v := range signal {
		switch p {
		case Negative:
			out[i] = -v
		case Absolute:
			out[i] = math.Abs(v)
		default:
			out[i] = v
		}
	}
	return out
}

// Options constrains which local maxima are accepted. Heights apply to the
// transformed signal. MinDistance below 1 disables spacing suppression.
type Options struct {
	MinHeight   *float64 `json:"min_height,omitempty"`
	MaxHeight   *float64 `json:"max_height,omitempty"`
	MinDistance int      `json:"min_distance,omitempty"`
}

// Height is a helper for filling the optional bounds of Options.
func Height(v float64) *float64 {
	return &v
}

// WithoutDistance returns a copy of o with spacing suppression disabled.
func (o Options) WithoutDistance() Options {
	o.MinDistance = 0
	return o
}

// Peak is one accepted sample. Value is the original signed sample and
// Height the detection value (S, -S or |S|). Timestamp is NaN when the
// detection ran without a time axis.
type Peak struct {
	Index     int     `json:"index"`
	Value     float64 `json:"value"`
	Height    float64 `json:"height"`
	Timestamp float64 `json:"timestamp"`
}

// Find returns the ascending indices of the strict local maxima of signal
// that satisfy opts. Boundary samples are never peaks. When two candidates
// are closer than MinDistance the higher one is kept; equal heights keep
// the lower index.
func Find(signal []float64, opts Options) []int {
	var candidates []int
	for i := 1; i < len(signal)-1; i++ {
		v := signal[i]
		if !(v > signal[i-1] && v > signal[i+1]) {
			continue
		}
		if opts.MinHeight != nil && v < *opts.MinHeight {
			continue
		}
		if opts.MaxHeight != nil && v > *opts.MaxHeight {
			continue
		}
		candidates = append(candidates, i)
	}

	if opts.MinDistance <= 1 || len(candidates) < 2 {
		return candidates
	}
	return suppress(signal, candidates, opts.MinDistance)
}

// suppress walks candidates from highest to lowest and removes every
// neighbour within distance of a peak that is still kept.
func suppress(signal []float64, candidates []int, distance int) []int {
	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		ha, hb := signal[candidates[a]], signal[candidates[b]]
		switch {
		case ha > hb:
			return -1
		case ha < hb:
			return 1
		default:
			return 0
		}
	})

	keep := make([]bool, len(candidates))
	for i := range keep {
		keep[i] = true
	}
	for _, j := range order {
		if !keep[j] {
			continue
		}
		for k := j - 1; k >= 0 && candidates[j]-candidates[k] < distance; k-- {
			keep[k] = false
		}
		for k := j + 1; k < len(candidates) && candidates[k]-candidates[j] < distance; k++ {
			keep[k] = false
		}
	}

	kept := make([]int, 0, len(candidates))
	for i, idx := range candidates {
		if keep[i] {
			kept = append(kept, idx)
		}
	}
	return kept
}

// Detect runs Find on the polarity-transformed signal and reports records
// carrying the original signed values. times may be nil.
func Detect(signal, times []float64, polarity Polarity, opts Options) []Peak {
	transformed := polarity.Transform(signal)
	indices := Find(transformed, opts)

	out := make([]Peak, len(indices))
	for i, idx := range indices {
		ts := math.NaN()
		if idx < len(times) {
			ts = times[idx]
		}
		out[i] = Peak{
			Index:     idx,
			Value:     signal[idx],
			Height:    transformed[idx],
			Timestamp: ts,
		}
	}
	return out
}

// Dominant returns the peak with the greatest Height. Ties go to the
// earliest index. ok is false for an empty set.
func Dominant(ps []Peak) (best Peak, ok bool) {
	for i, p := range ps {
		if i == 0 || p.Height > best.Height || (p.Height == best.Height && p.Index < best.Index) {
			best = p
		}
	}
	return best, len(ps) > 0
}

// Mean averages the detection heights, so negative peaks average -S and
// absolute peaks average |S|. An empty set yields NaN.
func Mean(ps []Peak) float64 {
	if len(ps) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, p := range ps {
		sum += p.Height
	}
	return sum / float64(len(ps))
}

// Indices extracts the sample indices.
func Indices(ps []Peak) []int {
	out := make([]int, len(ps))
	for i, p := range ps {
		out[i] = p.Index
	}
	return out
}

// Shift offsets every index by delta and refreshes Value and Timestamp from
// the full-length signal and time axis. Used when detection ran on a window.
func Shift(ps []Peak, delta int, signal, times []float64) []Peak {
	out := make([]Peak, len(ps))
	for i, p := range ps {
		p.Index += delta
		if p.Index >= 0 && p.Index < len(signal) {
			p.Value = signal[p.Index]
		}
		p.Timestamp = math.NaN()
		if p.Index >= 0 && p.Index < len(times) {
			p.Timestamp = times[p.Index]
		}
		out[i] = p
	}
	return out
}
