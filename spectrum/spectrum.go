// SPDX-License-Identifier: EPL-2.0

// Package spectrum reduces a signal to a bounded one-sided magnitude spectrum.
package spectrum

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"

	"github.com/ik5/audconv/audio"
)

// DefaultMaxPoints caps the number of points in a Summary.
const DefaultMaxPoints = 512

// Summary is a downsampled magnitude spectrum.
// Frequencies are in Hz and ascending; both slices always have the same length.
type Summary struct {
	Frequencies []float64 `json:"frequencies"`
	Magnitudes  []float64 `json:"magnitudes"`
}

func (s Summary) Len() int { return len(s.Frequencies) }

// Peak returns the point with the largest magnitude. ok is false for an empty summary.
func (s Summary) Peak() (freq, mag float64, ok bool) {
	if len(s.Magnitudes) == 0 {
		return 0, 0, false
	}
	best := 0
	for i, m := range s.Magnitudes {
		if m > s.Magnitudes[best] {
			best = i
		}
	}
	return s.Frequencies[best], s.Magnitudes[best], true
}

// Analyzer computes summaries with a fixed point cap. It holds no per-call
// state and is safe for concurrent use.
type Analyzer struct {
	maxPoints int
}

// NewAnalyzer returns an Analyzer keeping at most maxPoints points.
// Non-positive values select DefaultMaxPoints.
func NewAnalyzer(maxPoints int) *Analyzer {
	if maxPoints <= 0 {
		maxPoints = DefaultMaxPoints
	}
	return &Analyzer{maxPoints: maxPoints}
}

func (a *Analyzer) MaxPoints() int { return a.maxPoints }

// Analyze returns the magnitude spectrum of buf.
//
// The FFT runs over the whole signal. Bin k sits at k*rate/N for
// k = 0..N/2 and carries |X[k]| unnormalised. When there are more bins than
// the cap, every floor(bins/cap)-th bin is kept starting at bin 0 and the
// result is truncated to the cap. An empty buffer gives an empty Summary.
func (a *Analyzer) Analyze(buf *audio.Buffer) Summary {
	n := len(buf.Samples)
	if n == 0 || buf.SampleRate <= 0 {
		return Summary{Frequencies: []float64{}, Magnitudes: []float64{}}
	}

	coeffs := fft.FFTReal(buf.Samples)

	bins := n/2 + 1
	stride := 1
	if bins > a.maxPoints {
		stride = bins / a.maxPoints
	}

	points := min((bins+stride-1)/stride, a.maxPoints)

	s := Summary{
		Frequencies: make([]float64, points),
		Magnitudes:  make([]float64, points),
	}

	binWidth := float64(buf.SampleRate) / float64(n)
	for i := range points {
		k := i * stride
		s.Frequencies[i] = float64(k) * binWidth
		s.Magnitudes[i] = cmplx.Abs(coeffs[k])
	}

	return s
}

// Analyze uses a default Analyzer.
func Analyze(buf *audio.Buffer) Summary {
	return NewAnalyzer(DefaultMaxPoints).Analyze(buf)
}
