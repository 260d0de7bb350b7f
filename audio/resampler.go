// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"math"

	"github.com/ik5/audconv/failure"
	"github.com/ik5/audconv/utils"
)

// Quality selects the interpolation kernel used by Resample.
type Quality int

const (
	// QualitySinc is a Blackman windowed sinc interpolator. It is band limited
	// to the lower of the two Nyquist frequencies.
	QualitySinc Quality = iota
	// QualityCubic is Catmull-Rom interpolation with a one-pole low-pass on
	// downsampling. Cheap, but it aliases.
	QualityCubic
)

const (
	defaultZeroCrossings = 16
	defaultRolloff       = 0.95
)

type resampleConfig struct {
	quality       Quality
	zeroCrossings int
	rolloff       float64
}

// ResampleOption tunes Resample.
type ResampleOption func(*resampleConfig)

func WithQuality(q Quality) ResampleOption {
	return func(c *resampleConfig) { c.quality = q }
}

// WithZeroCrossings sets the number of sinc zero crossings on each side of
// the kernel centre. Values below 2 are ignored.
func WithZeroCrossings(n int) ResampleOption {
	return func(c *resampleConfig) {
		if n >= 2 {
			c.zeroCrossings = n
		}
	}
}

// WithRolloff sets the cutoff as a fraction of the lower Nyquist frequency.
// Values outside (0, 1] are ignored.
func WithRolloff(r float64) ResampleOption {
	return func(c *resampleConfig) {
		if r > 0 && r <= 1 {
			c.rolloff = r
		}
	}
}

// Resample converts buf to rate Hz.
//
// The output has round(len*rate/src) samples and Depth DepthFloat; a
// quantized grid does not survive interpolation. When rate already matches,
// an unchanged copy is returned.
func Resample(buf *Buffer, rate int, opts ...ResampleOption) (*Buffer, error) {
	if rate <= 0 {
		return nil, failure.New(failure.InvalidRate, "resample", "target rate %d Hz is not positive", rate)
	}
	if len(buf.Samples) > 0 && buf.SampleRate <= 0 {
		return nil, failure.New(failure.InvalidRate, "resample", "source rate %d Hz is not positive", buf.SampleRate)
	}

	if rate == buf.SampleRate {
		return buf.Clone(), nil
	}

	if len(buf.Samples) == 0 {
		return &Buffer{Samples: []float64{}, SampleRate: rate, Depth: DepthFloat}, nil
	}

	cfg := resampleConfig{
		quality:       QualitySinc,
		zeroCrossings: defaultZeroCrossings,
		rolloff:       defaultRolloff,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	n := int(math.Round(float64(len(buf.Samples)) * float64(rate) / float64(buf.SampleRate)))

	var out []float64
	switch cfg.quality {
	case QualityCubic:
		out = resampleCubic(buf.Samples, buf.SampleRate, rate, n)
	default:
		out = resampleSinc(buf.Samples, buf.SampleRate, rate, n, cfg)
	}

	return &Buffer{Samples: out, SampleRate: rate, Depth: DepthFloat}, nil
}

func resampleSinc(in []float64, srcRate, dstRate, n int, cfg resampleConfig) []float64 {
	ratio := float64(srcRate) / float64(dstRate)

	// cutoff in cycles per input sample
	fc := 0.5 * math.Min(1, float64(dstRate)/float64(srcRate)) * cfg.rolloff
	halfWidth := float64(cfg.zeroCrossings) / (2 * fc)

	out := make([]float64, n)
	last := len(in) - 1

	for i := range out {
		t := float64(i) * ratio

		lo := max(int(math.Ceil(t-halfWidth)), 0)
		hi := min(int(math.Floor(t+halfWidth)), last)

		var acc, wsum float64
		for j := lo; j <= hi; j++ {
			d := float64(j) - t
			w := 2 * fc * utils.Sinc(2*fc*d) * utils.Blackman(d/halfWidth)
			acc += w * in[j]
			wsum += w
		}

		// normalising keeps DC gain at 1 even where the kernel is cut by the edges
		if wsum != 0 {
			acc /= wsum
		}
		out[i] = acc
	}

	return out
}

func resampleCubic(in []float64, srcRate, dstRate, n int) []float64 {
	ratio := float64(srcRate) / float64(dstRate)

	src := in
	if ratio > 1 {
		// One-pole low-pass: y[n] = alpha * x[n] + (1-alpha) * y[n-1]
		const alpha = 0.5
		src = make([]float64, len(in))
		state := in[0]
		for i, x := range in {
			state = alpha*x + (1-alpha)*state
			src[i] = state
		}
	}

	last := len(src) - 1
	at := func(i int) float64 {
		return src[min(max(i, 0), last)]
	}

	out := make([]float64, n)
	for i := range out {
		pos := float64(i) * ratio
		k := int(pos)
		frac := pos - float64(k)
		out[i] = utils.CubicInterpolate(at(k-1), at(k), at(k+1), at(k+2), frac)
	}

	return out
}
