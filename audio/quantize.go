// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"github.com/ik5/audconv/failure"
	"github.com/ik5/audconv/utils"
)

// Quantize snaps buf onto the depth-bit integer grid.
//
// Each sample becomes round(x*(2^(n-1)-1)) clipped to [-2^(n-1), 2^(n-1)-1]
// and divided back by 2^(n-1)-1, so 0 stays 0 and ±1 stay ±1. DepthFloat
// returns an unchanged copy. The input is never modified.
func Quantize(buf *Buffer, depth BitDepth) (*Buffer, error) {
	if !depth.Valid() {
		return nil, failure.New(failure.UnsupportedBitDepth, "quantize", "%d bits is not supported", int(depth))
	}

	if depth == DepthFloat {
		return buf.Clone(), nil
	}

	bits := int(depth)
	scale := float64(depth.MaxValue())

	out := make([]float64, len(buf.Samples))
	for i, x := range buf.Samples {
		out[i] = float64(utils.FloatToInt(x, bits)) / scale
	}

	return &Buffer{
		Samples:    out,
		SampleRate: buf.SampleRate,
		Depth:      depth,
	}, nil
}

// Ints returns the integer codes of a quantized buffer at its own depth.
// A DepthFloat buffer is coded at 24 bits.
func (b *Buffer) Ints() []int32 {
	bits := int(b.Depth)
	if b.Depth == DepthFloat {
		bits = int(Depth24)
	}

	out := make([]int32, len(b.Samples))
	for i, x := range b.Samples {
		out[i] = utils.FloatToInt(x, bits)
	}
	return out
}
