// SPDX-License-Identifier: EPL-2.0

package utils

import "math"

// FullScale returns 2^(bits-1) - 1, the symmetric full-scale value for signed
// bits-wide PCM.
func FullScale(bits int) int64 {
	return int64(1)<<(bits-1) - 1
}

// FloatToInt maps x (nominally in [-1, 1]) onto signed bits-wide PCM.
// It scales by FullScale(bits), rounds to nearest and clips to
// [-2^(bits-1), 2^(bits-1)-1] so out-of-range input never wraps.
func FloatToInt(x float64, bits int) int32 {
	if math.IsNaN(x) {
		return 0
	}

	scale := FullScale(bits)
	v := math.Round(x * float64(scale))

	if v > float64(scale) {
		return int32(scale)
	}
	if lo := -float64(scale + 1); v < lo {
		return int32(-(scale + 1))
	}

	return int32(v)
}

// IntToFloat is the inverse of FloatToInt. The most negative code maps
// slightly below -1 and is clamped to -1.
func IntToFloat(v int64, bits int) float64 {
	x := float64(v) / float64(FullScale(bits))
	if x < -1 {
		return -1
	}
	if x > 1 {
		return 1
	}
	return x
}
