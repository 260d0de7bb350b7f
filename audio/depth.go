// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"strconv"
	"strings"

	"github.com/ik5/audconv/failure"
	"github.com/ik5/audconv/utils"
)

// BitDepth is the integer sample grid of a Buffer. DepthFloat means unquantized.
type BitDepth int

const (
	DepthFloat BitDepth = 0
	Depth8     BitDepth = 8
	Depth16    BitDepth = 16
	Depth24    BitDepth = 24
)

// ParseBitDepth maps a user supplied depth. The empty string, "float" and
// "32f" mean DepthFloat. Anything that is not 8, 16 or 24 is rejected.
func ParseBitDepth(s string) (BitDepth, error) {
	switch v := strings.ToLower(strings.TrimSpace(s)); v {
	case "", "float", "32f":
		return DepthFloat, nil
	default:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, failure.New(failure.UnsupportedBitDepth, "parse bit depth", "%q is not a bit depth", s)
		}
		d := BitDepth(n)
		if !d.Valid() || d == DepthFloat {
			return 0, failure.New(failure.UnsupportedBitDepth, "parse bit depth", "%d bits is not supported", n)
		}
		return d, nil
	}
}

// Valid reports whether d is DepthFloat or one of the integer depths.
func (d BitDepth) Valid() bool {
	switch d {
	case DepthFloat, Depth8, Depth16, Depth24:
		return true
	}
	return false
}

func (d BitDepth) String() string {
	if d == DepthFloat {
		return "float"
	}
	return strconv.Itoa(int(d))
}

// MaxValue is the largest integer code, 2^(n-1)-1. Zero for DepthFloat.
func (d BitDepth) MaxValue() int64 {
	if d == DepthFloat {
		return 0
	}
	return utils.FullScale(int(d))
}

// MinValue is the smallest integer code, -2^(n-1). Zero for DepthFloat.
func (d BitDepth) MinValue() int64 {
	if d == DepthFloat {
		return 0
	}
	return -utils.FullScale(int(d)) - 1
}
