// SPDX-License-Identifier: EPL-2.0

package utils

import "math"

// Sinc is the normalised sinc function sin(pi x) / (pi x).
func Sinc(x float64) float64 {
	if x == 0 {
		return 1
	}
	px := math.Pi * x
	return math.Sin(px) / px
}

// Blackman evaluates a Blackman window at u in [-1, 1]; it is zero outside.
func Blackman(u float64) float64 {
	if u <= -1 || u >= 1 {
		return 0
	}
	return 0.42 + 0.5*math.Cos(math.Pi*u) + 0.08*math.Cos(2*math.Pi*u)
}
