// SPDX-License-Identifier: EPL-2.0

package utils

import (
	"math"
	"testing"
)

func TestFloatToInt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input float64
		bits  int
		want  int32
	}{
		{name: "8-bit zero", input: 0, bits: 8, want: 0},
		{name: "8-bit full positive", input: 1, bits: 8, want: 127},
		{name: "8-bit full negative", input: -1, bits: 8, want: -127},
		{name: "8-bit clip over", input: 2, bits: 8, want: 127},
		{name: "8-bit clip under", input: -2, bits: 8, want: -128},
		{name: "8-bit rounds to nearest", input: 0.5, bits: 8, want: 64},
		{name: "16-bit full positive", input: 1, bits: 16, want: math.MaxInt16},
		{name: "16-bit full negative", input: -1, bits: 16, want: -math.MaxInt16},
		{name: "16-bit clip under", input: -1.5, bits: 16, want: math.MinInt16},
		{name: "16-bit half", input: -0.5, bits: 16, want: -16384},
		{name: "24-bit full positive", input: 1, bits: 24, want: 8388607},
		{name: "24-bit full negative", input: -1, bits: 24, want: -8388607},
		{name: "24-bit clip under", input: -100, bits: 24, want: -8388608},
		{name: "NaN is silence", input: math.NaN(), bits: 16, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := FloatToInt(tt.input, tt.bits); got != tt.want {
				t.Errorf("FloatToInt(%v, %d) = %d, want %d", tt.input, tt.bits, got, tt.want)
			}
		})
	}
}

func TestFloatToInt_RoundTrip(t *testing.T) {
	t.Parallel()

	for _, bits := range []int{8, 16, 24} {
		for x := -1.0; x <= 1.0; x += 0.001 {
			q := FloatToInt(x, bits)
			back := FloatToInt(IntToFloat(int64(q), bits), bits)
			if back != q {
				t.Fatalf("%d-bit: code %d round-tripped to %d", bits, q, back)
			}
		}
	}
}

func TestFloatToInt_Monotonic(t *testing.T) {
	t.Parallel()

	prev := FloatToInt(-1.2, 16)
	for x := -1.19; x <= 1.2; x += 0.01 {
		curr := FloatToInt(x, 16)
		if curr < prev {
			t.Fatalf("not monotonic at %v: %d < %d", x, curr, prev)
		}
		prev = curr
	}
}

func TestIntToFloat_Clamps(t *testing.T) {
	t.Parallel()

	if got := IntToFloat(math.MinInt16, 16); got != -1 {
		t.Errorf("IntToFloat(MinInt16) = %v, want -1", got)
	}
	if got := IntToFloat(-128, 8); got != -1 {
		t.Errorf("IntToFloat(-128, 8) = %v, want -1", got)
	}
	if got := IntToFloat(127, 8); got != 1 {
		t.Errorf("IntToFloat(127, 8) = %v, want 1", got)
	}
}

func TestFloatToInt_ZeroAllocs(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping allocation test in short mode")
	}

	allocs := testing.AllocsPerRun(1000, func() {
		_ = FloatToInt(0.5, 24)
	})

	if allocs > 0 {
		t.Errorf("FloatToInt allocated %v times, want 0", allocs)
	}
}

func BenchmarkFloatToInt(b *testing.B) {
	samples := make([]float64, 8000)
	for i := range samples {
		samples[i] = math.Sin(float64(i) * 0.1)
	}
	out := make([]int32, len(samples))

	b.ReportAllocs()

	for range b.N {
		for j, s := range samples {
			out[j] = FloatToInt(s, 16)
		}
	}
}
