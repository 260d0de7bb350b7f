// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"errors"
	"math"
	"testing"

	"github.com/ik5/audconv/failure"
	"github.com/ik5/audconv/internal/audiotest"
)

func TestQuantizeFixedPoints(t *testing.T) {
	t.Parallel()

	for _, depth := range []BitDepth{Depth8, Depth16, Depth24} {
		t.Run(depth.String(), func(t *testing.T) {
			t.Parallel()

			in := &Buffer{Samples: []float64{0, 1, -1}, SampleRate: 8000}
			out, err := Quantize(in, depth)
			if err != nil {
				t.Fatal(err)
			}

			for i, want := range []float64{0, 1, -1} {
				if out.Samples[i] != want {
					t.Errorf("sample %d = %v, want %v", i, out.Samples[i], want)
				}
			}
			if out.Depth != depth || out.SampleRate != 8000 {
				t.Errorf("metadata = (%v, %d)", out.Depth, out.SampleRate)
			}

			codes := out.Ints()
			if codes[0] != 0 || int64(codes[1]) != depth.MaxValue() || int64(codes[2]) != -depth.MaxValue() {
				t.Errorf("codes = %v", codes)
			}
		})
	}
}

func TestQuantizeGrid(t *testing.T) {
	t.Parallel()

	in := &Buffer{Samples: audiotest.Sine(44100, 2048, 997, 0.7), SampleRate: 44100}
	out, err := Quantize(in, Depth8)
	if err != nil {
		t.Fatal(err)
	}

	for i, x := range out.Samples {
		q := x * 127
		if math.Abs(q-math.Round(q)) > 1e-9 {
			t.Fatalf("sample %d = %v is off the 8-bit grid", i, x)
		}
		if math.Abs(x-in.Samples[i]) > 0.5/127+1e-12 {
			t.Fatalf("sample %d moved by more than half a step", i)
		}
	}
}

func TestQuantizeClipsOutOfRange(t *testing.T) {
	t.Parallel()

	out, err := Quantize(&Buffer{Samples: []float64{3, -3}, SampleRate: 8000}, Depth16)
	if err != nil {
		t.Fatal(err)
	}
	codes := out.Ints()
	if codes[0] != 32767 || codes[1] != -32768 {
		t.Errorf("codes = %v, want [32767 -32768]", codes)
	}
}

func TestQuantizeIdempotent(t *testing.T) {
	t.Parallel()

	in := &Buffer{Samples: audiotest.Sine(16000, 1000, 300, 0.9), SampleRate: 16000}
	once, _ := Quantize(in, Depth24)
	twice, _ := Quantize(once, Depth24)

	for i := range once.Samples {
		if once.Samples[i] != twice.Samples[i] {
			t.Fatalf("sample %d changed on re-quantization", i)
		}
	}
}

func TestQuantizeFloatPassthrough(t *testing.T) {
	t.Parallel()

	in := &Buffer{Samples: []float64{0.123456789}, SampleRate: 8000}
	out, err := Quantize(in, DepthFloat)
	if err != nil {
		t.Fatal(err)
	}
	if out.Samples[0] != 0.123456789 || out.Depth != DepthFloat {
		t.Errorf("got %+v", out)
	}
	out.Samples[0] = 0
	if in.Samples[0] == 0 {
		t.Error("passthrough aliases the input")
	}
}

func TestQuantizeUnsupportedDepth(t *testing.T) {
	t.Parallel()

	for _, d := range []BitDepth{1, 12, 32, -8} {
		_, err := Quantize(&Buffer{Samples: []float64{0}, SampleRate: 8000}, d)
		if !errors.Is(err, failure.ErrUnsupportedBitDepth) {
			t.Errorf("depth %d: expected UnsupportedBitDepth, got %v", d, err)
		}
	}
}

func TestParseBitDepth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    BitDepth
		wantErr bool
	}{
		{"", DepthFloat, false},
		{"float", DepthFloat, false},
		{"32f", DepthFloat, false},
		{"8", Depth8, false},
		{" 16 ", Depth16, false},
		{"24", Depth24, false},
		{"0", 0, true},
		{"12", 0, true},
		{"32", 0, true},
		{"sixteen", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := ParseBitDepth(tt.in)
			if tt.wantErr {
				if !errors.Is(err, failure.ErrUnsupportedBitDepth) {
					t.Fatalf("expected UnsupportedBitDepth, got %v", err)
				}
				return
			}
			if err != nil || got != tt.want {
				t.Fatalf("ParseBitDepth(%q) = %v, %v", tt.in, got, err)
			}
		})
	}
}

func TestBitDepthRange(t *testing.T) {
	t.Parallel()

	if Depth24.MaxValue() != 8388607 || Depth24.MinValue() != -8388608 {
		t.Errorf("24-bit range = [%d, %d]", Depth24.MinValue(), Depth24.MaxValue())
	}
	if DepthFloat.MaxValue() != 0 {
		t.Error("float depth has no integer range")
	}
}

func BenchmarkQuantize16(b *testing.B) {
	in := &Buffer{Samples: audiotest.Sine(44100, 44100, 440, 0.8), SampleRate: 44100}

	b.ReportAllocs()
	for b.Loop() {
		_, _ = Quantize(in, Depth16)
	}
}
