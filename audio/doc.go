// SPDX-License-Identifier: EPL-2.0

// Package audio provides the sample-level building blocks of a conversion.
//
// # Sources and Buffers
//
// Decoders produce a streaming Source of interleaved float64 samples in
// [-1.0, 1.0]:
//
//	type Source interface {
//	    SampleRate() int
//	    Channels() int
//	    ReadSamples(dst []float64) (int, error)
//	    BufSize() int
//	    Close() error
//	}
//
// Collect drains a Source through a MonoMixer into a Buffer, the immutable
// in-memory signal that every later stage consumes and returns:
//
//	buf, err := audio.Collect(src)
//
// # Transforms
//
// Resample changes the sample rate with a band-limited windowed sinc kernel
// and returns a new Buffer:
//
//	out, err := audio.Resample(buf, 16000)
//
// Quantize snaps samples onto a signed integer grid of 8, 16 or 24 bits:
//
//	out, err := audio.Quantize(buf, audio.Depth16)
//
// Both return a *failure.Error (InvalidRate, UnsupportedBitDepth) for
// parameters they cannot honour. Neither modifies its input.
//
// # Format Registry
//
// The registry allows dynamic decoder registration:
//
//	registry := audio.NewRegistry()
//	registry.Register("wav", wav.Decoder{})
//	decoder, _ := registry.Get("wav")
//
// # Sample Format
//
// Integer PCM is normalised by the symmetric scale 2^(n-1)-1, so the codes
// written by the WAV encoder decode back to exactly the quantized values.
// The most negative code, -2^(n-1), decodes to -1.0.
package audio
