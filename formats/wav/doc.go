// SPDX-License-Identifier: EPL-2.0

// Package wav provides WAV audio file decoding and encoding.
//
// Chunk parsing is done by github.com/go-audio/wav; sample conversion is
// done here so every width maps onto the same symmetric scale used by the
// quantizer.
//
// # Supported Formats
//
// Decoding:
//   - PCM 8-bit (unsigned), 16, 24 and 32-bit
//   - WAVE_FORMAT_EXTENSIBLE holding integer PCM
//   - IEEE float 32 and 64-bit
//   - Any channel count and sample rate
//
// Encoding writes mono files only, at the depth recorded on the buffer:
//
//	var out bytes.Buffer
//	err := wav.Encode(&out, buf)
//
// A DepthFloat buffer becomes a 32-bit IEEE float file with a fact chunk.
//
// # Error Handling
//
//   - ErrNotWavFile: the input has no RIFF/WAVE signature
//   - ErrUnsupportedWavLayout: the chunk structure could not be parsed
//   - ErrMissingDataChunk: no data chunk follows the format chunk
//   - ErrUnsupportedSampleFormat: a valid file in an encoding we cannot read;
//     it matches audio.ErrUnsupportedEncoding
package wav
