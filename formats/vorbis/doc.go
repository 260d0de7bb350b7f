// SPDX-License-Identifier: EPL-2.0

// Package vorbis provides Ogg Vorbis audio decoding.
//
// Decoding is delegated to github.com/jfreymuth/oggvorbis, which yields
// interleaved float32 samples. Values are widened to float64 and clamped to
// [-1.0, 1.0]; lossy decoders can overshoot full scale slightly.
//
//	src, err := vorbis.Decoder{}.Decode(file)
//
// Ogg streams carrying other codecs (Opus, FLAC) fail with ErrInvalidStream.
package vorbis
