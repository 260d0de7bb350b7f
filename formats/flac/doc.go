// SPDX-License-Identifier: EPL-2.0

// Package flac provides FLAC audio decoding on top of github.com/mewkiz/flac.
//
// Frames are parsed one at a time and interleaved on read, so memory use
// is bounded by a single block. Any bit depth from 4 to 32 is accepted and
// normalised by 2^(n-1)-1.
//
//	src, err := flac.Decoder{}.Decode(file)
//	defer src.Close()
package flac
