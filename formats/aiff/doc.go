// SPDX-License-Identifier: EPL-2.0

// Package aiff provides AIFF audio file decoding.
//
// Parsing is delegated to github.com/go-audio/aiff. Signed big-endian PCM
// of 8, 16, 24 and 32 bits is supported at any channel count; samples are
// normalised by 2^(n-1)-1 and clamped to [-1.0, 1.0].
//
//	src, err := aiff.Decoder{}.Decode(file)
//	if errors.Is(err, audio.ErrUnsupportedEncoding) {
//	    // a valid AIFF in a bit depth we cannot read
//	}
package aiff
