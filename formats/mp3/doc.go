// SPDX-License-Identifier: EPL-2.0

// Package mp3 provides MP3 audio file decoding.
//
// This package uses github.com/hajimehoshi/go-mp3 to decode MP3 files.
// go-mp3 always produces 16-bit stereo PCM, so the Source reports two
// channels even for mono files; the down-mix in audio.Collect averages them
// back to the original signal.
//
//	src, err := mp3.Decoder{}.Decode(file)
//	if errors.Is(err, mp3.ErrInvalidStream) {
//	    // no MPEG audio frames found
//	}
//
// Samples are normalised by 32767 like every other 16-bit source.
//
// There is no encoder here; MP3 output is produced by the external codec.
package mp3
