// SPDX-License-Identifier: EPL-2.0

package codec

import (
	"bytes"
	"mime"
	"path/filepath"
	"strings"
)

// Format is a detected input container.
type Format string

const (
	FormatUnknown Format = ""
	FormatWAV     Format = "wav"
	FormatAIFF    Format = "aiff"
	FormatFLAC    Format = "flac"
	FormatOgg     Format = "ogg"
	FormatOpus    Format = "opus"
	FormatMP3     Format = "mp3"
	FormatWebM    Format = "webm"
	FormatMP4     Format = "mp4"
)

var extFormats = map[string]Format{
	".wav":  FormatWAV,
	".wave": FormatWAV,
	".aif":  FormatAIFF,
	".aiff": FormatAIFF,
	".aifc": FormatAIFF,
	".flac": FormatFLAC,
	".ogg":  FormatOgg,
	".oga":  FormatOgg,
	".opus": FormatOpus,
	".mp3":  FormatMP3,
	".webm": FormatWebM,
	".weba": FormatWebM,
	".mp4":  FormatMP4,
	".m4a":  FormatMP4,
}

var mimeFormats = map[string]Format{
	"audio/wav":      FormatWAV,
	"audio/x-wav":    FormatWAV,
	"audio/wave":     FormatWAV,
	"audio/vnd.wave": FormatWAV,
	"audio/aiff":     FormatAIFF,
	"audio/x-aiff":   FormatAIFF,
	"audio/flac":     FormatFLAC,
	"audio/x-flac":   FormatFLAC,
	"audio/ogg":      FormatOgg,
	"audio/vorbis":   FormatOgg,
	"audio/opus":     FormatOpus,
	"audio/mpeg":     FormatMP3,
	"audio/mp3":      FormatMP3,
	"audio/webm":     FormatWebM,
	"video/webm":     FormatWebM,
	"audio/mp4":      FormatMP4,
	"audio/x-m4a":    FormatMP4,
	"video/mp4":      FormatMP4,
}

// Sniff identifies the container of data.
//
// Magic bytes win. The filename extension is consulted next and the
// declared content type last.
func Sniff(data []byte, hint Hint) Format {
	if f := sniffMagic(data); f != FormatUnknown {
		return f
	}

	if ext := strings.ToLower(filepath.Ext(hint.Filename)); ext != "" {
		if f, ok := extFormats[ext]; ok {
			return f
		}
	}

	if hint.ContentType != "" {
		mt, _, err := mime.ParseMediaType(hint.ContentType)
		if err == nil {
			if f, ok := mimeFormats[mt]; ok {
				return f
			}
		}
	}

	return FormatUnknown
}

func sniffMagic(b []byte) Format {
	switch {
	case len(b) >= 12 && bytes.Equal(b[0:4], []byte("RIFF")) && bytes.Equal(b[8:12], []byte("WAVE")):
		return FormatWAV
	case len(b) >= 12 && bytes.Equal(b[0:4], []byte("FORM")) &&
		(bytes.Equal(b[8:12], []byte("AIFF")) || bytes.Equal(b[8:12], []byte("AIFC"))):
		return FormatAIFF
	case bytes.HasPrefix(b, []byte("fLaC")):
		return FormatFLAC
	case bytes.HasPrefix(b, []byte("OggS")):
		// the first page carries the codec identification header
		if bytes.Contains(b[:min(len(b), 128)], []byte("OpusHead")) {
			return FormatOpus
		}
		return FormatOgg
	case bytes.HasPrefix(b, []byte("ID3")):
		return FormatMP3
	case bytes.HasPrefix(b, []byte{0x1A, 0x45, 0xDF, 0xA3}):
		return FormatWebM
	case len(b) >= 8 && bytes.Equal(b[4:8], []byte("ftyp")):
		return FormatMP4
	case len(b) >= 2 && b[0] == 0xFF && b[1]&0xE0 == 0xE0 && b[1]&0x06 != 0:
		// MPEG audio frame sync with a non-reserved layer
		return FormatMP3
	}

	return FormatUnknown
}
