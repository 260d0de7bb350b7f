// SPDX-License-Identifier: EPL-2.0

// Package codec turns uploaded bytes into an audio.Buffer and back.
//
// A Codec hides where the work happens. Native decodes and encodes in
// process with the formats/* packages; External shells out to ffmpeg for
// containers and encoders we do not carry; Chain tries the first and falls
// back to the second for what it cannot handle.
//
// Every error returned by a Codec is a *failure.Error, except a cancelled
// context, which is returned wrapped as is.
package codec

import (
	"context"
	"strings"

	"github.com/ik5/audconv/audio"
	"github.com/ik5/audconv/failure"
)

// Hint carries what the uploader claimed about the data.
type Hint struct {
	Filename    string
	ContentType string
}

// OutputFormat is a container the encoders can produce.
type OutputFormat string

const (
	OutputWAV OutputFormat = "wav"
	OutputMP3 OutputFormat = "mp3"
)

// ParseOutputFormat maps a user supplied format. The empty string means WAV.
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return OutputWAV, nil
	case OutputWAV, OutputMP3:
		return f, nil
	default:
		return "", failure.New(failure.UnsupportedOutputFormat, "parse output format", "%q is not one of wav, mp3", s)
	}
}

func (f OutputFormat) MimeType() string {
	switch f {
	case OutputMP3:
		return "audio/mpeg"
	default:
		return "audio/wav"
	}
}

func (f OutputFormat) Extension() string { return "." + string(f) }

// Encoded is an encoded artefact ready for download.
type Encoded struct {
	Data     []byte
	MimeType string
	Format   OutputFormat
}

type Codec interface {
	// Decode returns the mono signal in data at its native sample rate.
	Decode(ctx context.Context, data []byte, hint Hint) (*audio.Buffer, error)
	// Encode writes buf into format at buf's rate and depth.
	Encode(ctx context.Context, buf *audio.Buffer, format OutputFormat) (*Encoded, error)
	Name() string
}
