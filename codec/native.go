// SPDX-License-Identifier: EPL-2.0

package codec

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/ik5/audconv/audio"
	"github.com/ik5/audconv/failure"
	"github.com/ik5/audconv/formats/aiff"
	"github.com/ik5/audconv/formats/flac"
	"github.com/ik5/audconv/formats/mp3"
	"github.com/ik5/audconv/formats/vorbis"
	"github.com/ik5/audconv/formats/wav"
)

// ErrNoEncoder is wrapped by Native.Encode for formats it cannot write.
var ErrNoEncoder = errors.New("no in-process encoder")

// DefaultRegistry returns a registry with every in-process decoder.
func DefaultRegistry() *audio.Registry {
	r := audio.NewRegistry()
	r.Register(string(FormatWAV), wav.Decoder{})
	r.Register(string(FormatAIFF), aiff.Decoder{})
	r.Register(string(FormatFLAC), flac.Decoder{})
	r.Register(string(FormatOgg), vorbis.Decoder{})
	r.Register(string(FormatMP3), mp3.Decoder{})
	return r
}

// Native decodes with the formats/* packages and encodes WAV in process.
type Native struct {
	registry *audio.Registry
}

// NewNative returns a Native codec backed by registry, or by
// DefaultRegistry when registry is nil.
func NewNative(registry *audio.Registry) *Native {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Native{registry: registry}
}

func (*Native) Name() string { return "native" }

func (n *Native) Decode(ctx context.Context, data []byte, hint Hint) (*audio.Buffer, error) {
	const op = "native decode"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if len(data) == 0 {
		return nil, failure.New(failure.CorruptInput, op, "input is empty")
	}

	format := Sniff(data, hint)
	if format == FormatUnknown {
		return nil, failure.New(failure.UnsupportedFormat, op, "unrecognised container for %q", hint.Filename)
	}

	dec, ok := n.registry.Get(string(format))
	if !ok {
		return nil, failure.New(failure.UnsupportedFormat, op, "no decoder for %s", format)
	}

	src, err := dec.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, classifyDecode(op, format, err)
	}

	buf, err := audio.Collect(src)
	if err != nil {
		return nil, classifyDecode(op, format, err)
	}

	if buf.SampleRate <= 0 {
		return nil, failure.New(failure.CorruptInput, op, "%s stream declares sample rate %d", format, buf.SampleRate)
	}

	return buf, nil
}

func classifyDecode(op string, format Format, err error) error {
	kind := failure.CorruptInput
	if errors.Is(err, audio.ErrUnsupportedEncoding) {
		kind = failure.UnsupportedFormat
	}
	return &failure.Error{Kind: kind, Op: op, Detail: fmt.Sprintf("%s: %v", format, err), Err: err}
}

func (n *Native) Encode(ctx context.Context, buf *audio.Buffer, format OutputFormat) (*Encoded, error) {
	const op = "native encode"

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	switch format {
	case OutputWAV:
		var out bytes.Buffer
		out.Grow(58 + len(buf.Samples)*4)
		if err := wav.Encode(&out, buf); err != nil {
			return nil, failure.Wrap(failure.EncodeFailure, op, err)
		}
		return &Encoded{Data: out.Bytes(), MimeType: format.MimeType(), Format: format}, nil

	case OutputMP3:
		return nil, &failure.Error{
			Kind:   failure.EncodeFailure,
			Op:     op,
			Detail: "mp3 requires the external encoder",
			Err:    ErrNoEncoder,
		}

	default:
		return nil, failure.New(failure.UnsupportedOutputFormat, op, "%q is not one of wav, mp3", string(format))
	}
}
