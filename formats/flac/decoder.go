// SPDX-License-Identifier: EPL-2.0

package flac

import (
	"errors"
	"fmt"
	"io"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"

	"github.com/ik5/audconv/audio"
	"github.com/ik5/audconv/utils"
)

// frameReader is an interface for flac.Stream to allow testing
type frameReader interface {
	ParseNext() (*frame.Frame, error)
	Close() error
}

type source struct {
	dec        frameReader
	sampleRate int
	channels   int
	bitDepth   int

	// undelivered part of the last parsed frame
	cur *frame.Frame
	pos int
	eof bool
}

func (s *source) SampleRate() int { return s.sampleRate }
func (s *source) Channels() int   { return s.channels }
func (s *source) BufSize() int    { return 4096 }

func (s *source) Close() error {
	if err := s.dec.Close(); err != nil {
		return fmt.Errorf("%w", err)
	}
	return nil
}

func (s *source) ReadSamples(dst []float64) (int, error) {
	if len(dst) < s.channels {
		if len(dst) == 0 {
			return 0, nil
		}
		return 0, audio.ErrInvalidDstSize
	}

	written := 0
	for written+s.channels <= len(dst) {
		if s.cur == nil || s.pos >= int(s.cur.BlockSize) {
			if s.eof {
				break
			}

			f, err := s.dec.ParseNext()
			if errors.Is(err, io.EOF) {
				s.eof = true
				break
			}
			if err != nil {
				return written, fmt.Errorf("%w: %w", ErrInvalidStream, err)
			}
			if len(f.Subframes) < s.channels {
				return written, fmt.Errorf("%w: frame has %d subframes for %d channels", ErrInvalidStream, len(f.Subframes), s.channels)
			}

			s.cur, s.pos = f, 0
			continue
		}

		for ch := range s.channels {
			dst[written] = utils.IntToFloat(int64(s.cur.Subframes[ch].Samples[s.pos]), s.bitDepth)
			written++
		}
		s.pos++
	}

	if s.eof && (s.cur == nil || s.pos >= int(s.cur.BlockSize)) {
		return written, io.EOF
	}

	return written, nil
}

type Decoder struct{}

func (Decoder) Decode(r io.Reader) (audio.Source, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidStream, err)
	}

	info := stream.Info
	bits := int(info.BitsPerSample)
	if bits < 4 || bits > 32 {
		stream.Close()
		return nil, fmt.Errorf("%w: %d bits", ErrUnsupportedBitDepth, bits)
	}
	if info.NChannels == 0 || info.SampleRate == 0 {
		stream.Close()
		return nil, fmt.Errorf("%w: %d channels at %d Hz", ErrInvalidStream, info.NChannels, info.SampleRate)
	}

	return &source{
		dec:        stream,
		sampleRate: int(info.SampleRate),
		channels:   int(info.NChannels),
		bitDepth:   bits,
	}, nil
}
