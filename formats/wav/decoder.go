// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	gowav "github.com/go-audio/wav"

	"github.com/ik5/audconv/audio"
	"github.com/ik5/audconv/utils"
)

// WAVE format tags.
const (
	formatPCM        = 0x0001
	formatIEEEFloat  = 0x0003
	formatExtensible = 0xFFFE
)

type sampleFormat struct {
	bits  int
	float bool
}

func (f sampleFormat) width() int { return f.bits / 8 }

// decode converts one little endian sample to a float in [-1, 1].
func (f sampleFormat) decode(b []byte) float64 {
	switch {
	case f.float && f.bits == 32:
		return clamp(float64(math.Float32frombits(binary.LittleEndian.Uint32(b))))
	case f.float:
		return clamp(math.Float64frombits(binary.LittleEndian.Uint64(b)))
	}

	switch f.bits {
	case 8:
		// 8-bit WAV is unsigned with a 128 offset
		return utils.IntToFloat(int64(b[0])-128, 8)
	case 16:
		return utils.IntToFloat(int64(int16(binary.LittleEndian.Uint16(b))), 16)
	case 24:
		v := int32(uint32(b[0])|uint32(b[1])<<8|uint32(b[2])<<16) << 8 >> 8
		return utils.IntToFloat(int64(v), 24)
	default:
		return utils.IntToFloat(int64(int32(binary.LittleEndian.Uint32(b))), 32)
	}
}

func clamp(x float64) float64 {
	if math.IsNaN(x) {
		return 0
	}
	return max(-1, min(1, x))
}

type wavSource struct {
	r          io.Reader
	sampleRate int
	channels   int
	format     sampleFormat
	buf        []byte
	eof        bool
}

func (s *wavSource) SampleRate() int { return s.sampleRate }
func (s *wavSource) Channels() int   { return s.channels }
func (s *wavSource) Close() error    { return nil }
func (s *wavSource) BufSize() int    { return 4096 }

func (s *wavSource) ReadSamples(dst []float64) (int, error) {
	if s.eof {
		return 0, io.EOF
	}
	if len(dst) == 0 {
		return 0, nil
	}

	width := s.format.width()
	need := len(dst) * width
	if len(s.buf) < need {
		s.buf = make([]byte, need)
	}

	n, err := io.ReadFull(s.r, s.buf[:need])
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		// a data chunk shorter than declared is read up to the last whole sample
		s.eof = true
	case err != nil:
		return 0, fmt.Errorf("reading WAV data: %w", err)
	}

	samples := n / width
	for i := range samples {
		dst[i] = s.format.decode(s.buf[i*width : (i+1)*width])
	}

	if s.eof {
		return samples, io.EOF
	}
	return samples, nil
}

type Decoder struct{}

func (Decoder) Decode(r io.Reader) (audio.Source, error) {
	// go-audio requires io.ReadSeeker
	rs, ok := r.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("reading wav data: %w", err)
		}
		rs = bytes.NewReader(data)
	}

	var magic [12]byte
	if _, err := io.ReadFull(rs, magic[:]); err != nil {
		return nil, ErrNotWavFile
	}
	if !bytes.Equal(magic[:4], []byte("RIFF")) || !bytes.Equal(magic[8:12], []byte("WAVE")) {
		return nil, ErrNotWavFile
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w", err)
	}

	dec := gowav.NewDecoder(rs)
	dec.ReadInfo()
	if err := dec.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedWavLayout, err)
	}

	if dec.NumChans == 0 || dec.SampleRate == 0 {
		return nil, fmt.Errorf("%w: %d channels at %d Hz", ErrUnsupportedWavLayout, dec.NumChans, dec.SampleRate)
	}

	tag := dec.WavAudioFormat
	if tag == formatExtensible {
		if sub, ok := extensibleSubFormat(rs); ok {
			tag = sub
		}
	}

	format, err := sampleFormatOf(tag, int(dec.BitDepth))
	if err != nil {
		return nil, err
	}

	if err := dec.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMissingDataChunk, err)
	}
	if dec.PCMChunk == nil {
		return nil, ErrMissingDataChunk
	}

	return &wavSource{
		r:          io.LimitReader(dec.PCMChunk.R, int64(dec.PCMChunk.Size)),
		sampleRate: int(dec.SampleRate),
		channels:   int(dec.NumChans),
		format:     format,
		buf:        make([]byte, 4096),
	}, nil
}

func sampleFormatOf(tag uint16, bits int) (sampleFormat, error) {
	switch tag {
	case formatPCM, formatExtensible:
		switch bits {
		case 8, 16, 24, 32:
			return sampleFormat{bits: bits}, nil
		}
	case formatIEEEFloat:
		switch bits {
		case 32, 64:
			return sampleFormat{bits: bits, float: true}, nil
		}
	}

	return sampleFormat{}, fmt.Errorf("%w: format tag 0x%04x with %d bits", ErrUnsupportedSampleFormat, tag, bits)
}

// extensibleSubFormat returns the format code held in the first two bytes of
// the sub-format GUID of a WAVE_FORMAT_EXTENSIBLE fmt chunk. It leaves rs
// positioned where it found it.
func extensibleSubFormat(rs io.ReadSeeker) (uint16, bool) {
	pos, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, false
	}
	defer func() { _, _ = rs.Seek(pos, io.SeekStart) }()

	if _, err := rs.Seek(12, io.SeekStart); err != nil {
		return 0, false
	}

	var hdr [8]byte
	for {
		if _, err := io.ReadFull(rs, hdr[:]); err != nil {
			return 0, false
		}
		size := int64(binary.LittleEndian.Uint32(hdr[4:8]))

		if string(hdr[0:4]) != "fmt " {
			if _, err := rs.Seek(size+size%2, io.SeekCurrent); err != nil {
				return 0, false
			}
			continue
		}

		// cbSize, valid bits and channel mask precede the GUID
		if size < 40 {
			return 0, false
		}
		body := make([]byte, 26)
		if _, err := io.ReadFull(rs, body); err != nil {
			return 0, false
		}
		return binary.LittleEndian.Uint16(body[24:26]), true
	}
}
