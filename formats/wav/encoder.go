// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/ik5/audconv/audio"
	"github.com/ik5/audconv/utils"
)

// Encode writes buf as a mono WAV file.
//
// Integer depths are written as PCM at the buffer's own width; 8-bit uses the
// unsigned WAV convention. DepthFloat is written as 32-bit IEEE float.
func Encode(w io.Writer, buf *audio.Buffer) error {
	if buf.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d", audio.ErrInvalidSampleRate, buf.SampleRate)
	}

	var (
		tag  uint16 = formatPCM
		bits        = int(buf.Depth)
	)
	switch buf.Depth {
	case audio.DepthFloat:
		tag, bits = formatIEEEFloat, 32
	case audio.Depth8, audio.Depth16, audio.Depth24:
	default:
		return fmt.Errorf("%w: got %d", ErrUnsupportedDepth, int(buf.Depth))
	}

	if err := writeHeader(w, buf.SampleRate, bits, tag, len(buf.Samples)); err != nil {
		return err
	}

	width := bits / 8

	// For better performance with large files, write in chunks
	const chunkSize = 8192
	chunk := make([]byte, min(len(buf.Samples), chunkSize)*width)

	for i := 0; i < len(buf.Samples); i += chunkSize {
		part := buf.Samples[i:min(i+chunkSize, len(buf.Samples))]
		b := chunk[:len(part)*width]

		for j, x := range part {
			putSample(b[j*width:], x, bits, tag == formatIEEEFloat)
		}

		if _, err := w.Write(b); err != nil {
			return fmt.Errorf("%w", err)
		}
	}

	// RIFF chunks are word aligned
	if (len(buf.Samples)*width)%2 == 1 {
		if _, err := w.Write([]byte{0}); err != nil {
			return fmt.Errorf("%w", err)
		}
	}

	return nil
}

func putSample(b []byte, x float64, bits int, float bool) {
	if float {
		binary.LittleEndian.PutUint32(b, math.Float32bits(float32(x)))
		return
	}

	v := utils.FloatToInt(x, bits)
	switch bits {
	case 8:
		b[0] = byte(v + 128)
	case 16:
		binary.LittleEndian.PutUint16(b, uint16(int16(v)))
	case 24:
		b[0] = byte(v)
		b[1] = byte(v >> 8)
		b[2] = byte(v >> 16)
	}
}

// writeHeader writes the RIFF, fmt and data chunk headers for a mono stream.
// Float streams get the 18 byte fmt chunk and a fact chunk.
func writeHeader(w io.Writer, sampleRate, bits int, tag uint16, frames int) error {
	blockAlign := bits / 8
	dataSize := frames * blockAlign
	pad := dataSize % 2

	fmtSize := 16
	factSize := 0
	if tag != formatPCM {
		fmtSize = 18
		factSize = 12
	}

	headerSize := 12 + 8 + fmtSize + factSize + 8
	header := make([]byte, headerSize)

	// RIFF header (12 bytes)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(headerSize-8+dataSize+pad))
	copy(header[8:12], "WAVE")

	// fmt chunk
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], uint32(fmtSize))
	binary.LittleEndian.PutUint16(header[20:22], tag)
	binary.LittleEndian.PutUint16(header[22:24], 1)
	binary.LittleEndian.PutUint32(header[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(header[28:32], uint32(sampleRate*blockAlign))
	binary.LittleEndian.PutUint16(header[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(header[34:36], uint16(bits))

	off := 20 + fmtSize
	// cbSize stays zero for the extended fmt chunk

	if factSize > 0 {
		copy(header[off:off+4], "fact")
		binary.LittleEndian.PutUint32(header[off+4:off+8], 4)
		binary.LittleEndian.PutUint32(header[off+8:off+12], uint32(frames))
		off += factSize
	}

	// data chunk header (8 bytes)
	copy(header[off:off+4], "data")
	binary.LittleEndian.PutUint32(header[off+4:off+8], uint32(dataSize))

	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("%w", err)
	}

	return nil
}
