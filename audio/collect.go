// SPDX-License-Identifier: EPL-2.0

package audio

import (
	"errors"
	"fmt"
	"io"
)

// Collect drains src into a mono Buffer and closes it.
//
// Multi-channel sources are averaged to mono. The sample rate of src is
// propagated unchanged.
func Collect(src Source) (buf *Buffer, err error) {
	defer func() {
		if cerr := src.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing source: %w", cerr)
		}
	}()

	mono := NewMonoMixer(src)

	size := src.BufSize()
	if size <= 0 {
		size = 4096
	}
	chunk := make([]float64, size)

	samples := make([]float64, 0, size)
	for {
		n, rerr := mono.ReadSamples(chunk)
		if n > 0 {
			samples = append(samples, chunk[:n]...)
		}

		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			return nil, fmt.Errorf("reading samples: %w", rerr)
		}
		if n == 0 {
			// a source that makes no progress without an error is finished
			break
		}
	}

	return &Buffer{
		Samples:    samples,
		SampleRate: src.SampleRate(),
		Depth:      DepthFloat,
	}, nil
}
