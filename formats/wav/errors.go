// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"errors"
	"fmt"

	"github.com/ik5/audconv/audio"
)

var (
	ErrNotWavFile           = errors.New("not a WAV file")
	ErrUnsupportedWavLayout = errors.New("unsupported WAV layout")
	ErrMissingDataChunk     = errors.New("WAV file has no data chunk")

	// ErrUnsupportedSampleFormat matches audio.ErrUnsupportedEncoding.
	ErrUnsupportedSampleFormat = fmt.Errorf("WAV sample format: %w", audio.ErrUnsupportedEncoding)

	ErrUnsupportedDepth = errors.New("WAV writer supports 8, 16, 24 bit PCM and float")
)
