// SPDX-License-Identifier: EPL-2.0

package audio

import "errors"

var (
	ErrInvalidDstSize = errors.New("dst size must be multiple of channels")

	// ErrUnsupportedEncoding is wrapped by decoders when the container parses
	// but the sample encoding inside it cannot be handled.
	ErrUnsupportedEncoding = errors.New("unsupported sample encoding")

	ErrInvalidSampleRate = errors.New("sample rate must be positive")
)
