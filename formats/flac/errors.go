// SPDX-License-Identifier: EPL-2.0

package flac

import (
	"errors"
	"fmt"

	"github.com/ik5/audconv/audio"
)

var (
	ErrInvalidStream = errors.New("invalid FLAC stream")

	// ErrUnsupportedBitDepth matches audio.ErrUnsupportedEncoding.
	ErrUnsupportedBitDepth = fmt.Errorf("FLAC bit depth: %w", audio.ErrUnsupportedEncoding)
)
