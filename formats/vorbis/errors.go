// SPDX-License-Identifier: EPL-2.0

package vorbis

import "errors"

// ErrInvalidStream is returned when the Ogg stream has no usable Vorbis headers.
var ErrInvalidStream = errors.New("invalid Ogg Vorbis stream")
