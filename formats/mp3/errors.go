// SPDX-License-Identifier: EPL-2.0

package mp3

import "errors"

// ErrInvalidStream is returned when no MPEG audio frame can be parsed.
var ErrInvalidStream = errors.New("invalid MP3 stream")
