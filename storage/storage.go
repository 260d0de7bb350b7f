// SPDX-License-Identifier: EPL-2.0

// Package storage defines where converted audio and its metadata live.
//
// An ObjectStore keeps the encoded bytes under a key; a MetadataStore keeps
// one Record per conversion. Implementations live in the sub-packages
// memstore, fsstore and postgres. Missing entries are reported with an error
// matching ErrNotFound.
package storage

import (
	"context"
	"errors"
	"regexp"
	"time"

	"github.com/ik5/audconv/spectrum"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrInvalidKey = errors.New("invalid object key")
)

// Object is a stored blob.
type Object struct {
	Data        []byte
	ContentType string
}

type ObjectStore interface {
	// Put stores data under key, replacing any previous value, and returns
	// the locator clients can use to fetch it.
	Put(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Get(ctx context.Context, key string) (*Object, error)
	Delete(ctx context.Context, key string) error
}

// Record describes one stored conversion.
type Record struct {
	ID                string           `json:"id"`
	OriginalFilename  string           `json:"original_filename"`
	ObjectKey         string           `json:"object_key"`
	URL               string           `json:"url"`
	MimeType          string           `json:"mimetype"`
	SampleRate        int              `json:"sample_rate"`
	BitDepth          string           `json:"bit_depth"`
	OriginalSpectrum  spectrum.Summary `json:"original_spectrum"`
	ProcessedSpectrum spectrum.Summary `json:"processed_spectrum"`
	CreatedAt         time.Time        `json:"created_at"`
}

type MetadataStore interface {
	// Insert stores r and returns its id. An empty r.ID is assigned by the
	// store.
	Insert(ctx context.Context, r Record) (string, error)
	Get(ctx context.Context, id string) (*Record, error)
	// List returns every record, newest first.
	List(ctx context.Context) ([]Record, error)
	Delete(ctx context.Context, id string) error
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// ValidKey reports whether key is safe to use as a flat object name.
func ValidKey(key string) bool {
	return keyPattern.MatchString(key) && key != "." && key != ".."
}
