// SPDX-License-Identifier: EPL-2.0

// Package storagetest holds behaviour checks shared by every storage
// implementation.
package storagetest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ik5/audconv/spectrum"
	"github.com/ik5/audconv/storage"
)

// ObjectStore exercises s. s must start empty.
func ObjectStore(t *testing.T, s storage.ObjectStore) {
	t.Helper()
	ctx := context.Background()

	url, err := s.Put(ctx, "one.wav", []byte("RIFF-one"), "audio/wav")
	require.NoError(t, err)
	assert.NotEmpty(t, url)

	obj, err := s.Get(ctx, "one.wav")
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFF-one"), obj.Data)
	assert.Equal(t, "audio/wav", obj.ContentType)

	// Put replaces.
	_, err = s.Put(ctx, "one.wav", []byte("RIFF-two"), "audio/x-wav")
	require.NoError(t, err)
	obj, err = s.Get(ctx, "one.wav")
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFF-two"), obj.Data)
	assert.Equal(t, "audio/x-wav", obj.ContentType)

	// The store keeps its own copy.
	data := []byte("mutable")
	_, err = s.Put(ctx, "copy.mp3", data, "audio/mpeg")
	require.NoError(t, err)
	data[0] = 'X'
	obj, err = s.Get(ctx, "copy.mp3")
	require.NoError(t, err)
	assert.Equal(t, []byte("mutable"), obj.Data)

	require.NoError(t, s.Delete(ctx, "one.wav"))
	_, err = s.Get(ctx, "one.wav")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "one.wav"), storage.ErrNotFound)

	_, err = s.Put(ctx, "../escape.wav", []byte("x"), "audio/wav")
	assert.ErrorIs(t, err, storage.ErrInvalidKey)

	_, err = s.Get(ctx, "missing.wav")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func record(name string, created time.Time) storage.Record {
	return storage.Record{
		OriginalFilename: name,
		ObjectKey:        name + ".wav",
		URL:              "mem://" + name + ".wav",
		MimeType:         "audio/wav",
		SampleRate:       16000,
		BitDepth:         "16",
		OriginalSpectrum: spectrum.Summary{
			Frequencies: []float64{0, 10, 20},
			Magnitudes:  []float64{1, 2, 0.5},
		},
		ProcessedSpectrum: spectrum.Summary{
			Frequencies: []float64{},
			Magnitudes:  []float64{},
		},
		CreatedAt: created,
	}
}

// MetadataStore exercises s. s must start empty.
func MetadataStore(t *testing.T, s storage.MetadataStore) {
	t.Helper()
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	empty, err := s.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty)

	oldID, err := s.Insert(ctx, record("old", base))
	require.NoError(t, err)
	assert.NotEmpty(t, oldID)

	newID, err := s.Insert(ctx, record("new", base.Add(time.Minute)))
	require.NoError(t, err)
	assert.NotEqual(t, oldID, newID)

	got, err := s.Get(ctx, oldID)
	require.NoError(t, err)
	want := record("old", base)
	want.ID = oldID
	assert.Equal(t, want.OriginalFilename, got.OriginalFilename)
	assert.Equal(t, want.ObjectKey, got.ObjectKey)
	assert.Equal(t, want.SampleRate, got.SampleRate)
	assert.Equal(t, want.BitDepth, got.BitDepth)
	assert.Equal(t, want.OriginalSpectrum, got.OriginalSpectrum)
	assert.Equal(t, want.ProcessedSpectrum, got.ProcessedSpectrum)
	assert.True(t, want.CreatedAt.Equal(got.CreatedAt))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newID, list[0].ID)
	assert.Equal(t, oldID, list[1].ID)

	require.NoError(t, s.Delete(ctx, oldID))
	_, err = s.Get(ctx, oldID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, oldID), storage.ErrNotFound)

	list, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, newID, list[0].ID)
}
