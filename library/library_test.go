// SPDX-License-Identifier: EPL-2.0

package library_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ik5/audconv"
	"github.com/ik5/audconv/audio"
	"github.com/ik5/audconv/codec"
	"github.com/ik5/audconv/failure"
	"github.com/ik5/audconv/formats/wav"
	"github.com/ik5/audconv/internal/audiotest"
	"github.com/ik5/audconv/library"
	"github.com/ik5/audconv/spectrum"
	"github.com/ik5/audconv/storage"
	"github.com/ik5/audconv/storage/memstore"
)

var errDisk = errors.New("disk on fire")

// flakyObjects fails the operations it is told to.
type flakyObjects struct {
	*memstore.Objects
	failPut, failDelete bool
}

func (f *flakyObjects) Put(ctx context.Context, key string, data []byte, ct string) (string, error) {
	if f.failPut {
		return "", errDisk
	}
	return f.Objects.Put(ctx, key, data, ct)
}

func (f *flakyObjects) Delete(ctx context.Context, key string) error {
	if f.failDelete {
		return errDisk
	}
	return f.Objects.Delete(ctx, key)
}

type flakyRecords struct {
	*memstore.Records
	failInsert bool
}

func (f *flakyRecords) Insert(ctx context.Context, r storage.Record) (string, error) {
	if f.failInsert {
		return "", errDisk
	}
	return f.Records.Insert(ctx, r)
}

func newResult(t *testing.T) *audconv.Result {
	t.Helper()

	buf, err := audio.Quantize(&audio.Buffer{
		Samples:    audiotest.Sine(8000, 800, 440, 0.5),
		SampleRate: 8000,
	}, audio.Depth16)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, wav.Encode(&out, buf))

	s := spectrum.Analyze(buf)
	return &audconv.Result{
		OriginalSpectrum:  s,
		ProcessedSpectrum: s,
		Data:              out.Bytes(),
		MimeType:          "audio/wav",
		Format:            codec.OutputWAV,
		SampleRate:        8000,
		BitDepth:          audio.Depth16,
	}
}

func newLibrary() (*library.Library, *flakyObjects, *flakyRecords) {
	objs := &flakyObjects{Objects: memstore.NewObjects()}
	recs := &flakyRecords{Records: memstore.NewRecords()}
	return library.New(objs, recs, library.WithCodec(codec.NewNative(nil))), objs, recs
}

func TestSaveLookupList(t *testing.T) {
	t.Parallel()

	lib, objs, _ := newLibrary()
	ctx := context.Background()
	res := newResult(t)

	rec, err := lib.Save(ctx, "take.flac", res)
	require.NoError(t, err)
	assert.Equal(t, "take.flac", rec.OriginalFilename)
	assert.Equal(t, rec.ID+".wav", rec.ObjectKey)
	assert.Equal(t, "mem://"+rec.ObjectKey, rec.URL)
	assert.Equal(t, "16", rec.BitDepth)
	assert.Equal(t, 8000, rec.SampleRate)
	assert.Equal(t, 1, objs.Len())

	got, err := lib.Lookup(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ObjectKey, got.ObjectKey)
	assert.Equal(t, res.OriginalSpectrum, got.OriginalSpectrum)

	second, err := lib.Save(ctx, "other.wav", res)
	require.NoError(t, err)

	list, err := lib.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
}

func TestLookupMissing(t *testing.T) {
	t.Parallel()

	lib, _, _ := newLibrary()
	_, err := lib.Lookup(context.Background(), "nope")
	assert.ErrorIs(t, err, failure.ErrNotFound)
}

func TestSaveObjectFailure(t *testing.T) {
	t.Parallel()

	lib, objs, _ := newLibrary()
	objs.failPut = true

	_, err := lib.Save(context.Background(), "a.wav", newResult(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, failure.ErrStorageFailure)
	assert.ErrorIs(t, err, errDisk)

	var orphan *library.OrphanedObjectError
	assert.False(t, errors.As(err, &orphan))
}

func TestSaveOrphanCleanedUp(t *testing.T) {
	t.Parallel()

	lib, objs, recs := newLibrary()
	recs.failInsert = true

	_, err := lib.Save(context.Background(), "a.wav", newResult(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, failure.ErrStorageFailure)

	var orphan *library.OrphanedObjectError
	require.True(t, errors.As(err, &orphan))
	assert.True(t, orphan.Cleaned)
	assert.NotEmpty(t, orphan.Key)
	assert.Equal(t, 0, objs.Len())
}

func TestSaveOrphanLeftBehind(t *testing.T) {
	t.Parallel()

	lib, objs, recs := newLibrary()
	recs.failInsert = true
	objs.failDelete = true

	_, err := lib.Save(context.Background(), "a.wav", newResult(t))

	var orphan *library.OrphanedObjectError
	require.True(t, errors.As(err, &orphan))
	assert.False(t, orphan.Cleaned)
	assert.Equal(t, 1, objs.Len())
	assert.Contains(t, err.Error(), orphan.Key)
}

func TestDelete(t *testing.T) {
	t.Parallel()

	lib, objs, _ := newLibrary()
	ctx := context.Background()

	rec, err := lib.Save(ctx, "a.wav", newResult(t))
	require.NoError(t, err)

	require.NoError(t, lib.Delete(ctx, rec.ID))
	assert.Equal(t, 0, objs.Len())

	_, err = lib.Lookup(ctx, rec.ID)
	assert.ErrorIs(t, err, failure.ErrNotFound)

	assert.ErrorIs(t, lib.Delete(ctx, rec.ID), failure.ErrNotFound)
}

func TestDeleteMissingObject(t *testing.T) {
	t.Parallel()

	lib, objs, _ := newLibrary()
	ctx := context.Background()

	rec, err := lib.Save(ctx, "a.wav", newResult(t))
	require.NoError(t, err)
	require.NoError(t, objs.Objects.Delete(ctx, rec.ObjectKey))

	err = lib.Delete(ctx, rec.ID)
	var partial *library.PartialDeleteError
	require.True(t, errors.As(err, &partial))
	assert.Equal(t, rec.ID, partial.ID)
	assert.Equal(t, rec.ObjectKey, partial.Key)
	assert.ErrorIs(t, err, failure.ErrNotFound)

	// The row is gone.
	_, err = lib.Lookup(ctx, rec.ID)
	assert.ErrorIs(t, err, failure.ErrNotFound)
}

func TestDeleteMissingRecord(t *testing.T) {
	t.Parallel()

	for _, format := range []codec.OutputFormat{codec.OutputWAV, codec.OutputMP3} {
		t.Run(string(format), func(t *testing.T) {
			t.Parallel()

			lib, objs, _ := newLibrary()
			ctx := context.Background()

			id := "6f1d2c3b-0a4e-4b5f-9c8d-7e6f5a4b3c2d"
			key := id + format.Extension()
			_, err := objs.Put(ctx, key, []byte("stray"), format.MimeType())
			require.NoError(t, err)

			err = lib.Delete(ctx, id)
			var partial *library.PartialDeleteError
			require.True(t, errors.As(err, &partial))
			assert.True(t, partial.RowMissing)
			assert.Equal(t, key, partial.Key)
			assert.ErrorIs(t, err, failure.ErrNotFound)
			assert.Contains(t, err.Error(), "record "+id+" was missing")
			assert.Equal(t, 0, objs.Len())
		})
	}
}

func TestDeleteUnknownID(t *testing.T) {
	t.Parallel()

	lib, _, _ := newLibrary()

	err := lib.Delete(context.Background(), "6f1d2c3b-0a4e-4b5f-9c8d-7e6f5a4b3c2d")
	assert.ErrorIs(t, err, failure.ErrNotFound)

	var partial *library.PartialDeleteError
	assert.False(t, errors.As(err, &partial))
}

func TestDeleteObjectFailureKeepsRecord(t *testing.T) {
	t.Parallel()

	lib, objs, _ := newLibrary()
	ctx := context.Background()

	rec, err := lib.Save(ctx, "a.wav", newResult(t))
	require.NoError(t, err)
	objs.failDelete = true

	err = lib.Delete(ctx, rec.ID)
	assert.ErrorIs(t, err, failure.ErrStorageFailure)

	_, err = lib.Lookup(ctx, rec.ID)
	assert.NoError(t, err)
}

func TestExport(t *testing.T) {
	t.Parallel()

	lib, _, _ := newLibrary()
	ctx := context.Background()
	res := newResult(t)

	rec, err := lib.Save(ctx, "voice memo.m4a", res)
	require.NoError(t, err)

	dl, err := lib.Export(ctx, rec.ID, "")
	require.NoError(t, err)
	assert.Equal(t, res.Data, dl.Data)
	assert.Equal(t, "audio/wav", dl.MimeType)
	assert.Equal(t, "voice memo_processed.wav", dl.Filename)

	dl, err = lib.Export(ctx, rec.ID, codec.OutputWAV)
	require.NoError(t, err)
	assert.Equal(t, res.Data, dl.Data)

	// Native codecs cannot write mp3.
	_, err = lib.Export(ctx, rec.ID, codec.OutputMP3)
	assert.ErrorIs(t, err, failure.ErrEncodeFailure)

	_, err = lib.Export(ctx, "missing", codec.OutputWAV)
	assert.ErrorIs(t, err, failure.ErrNotFound)
}

func TestExportWithoutCodec(t *testing.T) {
	t.Parallel()

	lib := library.New(memstore.NewObjects(), memstore.NewRecords())
	rec, err := lib.Save(context.Background(), "a.wav", newResult(t))
	require.NoError(t, err)

	_, err = lib.Export(context.Background(), rec.ID, codec.OutputMP3)
	assert.ErrorIs(t, err, failure.ErrUnsupportedOutputFormat)
}

// mp3Faker re-encodes wav into "mp3" by tagging the bytes.
type mp3Faker struct{ codec.Codec }

func (m mp3Faker) Encode(ctx context.Context, buf *audio.Buffer, format codec.OutputFormat) (*codec.Encoded, error) {
	if format != codec.OutputMP3 {
		return m.Codec.Encode(ctx, buf, format)
	}
	return &codec.Encoded{
		Data:     []byte{'I', 'D', '3', byte(buf.Depth)},
		MimeType: format.MimeType(),
		Format:   format,
	}, nil
}

func TestExportReencodesAtStoredDepth(t *testing.T) {
	t.Parallel()

	lib := library.New(memstore.NewObjects(), memstore.NewRecords(),
		library.WithCodec(mp3Faker{codec.NewNative(nil)}))

	rec, err := lib.Save(context.Background(), "a.wav", newResult(t))
	require.NoError(t, err)

	dl, err := lib.Export(context.Background(), rec.ID, codec.OutputMP3)
	require.NoError(t, err)
	assert.Equal(t, []byte{'I', 'D', '3', 16}, dl.Data)
	assert.Equal(t, "audio/mpeg", dl.MimeType)
	assert.Equal(t, "a_processed.mp3", dl.Filename)
}
