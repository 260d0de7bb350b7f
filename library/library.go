// SPDX-License-Identifier: EPL-2.0

// Package library keeps finished conversions: the encoded audio in an
// ObjectStore and its metadata in a MetadataStore.
//
// The two stores are not transactional. Save writes the object first and
// the record second; Delete removes the object first and the record second.
// When the second step cannot follow the first, the caller gets an
// *OrphanedObjectError or a *PartialDeleteError describing what is left.
// Delete of an id without a record still removes a stray object stored
// under that id.
package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/mdobak/go-xerrors"

	"github.com/ik5/audconv"
	"github.com/ik5/audconv/audio"
	"github.com/ik5/audconv/codec"
	"github.com/ik5/audconv/failure"
	"github.com/ik5/audconv/storage"
)

// OrphanedObjectError reports a stored object whose record could not be
// written. Cleaned tells whether the object was removed again.
type OrphanedObjectError struct {
	Key     string
	Cleaned bool
	Err     error
}

func (e *OrphanedObjectError) Error() string {
	state := "left behind"
	if e.Cleaned {
		state = "removed"
	}
	return fmt.Sprintf("saving record: object %q %s: %v", e.Key, state, e.Err)
}

func (e *OrphanedObjectError) Unwrap() error { return e.Err }

// PartialDeleteError reports a delete that found only one half of an entry.
// Either the record was removed and its object was already gone, or, with
// RowMissing set, a stray object was removed for a record that did not exist.
type PartialDeleteError struct {
	ID         string
	Key        string
	RowMissing bool
	Err        error
}

func (e *PartialDeleteError) Error() string {
	if e.RowMissing {
		return fmt.Sprintf("object %q removed but record %s was missing: %v", e.Key, e.ID, e.Err)
	}
	return fmt.Sprintf("record %s removed but object %q was missing: %v", e.ID, e.Key, e.Err)
}

func (e *PartialDeleteError) Unwrap() error { return e.Err }

// Download is an exported object ready to be served.
type Download struct {
	Data     []byte
	MimeType string
	Filename string
	Format   codec.OutputFormat
}

type Option func(*Library)

func WithLogger(l *slog.Logger) Option {
	return func(lib *Library) {
		if l != nil {
			lib.logger = l
		}
	}
}

// WithCodec enables Export to a format other than the stored one.
func WithCodec(c codec.Codec) Option {
	return func(lib *Library) { lib.codec = c }
}

type Library struct {
	objects storage.ObjectStore
	meta    storage.MetadataStore
	codec   codec.Codec
	logger  *slog.Logger
	now     func() time.Time
}

func New(objects storage.ObjectStore, meta storage.MetadataStore, opts ...Option) *Library {
	lib := &Library{
		objects: objects,
		meta:    meta,
		logger:  slog.New(slog.DiscardHandler),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(lib)
	}
	return lib
}

// Save stores res under a new id and returns its record.
func (l *Library) Save(ctx context.Context, originalFilename string, res *audconv.Result) (*storage.Record, error) {
	const op = "library save"

	id := uuid.New().String()
	key := id + res.Format.Extension()

	url, err := l.objects.Put(ctx, key, res.Data, res.MimeType)
	if err != nil {
		return nil, l.classify(ctx, op, err)
	}

	rec := storage.Record{
		ID:                id,
		OriginalFilename:  originalFilename,
		ObjectKey:         key,
		URL:               url,
		MimeType:          res.MimeType,
		SampleRate:        res.SampleRate,
		BitDepth:          res.BitDepth.String(),
		OriginalSpectrum:  res.OriginalSpectrum,
		ProcessedSpectrum: res.ProcessedSpectrum,
		CreatedAt:         l.now().UTC(),
	}

	if _, err := l.meta.Insert(ctx, rec); err != nil {
		orphan := &OrphanedObjectError{Key: key, Err: l.classify(ctx, op, err)}

		// The request context may be what failed the insert.
		cleanupCtx := context.WithoutCancel(ctx)
		if derr := l.objects.Delete(cleanupCtx, key); derr == nil {
			orphan.Cleaned = true
		} else {
			l.logger.ErrorContext(ctx, "orphaned object left in store",
				slog.String("key", key),
				slog.Any("error", xerrors.New(derr)),
			)
		}
		return nil, orphan
	}

	l.logger.InfoContext(ctx, "conversion saved",
		slog.String("id", id),
		slog.String("key", key),
		slog.Int("bytes", len(res.Data)),
	)
	return &rec, nil
}

// Lookup returns the record of id.
func (l *Library) Lookup(ctx context.Context, id string) (*storage.Record, error) {
	rec, err := l.meta.Get(ctx, id)
	if err != nil {
		return nil, l.classify(ctx, "library lookup", err)
	}
	return rec, nil
}

// List returns every record, newest first.
func (l *Library) List(ctx context.Context) ([]storage.Record, error) {
	recs, err := l.meta.List(ctx)
	if err != nil {
		return nil, l.classify(ctx, "library list", err)
	}
	return recs, nil
}

// Delete removes the object of id and then its record.
func (l *Library) Delete(ctx context.Context, id string) error {
	const op = "library delete"

	rec, err := l.meta.Get(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return l.deleteStray(ctx, op, id, err)
		}
		return l.classify(ctx, op, err)
	}

	objErr := l.objects.Delete(ctx, rec.ObjectKey)
	if objErr != nil && !errors.Is(objErr, storage.ErrNotFound) {
		return l.classify(ctx, op, objErr)
	}

	if err := l.meta.Delete(ctx, id); err != nil {
		return l.classify(ctx, op, err)
	}

	if objErr != nil {
		l.logger.WarnContext(ctx, "record deleted without its object",
			slog.String("id", id),
			slog.String("key", rec.ObjectKey),
		)
		return &PartialDeleteError{ID: id, Key: rec.ObjectKey, Err: l.classify(ctx, op, objErr)}
	}

	l.logger.InfoContext(ctx, "conversion deleted", slog.String("id", id))
	return nil
}

// deleteStray removes an object left under id by a Save whose record never
// landed. Without one the original not-found error is returned.
func (l *Library) deleteStray(ctx context.Context, op, id string, rowErr error) error {
	for _, f := range []codec.OutputFormat{codec.OutputWAV, codec.OutputMP3} {
		key := id + f.Extension()
		if err := l.objects.Delete(ctx, key); err != nil {
			continue
		}

		l.logger.WarnContext(ctx, "object deleted without its record",
			slog.String("id", id),
			slog.String("key", key),
		)
		return &PartialDeleteError{ID: id, Key: key, RowMissing: true, Err: l.classify(ctx, op, rowErr)}
	}
	return l.classify(ctx, op, rowErr)
}

// Export returns the stored audio of id in format. A format other than the
// stored one is decoded and encoded again, keeping the stored rate and depth.
func (l *Library) Export(ctx context.Context, id string, format codec.OutputFormat) (*Download, error) {
	const op = "library export"

	rec, err := l.meta.Get(ctx, id)
	if err != nil {
		return nil, l.classify(ctx, op, err)
	}

	obj, err := l.objects.Get(ctx, rec.ObjectKey)
	if err != nil {
		return nil, l.classify(ctx, op, err)
	}

	stored := storedFormat(rec, obj)
	if format == "" {
		format = stored
	}

	dl := &Download{
		Data:     obj.Data,
		MimeType: obj.ContentType,
		Filename: audconv.DownloadFilename(rec.OriginalFilename, format),
		Format:   format,
	}
	if format == stored {
		return dl, nil
	}

	if l.codec == nil {
		return nil, failure.New(failure.UnsupportedOutputFormat, op, "re-encoding from %s to %s is not enabled", stored, format)
	}

	buf, err := l.codec.Decode(ctx, obj.Data, codec.Hint{Filename: rec.ObjectKey, ContentType: obj.ContentType})
	if err != nil {
		return nil, err
	}

	if depth, err := audio.ParseBitDepth(rec.BitDepth); err == nil && depth != audio.DepthFloat {
		if buf, err = audio.Quantize(buf, depth); err != nil {
			return nil, err
		}
	}

	enc, err := l.codec.Encode(ctx, buf, format)
	if err != nil {
		return nil, err
	}

	dl.Data = enc.Data
	dl.MimeType = enc.MimeType
	return dl, nil
}

func storedFormat(rec *storage.Record, obj *storage.Object) codec.OutputFormat {
	for _, f := range []codec.OutputFormat{codec.OutputWAV, codec.OutputMP3} {
		if f.MimeType() == obj.ContentType || f.MimeType() == rec.MimeType {
			return f
		}
	}
	return codec.OutputWAV
}

// classify turns store errors into failures. Unexpected errors get a stack
// trace and are logged; context errors are passed through.
func (l *Library) classify(ctx context.Context, op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return failure.Wrap(failure.NotFound, op, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	}

	traced := xerrors.New(err)
	l.logger.ErrorContext(ctx, "storage failure",
		slog.String("op", op),
		slog.Any("error", traced),
	)
	return &failure.Error{Kind: failure.StorageFailure, Op: op, Detail: err.Error(), Err: traced}
}
