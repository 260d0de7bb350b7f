// SPDX-License-Identifier: EPL-2.0

// Package fsstore keeps objects as files in a single directory.
//
// Writes go to a temporary file that is renamed into place, so a reader
// never sees a partial object. The content type of each object is kept in
// a side file under the ".meta" sub-directory. Object keys never start with
// a dot, so the two cannot collide.
package fsstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/ik5/audconv/storage"
)

const metaDir = ".meta"

type Option func(*Store)

// WithBaseURL sets the prefix of returned locators. The key is appended.
func WithBaseURL(u string) Option {
	return func(s *Store) { s.baseURL = u }
}

// Store is a directory backed storage.ObjectStore.
type Store struct {
	dir     string
	baseURL string
}

// New opens dir, creating it when missing.
func New(dir string, opts ...Option) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving %q: %w", dir, err)
	}
	if err := os.MkdirAll(filepath.Join(abs, metaDir), 0o750); err != nil {
		return nil, fmt.Errorf("creating object directory: %w", err)
	}

	s := &Store{dir: abs, baseURL: "file://" + filepath.ToSlash(abs) + "/"}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the absolute directory objects are written to.
func (s *Store) Dir() string { return s.dir }

func (s *Store) path(key string) string     { return filepath.Join(s.dir, key) }
func (s *Store) metaPath(key string) string { return filepath.Join(s.dir, metaDir, key) }

func (s *Store) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !storage.ValidKey(key) {
		return "", fmt.Errorf("%w: %q", storage.ErrInvalidKey, key)
	}

	if err := writeAtomic(s.dir, s.path(key), data); err != nil {
		return "", fmt.Errorf("writing object %q: %w", key, err)
	}
	if err := writeAtomic(filepath.Join(s.dir, metaDir), s.metaPath(key), []byte(contentType)); err != nil {
		return "", fmt.Errorf("writing content type of %q: %w", key, err)
	}

	return s.baseURL + key, nil
}

func (s *Store) Get(ctx context.Context, key string) (*storage.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !storage.ValidKey(key) {
		return nil, fmt.Errorf("object %q: %w", key, storage.ErrNotFound)
	}

	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("object %q: %w", key, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading object %q: %w", key, err)
	}

	ct, err := os.ReadFile(s.metaPath(key))
	contentType := strings.TrimSpace(string(ct))
	if err != nil || contentType == "" {
		contentType = guessType(key)
	}

	return &storage.Object{Data: data, ContentType: contentType}, nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !storage.ValidKey(key) {
		return fmt.Errorf("object %q: %w", key, storage.ErrNotFound)
	}

	err := os.Remove(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("object %q: %w", key, storage.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("removing object %q: %w", key, err)
	}

	if err := os.Remove(s.metaPath(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing content type of %q: %w", key, err)
	}
	return nil
}

func writeAtomic(dir, path string, data []byte) error {
	f, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() { _ = os.Remove(tmp) }()

	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	return os.Rename(tmp, path)
}

var audioTypes = map[string]string{
	".wav":  "audio/wav",
	".mp3":  "audio/mpeg",
	".flac": "audio/flac",
	".ogg":  "audio/ogg",
}

func guessType(key string) string {
	ext := strings.ToLower(filepath.Ext(key))
	if t, ok := audioTypes[ext]; ok {
		return t
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
