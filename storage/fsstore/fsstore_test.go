// SPDX-License-Identifier: EPL-2.0

package fsstore_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ik5/audconv/storage"
	"github.com/ik5/audconv/storage/fsstore"
	"github.com/ik5/audconv/storage/storagetest"
)

func TestStore(t *testing.T) {
	t.Parallel()

	s, err := fsstore.New(t.TempDir())
	require.NoError(t, err)
	storagetest.ObjectStore(t, s)
}

func TestStoreLayout(t *testing.T) {
	t.Parallel()

	dir := filepath.Join(t.TempDir(), "nested", "objects")
	s, err := fsstore.New(dir, fsstore.WithBaseURL("https://cdn.example.com/audio/"))
	require.NoError(t, err)

	url, err := s.Put(context.Background(), "take.wav", []byte("RIFF"), "audio/wav")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/audio/take.wav", url)

	data, err := os.ReadFile(filepath.Join(dir, "take.wav"))
	require.NoError(t, err)
	assert.Equal(t, []byte("RIFF"), data)

	// No temporary files are left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{".meta", "take.wav"}, names)
}

func TestStoreDefaultURL(t *testing.T) {
	t.Parallel()

	s, err := fsstore.New(t.TempDir())
	require.NoError(t, err)

	url, err := s.Put(context.Background(), "a.mp3", []byte("ID3"), "audio/mpeg")
	require.NoError(t, err)
	assert.Equal(t, "file://"+filepath.ToSlash(s.Dir())+"/a.mp3", url)
}

func TestStoreGuessesMissingContentType(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	s, err := fsstore.New(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "dropped.mp3"), []byte("ID3"), 0o600))
	obj, err := s.Get(context.Background(), "dropped.mp3")
	require.NoError(t, err)
	assert.Equal(t, "audio/mpeg", obj.ContentType)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "blob"), []byte("?"), 0o600))
	obj, err = s.Get(context.Background(), "blob")
	require.NoError(t, err)
	assert.Equal(t, "application/octet-stream", obj.ContentType)
}

func TestStoreRejectsTraversal(t *testing.T) {
	t.Parallel()

	s, err := fsstore.New(t.TempDir())
	require.NoError(t, err)

	_, err = s.Get(context.Background(), "../../etc/passwd")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.ErrorIs(t, s.Delete(context.Background(), ".meta"), storage.ErrNotFound)
}
