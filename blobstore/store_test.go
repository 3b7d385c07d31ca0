package blobstore

import (
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLifecycle exercises the BlobStore contract shared by all backends.
func testLifecycle(t *testing.T, store BlobStore) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Open(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	data := []byte("the quick brown fox")
	require.NoError(t, store.Put(ctx, "catalog/web/1.snap", data))
	require.NoError(t, store.Put(ctx, "catalog/web/2.snap", []byte("second")))
	require.NoError(t, store.Put(ctx, "catalog/api/1.snap", []byte("other")))

	blob, err := store.Open(ctx, "catalog/web/1.snap")
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), blob.Size())

	buf := make([]byte, 5)
	n, err := blob.ReadAt(buf, 4)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "quick", string(buf))

	// Reads past the end return what is there plus EOF.
	n, err = blob.ReadAt(buf, blob.Size()-2)
	assert.Equal(t, 2, n)
	assert.ErrorIs(t, err, io.EOF)
	require.NoError(t, blob.Close())

	got, err := ReadAll(ctx, store, "catalog/web/1.snap")
	require.NoError(t, err)
	assert.Equal(t, data, got)

	names, err := store.List(ctx, "catalog/web/")
	require.NoError(t, err)
	assert.Equal(t, []string{"catalog/web/1.snap", "catalog/web/2.snap"}, names)

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	// Overwrite replaces the content.
	require.NoError(t, store.Put(ctx, "catalog/web/1.snap", []byte("replaced")))
	got, err = ReadAll(ctx, store, "catalog/web/1.snap")
	require.NoError(t, err)
	assert.Equal(t, []byte("replaced"), got)

	require.NoError(t, store.Delete(ctx, "catalog/web/1.snap"))
	require.NoError(t, store.Delete(ctx, "catalog/web/1.snap"))
	_, err = store.Open(ctx, "catalog/web/1.snap")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStore_Lifecycle(t *testing.T) {
	testLifecycle(t, NewLocalStore(t.TempDir()))
}

func TestMemoryStore_Lifecycle(t *testing.T) {
	testLifecycle(t, NewMemoryStore())
}

func TestBoltStore_Lifecycle(t *testing.T) {
	store, err := OpenBoltStore(filepath.Join(t.TempDir(), "blobs.db"))
	require.NoError(t, err)
	defer store.Close()

	testLifecycle(t, store)
}

func TestLocalStore_InvalidNames(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())

	for _, name := range []string{"", ".", "..", "../escape", "/abs", "a//b"} {
		assert.ErrorIs(t, store.Put(ctx, name, []byte("x")), ErrInvalidName, "name %q", name)
	}
}

func TestLocalStore_ListMissingRoot(t *testing.T) {
	store := NewLocalStore(filepath.Join(t.TempDir(), "never-created"))

	names, err := store.List(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestLocalStore_Mappable(t *testing.T) {
	ctx := context.Background()
	store := NewLocalStore(t.TempDir())
	require.NoError(t, store.Put(ctx, "blob", []byte("mapped bytes")))

	blob, err := store.Open(ctx, "blob")
	require.NoError(t, err)
	defer blob.Close()

	m, ok := blob.(Mappable)
	require.True(t, ok)
	raw, err := m.Bytes()
	require.NoError(t, err)
	assert.Equal(t, "mapped bytes", string(raw))
}

func TestMemoryStore_OpenIsolatedFromOverwrite(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Put(ctx, "blob", []byte("before")))

	blob, err := store.Open(ctx, "blob")
	require.NoError(t, err)
	defer blob.Close()

	require.NoError(t, store.Put(ctx, "blob", []byte("after!")))

	buf := make([]byte, blob.Size())
	_, err = blob.ReadAt(buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "before", string(buf))
}

func TestBoltStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "blobs.db")

	store, err := OpenBoltStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "keep", []byte("durable")))
	require.NoError(t, store.Close())

	store, err = OpenBoltStore(path)
	require.NoError(t, err)
	defer store.Close()

	got, err := ReadAll(ctx, store, "keep")
	require.NoError(t, err)
	assert.Equal(t, []byte("durable"), got)
}
