package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
)

// ErrNotFound is returned when a named blob does not exist. It aliases
// fs.ErrNotExist so local filesystem errors satisfy errors.Is without
// translation.
var ErrNotFound = fs.ErrNotExist

// ErrInvalidName is returned for blob names a store cannot represent,
// such as names that are empty or escape the store's root.
var ErrInvalidName = errors.New("blobstore: invalid blob name")

// Blob is a read-only handle to a stored byte sequence. Random access
// goes through io.ReaderAt; wrap a blob in io.NewSectionReader when a
// consumer needs an io.ReadSeeker.
type Blob interface {
	io.ReaderAt
	io.Closer

	// Size returns the blob length in bytes.
	Size() int64
}

// Mappable is implemented by blobs whose full content is addressable in
// memory, such as memory-mapped files. Callers must not modify or retain
// the returned slice past Close.
type Mappable interface {
	Bytes() ([]byte, error)
}

// BlobStore is a flat namespace of immutable blobs. Names use forward
// slashes as separators regardless of platform.
//
// Open reports missing blobs with an error satisfying
// errors.Is(err, ErrNotFound). Put replaces any existing blob under the
// same name atomically where the backend allows it. Delete is idempotent
// and succeeds when the blob is already gone.
type BlobStore interface {
	Open(ctx context.Context, name string) (Blob, error)
	Put(ctx context.Context, name string, data []byte) error
	Delete(ctx context.Context, name string) error

	// List returns the names under the given prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
}

// ReadAll fetches the complete content of a named blob. Mappable blobs
// are copied out so the result stays valid after the blob is closed.
func ReadAll(ctx context.Context, store BlobStore, name string) ([]byte, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer func() { _ = blob.Close() }()

	if m, ok := blob.(Mappable); ok {
		raw, err := m.Bytes()
		if err != nil {
			return nil, fmt.Errorf("blobstore: read %s: %w", name, err)
		}
		data := make([]byte, len(raw))
		copy(data, raw)
		return data, nil
	}

	data := make([]byte, blob.Size())
	if _, err := io.ReadFull(io.NewSectionReader(blob, 0, blob.Size()), data); err != nil {
		return nil, fmt.Errorf("blobstore: read %s: %w", name, err)
	}
	return data, nil
}
