package blobstore

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/hupe1980/bloomgo/internal/cache"
)

// CachingStore is a read-through layer over another BlobStore. Opened
// blobs are fetched whole and kept in a byte-budgeted LRU, so repeated
// loads of hot snapshots skip the backend entirely. Concurrent opens of
// the same cold blob are collapsed into a single fetch.
//
// Writes go straight to the inner store and invalidate the cached copy.
type CachingStore struct {
	inner BlobStore
	cache *cache.LRU
	group singleflight.Group
}

// NewCachingStore wraps inner with the given cache. The cache bounds
// total cached bytes; blobs larger than its capacity bypass it.
func NewCachingStore(inner BlobStore, c *cache.LRU) *CachingStore {
	return &CachingStore{inner: inner, cache: c}
}

// Open returns the cached blob, fetching and caching it on a miss.
func (s *CachingStore) Open(ctx context.Context, name string) (Blob, error) {
	if data, ok := s.cache.Get(name); ok {
		return &bytesBlob{data: data}, nil
	}

	v, err, _ := s.group.Do(name, func() (any, error) {
		// A concurrent fetch may have landed while we queued.
		if data, ok := s.cache.Get(name); ok {
			return data, nil
		}
		data, err := ReadAll(ctx, s.inner, name)
		if err != nil {
			return nil, err
		}
		s.cache.Set(name, data)
		return data, nil
	})
	if err != nil {
		return nil, err
	}
	return &bytesBlob{data: v.([]byte)}, nil
}

// Put writes through to the inner store and drops the stale cache entry.
func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	if err := s.inner.Put(ctx, name, data); err != nil {
		return err
	}
	s.cache.Delete(name)
	s.group.Forget(name)
	return nil
}

// Delete removes the blob from the inner store and the cache.
func (s *CachingStore) Delete(ctx context.Context, name string) error {
	if err := s.inner.Delete(ctx, name); err != nil {
		return err
	}
	s.cache.Delete(name)
	s.group.Forget(name)
	return nil
}

// List delegates to the inner store.
func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}
