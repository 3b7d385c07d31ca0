package blobstore

import (
	"bytes"
	"context"
	"time"

	"go.etcd.io/bbolt"
)

var boltBucket = []byte("blobs")

// BoltStore keeps blobs in a single bbolt database file. It suits
// deployments that rotate many small filter snapshots and want one file
// to back up instead of a directory tree.
type BoltStore struct {
	db *bbolt.DB
}

// OpenBoltStore opens or creates the database file at path. The file is
// locked for the lifetime of the store, so opening it from a second
// process fails after a short timeout instead of hanging.
func OpenBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &BoltStore{db: db}, nil
}

// Close releases the database file lock.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Open returns the named blob. The bytes are copied out of the
// transaction, so the blob stays valid indefinitely.
func (s *BoltStore) Open(ctx context.Context, name string) (Blob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(boltBucket).Get([]byte(name))
		if v == nil {
			return ErrNotFound
		}
		data = make([]byte, len(v))
		copy(data, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &bytesBlob{data: data}, nil
}

// Put stores the blob in a single write transaction, which bbolt commits
// atomically.
func (s *BoltStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if name == "" {
		return ErrInvalidName
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(boltBucket).Put([]byte(name), data)
	})
}

// Delete removes the named blob. Deleting a missing blob is not an error.
func (s *BoltStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(boltBucket).Delete([]byte(name))
	})
}

// List scans keys under the prefix using a cursor seek. bbolt keeps keys
// sorted, so the result is already in lexical order.
func (s *BoltStore) List(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var names []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(boltBucket).Cursor()
		p := []byte(prefix)
		for k, _ := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, _ = c.Next() {
			names = append(names, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}
