package persistence

import (
	"github.com/hupe1980/bloomgo"
	"github.com/hupe1980/bloomgo/internal/mmap"
)

// MappedBloomFilter is a read-only plain Bloom filter whose slot buffer
// is backed by a memory-mapped file instead of heap memory. Lookups
// touch only the pages they need, so a filter much larger than RAM can
// be queried with a small resident set.
//
// Close unmaps the file; the filter must not be used afterwards.
type MappedBloomFilter struct {
	*bloomgo.BloomFilter

	f *mmap.File
}

// Close releases the filter and unmaps the backing file.
func (m *MappedBloomFilter) Close() error {
	err := m.BloomFilter.Close()
	if cerr := m.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// LoadBloomFilterMmap opens a plain Bloom filter file written by
// SaveFilter (or Filter.WriteTo) by memory-mapping it. The filter is
// forced read-only because its buffer aliases the mapped pages.
//
// Only plain Bloom filter files are supported; snapshot containers
// produced by WriteSnapshot must go through ReadSnapshot instead.
func LoadBloomFilterMmap(path string, optFns ...bloomgo.Option) (*MappedBloomFilter, error) {
	mf, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}

	opts := append(append([]bloomgo.Option{}, optFns...), bloomgo.WithReadOnly())

	f, err := bloomgo.LoadBloomFilterBytes(mf.Bytes(), opts...)
	if err != nil {
		_ = mf.Close()
		return nil, err
	}

	return &MappedBloomFilter{BloomFilter: f, f: mf}, nil
}
