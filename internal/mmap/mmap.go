package mmap

import (
	"errors"
	"io"
	"os"
	"sync/atomic"
)

// ErrClosed is returned when accessing a closed mapping.
var ErrClosed = errors.New("mmap: mapping is closed")

// File is a read-only memory mapping of a file.
type File struct {
	data   []byte
	closed atomic.Bool
}

// Open maps the file at path read-only. The file descriptor is closed
// before returning; the mapping keeps the pages alive.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := fi.Size()
	if size == 0 {
		return &File{}, nil
	}

	data, err := osMap(f, int(size))
	if err != nil {
		return nil, err
	}
	return &File{data: data}, nil
}

// Bytes returns the mapped region, nil after Close. The slice must not be
// written to; the pages are mapped PROT_READ.
func (m *File) Bytes() []byte {
	if m == nil || m.closed.Load() {
		return nil
	}
	return m.data
}

// Size returns the mapped length in bytes.
func (m *File) Size() int64 {
	return int64(len(m.Bytes()))
}

// ReadAt implements io.ReaderAt over the mapped region.
func (m *File) ReadAt(p []byte, off int64) (int, error) {
	if m == nil || m.closed.Load() {
		return 0, ErrClosed
	}
	if off < 0 || off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// Close unmaps the region. Idempotent.
func (m *File) Close() error {
	if m == nil || m.closed.Swap(true) {
		return nil
	}
	data := m.data
	m.data = nil
	if data == nil {
		return nil
	}
	return osUnmap(data)
}
