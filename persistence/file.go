package persistence

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/hupe1980/bloomgo"
)

// SaveToFile writes a file atomically through writeFunc.
func SaveToFile(filename string, writeFunc func(io.Writer) error) error {
	dir := filepath.Dir(filename)
	base := filepath.Base(filename)

	// Write to a temp file in the same directory to ensure rename is atomic.
	tmp, err := os.CreateTemp(dir, base+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() {
		_ = tmp.Close()
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	// Match typical file permissions (best-effort).
	_ = tmp.Chmod(0o644)

	// Buffered writer to batch the many small header writes.
	buf := bufio.NewWriterSize(tmp, 256*1024)
	if err := writeFunc(buf); err != nil {
		return err
	}
	if err := buf.Flush(); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	// Atomically replace target.
	if err := os.Rename(tmpName, filename); err != nil {
		return err
	}

	// Best-effort: fsync the directory so the rename is durable on POSIX.
	if d, err := os.Open(dir); err == nil {
		_ = d.Sync()
		_ = d.Close()
	}

	// Success: prevent deferred cleanup from removing the final file.
	tmpName = ""
	return nil
}

// LoadFromFile reads a file through readFunc with buffering.
func LoadFromFile(filename string, readFunc func(io.Reader) error) error {
	f, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	buf := bufio.NewReaderSize(f, 256*1024)
	return readFunc(buf)
}

// SaveFilter writes the filter's wire format to filename atomically. The
// resulting file is a plain serialized filter, loadable with LoadFilter
// and, for the plain variant, mappable with LoadBloomFilterMmap.
func SaveFilter(filename string, f bloomgo.Filter) error {
	return SaveToFile(filename, func(w io.Writer) error {
		_, err := f.WriteTo(w)
		return err
	})
}

// LoadFilter reads a serialized filter of any variant from filename.
func LoadFilter(filename string, optFns ...bloomgo.Option) (bloomgo.Filter, error) {
	var f bloomgo.Filter
	err := LoadFromFile(filename, func(r io.Reader) error {
		var err error
		f, err = bloomgo.Load(r, optFns...)
		return err
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}
