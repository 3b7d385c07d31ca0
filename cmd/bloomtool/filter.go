package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hupe1980/bloomgo"
	"github.com/hupe1980/bloomgo/persistence"
)

// newFilter builds an empty filter of the named variant. Decaying variants
// require a nonzero timeout.
func newFilter(variant string, expected uint64, fpRate float64, timeout uint64) (bloomgo.Filter, error) {
	switch variant {
	case "bloom":
		return bloomgo.NewBloomFilter(expected, fpRate)
	case "counting":
		return bloomgo.NewCountingFilter(expected, fpRate)
	case "decaying":
		if timeout == 0 {
			return nil, errors.New("decaying variants need -timeout > 0")
		}
		return bloomgo.NewDecayingFilter(expected, fpRate, timeout)
	case "decaying-counting":
		if timeout == 0 {
			return nil, errors.New("decaying variants need -timeout > 0")
		}
		return bloomgo.NewDecayingCountingFilter(expected, fpRate, timeout)
	default:
		return nil, fmt.Errorf("unknown variant %q, want bloom, counting, decaying or decaying-counting", variant)
	}
}

// addLines adds every nonempty line of r to f and returns how many it added.
// Trailing carriage returns are stripped so CRLF input behaves like LF.
func addLines(f bloomgo.Filter, r io.Reader) (uint64, error) {
	var added uint64

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		f.AddString(line)
		added++
	}

	return added, sc.Err()
}

func addFromFile(f bloomgo.Filter, path string) (uint64, error) {
	fp, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer fp.Close()

	return addLines(f, fp)
}

// loadBloom loads path and rejects anything but a plain Bloom filter, the
// only variant the set operations and similarity estimate are defined for.
func loadBloom(path string) (*bloomgo.BloomFilter, error) {
	f, err := persistence.LoadFilter(path)
	if err != nil {
		return nil, err
	}

	bf, ok := f.(*bloomgo.BloomFilter)
	if !ok {
		f.Close()
		return nil, fmt.Errorf("%s holds a %s filter, set operations need plain bloom", path, f.Variant())
	}

	return bf, nil
}
