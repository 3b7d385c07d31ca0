package bloomgo

import (
	"encoding/binary"
	"math/bits"
)

// checkCompatible verifies that two plain filters were built with identical
// sizing parameters and the same hasher, which makes their bit planes
// position-compatible.
func checkCompatible(a, b *BloomFilter) error {
	if a.closed || b.closed {
		return ErrClosed
	}
	if a.slotCount != b.slotCount {
		return &CompatibilityError{Field: "slot count", A: a.slotCount, B: b.slotCount}
	}
	if a.hashCount != b.hashCount {
		return &CompatibilityError{Field: "hash count", A: a.hashCount, B: b.hashCount}
	}
	if a.fpRate != b.fpRate {
		return &CompatibilityError{Field: "false-positive rate", A: a.fpRate, B: b.fpRate}
	}
	if a.hasher.Name() != b.hasher.Name() {
		return &CompatibilityError{Field: "hasher", A: a.hasher.Name(), B: b.hasher.Name()}
	}
	return nil
}

// Merge returns a new filter holding the union of a and b: every element
// added to either input matches the result. Both inputs must share sizing
// parameters and hasher; they are left untouched.
//
// The result's additions counter is the sum of both inputs', an upper
// bound on the union's distinct additions.
func Merge(a, b *BloomFilter, optFns ...Option) (*BloomFilter, error) {
	if err := checkCompatible(a, b); err != nil {
		return nil, err
	}
	o := applyOptions(optFns)

	pa, pb := a.buf.Bytes(), b.buf.Bytes()
	data := make([]byte, len(pa))
	for i := range pa {
		data[i] = pa[i] | pb[i]
	}

	return newBloomFilterFromParts(o.name, a.slotCount, a.hashCount, a.expected, a.fpRate, a.additions+b.additions, data, a.hasher, o)
}

// Intersect returns a new filter holding the intersection of a and b: only
// elements whose bits are set in both inputs match the result. Both inputs
// must share sizing parameters and hasher; they are left untouched.
//
// Bitwise intersection overcounts the true set intersection when unrelated
// elements collide, so the result may carry extra false positives. The
// result's additions counter is the smaller of the two inputs'.
func Intersect(a, b *BloomFilter, optFns ...Option) (*BloomFilter, error) {
	if err := checkCompatible(a, b); err != nil {
		return nil, err
	}
	o := applyOptions(optFns)

	pa, pb := a.buf.Bytes(), b.buf.Bytes()
	data := make([]byte, len(pa))
	for i := range pa {
		data[i] = pa[i] & pb[i]
	}

	return newBloomFilterFromParts(o.name, a.slotCount, a.hashCount, a.expected, a.fpRate, min(a.additions, b.additions), data, a.hasher, o)
}

// MergeInPlace folds other into f, so f matches everything either filter
// matched. other is left untouched.
func (f *BloomFilter) MergeInPlace(other *BloomFilter) error {
	if err := checkCompatible(f, other); err != nil {
		return err
	}
	if f.readOnly {
		return ErrReadOnly
	}

	pf, po := f.buf.Bytes(), other.buf.Bytes()
	for i := range pf {
		pf[i] |= po[i]
	}
	f.additions += other.additions
	return nil
}

// IntersectInPlace reduces f to its intersection with other. other is left
// untouched.
func (f *BloomFilter) IntersectInPlace(other *BloomFilter) error {
	if err := checkCompatible(f, other); err != nil {
		return err
	}
	if f.readOnly {
		return ErrReadOnly
	}

	pf, po := f.buf.Bytes(), other.buf.Bytes()
	for i := range pf {
		pf[i] &= po[i]
	}
	f.additions = min(f.additions, other.additions)
	return nil
}

// EstimateSimilarity returns the Jaccard similarity of two filters as a
// percentage: the ratio of shared set bits to all set bits, times one
// hundred. Two empty filters score zero.
func EstimateSimilarity(a, b *BloomFilter) (float64, error) {
	if err := checkCompatible(a, b); err != nil {
		return 0, err
	}

	var andBits, orBits uint64
	pa, pb := a.buf.Bytes(), b.buf.Bytes()
	i := 0
	for ; i+8 <= len(pa); i += 8 {
		x := binary.LittleEndian.Uint64(pa[i:])
		y := binary.LittleEndian.Uint64(pb[i:])
		andBits += uint64(bits.OnesCount64(x & y))
		orBits += uint64(bits.OnesCount64(x | y))
	}
	for ; i < len(pa); i++ {
		andBits += uint64(bits.OnesCount8(pa[i] & pb[i]))
		orBits += uint64(bits.OnesCount8(pa[i] | pb[i]))
	}

	if orBits == 0 {
		return 0, nil
	}
	return float64(andBits) / float64(orBits) * 100, nil
}
