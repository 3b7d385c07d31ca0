package bloomgo

import (
	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
)

// Hasher derives two independent 64-bit hash values from an element. The
// pair feeds the double-hashing scheme that turns one hash invocation into
// an arbitrary number of slot positions.
//
// Implementations must be deterministic and safe for concurrent use. The
// hasher identity is recorded in serialized filters, so looking an element
// up with a different hasher than the one it was added with is meaningless.
type Hasher interface {
	// Sum128 hashes data with the given seed and returns two 64-bit values.
	Sum128(data []byte, seed uint32) (uint64, uint64)

	// Name identifies the hasher in serialized headers.
	Name() string
}

// Murmur3Hasher is the default Hasher. It produces both 64-bit values from
// a single MurmurHash3 x64 128-bit pass.
type Murmur3Hasher struct{}

var _ Hasher = Murmur3Hasher{}

// Sum128 implements Hasher.
func (Murmur3Hasher) Sum128(data []byte, seed uint32) (uint64, uint64) {
	return murmur3.Sum128WithSeed(data, seed)
}

// Name implements Hasher.
func (Murmur3Hasher) Name() string { return "murmur3-128" }

// XXHasher derives the pair from one seeded xxHash pass. The second value
// is the first scrambled through the SplitMix64 finalizer, which removes
// the correlation between the two without reading the input again.
type XXHasher struct{}

var _ Hasher = XXHasher{}

// Sum128 implements Hasher.
func (XXHasher) Sum128(data []byte, seed uint32) (uint64, uint64) {
	d := xxhash.NewWithSeed(uint64(seed))
	_, _ = d.Write(data)
	h1 := d.Sum64()
	return h1, splitmix64(h1)
}

// Name implements Hasher.
func (XXHasher) Name() string { return "xxhash64-pair" }

// splitmix64 scrambles a 64-bit integer using the SplitMix64 finalizer
// (public domain).
func splitmix64(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

// Hasher identifiers stored in the serialized header flags.
const (
	hasherIDMurmur3 = 0x00
	hasherIDXXHash  = 0x01
	hasherIDCustom  = 0xFF
)

func hasherID(h Hasher) uint8 {
	switch h.Name() {
	case Murmur3Hasher{}.Name():
		return hasherIDMurmur3
	case XXHasher{}.Name():
		return hasherIDXXHash
	default:
		return hasherIDCustom
	}
}

func hasherByID(id uint8) (Hasher, bool) {
	switch id {
	case hasherIDMurmur3:
		return Murmur3Hasher{}, true
	case hasherIDXXHash:
		return XXHasher{}, true
	default:
		return nil, false
	}
}
