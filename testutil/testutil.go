package testutil

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// Float64 returns, as a float64, a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// Fill fills dst with pseudo-random bytes.
// Locks only once per call (preferred over calling Uint64 in a loop).
func (r *RNG) Fill(dst []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = r.rand.Read(dst)
}

// Keys generates num random keys of size bytes each.
// Uses a single backing array for efficiency.
func (r *RNG) Keys(num, size int) [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	data := make([]byte, num*size)
	_, _ = r.rand.Read(data)

	keys := make([][]byte, num)
	for i := range num {
		keys[i] = data[i*size : (i+1)*size]
	}

	return keys
}

// LabeledKeys generates num distinct keys of the form "label-<seq>-<hex>".
// The label is a literal prefix, so keys generated under different labels
// never collide. That makes the sets usable as present/absent ground truth
// when measuring false positive rates.
func (r *RNG) LabeledKeys(label string, num int) [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	keys := make([][]byte, num)
	for i := range num {
		keys[i] = fmt.Appendf(nil, "%s-%08d-%016x", label, i, r.rand.Uint64())
	}

	return keys
}

// Zipf returns a Zipfian-distributed value in [0, n).
// Uses Zipf's law: P(k) ∝ 1/k^s where s is the skew parameter.
// s=1.0 gives standard Zipf, s=1.5 gives heavy-tail (80/20 rule).
func (r *RNG) Zipf(n int, s float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zipfLocked(n, s)
}

// zipfLocked is the internal implementation (caller must hold lock).
func (r *RNG) zipfLocked(n int, s float64) int {
	if n <= 1 {
		return 0
	}

	// Inverse transform sampling over the exact CDF. The harmonic
	// normalization makes each draw O(n).
	var hns float64
	for i := 1; i <= n; i++ {
		hns += 1.0 / math.Pow(float64(i), s)
	}

	u := r.rand.Float64() * hns
	var cumulative float64
	for k := 1; k <= n; k++ {
		cumulative += 1.0 / math.Pow(float64(k), s)
		if u <= cumulative {
			return k - 1 // 0-indexed
		}
	}

	return n - 1
}

// ZipfAccesses draws key indices in [0, keyCount) with a Zipfian
// distribution. Low indices are hot: with s=1.5 roughly 20% of the keys
// receive 80% of the accesses.
func (r *RNG) ZipfAccesses(draws, keyCount int, s float64) []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	accesses := make([]int, draws)
	for i := range draws {
		accesses[i] = r.zipfLocked(keyCount, s)
	}

	return accesses
}

// FalsePositiveRate reports the fraction of probes that contains claims are
// present. With probes drawn disjoint from everything added to the filter,
// every hit is a false positive.
func FalsePositiveRate(contains func(key []byte) bool, probes [][]byte) float64 {
	if len(probes) == 0 {
		return 0.0
	}

	hits := 0
	for _, p := range probes {
		if contains(p) {
			hits++
		}
	}

	return float64(hits) / float64(len(probes))
}
