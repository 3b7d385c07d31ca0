// Package bloomgo provides a family of Bloom filter variants for Go.
//
// Bloomgo is an embeddable probabilistic membership library. All variants
// share one sizing model and one double-hashing scheme, and differ only in
// what each slot stores: a bit, a counter, a timestamp, or a counter plus a
// timestamp.
//
// # Quick Start
//
// Plain Bloom filter:
//
//	bf, _ := bloomgo.NewBloomFilter(100000, 0.01)
//	bf.AddString("alpha")
//	bf.LookupString("alpha") // true
//	bf.LookupString("beta")  // false (or a rare false positive)
//
// Counting filter with element removal:
//
//	cf, _ := bloomgo.NewCountingFilter(100000, 0.01, bloomgo.WithCounterWidth(bloomgo.CounterWidth16))
//	cf.AddString("alpha")
//	cf.RemoveString("alpha") // true, all counters decremented
//
// Time-decaying filter where entries expire after a timeout:
//
//	df, _ := bloomgo.NewDecayingFilter(100000, 0.01, 300) // 5 minute timeout
//	df.AddString("alpha")
//	// ... 300+ seconds later ...
//	df.LookupString("alpha") // false, entry expired
//
// # Filter Variants
//
//   - BloomFilter: one bit per slot, add and lookup only
//   - CountingFilter: counters per slot (4 to 64 bit), supports Remove and decay
//   - DecayingFilter: timestamps per slot, entries expire after a timeout
//   - DecayingCountingFilter: counter plus timestamp per slot, counts that expire
//
// # Persistence
//
// Every variant serializes to a versioned binary format via io.WriterTo and
// loads back with full header validation:
//
//	var buf bytes.Buffer
//	bf.WriteTo(&buf)
//	loaded, _ := bloomgo.LoadBloomFilter(&buf)
//
// The persistence package adds atomic file save/load, checksummed snapshot
// containers, memory-mapped read paths and a catalog manager over pluggable
// blob storage (local disk, S3, MinIO, bbolt).
//
// # Set Algebra
//
// Plain filters with identical sizing parameters support union, intersection
// and similarity estimation:
//
//	merged, _ := bloomgo.Merge(a, b)
//	percent, _ := bloomgo.EstimateSimilarity(a, b)
//
// # Key Features
//
//   - Shared sizing math and 128-bit double hashing across all variants
//   - Variable-width slot storage with saturating arithmetic
//   - Modular timestamp wheel so expiry survives timer wraparound
//   - Versioned little-endian binary format with strict validation
//   - Pluggable hashers (Murmur3 128-bit default, xxHash alternative)
//   - Structured logging, metrics hooks and functional options
package bloomgo
