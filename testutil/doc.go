// Package testutil provides testing utilities for bloomgo.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating random keys, sampling skewed
// access patterns, and measuring observed false positive rates.
//
// # Random Key Generation
//
//	rng := testutil.NewRNG(seed)
//	keys := rng.Keys(10000, 16)               // random 16-byte keys
//	added := rng.LabeledKeys("added", 10000)  // never collides with other labels
//
// # Skewed Access Patterns
//
//	picks := rng.ZipfAccesses(100000, len(keys), 1.5)
//
// # Accuracy Measurement
//
//	fpr := testutil.FalsePositiveRate(f.Lookup, rng.LabeledKeys("absent", 10000))
package testutil
