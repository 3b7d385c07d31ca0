package benchmark_test

import (
	"testing"

	"github.com/hupe1980/bloomgo"
	"github.com/hupe1980/bloomgo/testutil"
)

// TestObservedFalsePositiveRate fills a filter to its design capacity and
// measures the false positive rate against keys that were never added.
// Added keys must always be found; the observed rate for absent keys is
// checked against 3x the configured target.
func TestObservedFalsePositiveRate(t *testing.T) {
	const (
		elements = 10_000
		target   = 0.01
		probes   = 20_000
	)

	bf, err := bloomgo.NewBloomFilter(elements, target)
	if err != nil {
		t.Fatal(err)
	}
	defer bf.Close()

	rng := testutil.NewRNG(1)
	added := rng.LabeledKeys("added", elements)
	absent := rng.LabeledKeys("absent", probes)

	for _, k := range added {
		bf.Add(k)
	}

	for _, k := range added {
		if !bf.Lookup(k) {
			t.Fatalf("added key %q reported absent", k)
		}
	}

	fpr := testutil.FalsePositiveRate(bf.Lookup, absent)
	if fpr > 3*target {
		t.Errorf("false positive rate %.4f exceeds 3x target %.4f", fpr, target)
	}
	if fpr == 0 {
		t.Error("false positive rate is zero, expected some collisions at design capacity")
	}
}

// TestCountingZipfWorkloadReversible runs a skewed add workload against a
// counting filter, verifies per-key counts never undercount, and checks
// that removing every access drains the filter back to empty. The 16-bit
// counter width keeps the hottest key below counter saturation.
func TestCountingZipfWorkloadReversible(t *testing.T) {
	const (
		universe = 500
		draws    = 5_000
	)

	cf, err := bloomgo.NewCountingFilter(universe, 0.01, bloomgo.WithCounterWidth(bloomgo.CounterWidth16))
	if err != nil {
		t.Fatal(err)
	}
	defer cf.Close()

	rng := testutil.NewRNG(1)
	keys := rng.LabeledKeys("key", universe)
	picks := rng.ZipfAccesses(draws, universe, 1.2)

	occurrences := make(map[int]uint64, universe)
	for _, idx := range picks {
		cf.Add(keys[idx])
		occurrences[idx]++
	}

	for idx, want := range occurrences {
		if got := cf.Count(keys[idx]); got < want {
			t.Fatalf("key %d: count %d below true multiplicity %d", idx, got, want)
		}
	}

	for _, idx := range picks {
		if !cf.Remove(keys[idx]) {
			t.Fatalf("key %d reported absent during removal", idx)
		}
	}

	if got := cf.SaturationCount(); got != 0 {
		t.Fatalf("expected empty filter after removing every access, %d slots still set", got)
	}
}
