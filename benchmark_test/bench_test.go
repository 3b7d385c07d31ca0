package benchmark_test

import (
	"bytes"
	"fmt"
	"io"
	"sync/atomic"
	"testing"

	"github.com/hupe1980/bloomgo"
	"github.com/hupe1980/bloomgo/testutil"
)

const benchFPRate = 0.01

func newLoadedBloom(b *testing.B, n int) (*bloomgo.BloomFilter, [][]byte) {
	b.Helper()

	bf, err := bloomgo.NewBloomFilter(uint64(n), benchFPRate)
	if err != nil {
		b.Fatal(err)
	}

	keys := testutil.NewRNG(1).Keys(n, 16)
	for _, k := range keys {
		bf.Add(k)
	}

	return bf, keys
}

func BenchmarkBloomAdd(b *testing.B) {
	b.ReportAllocs()

	bf, err := bloomgo.NewBloomFilter(1_000_000, benchFPRate)
	if err != nil {
		b.Fatal(err)
	}
	defer bf.Close()

	keys := testutil.NewRNG(1).Keys(1<<16, 16)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bf.Add(keys[i%len(keys)])
	}
}

func BenchmarkBloomLookup_Hit(b *testing.B) {
	b.ReportAllocs()

	bf, keys := newLoadedBloom(b, 100_000)
	defer bf.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bf.Lookup(keys[i%len(keys)])
	}
}

func BenchmarkBloomLookup_Miss(b *testing.B) {
	b.ReportAllocs()

	bf, _ := newLoadedBloom(b, 100_000)
	defer bf.Close()

	// Separate generator stream so probes differ from the loaded keys.
	probes := testutil.NewRNG(2).Keys(1<<16, 16)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bf.Lookup(probes[i%len(probes)])
	}
}

func BenchmarkBloomLookup_Parallel(b *testing.B) {
	b.ReportAllocs()

	bf, keys := newLoadedBloom(b, 100_000)
	defer bf.Close()

	var idx atomic.Uint64

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			i := idx.Add(1)
			bf.Lookup(keys[i%uint64(len(keys))])
		}
	})
}

func BenchmarkBloomLookup_Sizes(b *testing.B) {
	for _, n := range []int{10_000, 100_000, 1_000_000} {
		b.Run(fmt.Sprintf("n=%d", n), func(b *testing.B) {
			b.ReportAllocs()

			bf, keys := newLoadedBloom(b, n)
			defer bf.Close()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				bf.Lookup(keys[i%len(keys)])
			}
		})
	}
}

func BenchmarkCountingAddRemove(b *testing.B) {
	b.ReportAllocs()

	cf, err := bloomgo.NewCountingFilter(1_000_000, benchFPRate)
	if err != nil {
		b.Fatal(err)
	}
	defer cf.Close()

	keys := testutil.NewRNG(1).Keys(1<<16, 16)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		k := keys[i%len(keys)]
		cf.Add(k)
		cf.Remove(k)
	}
}

func BenchmarkCountingZipfWorkload(b *testing.B) {
	b.ReportAllocs()

	cf, err := bloomgo.NewCountingFilter(100_000, benchFPRate, bloomgo.WithCounterWidth(bloomgo.CounterWidth16))
	if err != nil {
		b.Fatal(err)
	}
	defer cf.Close()

	rng := testutil.NewRNG(1)
	keys := rng.Keys(10_000, 16)
	picks := rng.ZipfAccesses(1<<16, len(keys), 1.5)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cf.LookupOrAdd(keys[picks[i%len(picks)]])
	}
}

func BenchmarkDecayingAdd(b *testing.B) {
	b.ReportAllocs()

	df, err := bloomgo.NewDecayingFilter(1_000_000, benchFPRate, 300)
	if err != nil {
		b.Fatal(err)
	}
	defer df.Close()

	keys := testutil.NewRNG(1).Keys(1<<16, 16)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		df.Add(keys[i%len(keys)])
	}
}

func BenchmarkDecayingLookup(b *testing.B) {
	b.ReportAllocs()

	df, err := bloomgo.NewDecayingFilter(100_000, benchFPRate, 300)
	if err != nil {
		b.Fatal(err)
	}
	defer df.Close()

	keys := testutil.NewRNG(1).Keys(100_000, 16)
	for _, k := range keys {
		df.Add(k)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		df.Lookup(keys[i%len(keys)])
	}
}

func BenchmarkSerialize(b *testing.B) {
	b.ReportAllocs()

	bf, _ := newLoadedBloom(b, 100_000)
	defer bf.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := bf.WriteTo(io.Discard); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkLoad(b *testing.B) {
	b.ReportAllocs()

	bf, _ := newLoadedBloom(b, 100_000)
	defer bf.Close()

	var buf bytes.Buffer
	if _, err := bf.WriteTo(&buf); err != nil {
		b.Fatal(err)
	}
	data := buf.Bytes()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		lf, err := bloomgo.LoadBytes(data)
		if err != nil {
			b.Fatal(err)
		}
		lf.Close()
	}
}
