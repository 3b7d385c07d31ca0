package persistence

import (
	"path/filepath"
	"testing"

	"github.com/hupe1980/bloomgo"
)

func TestLoadBloomFilterMmap(t *testing.T) {
	f, err := bloomgo.NewBloomFilter(1000, 0.01, bloomgo.WithName("mapped"))
	if err != nil {
		t.Fatalf("NewBloomFilter: %v", err)
	}
	defer f.Close()

	f.AddString("alpha")
	f.AddString("beta")

	path := filepath.Join(t.TempDir(), "mapped.bf")
	if err := SaveFilter(path, f); err != nil {
		t.Fatalf("SaveFilter: %v", err)
	}

	mapped, err := LoadBloomFilterMmap(path)
	if err != nil {
		t.Fatalf("LoadBloomFilterMmap: %v", err)
	}

	if !mapped.ReadOnly() {
		t.Error("mapped filter is not read-only")
	}
	if mapped.Name() != "mapped" {
		t.Errorf("name = %q, want %q", mapped.Name(), "mapped")
	}
	if !mapped.LookupString("alpha") || !mapped.LookupString("beta") {
		t.Error("added elements not found in mapped filter")
	}
	if mapped.LookupString("gamma") {
		t.Error("unexpected hit for element that was never added")
	}

	// Mutations on a read-only filter are dropped.
	mapped.AddString("gamma")
	if mapped.LookupString("gamma") {
		t.Error("Add mutated a read-only filter")
	}

	if err := mapped.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestLoadBloomFilterMmapMissing(t *testing.T) {
	_, err := LoadBloomFilterMmap(filepath.Join(t.TempDir(), "missing.bf"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadBloomFilterMmapRejectsOtherVariants(t *testing.T) {
	f, err := bloomgo.NewCountingFilter(100, 0.01)
	if err != nil {
		t.Fatalf("NewCountingFilter: %v", err)
	}
	defer f.Close()

	path := filepath.Join(t.TempDir(), "counting.bf")
	if err := SaveFilter(path, f); err != nil {
		t.Fatalf("SaveFilter: %v", err)
	}

	if _, err := LoadBloomFilterMmap(path); err == nil {
		t.Fatal("expected error for non-plain filter file")
	}
}
