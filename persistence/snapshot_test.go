package persistence

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/hupe1980/bloomgo"
	"github.com/hupe1980/bloomgo/codec"
)

func writeTestSnapshot(t *testing.T, f bloomgo.Filter, compression Compression) []byte {
	t.Helper()

	var buf bytes.Buffer
	if err := WriteSnapshot(&buf, f, compression, nil); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}
	return buf.Bytes()
}

func TestSnapshotBloomZSTD(t *testing.T) {
	f, err := bloomgo.NewBloomFilter(1000, 0.01, bloomgo.WithName("seen-urls"))
	if err != nil {
		t.Fatalf("NewBloomFilter: %v", err)
	}
	defer f.Close()

	f.AddString("alpha")
	f.AddString("beta")

	data := writeTestSnapshot(t, f, CompressionZSTD)

	loaded, info, err := ReadSnapshot(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	defer loaded.Close()

	if loaded.Variant() != bloomgo.VariantBloom {
		t.Errorf("variant = %v, want %v", loaded.Variant(), bloomgo.VariantBloom)
	}
	if !loaded.LookupString("alpha") || !loaded.LookupString("beta") {
		t.Error("added elements not found after reload")
	}
	if loaded.LookupString("gamma") {
		t.Error("unexpected hit for element that was never added")
	}

	if info.Name != "seen-urls" {
		t.Errorf("info name = %q, want %q", info.Name, "seen-urls")
	}
	if info.Variant != "bloom" {
		t.Errorf("info variant = %q, want %q", info.Variant, "bloom")
	}
	if info.Compression != "zstd" {
		t.Errorf("info compression = %q, want %q", info.Compression, "zstd")
	}
	if info.SlotCount != f.SlotCount() {
		t.Errorf("info slot count = %d, want %d", info.SlotCount, f.SlotCount())
	}
	if info.UncompressedBytes <= 0 {
		t.Errorf("info uncompressed bytes = %d, want > 0", info.UncompressedBytes)
	}
	if info.CreatedAt.IsZero() {
		t.Error("info created_at is zero")
	}
}

func TestSnapshotCountingLZ4(t *testing.T) {
	f, err := bloomgo.NewCountingFilter(500, 0.01)
	if err != nil {
		t.Fatalf("NewCountingFilter: %v", err)
	}
	defer f.Close()

	f.AddString("dup")
	f.AddString("dup")
	f.AddString("once")

	data := writeTestSnapshot(t, f, CompressionLZ4)

	loaded, info, err := ReadSnapshot(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	defer loaded.Close()

	cf, ok := loaded.(*bloomgo.CountingFilter)
	if !ok {
		t.Fatalf("loaded filter type = %T, want *bloomgo.CountingFilter", loaded)
	}
	if got := cf.CountString("dup"); got != 2 {
		t.Errorf("count(dup) = %d, want 2", got)
	}

	// Counters must survive the roundtrip intact so removals still work.
	if !cf.RemoveString("dup") {
		t.Error("RemoveString reported element absent")
	}
	if !cf.LookupString("dup") {
		t.Error("element vanished after removing one of two additions")
	}

	if info.Compression != "lz4" {
		t.Errorf("info compression = %q, want %q", info.Compression, "lz4")
	}
}

func TestSnapshotDecayingUncompressed(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	clock := func() time.Time { return now }

	f, err := bloomgo.NewDecayingFilter(200, 0.01, 60, bloomgo.WithTimeSource(clock))
	if err != nil {
		t.Fatalf("NewDecayingFilter: %v", err)
	}
	defer f.Close()

	f.AddString("fresh")

	data := writeTestSnapshot(t, f, CompressionNone)

	loaded, info, err := ReadSnapshot(bytes.NewReader(data), bloomgo.WithTimeSource(clock))
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	defer loaded.Close()

	if !loaded.LookupString("fresh") {
		t.Error("unexpired element not found after reload")
	}
	if info.Variant != "decaying" {
		t.Errorf("info variant = %q, want %q", info.Variant, "decaying")
	}
	if info.Compression != "none" {
		t.Errorf("info compression = %q, want %q", info.Compression, "none")
	}
}

func TestReadSnapshotInfoOnly(t *testing.T) {
	f, err := bloomgo.NewBloomFilter(1000, 0.01, bloomgo.WithName("info-only"))
	if err != nil {
		t.Fatalf("NewBloomFilter: %v", err)
	}
	defer f.Close()

	f.AddString("x")
	data := writeTestSnapshot(t, f, CompressionZSTD)

	info, err := ReadSnapshotInfo(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("ReadSnapshotInfo: %v", err)
	}
	if info.Name != "info-only" {
		t.Errorf("info name = %q, want %q", info.Name, "info-only")
	}
	if info.SaturationCount == 0 {
		t.Error("info saturation count = 0, want > 0")
	}
}

func TestReadSnapshotChecksumMismatch(t *testing.T) {
	f, err := bloomgo.NewBloomFilter(1000, 0.01)
	if err != nil {
		t.Fatalf("NewBloomFilter: %v", err)
	}
	defer f.Close()

	f.AddString("x")
	data := writeTestSnapshot(t, f, CompressionNone)

	// Flip a byte inside the filter section. The section starts right
	// after the 16 byte header and the codec name.
	corrupted := append([]byte(nil), data...)
	corrupted[len(corrupted)/2] ^= 0xFF

	_, _, err = ReadSnapshot(bytes.NewReader(corrupted))
	if err == nil {
		t.Fatal("expected error for corrupted snapshot")
	}
	if !IsChecksumMismatch(err) {
		t.Errorf("error = %v, want checksum mismatch", err)
	}
}

func TestReadSnapshotBadMagic(t *testing.T) {
	f, err := bloomgo.NewBloomFilter(100, 0.01)
	if err != nil {
		t.Fatalf("NewBloomFilter: %v", err)
	}
	defer f.Close()

	data := writeTestSnapshot(t, f, CompressionNone)

	corrupted := append([]byte(nil), data...)
	corrupted[0] ^= 0xFF

	_, _, err = ReadSnapshot(bytes.NewReader(corrupted))
	if err == nil || !strings.Contains(err.Error(), "bad magic") {
		t.Errorf("error = %v, want bad magic", err)
	}
}

func TestReadSnapshotTruncated(t *testing.T) {
	f, err := bloomgo.NewBloomFilter(100, 0.01)
	if err != nil {
		t.Fatalf("NewBloomFilter: %v", err)
	}
	defer f.Close()

	data := writeTestSnapshot(t, f, CompressionNone)

	for _, n := range []int{0, 10, len(data) - 5} {
		if _, _, err := ReadSnapshot(bytes.NewReader(data[:n])); err == nil {
			t.Errorf("ReadSnapshot with %d of %d bytes: expected error", n, len(data))
		}
	}
}

func TestWriteSnapshotRejectsBadArguments(t *testing.T) {
	f, err := bloomgo.NewBloomFilter(100, 0.01)
	if err != nil {
		t.Fatalf("NewBloomFilter: %v", err)
	}
	defer f.Close()

	var buf bytes.Buffer

	if err := WriteSnapshot(&buf, nil, CompressionNone, nil); err == nil {
		t.Error("expected error for nil filter")
	}
	if err := WriteSnapshot(nil, f, CompressionNone, nil); err == nil {
		t.Error("expected error for nil writer")
	}
	if err := WriteSnapshot(&buf, f, Compression(99), nil); err == nil {
		t.Error("expected error for unknown compression")
	}
}

func TestSnapshotCodecStdJSON(t *testing.T) {
	f, err := bloomgo.NewBloomFilter(100, 0.01, bloomgo.WithName("std-json"))
	if err != nil {
		t.Fatalf("NewBloomFilter: %v", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	if err := WriteSnapshot(&buf, f, CompressionNone, codec.JSON{}); err != nil {
		t.Fatalf("WriteSnapshot: %v", err)
	}

	// The codec is recorded in the container, so the reader needs no
	// hint about which one produced the info block.
	loaded, info, err := ReadSnapshot(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	defer loaded.Close()

	if info.Name != "std-json" {
		t.Errorf("info name = %q, want %q", info.Name, "std-json")
	}
}
