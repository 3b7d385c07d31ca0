package persistence

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"time"

	"github.com/hupe1980/bloomgo"
	"github.com/hupe1980/bloomgo/codec"
)

var (
	snapshotMagic         = [4]byte{'B', 'F', 'S', '1'}
	snapshotDirMagic      = [4]byte{'B', 'F', 'D', '1'}
	snapshotFooterMagic   = [4]byte{'B', 'F', 'F', '1'}
	snapshotFormatVersion = uint16(1)
)

const (
	snapshotSectionFilter = uint16(1)
	snapshotSectionInfo   = uint16(2)
)

type snapshotSectionEntry struct {
	Type     uint16
	Offset   uint64
	Len      uint64
	Checksum uint32
}

// SnapshotInfo describes a snapshot without decoding the filter. It is
// stored in its own section so catalogs can be listed cheaply.
type SnapshotInfo struct {
	Name              string    `json:"name"`
	Variant           string    `json:"variant"`
	SlotCount         uint64    `json:"slot_count"`
	HashCount         uint32    `json:"hash_count"`
	ExpectedElements  uint64    `json:"expected_elements"`
	TargetFPRate      float64   `json:"target_fp_rate"`
	BufferBytes       uint64    `json:"buffer_bytes"`
	SaturationCount   uint64    `json:"saturation_count"`
	Saturation        float64   `json:"saturation"`
	Compression       string    `json:"compression"`
	UncompressedBytes int64     `json:"uncompressed_bytes"`
	CreatedAt         time.Time `json:"created_at"`
}

func newSnapshotInfo(f bloomgo.Filter, compression Compression) *SnapshotInfo {
	return &SnapshotInfo{
		Name:             f.Name(),
		Variant:          f.Variant().String(),
		SlotCount:        f.SlotCount(),
		HashCount:        f.HashCount(),
		ExpectedElements: f.ExpectedElements(),
		TargetFPRate:     f.TargetFalsePositiveRate(),
		SaturationCount:  f.SaturationCount(),
		Saturation:       f.Saturation(),
		Compression:      compression.String(),
		CreatedAt:        time.Now().UTC(),
	}
}

// WriteSnapshot writes f to w as a snapshot container.
//
// Format:
//  1. container header (magic/version/compression/codec)
//  2. filter payload (wire format, compressed)
//  3. info block (codec marshaled SnapshotInfo)
//  4. directory (type/offset/length/checksum per section)
//  5. footer (directory offset/length)
//
// If c is nil, codec.Default is used.
func WriteSnapshot(w io.Writer, f bloomgo.Filter, compression Compression, c codec.Codec) error {
	if w == nil {
		return fmt.Errorf("snapshot: writer is nil")
	}
	if f == nil {
		return fmt.Errorf("snapshot: filter is nil")
	}
	if !compression.valid() {
		return fmt.Errorf("snapshot: unknown compression %d", compression)
	}
	if c == nil {
		c = codec.Default
	}

	codecName := c.Name()
	if len(codecName) == 0 || len(codecName) > 0xFFFF {
		return fmt.Errorf("snapshot: invalid codec name length %d", len(codecName))
	}

	var raw bytes.Buffer
	if _, err := f.WriteTo(&raw); err != nil {
		return fmt.Errorf("snapshot: encode filter: %w", err)
	}
	payload, err := compressPayload(raw.Bytes(), compression)
	if err != nil {
		return fmt.Errorf("snapshot: compress filter: %w", err)
	}

	info := newSnapshotInfo(f, compression)
	info.BufferBytes = uint64(raw.Len())
	info.UncompressedBytes = int64(raw.Len())
	infoBytes, err := c.Marshal(info)
	if err != nil {
		return fmt.Errorf("snapshot: encode info: %w", err)
	}

	// Header (16 bytes + codec name)
	// [0:4]   magic
	// [4:6]   version
	// [6]     compression
	// [7]     reserved
	// [8:10]  codec name len
	// [10:12] section count
	// [12:16] reserved
	var hdr [16]byte
	copy(hdr[0:4], snapshotMagic[:])
	binary.LittleEndian.PutUint16(hdr[4:6], snapshotFormatVersion)
	hdr[6] = byte(compression)
	binary.LittleEndian.PutUint16(hdr[8:10], uint16(len(codecName)))
	binary.LittleEndian.PutUint16(hdr[10:12], 2)
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}
	if _, err := w.Write([]byte(codecName)); err != nil {
		return err
	}

	cw := &countingWriter{w: w, n: int64(len(hdr)) + int64(len(codecName))}
	chw := NewChecksumWriter(cw)

	filterOff := uint64(cw.n)
	if _, err := chw.Write(payload); err != nil {
		return err
	}
	filterEntry := snapshotSectionEntry{
		Type:     snapshotSectionFilter,
		Offset:   filterOff,
		Len:      uint64(len(payload)),
		Checksum: chw.Sum(),
	}

	chw.Reset()

	infoOff := uint64(cw.n)
	if _, err := chw.Write(infoBytes); err != nil {
		return err
	}
	infoEntry := snapshotSectionEntry{
		Type:     snapshotSectionInfo,
		Offset:   infoOff,
		Len:      uint64(len(infoBytes)),
		Checksum: chw.Sum(),
	}

	dirOff := uint64(cw.n)
	if err := writeSnapshotDirectory(cw, []snapshotSectionEntry{filterEntry, infoEntry}); err != nil {
		return err
	}
	dirLen := uint64(cw.n) - dirOff

	return writeSnapshotFooter(cw, dirOff, dirLen)
}

// ReadSnapshot loads a filter from a snapshot container. The container
// needs random access to locate the footer and directory, hence the
// io.ReadSeeker; wrap raw bytes in a bytes.Reader and blobs in an
// io.NewSectionReader.
//
// Options are forwarded to the filter decoder, so WithHasher,
// WithTimeSource and friends work the same as with bloomgo.Load.
func ReadSnapshot(r io.ReadSeeker, optFns ...bloomgo.Option) (bloomgo.Filter, *SnapshotInfo, error) {
	layout, err := readSnapshotLayout(r)
	if err != nil {
		return nil, nil, err
	}

	payload, err := layout.readSection(r, snapshotSectionFilter)
	if err != nil {
		return nil, nil, err
	}
	raw, err := decompressPayload(payload, layout.compression)
	if err != nil {
		return nil, nil, fmt.Errorf("snapshot: decompress filter: %w", err)
	}

	f, err := bloomgo.Load(bytes.NewReader(raw), optFns...)
	if err != nil {
		return nil, nil, err
	}

	info, err := layout.readInfo(r)
	if err != nil {
		_ = f.Close()
		return nil, nil, err
	}
	return f, info, nil
}

// ReadSnapshotInfo reads only the info block of a snapshot container.
func ReadSnapshotInfo(r io.ReadSeeker) (*SnapshotInfo, error) {
	layout, err := readSnapshotLayout(r)
	if err != nil {
		return nil, err
	}
	return layout.readInfo(r)
}

// snapshotLayout is the parsed directory of a container.
type snapshotLayout struct {
	compression Compression
	codec       codec.Codec
	sections    map[uint16]snapshotSectionEntry
}

func (l *snapshotLayout) readSection(r io.ReadSeeker, typ uint16) ([]byte, error) {
	entry, ok := l.sections[typ]
	if !ok {
		return nil, fmt.Errorf("snapshot missing section %d", typ)
	}
	if _, err := r.Seek(int64(entry.Offset), io.SeekStart); err != nil {
		return nil, err
	}
	cr := NewChecksumReader(r)
	data := make([]byte, entry.Len)
	if _, err := io.ReadFull(cr, data); err != nil {
		return nil, fmt.Errorf("snapshot: read section %d: %w", typ, err)
	}
	if err := cr.Verify(entry.Checksum); err != nil {
		return nil, err
	}
	return data, nil
}

func (l *snapshotLayout) readInfo(r io.ReadSeeker) (*SnapshotInfo, error) {
	infoBytes, err := l.readSection(r, snapshotSectionInfo)
	if err != nil {
		return nil, err
	}
	var info SnapshotInfo
	if err := l.codec.Unmarshal(infoBytes, &info); err != nil {
		return nil, fmt.Errorf("snapshot: decode info: %w", err)
	}
	return &info, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

func writeSnapshotDirectory(w io.Writer, entries []snapshotSectionEntry) error {
	// Directory header (12 bytes)
	// [0:4]  magic
	// [4:6]  version
	// [6:8]  reserved
	// [8:12] entry count
	var hdr [12]byte
	copy(hdr[0:4], snapshotDirMagic[:])
	binary.LittleEndian.PutUint16(hdr[4:6], snapshotFormatVersion)
	binary.LittleEndian.PutUint32(hdr[8:12], uint32(len(entries)))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}

	// Each entry is 32 bytes
	// [0:2]   type
	// [2:4]   reserved
	// [4:8]   checksum (CRC32C)
	// [8:16]  offset
	// [16:24] length
	// [24:32] reserved
	for _, e := range entries {
		var b [32]byte
		binary.LittleEndian.PutUint16(b[0:2], e.Type)
		binary.LittleEndian.PutUint32(b[4:8], e.Checksum)
		binary.LittleEndian.PutUint64(b[8:16], e.Offset)
		binary.LittleEndian.PutUint64(b[16:24], e.Len)
		if _, err := w.Write(b[:]); err != nil {
			return err
		}
	}
	return nil
}

func writeSnapshotFooter(w io.Writer, dirOffset, dirLen uint64) error {
	// Footer is 24 bytes
	// [0:4]   magic
	// [4:6]   version
	// [6:8]   reserved
	// [8:16]  directory offset
	// [16:24] directory length
	var b [24]byte
	copy(b[0:4], snapshotFooterMagic[:])
	binary.LittleEndian.PutUint16(b[4:6], snapshotFormatVersion)
	binary.LittleEndian.PutUint64(b[8:16], dirOffset)
	binary.LittleEndian.PutUint64(b[16:24], dirLen)
	_, err := w.Write(b[:])
	return err
}

func readSnapshotLayout(r io.ReadSeeker) (*snapshotLayout, error) {
	// Header
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	var hdr [16]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, err
	}
	if [4]byte(hdr[0:4]) != snapshotMagic {
		return nil, fmt.Errorf("unsupported snapshot format: bad magic")
	}
	ver := binary.LittleEndian.Uint16(hdr[4:6])
	if ver != snapshotFormatVersion {
		return nil, fmt.Errorf("unsupported snapshot format version: %d", ver)
	}
	compression := Compression(hdr[6])
	if !compression.valid() {
		return nil, fmt.Errorf("unsupported snapshot compression: %d", hdr[6])
	}
	nameLen := int(binary.LittleEndian.Uint16(hdr[8:10]))
	sectionCount := int(binary.LittleEndian.Uint16(hdr[10:12]))
	if sectionCount <= 0 {
		return nil, fmt.Errorf("invalid section count: %d", sectionCount)
	}

	nameBytes := make([]byte, nameLen)
	if nameLen > 0 {
		if _, err := io.ReadFull(r, nameBytes); err != nil {
			return nil, err
		}
	}
	c, ok := codec.ByName(string(nameBytes))
	if !ok {
		return nil, fmt.Errorf("unsupported snapshot codec %q", string(nameBytes))
	}

	// Footer (last 24 bytes)
	end, err := r.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, err
	}
	if end < 24 {
		return nil, fmt.Errorf("truncated snapshot")
	}
	if _, err := r.Seek(end-24, io.SeekStart); err != nil {
		return nil, err
	}
	var foot [24]byte
	if _, err := io.ReadFull(r, foot[:]); err != nil {
		return nil, err
	}
	if [4]byte(foot[0:4]) != snapshotFooterMagic {
		return nil, fmt.Errorf("unsupported snapshot format: missing footer")
	}
	fver := binary.LittleEndian.Uint16(foot[4:6])
	if fver != snapshotFormatVersion {
		return nil, fmt.Errorf("unsupported snapshot footer version: %d", fver)
	}

	const maxInt64u = uint64(^uint64(0) >> 1)
	dirOffsetU := binary.LittleEndian.Uint64(foot[8:16])
	dirLenU := binary.LittleEndian.Uint64(foot[16:24])
	if dirOffsetU > maxInt64u || dirLenU > maxInt64u {
		return nil, fmt.Errorf("invalid directory offsets")
	}
	dataEndU := uint64(end - 24)
	if dirLenU < 12 || dirOffsetU > dataEndU || dirLenU > dataEndU-dirOffsetU {
		return nil, fmt.Errorf("invalid directory range")
	}

	// Directory header
	if _, err := r.Seek(int64(dirOffsetU), io.SeekStart); err != nil {
		return nil, err
	}
	var dh [12]byte
	if _, err := io.ReadFull(r, dh[:]); err != nil {
		return nil, err
	}
	if [4]byte(dh[0:4]) != snapshotDirMagic {
		return nil, fmt.Errorf("invalid snapshot directory magic")
	}
	dver := binary.LittleEndian.Uint16(dh[4:6])
	if dver != snapshotFormatVersion {
		return nil, fmt.Errorf("unsupported snapshot directory version: %d", dver)
	}
	entryCount := int(binary.LittleEndian.Uint32(dh[8:12]))
	if entryCount != sectionCount {
		return nil, fmt.Errorf("directory entry count %d does not match header section count %d", entryCount, sectionCount)
	}

	sections := make(map[uint16]snapshotSectionEntry, entryCount)
	headerEndU := uint64(16 + nameLen)
	for i := 0; i < entryCount; i++ {
		var eb [32]byte
		if _, err := io.ReadFull(r, eb[:]); err != nil {
			return nil, err
		}
		typ := binary.LittleEndian.Uint16(eb[0:2])
		checksum := binary.LittleEndian.Uint32(eb[4:8])
		off := binary.LittleEndian.Uint64(eb[8:16])
		ln := binary.LittleEndian.Uint64(eb[16:24])
		if _, exists := sections[typ]; exists {
			return nil, fmt.Errorf("duplicate snapshot section type %d", typ)
		}

		// Sections must sit between the header and the directory.
		if off < headerEndU {
			return nil, fmt.Errorf("invalid snapshot section offset")
		}
		if off > dirOffsetU || ln > dirOffsetU-off {
			return nil, fmt.Errorf("invalid snapshot section range")
		}
		sections[typ] = snapshotSectionEntry{Type: typ, Offset: off, Len: ln, Checksum: checksum}
	}

	return &snapshotLayout{
		compression: compression,
		codec:       c,
		sections:    sections,
	}, nil
}
