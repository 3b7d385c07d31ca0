package bloomgo

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/hupe1980/bloomgo/internal/slots"
)

// Serialized filter layout, little-endian throughout:
//
//	[8]  magic, one per variant
//	[2]  format version
//	[2]  flags, low byte identifies the hasher
//	[256] name, NUL padded
//	[..] variant metadata (fixed size per variant)
//	[..] raw slot plane(s)
//
// The decaying counting variant stores the counter plane first, then the
// timestamp plane. Loaders verify the declared buffer size against the one
// the sizing fields imply, and reject streams with trailing bytes.
const formatVersion uint16 = 1

// maxNameBytes bounds filter names so they fit the fixed header field with
// a terminating NUL.
const maxNameBytes = 255

// maxHashCount bounds the per-element position count accepted from
// serialized headers. Legitimate sizing never gets anywhere close.
const maxHashCount = 1 << 16

var (
	magicBloom            = [8]byte{'!', 'b', 'l', 'o', 'o', 'm', 'f', '!'}
	magicCounting         = [8]byte{'!', 'c', 'b', 'l', 'o', 'o', 'm', '!'}
	magicDecaying         = [8]byte{'!', 't', 'd', 'b', 'l', 'o', 'f', '!'}
	magicDecayingCounting = [8]byte{'!', 't', 'd', 'c', 'b', 'l', 'm', '!'}
)

type fileHeader struct {
	Magic   [8]byte
	Version uint16
	Flags   uint16
	Name    [256]byte
}

type bloomMeta struct {
	SlotCount   uint64
	HashCount   uint64
	BufferBytes uint64
	Expected    uint64
	FPRate      float64
	Additions   uint64
}

type countingMeta struct {
	SlotCount        uint64
	HashCount        uint64
	CounterWidthBits uint8
	_                [7]byte
	BufferBytes      uint64
	Expected         uint64
	FPRate           float64
}

type decayingMeta struct {
	SlotCount           uint64
	HashCount           uint64
	TimestampWidthBytes uint8
	_                   [7]byte
	TimeoutSeconds      uint64
	EpochOffsetSeconds  uint64
	BufferBytes         uint64
	Expected            uint64
	FPRate              float64
}

type decayingCountingMeta struct {
	SlotCount           uint64
	HashCount           uint64
	CounterWidthBits    uint8
	TimestampWidthBytes uint8
	_                   [6]byte
	TimeoutSeconds      uint64
	EpochOffsetSeconds  uint64
	BufferBytes         uint64
	Expected            uint64
	FPRate              float64
}

// countingWriter tracks bytes written through it.
type countingWriter struct {
	w io.Writer
	n int64
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += int64(n)
	return n, err
}

func validateName(name string) error {
	if len(name) > maxNameBytes {
		return &ParameterError{Param: "name", Reason: "longer than 255 bytes"}
	}
	if bytes.IndexByte([]byte(name), 0) >= 0 {
		return &ParameterError{Param: "name", Reason: "contains a NUL byte"}
	}
	return nil
}

func newFileHeader(magic [8]byte, name string, h Hasher) fileHeader {
	hdr := fileHeader{
		Magic:   magic,
		Version: formatVersion,
		Flags:   uint16(hasherID(h)),
	}
	copy(hdr.Name[:], name)
	return hdr
}

func headerName(hdr *fileHeader) string {
	if i := bytes.IndexByte(hdr.Name[:], 0); i >= 0 {
		return string(hdr.Name[:i])
	}
	return string(hdr.Name[:])
}

func readFileHeader(r io.Reader) (fileHeader, error) {
	var hdr fileHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return hdr, translateError(err)
	}
	return hdr, nil
}

func checkVersion(hdr *fileHeader) error {
	if hdr.Version != formatVersion {
		return &FormatError{Reason: fmt.Sprintf("unsupported format version %d", hdr.Version)}
	}
	return nil
}

// resolveHasher picks the hasher for a loaded filter. The stored identity
// wins unless the caller passed WithHasher; a known stored hasher that
// contradicts an explicit known override is rejected rather than risking
// silent false negatives.
func resolveHasher(hdr *fileHeader, o *options) (Hasher, error) {
	storedID := uint8(hdr.Flags & 0xFF)
	stored, known := hasherByID(storedID)

	if o.hasherSet {
		if known && stored.Name() != o.hasher.Name() {
			return nil, &FormatError{Reason: fmt.Sprintf("stored hasher %q does not match configured %q", stored.Name(), o.hasher.Name())}
		}
		return o.hasher, nil
	}
	if !known {
		return nil, &FormatError{Reason: "filter was written with a custom hasher, pass WithHasher to load it"}
	}
	return stored, nil
}

func validateSizing(slotCount, hashCount, expected uint64, fpRate float64) error {
	if slotCount == 0 {
		return &FormatError{Reason: "zero slot count"}
	}
	if hashCount == 0 || hashCount > maxHashCount {
		return &FormatError{Reason: fmt.Sprintf("hash count %d out of range", hashCount)}
	}
	if expected == 0 {
		return &FormatError{Reason: "zero expected elements"}
	}
	if math.IsNaN(fpRate) || fpRate <= 0 || fpRate >= 1 {
		return &FormatError{Reason: fmt.Sprintf("false-positive rate %v out of range", fpRate)}
	}
	return nil
}

func checkBufferBytes(declared, computed, limit uint64) error {
	if declared != computed {
		return &FormatError{Reason: fmt.Sprintf("declared buffer size %d does not match sizing fields (%d)", declared, computed)}
	}
	if declared > limit {
		return fmt.Errorf("%w: declared buffer of %d bytes exceeds limit of %d", ErrOutOfMemory, declared, limit)
	}
	return nil
}

func readBuffer(r io.Reader, n uint64) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, translateError(err)
	}
	return buf, nil
}

// ensureEOF rejects streams with bytes left after the filter payload.
func ensureEOF(r io.Reader) error {
	var tail [1]byte
	_, err := io.ReadFull(r, tail[:])
	if err == nil {
		return &FormatError{Reason: "trailing data after filter payload"}
	}
	if err != io.EOF {
		return translateError(err)
	}
	return nil
}

// WriteTo serializes the filter. It implements io.WriterTo.
func (f *BloomFilter) WriteTo(w io.Writer) (int64, error) {
	if f.closed {
		return 0, ErrClosed
	}

	start := time.Now()
	cw := &countingWriter{w: w}
	err := f.encode(cw)
	f.metrics.RecordSave(cw.n, time.Since(start), err)
	f.logger.LogSave(context.Background(), VariantBloom, f.name, cw.n, err)
	return cw.n, translateError(err)
}

func (f *BloomFilter) encode(w io.Writer) error {
	hdr := newFileHeader(magicBloom, f.name, f.hasher)
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return err
	}
	meta := bloomMeta{
		SlotCount:   f.slotCount,
		HashCount:   uint64(f.hashCount),
		BufferBytes: f.BufferBytes(),
		Expected:    f.expected,
		FPRate:      f.fpRate,
		Additions:   f.additions,
	}
	if err := binary.Write(w, binary.LittleEndian, meta); err != nil {
		return err
	}
	_, err := w.Write(f.buf.Bytes())
	return err
}

// WriteTo serializes the filter. It implements io.WriterTo.
func (f *CountingFilter) WriteTo(w io.Writer) (int64, error) {
	if f.closed {
		return 0, ErrClosed
	}

	start := time.Now()
	cw := &countingWriter{w: w}
	err := f.encode(cw)
	f.metrics.RecordSave(cw.n, time.Since(start), err)
	f.logger.LogSave(context.Background(), VariantCounting, f.name, cw.n, err)
	return cw.n, translateError(err)
}

func (f *CountingFilter) encode(w io.Writer) error {
	hdr := newFileHeader(magicCounting, f.name, f.hasher)
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return err
	}
	meta := countingMeta{
		SlotCount:        f.slotCount,
		HashCount:        uint64(f.hashCount),
		CounterWidthBits: uint8(f.counterWidth),
		BufferBytes:      f.BufferBytes(),
		Expected:         f.expected,
		FPRate:           f.fpRate,
	}
	if err := binary.Write(w, binary.LittleEndian, meta); err != nil {
		return err
	}
	_, err := w.Write(f.buf.Bytes())
	return err
}

// WriteTo serializes the filter, capturing the elapsed logical clock so
// expiry state survives a reload. It implements io.WriterTo.
func (f *DecayingFilter) WriteTo(w io.Writer) (int64, error) {
	if f.closed {
		return 0, ErrClosed
	}

	start := time.Now()
	cw := &countingWriter{w: w}
	err := f.encode(cw)
	f.metrics.RecordSave(cw.n, time.Since(start), err)
	f.logger.LogSave(context.Background(), VariantDecaying, f.name, cw.n, err)
	return cw.n, translateError(err)
}

func (f *DecayingFilter) encode(w io.Writer) error {
	hdr := newFileHeader(magicDecaying, f.name, f.hasher)
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return err
	}
	meta := decayingMeta{
		SlotCount:           f.slotCount,
		HashCount:           uint64(f.hashCount),
		TimestampWidthBytes: uint8(f.tsWidth.Bytes()),
		TimeoutSeconds:      f.timeout,
		EpochOffsetSeconds:  f.elapsedSeconds(),
		BufferBytes:         f.BufferBytes(),
		Expected:            f.expected,
		FPRate:              f.fpRate,
	}
	if err := binary.Write(w, binary.LittleEndian, meta); err != nil {
		return err
	}
	_, err := w.Write(f.buf.Bytes())
	return err
}

// WriteTo serializes the filter, counter plane first, then the timestamp
// plane. It implements io.WriterTo.
func (f *DecayingCountingFilter) WriteTo(w io.Writer) (int64, error) {
	if f.closed {
		return 0, ErrClosed
	}

	start := time.Now()
	cw := &countingWriter{w: w}
	err := f.encode(cw)
	f.metrics.RecordSave(cw.n, time.Since(start), err)
	f.logger.LogSave(context.Background(), VariantDecayingCounting, f.name, cw.n, err)
	return cw.n, translateError(err)
}

func (f *DecayingCountingFilter) encode(w io.Writer) error {
	hdr := newFileHeader(magicDecayingCounting, f.name, f.hasher)
	if err := binary.Write(w, binary.LittleEndian, hdr); err != nil {
		return err
	}
	meta := decayingCountingMeta{
		SlotCount:           f.slotCount,
		HashCount:           uint64(f.hashCount),
		CounterWidthBits:    uint8(f.counterWidth),
		TimestampWidthBytes: uint8(f.tsWidth.Bytes()),
		TimeoutSeconds:      f.timeout,
		EpochOffsetSeconds:  f.elapsedSeconds(),
		BufferBytes:         f.BufferBytes(),
		Expected:            f.expected,
		FPRate:              f.fpRate,
	}
	if err := binary.Write(w, binary.LittleEndian, meta); err != nil {
		return err
	}
	if _, err := w.Write(f.counters.Bytes()); err != nil {
		return err
	}
	_, err := w.Write(f.stamps.Bytes())
	return err
}

// Load deserializes a filter of any variant, dispatching on the magic
// bytes. Use the variant-specific loaders when the type is known up front.
func Load(r io.Reader, optFns ...Option) (Filter, error) {
	o := applyOptions(optFns)

	hdr, err := readFileHeader(r)
	if err != nil {
		return nil, err
	}

	switch hdr.Magic {
	case magicBloom:
		return finishLoadBloom(r, &hdr, &o)
	case magicCounting:
		return finishLoadCounting(r, &hdr, &o)
	case magicDecaying:
		return finishLoadDecaying(r, &hdr, &o)
	case magicDecayingCounting:
		return finishLoadDecayingCounting(r, &hdr, &o)
	default:
		return nil, &FormatError{Reason: fmt.Sprintf("unknown magic %q", hdr.Magic)}
	}
}

// LoadBloomFilter deserializes a plain Bloom filter.
func LoadBloomFilter(r io.Reader, optFns ...Option) (*BloomFilter, error) {
	o := applyOptions(optFns)

	hdr, err := readFileHeader(r)
	if err != nil {
		return nil, err
	}
	if hdr.Magic != magicBloom {
		return nil, &FormatError{Reason: fmt.Sprintf("magic %q is not a plain Bloom filter", hdr.Magic)}
	}
	return finishLoadBloom(r, &hdr, &o)
}

func finishLoadBloom(r io.Reader, hdr *fileHeader, o *options) (*BloomFilter, error) {
	start := time.Now()
	f, err := decodeBloom(r, hdr, o)
	var bufBytes int64
	if f != nil {
		bufBytes = int64(f.BufferBytes())
	}
	o.metricsCollector.RecordLoad(bufBytes, time.Since(start), err)
	o.logger.LogLoad(context.Background(), VariantBloom, headerName(hdr), uint64(bufBytes), err)
	return f, err
}

func decodeBloom(r io.Reader, hdr *fileHeader, o *options) (*BloomFilter, error) {
	if err := checkVersion(hdr); err != nil {
		return nil, err
	}
	hasher, err := resolveHasher(hdr, o)
	if err != nil {
		return nil, err
	}

	var meta bloomMeta
	if err := binary.Read(r, binary.LittleEndian, &meta); err != nil {
		return nil, translateError(err)
	}
	if err := validateSizing(meta.SlotCount, meta.HashCount, meta.Expected, meta.FPRate); err != nil {
		return nil, err
	}
	if err := checkBufferBytes(meta.BufferBytes, slots.BufferBytes(slots.Width1, meta.SlotCount), o.maxBufferBytes); err != nil {
		return nil, err
	}

	data, err := readBuffer(r, meta.BufferBytes)
	if err != nil {
		return nil, err
	}
	if err := ensureEOF(r); err != nil {
		return nil, err
	}

	return newBloomFilterFromParts(headerName(hdr), meta.SlotCount, uint32(meta.HashCount), meta.Expected, meta.FPRate, meta.Additions, data, hasher, *o)
}

// LoadCountingFilter deserializes a counting filter.
func LoadCountingFilter(r io.Reader, optFns ...Option) (*CountingFilter, error) {
	o := applyOptions(optFns)

	hdr, err := readFileHeader(r)
	if err != nil {
		return nil, err
	}
	if hdr.Magic != magicCounting {
		return nil, &FormatError{Reason: fmt.Sprintf("magic %q is not a counting filter", hdr.Magic)}
	}
	return finishLoadCounting(r, &hdr, &o)
}

func finishLoadCounting(r io.Reader, hdr *fileHeader, o *options) (*CountingFilter, error) {
	start := time.Now()
	f, err := decodeCounting(r, hdr, o)
	var bufBytes int64
	if f != nil {
		bufBytes = int64(f.BufferBytes())
	}
	o.metricsCollector.RecordLoad(bufBytes, time.Since(start), err)
	o.logger.LogLoad(context.Background(), VariantCounting, headerName(hdr), uint64(bufBytes), err)
	return f, err
}

func decodeCounting(r io.Reader, hdr *fileHeader, o *options) (*CountingFilter, error) {
	if err := checkVersion(hdr); err != nil {
		return nil, err
	}
	if err := o.rejectReadOnly(); err != nil {
		return nil, err
	}
	hasher, err := resolveHasher(hdr, o)
	if err != nil {
		return nil, err
	}

	var meta countingMeta
	if err := binary.Read(r, binary.LittleEndian, &meta); err != nil {
		return nil, translateError(err)
	}
	if err := validateSizing(meta.SlotCount, meta.HashCount, meta.Expected, meta.FPRate); err != nil {
		return nil, err
	}
	width := CounterWidth(meta.CounterWidthBits)
	if !width.Valid() {
		return nil, &FormatError{Reason: fmt.Sprintf("counter width %d out of range", meta.CounterWidthBits)}
	}
	if err := checkBufferBytes(meta.BufferBytes, slots.BufferBytes(int(width), meta.SlotCount), o.maxBufferBytes); err != nil {
		return nil, err
	}

	data, err := readBuffer(r, meta.BufferBytes)
	if err != nil {
		return nil, err
	}
	if err := ensureEOF(r); err != nil {
		return nil, err
	}

	buf, err := slots.FromBytes(int(width), meta.SlotCount, data)
	if err != nil {
		return nil, &FormatError{Reason: err.Error()}
	}

	return &CountingFilter{
		name:         headerName(hdr),
		slotCount:    meta.SlotCount,
		hashCount:    uint32(meta.HashCount),
		expected:     meta.Expected,
		fpRate:       meta.FPRate,
		counterWidth: width,
		hasher:       hasher,
		buf:          buf,
		scratch:      make([]uint64, meta.HashCount),
		metrics:      o.metricsCollector,
		logger:       o.logger,
	}, nil
}

// LoadDecayingFilter deserializes a decaying filter. The logical clock
// resumes from the elapsed value captured at save time, so entry ages keep
// counting across the reload.
func LoadDecayingFilter(r io.Reader, optFns ...Option) (*DecayingFilter, error) {
	o := applyOptions(optFns)

	hdr, err := readFileHeader(r)
	if err != nil {
		return nil, err
	}
	if hdr.Magic != magicDecaying {
		return nil, &FormatError{Reason: fmt.Sprintf("magic %q is not a decaying filter", hdr.Magic)}
	}
	return finishLoadDecaying(r, &hdr, &o)
}

func finishLoadDecaying(r io.Reader, hdr *fileHeader, o *options) (*DecayingFilter, error) {
	start := time.Now()
	f, err := decodeDecaying(r, hdr, o)
	var bufBytes int64
	if f != nil {
		bufBytes = int64(f.BufferBytes())
	}
	o.metricsCollector.RecordLoad(bufBytes, time.Since(start), err)
	o.logger.LogLoad(context.Background(), VariantDecaying, headerName(hdr), uint64(bufBytes), err)
	return f, err
}

// epochFromOffset rebuilds the filter epoch from the elapsed seconds
// captured at save time. The offset is reduced modulo the wheel period
// first, which preserves every stamp's age while keeping the epoch within
// time.Duration range.
func epochFromOffset(now func() time.Time, offsetSeconds, period uint64) (time.Time, error) {
	offsetSeconds %= period
	if offsetSeconds > uint64(math.MaxInt64/int64(time.Second)) {
		return time.Time{}, &FormatError{Reason: "epoch offset out of range"}
	}
	return now().Add(-time.Duration(offsetSeconds) * time.Second), nil
}

func timestampWidthFromBytes(b uint8) (TimestampWidth, error) {
	w := TimestampWidth(uint16(b) * 8)
	if !w.Valid() {
		return 0, &FormatError{Reason: fmt.Sprintf("timestamp width %d bytes out of range", b)}
	}
	return w, nil
}

func decodeDecaying(r io.Reader, hdr *fileHeader, o *options) (*DecayingFilter, error) {
	if err := checkVersion(hdr); err != nil {
		return nil, err
	}
	if err := o.rejectReadOnly(); err != nil {
		return nil, err
	}
	hasher, err := resolveHasher(hdr, o)
	if err != nil {
		return nil, err
	}

	var meta decayingMeta
	if err := binary.Read(r, binary.LittleEndian, &meta); err != nil {
		return nil, translateError(err)
	}
	if err := validateSizing(meta.SlotCount, meta.HashCount, meta.Expected, meta.FPRate); err != nil {
		return nil, err
	}
	tsWidth, err := timestampWidthFromBytes(meta.TimestampWidthBytes)
	if err != nil {
		return nil, err
	}
	if meta.TimeoutSeconds >= tsWidth.WheelPeriod() {
		return nil, &FormatError{Reason: "timeout not below the timestamp wheel period"}
	}
	if err := checkBufferBytes(meta.BufferBytes, slots.BufferBytes(int(tsWidth), meta.SlotCount), o.maxBufferBytes); err != nil {
		return nil, err
	}

	data, err := readBuffer(r, meta.BufferBytes)
	if err != nil {
		return nil, err
	}
	if err := ensureEOF(r); err != nil {
		return nil, err
	}

	buf, err := slots.FromBytes(int(tsWidth), meta.SlotCount, data)
	if err != nil {
		return nil, &FormatError{Reason: err.Error()}
	}
	epoch, err := epochFromOffset(o.now, meta.EpochOffsetSeconds, tsWidth.WheelPeriod())
	if err != nil {
		return nil, err
	}

	return &DecayingFilter{
		name:      headerName(hdr),
		slotCount: meta.SlotCount,
		hashCount: uint32(meta.HashCount),
		expected:  meta.Expected,
		fpRate:    meta.FPRate,
		timeout:   meta.TimeoutSeconds,
		tsWidth:   tsWidth,
		period:    tsWidth.WheelPeriod(),
		epoch:     epoch,
		now:       o.now,
		hasher:    hasher,
		buf:       buf,
		scratch:   make([]uint64, meta.HashCount),
		metrics:   o.metricsCollector,
		logger:    o.logger,
	}, nil
}

// LoadDecayingCountingFilter deserializes a decaying counting filter.
func LoadDecayingCountingFilter(r io.Reader, optFns ...Option) (*DecayingCountingFilter, error) {
	o := applyOptions(optFns)

	hdr, err := readFileHeader(r)
	if err != nil {
		return nil, err
	}
	if hdr.Magic != magicDecayingCounting {
		return nil, &FormatError{Reason: fmt.Sprintf("magic %q is not a decaying counting filter", hdr.Magic)}
	}
	return finishLoadDecayingCounting(r, &hdr, &o)
}

func finishLoadDecayingCounting(r io.Reader, hdr *fileHeader, o *options) (*DecayingCountingFilter, error) {
	start := time.Now()
	f, err := decodeDecayingCounting(r, hdr, o)
	var bufBytes int64
	if f != nil {
		bufBytes = int64(f.BufferBytes())
	}
	o.metricsCollector.RecordLoad(bufBytes, time.Since(start), err)
	o.logger.LogLoad(context.Background(), VariantDecayingCounting, headerName(hdr), uint64(bufBytes), err)
	return f, err
}

func decodeDecayingCounting(r io.Reader, hdr *fileHeader, o *options) (*DecayingCountingFilter, error) {
	if err := checkVersion(hdr); err != nil {
		return nil, err
	}
	if err := o.rejectReadOnly(); err != nil {
		return nil, err
	}
	hasher, err := resolveHasher(hdr, o)
	if err != nil {
		return nil, err
	}

	var meta decayingCountingMeta
	if err := binary.Read(r, binary.LittleEndian, &meta); err != nil {
		return nil, translateError(err)
	}
	if err := validateSizing(meta.SlotCount, meta.HashCount, meta.Expected, meta.FPRate); err != nil {
		return nil, err
	}
	counterWidth := CounterWidth(meta.CounterWidthBits)
	if !counterWidth.Valid() || counterWidth == CounterWidth4 {
		return nil, &FormatError{Reason: fmt.Sprintf("counter width %d out of range", meta.CounterWidthBits)}
	}
	tsWidth, err := timestampWidthFromBytes(meta.TimestampWidthBytes)
	if err != nil {
		return nil, err
	}
	if meta.TimeoutSeconds >= tsWidth.WheelPeriod() {
		return nil, &FormatError{Reason: "timeout not below the timestamp wheel period"}
	}

	counterBytes := slots.BufferBytes(int(counterWidth), meta.SlotCount)
	stampBytes := slots.BufferBytes(int(tsWidth), meta.SlotCount)
	if err := checkBufferBytes(meta.BufferBytes, counterBytes+stampBytes, o.maxBufferBytes); err != nil {
		return nil, err
	}

	counterData, err := readBuffer(r, counterBytes)
	if err != nil {
		return nil, err
	}
	stampData, err := readBuffer(r, stampBytes)
	if err != nil {
		return nil, err
	}
	if err := ensureEOF(r); err != nil {
		return nil, err
	}

	counters, err := slots.FromBytes(int(counterWidth), meta.SlotCount, counterData)
	if err != nil {
		return nil, &FormatError{Reason: err.Error()}
	}
	stamps, err := slots.FromBytes(int(tsWidth), meta.SlotCount, stampData)
	if err != nil {
		return nil, &FormatError{Reason: err.Error()}
	}
	epoch, err := epochFromOffset(o.now, meta.EpochOffsetSeconds, tsWidth.WheelPeriod())
	if err != nil {
		return nil, err
	}

	return &DecayingCountingFilter{
		name:         headerName(hdr),
		slotCount:    meta.SlotCount,
		hashCount:    uint32(meta.HashCount),
		expected:     meta.Expected,
		fpRate:       meta.FPRate,
		timeout:      meta.TimeoutSeconds,
		counterWidth: counterWidth,
		tsWidth:      tsWidth,
		period:       tsWidth.WheelPeriod(),
		epoch:        epoch,
		now:          o.now,
		hasher:       hasher,
		counters:     counters,
		stamps:       stamps,
		scratch:      make([]uint64, meta.HashCount),
		metrics:      o.metricsCollector,
		logger:       o.logger,
	}, nil
}

// LoadBytes deserializes a filter of any variant from an in-memory buffer.
func LoadBytes(data []byte, optFns ...Option) (Filter, error) {
	return Load(bytes.NewReader(data), optFns...)
}

// LoadBloomFilterBytes deserializes a plain Bloom filter whose bit plane
// aliases data instead of copying it. Intended for memory-mapped read
// paths; mutating the returned filter writes into data, so pass
// WithReadOnly when data must not be written, e.g. a PROT_READ mapping.
func LoadBloomFilterBytes(data []byte, optFns ...Option) (*BloomFilter, error) {
	o := applyOptions(optFns)

	r := bytes.NewReader(data)
	hdr, err := readFileHeader(r)
	if err != nil {
		return nil, err
	}
	if hdr.Magic != magicBloom {
		return nil, &FormatError{Reason: fmt.Sprintf("magic %q is not a plain Bloom filter", hdr.Magic)}
	}
	if err := checkVersion(&hdr); err != nil {
		return nil, err
	}
	hasher, err := resolveHasher(&hdr, &o)
	if err != nil {
		return nil, err
	}

	var meta bloomMeta
	if err := binary.Read(r, binary.LittleEndian, &meta); err != nil {
		return nil, translateError(err)
	}
	if err := validateSizing(meta.SlotCount, meta.HashCount, meta.Expected, meta.FPRate); err != nil {
		return nil, err
	}
	if err := checkBufferBytes(meta.BufferBytes, slots.BufferBytes(slots.Width1, meta.SlotCount), o.maxBufferBytes); err != nil {
		return nil, err
	}

	offset := len(data) - r.Len()
	if uint64(len(data)-offset) != meta.BufferBytes {
		return nil, &FormatError{Reason: fmt.Sprintf("payload of %d bytes does not match declared buffer of %d", len(data)-offset, meta.BufferBytes)}
	}

	return newBloomFilterFromParts(headerName(&hdr), meta.SlotCount, uint32(meta.HashCount), meta.Expected, meta.FPRate, meta.Additions, data[offset:], hasher, o)
}
