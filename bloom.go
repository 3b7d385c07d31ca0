package bloomgo

import (
	"context"

	"github.com/hupe1980/bloomgo/internal/slots"
)

// BloomFilter is the plain variant: one bit per slot. It supports adds and
// lookups but no removal, and its memory never shrinks.
//
// Lookups may return false positives at the configured rate. They never
// return false negatives.
type BloomFilter struct {
	name      string
	slotCount uint64
	hashCount uint32
	expected  uint64
	fpRate    float64
	additions uint64
	hasher    Hasher
	buf       *slots.Buffer
	scratch   []uint64
	metrics   MetricsCollector
	logger    *Logger
	readOnly  bool
	closed    bool
}

var _ Filter = (*BloomFilter)(nil)

// NewBloomFilter creates a plain Bloom filter sized for the expected number
// of elements at the target false-positive rate.
func NewBloomFilter(expectedElements uint64, fpRate float64, optFns ...Option) (*BloomFilter, error) {
	o := applyOptions(optFns)

	if err := validateName(o.name); err != nil {
		return nil, err
	}
	slotCount, err := OptimalSlotCount(expectedElements, fpRate)
	if err != nil {
		return nil, err
	}
	hashCount := OptimalHashCount(slotCount, expectedElements)

	buf, err := slots.New(slots.Width1, slotCount)
	if err != nil {
		return nil, &ParameterError{Param: "expectedElements", Reason: err.Error()}
	}

	return &BloomFilter{
		name:      o.name,
		slotCount: slotCount,
		hashCount: hashCount,
		expected:  expectedElements,
		fpRate:    fpRate,
		hasher:    o.hasher,
		buf:       buf,
		scratch:   make([]uint64, hashCount),
		metrics:   o.metricsCollector,
		logger:    o.logger,
		readOnly:  o.readOnly,
	}, nil
}

// newBloomFilterFromParts assembles a filter around an existing bit plane.
// Used by the load path and by set operations; data length must equal the
// packed size for slotCount bits.
func newBloomFilterFromParts(name string, slotCount uint64, hashCount uint32, expected uint64, fpRate float64, additions uint64, data []byte, hasher Hasher, o options) (*BloomFilter, error) {
	buf, err := slots.FromBytes(slots.Width1, slotCount, data)
	if err != nil {
		return nil, &FormatError{Reason: err.Error()}
	}
	return &BloomFilter{
		name:      name,
		slotCount: slotCount,
		hashCount: hashCount,
		expected:  expected,
		fpRate:    fpRate,
		additions: additions,
		hasher:    hasher,
		buf:       buf,
		scratch:   make([]uint64, hashCount),
		metrics:   o.metricsCollector,
		logger:    o.logger,
		readOnly:  o.readOnly,
	}, nil
}

// Variant implements Filter.
func (f *BloomFilter) Variant() Variant { return VariantBloom }

// Name implements Filter.
func (f *BloomFilter) Name() string { return f.name }

// SetName implements Filter.
func (f *BloomFilter) SetName(name string) error {
	if f.closed {
		return ErrClosed
	}
	if f.readOnly {
		return ErrReadOnly
	}
	if err := validateName(name); err != nil {
		return err
	}
	f.name = name
	return nil
}

// SlotCount implements Filter.
func (f *BloomFilter) SlotCount() uint64 { return f.slotCount }

// HashCount implements Filter.
func (f *BloomFilter) HashCount() uint32 { return f.hashCount }

// ExpectedElements implements Filter.
func (f *BloomFilter) ExpectedElements() uint64 { return f.expected }

// TargetFalsePositiveRate implements Filter.
func (f *BloomFilter) TargetFalsePositiveRate() float64 { return f.fpRate }

// BufferBytes returns the packed size of the bit plane in bytes.
func (f *BloomFilter) BufferBytes() uint64 {
	return slots.BufferBytes(slots.Width1, f.slotCount)
}

// Additions returns how many adds actually changed the filter. Adding an
// element whose bits were all set already does not count.
func (f *BloomFilter) Additions() uint64 { return f.additions }

// ReadOnly reports whether the filter was loaded in read-only mode.
func (f *BloomFilter) ReadOnly() bool { return f.readOnly }

// Add implements Filter.
func (f *BloomFilter) Add(element []byte) {
	if f.closed || f.readOnly {
		return
	}
	f.setAll(element)
	f.metrics.RecordAdd()
}

// AddString implements Filter.
func (f *BloomFilter) AddString(element string) {
	f.Add([]byte(element))
}

// Lookup implements Filter.
func (f *BloomFilter) Lookup(element []byte) bool {
	if f.closed {
		return false
	}

	derivePositions(f.scratch, f.hasher, element, f.slotCount)
	hit := true
	for _, pos := range f.scratch {
		if f.buf.Read(pos) == 0 {
			hit = false
			break
		}
	}

	f.metrics.RecordLookup(hit)
	return hit
}

// LookupString implements Filter.
func (f *BloomFilter) LookupString(element string) bool {
	return f.Lookup([]byte(element))
}

// LookupOrAdd implements Filter.
func (f *BloomFilter) LookupOrAdd(element []byte) bool {
	if f.closed {
		return false
	}
	if f.readOnly {
		return f.Lookup(element)
	}

	present := f.setAll(element)
	f.metrics.RecordAdd()
	f.metrics.RecordLookup(present)
	return present
}

// setAll sets every position for element and reports whether all bits were
// set before the call.
func (f *BloomFilter) setAll(element []byte) bool {
	derivePositions(f.scratch, f.hasher, element, f.slotCount)
	present := true
	for _, pos := range f.scratch {
		if f.buf.Read(pos) == 0 {
			present = false
			f.buf.Write(pos, 1)
		}
	}
	if !present {
		f.additions++
	}
	return present
}

// SaturationCount implements Filter.
func (f *BloomFilter) SaturationCount() uint64 {
	if f.closed {
		return 0
	}
	return f.buf.OccupiedCount()
}

// Saturation implements Filter.
func (f *BloomFilter) Saturation() float64 {
	if f.closed || f.slotCount == 0 {
		return 0
	}
	return float64(f.SaturationCount()) / float64(f.slotCount) * 100
}

// ForEachOccupied calls fn with the index of every set slot in ascending
// order, stopping early if fn returns false.
func (f *BloomFilter) ForEachOccupied(fn func(slot uint64) bool) {
	if f.closed {
		return
	}
	for i := uint64(0); i < f.slotCount; i++ {
		if f.buf.Read(i) != 0 && !fn(i) {
			return
		}
	}
}

// ClearIfSaturationExceeds implements Filter.
func (f *BloomFilter) ClearIfSaturationExceeds(threshold float64) bool {
	if f.closed || f.readOnly {
		return false
	}
	if f.Saturation() <= threshold {
		return false
	}
	f.Clear()
	return true
}

// Clear implements Filter.
func (f *BloomFilter) Clear() {
	if f.closed || f.readOnly {
		return
	}
	sat := f.Saturation()
	f.buf.Reset()
	f.additions = 0
	f.logger.LogClear(context.Background(), f.name, sat)
}

// Capacity returns how much of the design capacity is used, as a percentage
// of effective additions over expected elements. Values above 100 mean the
// filter is overfilled and its false-positive rate has degraded.
func (f *BloomFilter) Capacity() float64 {
	if f.expected == 0 {
		return 0
	}
	return float64(f.additions) / float64(f.expected) * 100
}

// EstimateFalsePositiveRate returns the expected false-positive rate at the
// current fill level.
func (f *BloomFilter) EstimateFalsePositiveRate() float64 {
	if f.closed {
		return 0
	}
	return estimateFalsePositiveRate(f.slotCount, f.hashCount, f.additions)
}

// Stats returns a point-in-time snapshot of the filter.
func (f *BloomFilter) Stats() BloomFilterStats {
	return BloomFilterStats{
		Name:                       f.name,
		SlotCount:                  f.slotCount,
		HashCount:                  f.hashCount,
		ExpectedElements:           f.expected,
		TargetFalsePositiveRate:    f.fpRate,
		BufferBytes:                f.BufferBytes(),
		Additions:                  f.additions,
		SaturationCount:            f.SaturationCount(),
		Saturation:                 f.Saturation(),
		Capacity:                   f.Capacity(),
		EstimatedFalsePositiveRate: f.EstimateFalsePositiveRate(),
	}
}

// Close implements Filter.
func (f *BloomFilter) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	f.buf = nil
	return nil
}

// BloomFilterStats is a point-in-time snapshot of a BloomFilter.
type BloomFilterStats struct {
	Name                       string  `json:"name"`
	SlotCount                  uint64  `json:"slot_count"`
	HashCount                  uint32  `json:"hash_count"`
	ExpectedElements           uint64  `json:"expected_elements"`
	TargetFalsePositiveRate    float64 `json:"target_false_positive_rate"`
	BufferBytes                uint64  `json:"buffer_bytes"`
	Additions                  uint64  `json:"additions"`
	SaturationCount            uint64  `json:"saturation_count"`
	Saturation                 float64 `json:"saturation_pct"`
	Capacity                   float64 `json:"capacity_pct"`
	EstimatedFalsePositiveRate float64 `json:"estimated_false_positive_rate"`
}
