package bloomgo

import (
	"context"
	"math"

	"github.com/hupe1980/bloomgo/internal/slots"
)

// CounterWidth selects the per-slot counter width in bits for counting
// variants.
type CounterWidth uint8

const (
	// CounterWidth4 packs two counters per byte, each counting to 15.
	CounterWidth4 CounterWidth = 4
	// CounterWidth8 counts to 255. This is the default.
	CounterWidth8 CounterWidth = 8
	// CounterWidth16 counts to 65535.
	CounterWidth16 CounterWidth = 16
	// CounterWidth32 counts to 2^32-1.
	CounterWidth32 CounterWidth = 32
	// CounterWidth64 counts to 2^64-1.
	CounterWidth64 CounterWidth = 64
)

// Valid reports whether w is a supported counter width.
func (w CounterWidth) Valid() bool {
	switch w {
	case CounterWidth4, CounterWidth8, CounterWidth16, CounterWidth32, CounterWidth64:
		return true
	}
	return false
}

// MaxValue returns the saturation ceiling of a counter of this width.
func (w CounterWidth) MaxValue() uint64 {
	return slots.MaxValue(int(w))
}

// CountingFilter stores a saturating counter per slot instead of a single
// bit, which makes elements removable and occurrence counts estimable.
//
// Counters saturate at the width ceiling and stay there; a saturated
// counter is never incremented or decremented again, so heavily shared
// slots degrade to plain Bloom behavior instead of corrupting neighbors.
type CountingFilter struct {
	name         string
	slotCount    uint64
	hashCount    uint32
	expected     uint64
	fpRate       float64
	counterWidth CounterWidth
	hasher       Hasher
	buf          *slots.Buffer
	scratch      []uint64
	metrics      MetricsCollector
	logger       *Logger
	closed       bool
}

var _ Filter = (*CountingFilter)(nil)

// NewCountingFilter creates a counting filter sized for the expected number
// of elements at the target false-positive rate. The counter width defaults
// to CounterWidth8 and can be changed with WithCounterWidth.
func NewCountingFilter(expectedElements uint64, fpRate float64, optFns ...Option) (*CountingFilter, error) {
	o := applyOptions(optFns)

	if err := validateName(o.name); err != nil {
		return nil, err
	}
	if err := o.rejectReadOnly(); err != nil {
		return nil, err
	}
	if !o.counterWidth.Valid() {
		return nil, &ParameterError{Param: "counterWidth", Reason: "must be 4, 8, 16, 32 or 64 bits"}
	}

	slotCount, err := OptimalSlotCount(expectedElements, fpRate)
	if err != nil {
		return nil, err
	}
	hashCount := OptimalHashCount(slotCount, expectedElements)

	buf, err := slots.New(int(o.counterWidth), slotCount)
	if err != nil {
		return nil, &ParameterError{Param: "expectedElements", Reason: err.Error()}
	}

	return &CountingFilter{
		name:         o.name,
		slotCount:    slotCount,
		hashCount:    hashCount,
		expected:     expectedElements,
		fpRate:       fpRate,
		counterWidth: o.counterWidth,
		hasher:       o.hasher,
		buf:          buf,
		scratch:      make([]uint64, hashCount),
		metrics:      o.metricsCollector,
		logger:       o.logger,
	}, nil
}

// Variant implements Filter.
func (f *CountingFilter) Variant() Variant { return VariantCounting }

// Name implements Filter.
func (f *CountingFilter) Name() string { return f.name }

// SetName implements Filter.
func (f *CountingFilter) SetName(name string) error {
	if f.closed {
		return ErrClosed
	}
	if err := validateName(name); err != nil {
		return err
	}
	f.name = name
	return nil
}

// SlotCount implements Filter.
func (f *CountingFilter) SlotCount() uint64 { return f.slotCount }

// HashCount implements Filter.
func (f *CountingFilter) HashCount() uint32 { return f.hashCount }

// ExpectedElements implements Filter.
func (f *CountingFilter) ExpectedElements() uint64 { return f.expected }

// TargetFalsePositiveRate implements Filter.
func (f *CountingFilter) TargetFalsePositiveRate() float64 { return f.fpRate }

// CounterWidth returns the configured per-slot counter width.
func (f *CountingFilter) CounterWidth() CounterWidth { return f.counterWidth }

// BufferBytes returns the packed size of the counter plane in bytes.
func (f *CountingFilter) BufferBytes() uint64 {
	return slots.BufferBytes(int(f.counterWidth), f.slotCount)
}

// Add implements Filter. Every position counter is incremented, saturating
// at the width ceiling.
func (f *CountingFilter) Add(element []byte) {
	if f.closed {
		return
	}

	derivePositions(f.scratch, f.hasher, element, f.slotCount)
	for _, pos := range f.scratch {
		f.buf.Increment(pos)
	}

	f.metrics.RecordAdd()
}

// AddString implements Filter.
func (f *CountingFilter) AddString(element string) {
	f.Add([]byte(element))
}

// Lookup implements Filter.
func (f *CountingFilter) Lookup(element []byte) bool {
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
func (f *CountingFilter) LookupString(element string) bool {
	return f.Lookup([]byte(element))
}

// LookupOrAdd implements Filter.
func (f *CountingFilter) LookupOrAdd(element []byte) bool {
	if f.closed {
		return false
	}

	derivePositions(f.scratch, f.hasher, element, f.slotCount)
	present := true
	for _, pos := range f.scratch {
		if f.buf.Read(pos) == 0 {
			present = false
		}
		f.buf.Increment(pos)
	}

	f.metrics.RecordAdd()
	f.metrics.RecordLookup(present)
	return present
}

// Remove decrements every position counter for element and reports whether
// it did. Removal is all-or-nothing: when any position counter is already
// zero the element cannot have been added, and no counter is touched.
//
// Removing an element more times than it was added corrupts membership
// answers for colliding elements, like any counting Bloom filter.
func (f *CountingFilter) Remove(element []byte) bool {
	if f.closed {
		return false
	}

	derivePositions(f.scratch, f.hasher, element, f.slotCount)
	for _, pos := range f.scratch {
		if f.buf.Read(pos) == 0 {
			f.metrics.RecordRemove(false)
			return false
		}
	}
	for _, pos := range f.scratch {
		f.buf.Decrement(pos)
	}

	f.metrics.RecordRemove(true)
	return true
}

// RemoveString removes a string element.
func (f *CountingFilter) RemoveString(element string) bool {
	return f.Remove([]byte(element))
}

// Count estimates how many times element was added, as the minimum over
// its position counters. Zero means definitely absent; nonzero values may
// overestimate under collisions but never underestimate.
func (f *CountingFilter) Count(element []byte) uint64 {
	if f.closed {
		return 0
	}

	derivePositions(f.scratch, f.hasher, element, f.slotCount)
	min := uint64(math.MaxUint64)
	for _, pos := range f.scratch {
		v := f.buf.Read(pos)
		if v == 0 {
			return 0
		}
		if v < min {
			min = v
		}
	}
	return min
}

// CountString estimates how many times a string element was added.
func (f *CountingFilter) CountString(element string) uint64 {
	return f.Count([]byte(element))
}

// ApplyLinearDecay subtracts amount from every nonzero counter, flooring at
// zero, and returns the number of counters it changed. Zero counters are
// skipped so decayed slots stay definitely absent.
func (f *CountingFilter) ApplyLinearDecay(amount uint64) uint64 {
	if f.closed || amount == 0 {
		return 0
	}

	var changed uint64
	for i := uint64(0); i < f.slotCount; i++ {
		v := f.buf.Read(i)
		if v == 0 {
			continue
		}
		if v <= amount {
			f.buf.Write(i, 0)
		} else {
			f.buf.Write(i, v-amount)
		}
		changed++
	}
	return changed
}

// ApplyExponentialDecay multiplies every nonzero counter by factor,
// truncating toward zero, and returns the number of counters it changed.
// factor must be in [0, 1]; values above one would grow counters and are
// rejected.
func (f *CountingFilter) ApplyExponentialDecay(factor float64) (uint64, error) {
	if f.closed {
		return 0, ErrClosed
	}
	if factor < 0 || factor > 1 || math.IsNaN(factor) {
		return 0, &ParameterError{Param: "factor", Reason: "must be in [0, 1]"}
	}

	var changed uint64
	for i := uint64(0); i < f.slotCount; i++ {
		v := f.buf.Read(i)
		if v == 0 {
			continue
		}
		decayed := uint64(float64(v) * factor)
		if decayed != v {
			f.buf.Write(i, decayed)
			changed++
		}
	}
	return changed, nil
}

// SaturationCount implements Filter.
func (f *CountingFilter) SaturationCount() uint64 {
	if f.closed {
		return 0
	}
	return f.buf.OccupiedCount()
}

// Saturation implements Filter.
func (f *CountingFilter) Saturation() float64 {
	if f.closed || f.slotCount == 0 {
		return 0
	}
	return float64(f.SaturationCount()) / float64(f.slotCount) * 100
}

// ForEachOccupied calls fn with the index of every nonzero counter in
// ascending order, stopping early if fn returns false.
func (f *CountingFilter) ForEachOccupied(fn func(slot uint64) bool) {
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
func (f *CountingFilter) ClearIfSaturationExceeds(threshold float64) bool {
	if f.closed {
		return false
	}
	if f.Saturation() <= threshold {
		return false
	}
	f.Clear()
	return true
}

// Clear implements Filter.
func (f *CountingFilter) Clear() {
	if f.closed {
		return
	}
	sat := f.Saturation()
	f.buf.Reset()
	f.logger.LogClear(context.Background(), f.name, sat)
}

// AverageCount returns the mean value of all nonzero counters, or zero for
// an empty filter.
func (f *CountingFilter) AverageCount() float64 {
	if f.closed {
		return 0
	}

	var mean float64
	var n uint64
	for i := uint64(0); i < f.slotCount; i++ {
		v := f.buf.Read(i)
		if v == 0 {
			continue
		}
		n++
		mean += (float64(v) - mean) / float64(n)
	}
	return mean
}

// EstimateFalsePositiveRate returns the expected false-positive rate at the
// current occupancy.
func (f *CountingFilter) EstimateFalsePositiveRate() float64 {
	if f.closed {
		return 0
	}
	return fillBasedFalsePositiveRate(f.SaturationCount(), f.slotCount, f.hashCount)
}

// Stats returns a point-in-time snapshot of the filter.
func (f *CountingFilter) Stats() CountingFilterStats {
	return CountingFilterStats{
		Name:                       f.name,
		SlotCount:                  f.slotCount,
		HashCount:                  f.hashCount,
		ExpectedElements:           f.expected,
		TargetFalsePositiveRate:    f.fpRate,
		CounterWidth:               f.counterWidth,
		BufferBytes:                f.BufferBytes(),
		SaturationCount:            f.SaturationCount(),
		Saturation:                 f.Saturation(),
		AverageCount:               f.AverageCount(),
		EstimatedFalsePositiveRate: f.EstimateFalsePositiveRate(),
	}
}

// Close implements Filter.
func (f *CountingFilter) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	f.buf = nil
	return nil
}

// CountingFilterStats is a point-in-time snapshot of a CountingFilter.
type CountingFilterStats struct {
	Name                       string       `json:"name"`
	SlotCount                  uint64       `json:"slot_count"`
	HashCount                  uint32       `json:"hash_count"`
	ExpectedElements           uint64       `json:"expected_elements"`
	TargetFalsePositiveRate    float64      `json:"target_false_positive_rate"`
	CounterWidth               CounterWidth `json:"counter_width_bits"`
	BufferBytes                uint64       `json:"buffer_bytes"`
	SaturationCount            uint64       `json:"saturation_count"`
	Saturation                 float64      `json:"saturation_pct"`
	AverageCount               float64      `json:"average_count"`
	EstimatedFalsePositiveRate float64      `json:"estimated_false_positive_rate"`
}
