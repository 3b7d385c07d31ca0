package bloomgo

import (
	"context"
	"math"
	"time"

	"github.com/hupe1980/bloomgo/internal/slots"
)

// TimestampWidth selects the per-slot timestamp width in bits for decaying
// variants.
type TimestampWidth uint8

const (
	// TimestampWidth8 stores one-byte timestamps on a 255 second wheel.
	TimestampWidth8 TimestampWidth = 8
	// TimestampWidth16 stores two-byte timestamps, wheel of about 18 hours.
	TimestampWidth16 TimestampWidth = 16
	// TimestampWidth32 stores four-byte timestamps, wheel of about 136 years.
	TimestampWidth32 TimestampWidth = 32
	// TimestampWidth64 stores eight-byte timestamps.
	TimestampWidth64 TimestampWidth = 64
)

// Valid reports whether w is a supported timestamp width.
func (w TimestampWidth) Valid() bool {
	switch w {
	case TimestampWidth8, TimestampWidth16, TimestampWidth32, TimestampWidth64:
		return true
	}
	return false
}

// Bytes returns the timestamp width in bytes.
func (w TimestampWidth) Bytes() int { return int(w) / 8 }

// WheelPeriod returns the number of distinct logical seconds the width can
// represent. Stored timestamps live in [1, WheelPeriod]; zero marks an
// empty slot.
func (w TimestampWidth) WheelPeriod() uint64 {
	return slots.MaxValue(int(w))
}

// timestampWidthFor picks the narrowest width whose wheel period exceeds
// the timeout.
func timestampWidthFor(timeoutSeconds uint64) TimestampWidth {
	switch {
	case timeoutSeconds < math.MaxUint8:
		return TimestampWidth8
	case timeoutSeconds < math.MaxUint16:
		return TimestampWidth16
	case timeoutSeconds < math.MaxUint32:
		return TimestampWidth32
	default:
		return TimestampWidth64
	}
}

// modAge returns the modular distance from stamp to now on a wheel of the
// given period. Both stamps live in [1, period], so a now smaller than
// stamp means the clock has wrapped since the stamp was written.
func modAge(now, stamp, period uint64) uint64 {
	if now >= stamp {
		return now - stamp
	}
	return period - stamp + now
}

// DecayingFilter is a Bloom filter whose entries expire. Each slot stores
// the logical second it was last touched; entries older than the timeout
// stop matching lookups without any explicit removal.
//
// Logical seconds count from the filter epoch and wrap on a modular wheel
// sized by the timestamp width, so expiry keeps working after the timer
// wraps. Entries older than a full wheel period alias back into the fresh
// range; size the width so the period comfortably exceeds the timeout.
type DecayingFilter struct {
	name      string
	slotCount uint64
	hashCount uint32
	expected  uint64
	fpRate    float64
	timeout   uint64
	tsWidth   TimestampWidth
	period    uint64
	epoch     time.Time
	now       func() time.Time
	hasher    Hasher
	buf       *slots.Buffer
	scratch   []uint64
	metrics   MetricsCollector
	logger    *Logger
	closed    bool
}

var _ Filter = (*DecayingFilter)(nil)

// NewDecayingFilter creates a decaying filter sized for the expected number
// of elements at the target false-positive rate, whose entries expire
// timeoutSeconds after their last add.
//
// The timestamp width is derived from the timeout unless overridden with
// WithTimestampWidth; an explicit width must keep the timeout below its
// wheel period.
func NewDecayingFilter(expectedElements uint64, fpRate float64, timeoutSeconds uint64, optFns ...Option) (*DecayingFilter, error) {
	o := applyOptions(optFns)

	if err := validateName(o.name); err != nil {
		return nil, err
	}
	if err := o.rejectReadOnly(); err != nil {
		return nil, err
	}
	tsWidth := o.timestampWidth
	if tsWidth == 0 {
		tsWidth = timestampWidthFor(timeoutSeconds)
	}
	if !tsWidth.Valid() {
		return nil, &ParameterError{Param: "timestampWidth", Reason: "must be 8, 16, 32 or 64 bits"}
	}
	if timeoutSeconds >= tsWidth.WheelPeriod() {
		return nil, &ParameterError{Param: "timeoutSeconds", Reason: "must be below the timestamp wheel period"}
	}

	slotCount, err := OptimalSlotCount(expectedElements, fpRate)
	if err != nil {
		return nil, err
	}
	hashCount := OptimalHashCount(slotCount, expectedElements)

	buf, err := slots.New(int(tsWidth), slotCount)
	if err != nil {
		return nil, &ParameterError{Param: "expectedElements", Reason: err.Error()}
	}

	return &DecayingFilter{
		name:      o.name,
		slotCount: slotCount,
		hashCount: hashCount,
		expected:  expectedElements,
		fpRate:    fpRate,
		timeout:   timeoutSeconds,
		tsWidth:   tsWidth,
		period:    tsWidth.WheelPeriod(),
		epoch:     o.now(),
		now:       o.now,
		hasher:    o.hasher,
		buf:       buf,
		scratch:   make([]uint64, hashCount),
		metrics:   o.metricsCollector,
		logger:    o.logger,
	}, nil
}

// Variant implements Filter.
func (f *DecayingFilter) Variant() Variant { return VariantDecaying }

// Name implements Filter.
func (f *DecayingFilter) Name() string { return f.name }

// SetName implements Filter.
func (f *DecayingFilter) SetName(name string) error {
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
func (f *DecayingFilter) SlotCount() uint64 { return f.slotCount }

// HashCount implements Filter.
func (f *DecayingFilter) HashCount() uint32 { return f.hashCount }

// ExpectedElements implements Filter.
func (f *DecayingFilter) ExpectedElements() uint64 { return f.expected }

// TargetFalsePositiveRate implements Filter.
func (f *DecayingFilter) TargetFalsePositiveRate() float64 { return f.fpRate }

// Timeout returns the expiry timeout in seconds.
func (f *DecayingFilter) Timeout() uint64 { return f.timeout }

// TimestampWidth returns the per-slot timestamp width.
func (f *DecayingFilter) TimestampWidth() TimestampWidth { return f.tsWidth }

// BufferBytes returns the packed size of the timestamp plane in bytes.
func (f *DecayingFilter) BufferBytes() uint64 {
	return slots.BufferBytes(int(f.tsWidth), f.slotCount)
}

// elapsedSeconds returns whole seconds since the filter epoch.
func (f *DecayingFilter) elapsedSeconds() uint64 {
	d := f.now().Sub(f.epoch)
	if d < 0 {
		return 0
	}
	return uint64(d / time.Second)
}

// logicalNow maps elapsed time onto the wheel. Results live in [1, period]
// so zero stays reserved for empty slots.
func (f *DecayingFilter) logicalNow() uint64 {
	return f.elapsedSeconds()%f.period + 1
}

// expired reports whether a stamp is older than the timeout at logical time
// now.
func (f *DecayingFilter) expired(now, stamp uint64) bool {
	return modAge(now, stamp, f.period) > f.timeout
}

// Add implements Filter. Every position slot is stamped with the current
// logical second, refreshing any earlier stamp.
func (f *DecayingFilter) Add(element []byte) {
	if f.closed {
		return
	}

	now := f.logicalNow()
	derivePositions(f.scratch, f.hasher, element, f.slotCount)
	for _, pos := range f.scratch {
		f.buf.Write(pos, now)
	}

	f.metrics.RecordAdd()
}

// AddString implements Filter.
func (f *DecayingFilter) AddString(element string) {
	f.Add([]byte(element))
}

// Lookup implements Filter. An element only matches while every position
// stamp is nonzero and within the timeout.
func (f *DecayingFilter) Lookup(element []byte) bool {
	if f.closed {
		return false
	}

	now := f.logicalNow()
	derivePositions(f.scratch, f.hasher, element, f.slotCount)
	hit := true
	for _, pos := range f.scratch {
		stamp := f.buf.Read(pos)
		if stamp == 0 || f.expired(now, stamp) {
			hit = false
			break
		}
	}

	f.metrics.RecordLookup(hit)
	return hit
}

// LookupString implements Filter.
func (f *DecayingFilter) LookupString(element string) bool {
	return f.Lookup([]byte(element))
}

// LookupOrAdd implements Filter. The element counts as present only when
// every position stamp was fresh before the call; expired stamps behave
// like empty slots and are re-stamped.
func (f *DecayingFilter) LookupOrAdd(element []byte) bool {
	if f.closed {
		return false
	}

	now := f.logicalNow()
	derivePositions(f.scratch, f.hasher, element, f.slotCount)
	present := true
	for _, pos := range f.scratch {
		stamp := f.buf.Read(pos)
		if stamp == 0 || f.expired(now, stamp) {
			present = false
		}
		f.buf.Write(pos, now)
	}

	f.metrics.RecordAdd()
	f.metrics.RecordLookup(present)
	return present
}

// SaturationCount implements Filter. Only active slots count: stamped and
// within the timeout.
func (f *DecayingFilter) SaturationCount() uint64 {
	if f.closed {
		return 0
	}

	now := f.logicalNow()
	var n uint64
	for i := uint64(0); i < f.slotCount; i++ {
		stamp := f.buf.Read(i)
		if stamp != 0 && !f.expired(now, stamp) {
			n++
		}
	}
	return n
}

// Saturation implements Filter.
func (f *DecayingFilter) Saturation() float64 {
	if f.closed || f.slotCount == 0 {
		return 0
	}
	return float64(f.SaturationCount()) / float64(f.slotCount) * 100
}

// ForEachOccupied calls fn with the index of every active slot in
// ascending order, stopping early if fn returns false. Expired slots are
// skipped, matching SaturationCount.
func (f *DecayingFilter) ForEachOccupied(fn func(slot uint64) bool) {
	if f.closed {
		return
	}
	now := f.logicalNow()
	for i := uint64(0); i < f.slotCount; i++ {
		stamp := f.buf.Read(i)
		if stamp != 0 && !f.expired(now, stamp) && !fn(i) {
			return
		}
	}
}

// CountExpired returns the number of stamped slots that have outlived the
// timeout but have not been swept yet.
func (f *DecayingFilter) CountExpired() uint64 {
	if f.closed {
		return 0
	}

	now := f.logicalNow()
	var n uint64
	for i := uint64(0); i < f.slotCount; i++ {
		stamp := f.buf.Read(i)
		if stamp != 0 && f.expired(now, stamp) {
			n++
		}
	}
	return n
}

// ClearExpired zeroes every expired slot and returns how many it reaped.
// Sweeping is optional for correctness since lookups check expiry anyway;
// it reclaims slots before they alias back into the fresh range.
func (f *DecayingFilter) ClearExpired() uint64 {
	if f.closed {
		return 0
	}

	start := f.now()
	now := f.logicalNow()
	var reaped uint64
	for i := uint64(0); i < f.slotCount; i++ {
		stamp := f.buf.Read(i)
		if stamp != 0 && f.expired(now, stamp) {
			f.buf.Write(i, 0)
			reaped++
		}
	}

	f.metrics.RecordSweep(reaped, f.now().Sub(start))
	f.logger.LogSweep(context.Background(), f.name, reaped)
	return reaped
}

// ResetEpoch restarts the logical clock at zero without touching the
// slots. Existing stamps keep their positions on the wheel, so entries
// written just before the reset may age faster or slower than wall time
// until they expire or are re-added.
func (f *DecayingFilter) ResetEpoch() {
	if f.closed {
		return
	}
	f.epoch = f.now()
}

// ClearIfSaturationExceeds implements Filter.
func (f *DecayingFilter) ClearIfSaturationExceeds(threshold float64) bool {
	if f.closed {
		return false
	}
	if f.Saturation() <= threshold {
		return false
	}
	f.Clear()
	return true
}

// Clear implements Filter. It also restarts the logical clock.
func (f *DecayingFilter) Clear() {
	if f.closed {
		return
	}
	sat := f.Saturation()
	f.buf.Reset()
	f.epoch = f.now()
	f.logger.LogClear(context.Background(), f.name, sat)
}

// EstimateFalsePositiveRate returns the expected false-positive rate at the
// current active occupancy.
func (f *DecayingFilter) EstimateFalsePositiveRate() float64 {
	if f.closed {
		return 0
	}
	return fillBasedFalsePositiveRate(f.SaturationCount(), f.slotCount, f.hashCount)
}

// Stats returns a point-in-time snapshot of the filter.
func (f *DecayingFilter) Stats() DecayingFilterStats {
	return DecayingFilterStats{
		Name:                       f.name,
		SlotCount:                  f.slotCount,
		HashCount:                  f.hashCount,
		ExpectedElements:           f.expected,
		TargetFalsePositiveRate:    f.fpRate,
		TimeoutSeconds:             f.timeout,
		TimestampWidth:             f.tsWidth,
		WheelPeriod:                f.period,
		BufferBytes:                f.BufferBytes(),
		ElapsedSeconds:             f.elapsedSeconds(),
		SaturationCount:            f.SaturationCount(),
		Saturation:                 f.Saturation(),
		ExpiredCount:               f.CountExpired(),
		EstimatedFalsePositiveRate: f.EstimateFalsePositiveRate(),
	}
}

// Close implements Filter.
func (f *DecayingFilter) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	f.buf = nil
	return nil
}

// DecayingFilterStats is a point-in-time snapshot of a DecayingFilter.
type DecayingFilterStats struct {
	Name                       string         `json:"name"`
	SlotCount                  uint64         `json:"slot_count"`
	HashCount                  uint32         `json:"hash_count"`
	ExpectedElements           uint64         `json:"expected_elements"`
	TargetFalsePositiveRate    float64        `json:"target_false_positive_rate"`
	TimeoutSeconds             uint64         `json:"timeout_seconds"`
	TimestampWidth             TimestampWidth `json:"timestamp_width_bits"`
	WheelPeriod                uint64         `json:"wheel_period"`
	BufferBytes                uint64         `json:"buffer_bytes"`
	ElapsedSeconds             uint64         `json:"elapsed_seconds"`
	SaturationCount            uint64         `json:"saturation_count"`
	Saturation                 float64        `json:"saturation_pct"`
	ExpiredCount               uint64         `json:"expired_count"`
	EstimatedFalsePositiveRate float64        `json:"estimated_false_positive_rate"`
}
