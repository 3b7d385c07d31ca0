package bloomgo

import (
	"context"
	"math"
	"time"

	"github.com/hupe1980/bloomgo/internal/slots"
)

// DecayingCountingFilter combines a counter and a timestamp per slot. It
// supports removal and occurrence counting like CountingFilter, while
// entries expire after a timeout like DecayingFilter.
//
// The two values live in separate planes of equal slot count: a counter
// plane and a timestamp plane. A slot is active only while its counter is
// nonzero and its stamp is within the timeout.
type DecayingCountingFilter struct {
	name         string
	slotCount    uint64
	hashCount    uint32
	expected     uint64
	fpRate       float64
	timeout      uint64
	counterWidth CounterWidth
	tsWidth      TimestampWidth
	period       uint64
	epoch        time.Time
	now          func() time.Time
	hasher       Hasher
	counters     *slots.Buffer
	stamps       *slots.Buffer
	scratch      []uint64
	metrics      MetricsCollector
	logger       *Logger
	closed       bool
}

var _ Filter = (*DecayingCountingFilter)(nil)

// NewDecayingCountingFilter creates a decaying counting filter sized for
// the expected number of elements at the target false-positive rate, whose
// entries expire timeoutSeconds after their last add.
//
// The counter width defaults to CounterWidth8; CounterWidth4 is not
// supported because counters share byte-aligned planes with timestamps.
// The timestamp width is derived from the timeout unless overridden.
func NewDecayingCountingFilter(expectedElements uint64, fpRate float64, timeoutSeconds uint64, optFns ...Option) (*DecayingCountingFilter, error) {
	o := applyOptions(optFns)

	if err := validateName(o.name); err != nil {
		return nil, err
	}
	if err := o.rejectReadOnly(); err != nil {
		return nil, err
	}
	if !o.counterWidth.Valid() || o.counterWidth == CounterWidth4 {
		return nil, &ParameterError{Param: "counterWidth", Reason: "must be 8, 16, 32 or 64 bits"}
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

	counters, err := slots.New(int(o.counterWidth), slotCount)
	if err != nil {
		return nil, &ParameterError{Param: "expectedElements", Reason: err.Error()}
	}
	stamps, err := slots.New(int(tsWidth), slotCount)
	if err != nil {
		return nil, &ParameterError{Param: "expectedElements", Reason: err.Error()}
	}

	return &DecayingCountingFilter{
		name:         o.name,
		slotCount:    slotCount,
		hashCount:    hashCount,
		expected:     expectedElements,
		fpRate:       fpRate,
		timeout:      timeoutSeconds,
		counterWidth: o.counterWidth,
		tsWidth:      tsWidth,
		period:       tsWidth.WheelPeriod(),
		epoch:        o.now(),
		now:          o.now,
		hasher:       o.hasher,
		counters:     counters,
		stamps:       stamps,
		scratch:      make([]uint64, hashCount),
		metrics:      o.metricsCollector,
		logger:       o.logger,
	}, nil
}

// Variant implements Filter.
func (f *DecayingCountingFilter) Variant() Variant { return VariantDecayingCounting }

// Name implements Filter.
func (f *DecayingCountingFilter) Name() string { return f.name }

// SetName implements Filter.
func (f *DecayingCountingFilter) SetName(name string) error {
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
func (f *DecayingCountingFilter) SlotCount() uint64 { return f.slotCount }

// HashCount implements Filter.
func (f *DecayingCountingFilter) HashCount() uint32 { return f.hashCount }

// ExpectedElements implements Filter.
func (f *DecayingCountingFilter) ExpectedElements() uint64 { return f.expected }

// TargetFalsePositiveRate implements Filter.
func (f *DecayingCountingFilter) TargetFalsePositiveRate() float64 { return f.fpRate }

// Timeout returns the expiry timeout in seconds.
func (f *DecayingCountingFilter) Timeout() uint64 { return f.timeout }

// CounterWidth returns the configured per-slot counter width.
func (f *DecayingCountingFilter) CounterWidth() CounterWidth { return f.counterWidth }

// TimestampWidth returns the per-slot timestamp width.
func (f *DecayingCountingFilter) TimestampWidth() TimestampWidth { return f.tsWidth }

// BufferBytes returns the packed size of both planes in bytes, counters
// first.
func (f *DecayingCountingFilter) BufferBytes() uint64 {
	return slots.BufferBytes(int(f.counterWidth), f.slotCount) +
		slots.BufferBytes(int(f.tsWidth), f.slotCount)
}

func (f *DecayingCountingFilter) elapsedSeconds() uint64 {
	d := f.now().Sub(f.epoch)
	if d < 0 {
		return 0
	}
	return uint64(d / time.Second)
}

func (f *DecayingCountingFilter) logicalNow() uint64 {
	return f.elapsedSeconds()%f.period + 1
}

func (f *DecayingCountingFilter) expiredStamp(now, stamp uint64) bool {
	return modAge(now, stamp, f.period) > f.timeout
}

// active reports whether slot i holds a live entry at logical time now.
func (f *DecayingCountingFilter) active(now, i uint64) bool {
	if f.counters.Read(i) == 0 {
		return false
	}
	stamp := f.stamps.Read(i)
	return stamp != 0 && !f.expiredStamp(now, stamp)
}

// Add implements Filter. Every position counter is incremented, saturating
// at the width ceiling, and every position stamp is refreshed.
func (f *DecayingCountingFilter) Add(element []byte) {
	if f.closed {
		return
	}

	now := f.logicalNow()
	derivePositions(f.scratch, f.hasher, element, f.slotCount)
	for _, pos := range f.scratch {
		f.counters.Increment(pos)
		f.stamps.Write(pos, now)
	}

	f.metrics.RecordAdd()
}

// AddString implements Filter.
func (f *DecayingCountingFilter) AddString(element string) {
	f.Add([]byte(element))
}

// Lookup implements Filter. An element matches only while every position
// is active: counted, stamped and within the timeout.
func (f *DecayingCountingFilter) Lookup(element []byte) bool {
	if f.closed {
		return false
	}

	now := f.logicalNow()
	derivePositions(f.scratch, f.hasher, element, f.slotCount)
	hit := true
	for _, pos := range f.scratch {
		if !f.active(now, pos) {
			hit = false
			break
		}
	}

	f.metrics.RecordLookup(hit)
	return hit
}

// LookupString implements Filter.
func (f *DecayingCountingFilter) LookupString(element string) bool {
	return f.Lookup([]byte(element))
}

// LookupOrAdd implements Filter.
func (f *DecayingCountingFilter) LookupOrAdd(element []byte) bool {
	if f.closed {
		return false
	}

	now := f.logicalNow()
	derivePositions(f.scratch, f.hasher, element, f.slotCount)
	present := true
	for _, pos := range f.scratch {
		if !f.active(now, pos) {
			present = false
		}
		f.counters.Increment(pos)
		f.stamps.Write(pos, now)
	}

	f.metrics.RecordAdd()
	f.metrics.RecordLookup(present)
	return present
}

// Remove decrements every position counter for element and reports whether
// it did. Removal is all-or-nothing: unless every position is active, the
// element is not considered present and nothing is touched. Stamps are left
// alone so the remaining count keeps its age.
func (f *DecayingCountingFilter) Remove(element []byte) bool {
	if f.closed {
		return false
	}

	now := f.logicalNow()
	derivePositions(f.scratch, f.hasher, element, f.slotCount)
	for _, pos := range f.scratch {
		if !f.active(now, pos) {
			f.metrics.RecordRemove(false)
			return false
		}
	}
	for _, pos := range f.scratch {
		f.counters.Decrement(pos)
	}

	f.metrics.RecordRemove(true)
	return true
}

// RemoveString removes a string element.
func (f *DecayingCountingFilter) RemoveString(element string) bool {
	return f.Remove([]byte(element))
}

// Count estimates how many times element was added, as the minimum over
// its position counters. Expired or unstamped positions make the element
// count as absent.
func (f *DecayingCountingFilter) Count(element []byte) uint64 {
	if f.closed {
		return 0
	}

	now := f.logicalNow()
	derivePositions(f.scratch, f.hasher, element, f.slotCount)
	min := uint64(math.MaxUint64)
	for _, pos := range f.scratch {
		if !f.active(now, pos) {
			return 0
		}
		if v := f.counters.Read(pos); v < min {
			min = v
		}
	}
	return min
}

// CountString estimates how many times a string element was added.
func (f *DecayingCountingFilter) CountString(element string) uint64 {
	return f.Count([]byte(element))
}

// HasExpired reports whether element was added but has aged past the
// timeout at one or more of its positions. It returns false for elements
// that were never added.
func (f *DecayingCountingFilter) HasExpired(element []byte) bool {
	if f.closed {
		return false
	}

	now := f.logicalNow()
	derivePositions(f.scratch, f.hasher, element, f.slotCount)
	expired := false
	for _, pos := range f.scratch {
		if f.counters.Read(pos) == 0 {
			return false
		}
		stamp := f.stamps.Read(pos)
		if stamp == 0 || f.expiredStamp(now, stamp) {
			expired = true
		}
	}
	return expired
}

// HasExpiredString reports whether a string element has expired.
func (f *DecayingCountingFilter) HasExpiredString(element string) bool {
	return f.HasExpired([]byte(element))
}

// ResetIfExpired re-stamps every position of an expired element with the
// current logical second, reviving its counters, and reports whether it
// did. Elements that were never added or are still fresh are left alone.
func (f *DecayingCountingFilter) ResetIfExpired(element []byte) bool {
	if f.closed {
		return false
	}
	if !f.HasExpired(element) {
		return false
	}

	now := f.logicalNow()
	derivePositions(f.scratch, f.hasher, element, f.slotCount)
	for _, pos := range f.scratch {
		f.stamps.Write(pos, now)
	}
	return true
}

// AgeElement moves every position stamp of element back by the given number
// of logical seconds, making it expire sooner. Stamps aged past the epoch
// are zeroed, which retires the slot until the next add. Aging is
// all-or-nothing: it reports false and touches nothing unless every
// position is counted and stamped.
func (f *DecayingCountingFilter) AgeElement(element []byte, seconds uint64) bool {
	if f.closed {
		return false
	}

	derivePositions(f.scratch, f.hasher, element, f.slotCount)
	for _, pos := range f.scratch {
		if f.counters.Read(pos) == 0 || f.stamps.Read(pos) == 0 {
			return false
		}
	}
	for _, pos := range f.scratch {
		stamp := f.stamps.Read(pos)
		if stamp > seconds {
			f.stamps.Write(pos, stamp-seconds)
		} else {
			f.stamps.Write(pos, 0)
		}
	}
	return true
}

// AgeAndRemove clears every slot whose stamp is older than maxAgeSeconds,
// regardless of the configured timeout, and returns how many slots it
// cleared. Useful for forcing out long-lived entries below the timeout.
func (f *DecayingCountingFilter) AgeAndRemove(maxAgeSeconds uint64) uint64 {
	if f.closed {
		return 0
	}

	start := f.now()
	now := f.logicalNow()
	var reaped uint64
	for i := uint64(0); i < f.slotCount; i++ {
		if f.counters.Read(i) == 0 {
			continue
		}
		stamp := f.stamps.Read(i)
		if stamp == 0 || modAge(now, stamp, f.period) > maxAgeSeconds {
			f.counters.Write(i, 0)
			f.stamps.Write(i, 0)
			reaped++
		}
	}

	f.metrics.RecordSweep(reaped, f.now().Sub(start))
	f.logger.LogSweep(context.Background(), f.name, reaped)
	return reaped
}

// AdjustTimeout changes the expiry timeout and sweeps every slot the new
// timeout retires. It returns the number of slots cleared. The new timeout
// must stay below the wheel period of the existing timestamp width.
func (f *DecayingCountingFilter) AdjustTimeout(timeoutSeconds uint64) (uint64, error) {
	if f.closed {
		return 0, ErrClosed
	}
	if timeoutSeconds >= f.period {
		return 0, &ParameterError{Param: "timeoutSeconds", Reason: "must be below the timestamp wheel period"}
	}

	f.timeout = timeoutSeconds
	return f.ClearExpired(), nil
}

// ClearExpired zeroes every expired slot and returns how many it reaped.
// Slots already dead on one plane (counter or stamp zeroed by removal or
// aging) are normalized to fully zero without counting as reaped.
func (f *DecayingCountingFilter) ClearExpired() uint64 {
	if f.closed {
		return 0
	}

	start := f.now()
	now := f.logicalNow()
	var reaped uint64
	for i := uint64(0); i < f.slotCount; i++ {
		counter := f.counters.Read(i)
		stamp := f.stamps.Read(i)
		switch {
		case counter == 0 && stamp == 0:
			// Empty.
		case counter != 0 && stamp != 0 && f.expiredStamp(now, stamp):
			f.counters.Write(i, 0)
			f.stamps.Write(i, 0)
			reaped++
		case counter == 0 || stamp == 0:
			f.counters.Write(i, 0)
			f.stamps.Write(i, 0)
		}
	}

	f.metrics.RecordSweep(reaped, f.now().Sub(start))
	f.logger.LogSweep(context.Background(), f.name, reaped)
	return reaped
}

// CountExpired returns the number of active-plane slots that have outlived
// the timeout but have not been swept yet.
func (f *DecayingCountingFilter) CountExpired() uint64 {
	if f.closed {
		return 0
	}

	now := f.logicalNow()
	var n uint64
	for i := uint64(0); i < f.slotCount; i++ {
		if f.counters.Read(i) == 0 {
			continue
		}
		stamp := f.stamps.Read(i)
		if stamp != 0 && f.expiredStamp(now, stamp) {
			n++
		}
	}
	return n
}

// ResetEpoch restarts the logical clock at zero without touching the
// slots.
func (f *DecayingCountingFilter) ResetEpoch() {
	if f.closed {
		return
	}
	f.epoch = f.now()
}

// SaturationCount implements Filter. Only active slots count.
func (f *DecayingCountingFilter) SaturationCount() uint64 {
	if f.closed {
		return 0
	}

	now := f.logicalNow()
	var n uint64
	for i := uint64(0); i < f.slotCount; i++ {
		if f.active(now, i) {
			n++
		}
	}
	return n
}

// Saturation implements Filter.
func (f *DecayingCountingFilter) Saturation() float64 {
	if f.closed || f.slotCount == 0 {
		return 0
	}
	return float64(f.SaturationCount()) / float64(f.slotCount) * 100
}

// ForEachOccupied calls fn with the index of every active slot in
// ascending order, stopping early if fn returns false.
func (f *DecayingCountingFilter) ForEachOccupied(fn func(slot uint64) bool) {
	if f.closed {
		return
	}
	now := f.logicalNow()
	for i := uint64(0); i < f.slotCount; i++ {
		if f.active(now, i) && !fn(i) {
			return
		}
	}
}

// AverageCount returns the mean counter value over all active slots, or
// zero when nothing is active.
func (f *DecayingCountingFilter) AverageCount() float64 {
	if f.closed {
		return 0
	}

	now := f.logicalNow()
	var mean float64
	var n uint64
	for i := uint64(0); i < f.slotCount; i++ {
		if !f.active(now, i) {
			continue
		}
		n++
		mean += (float64(f.counters.Read(i)) - mean) / float64(n)
	}
	return mean
}

// ClearIfSaturationExceeds implements Filter.
func (f *DecayingCountingFilter) ClearIfSaturationExceeds(threshold float64) bool {
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
func (f *DecayingCountingFilter) Clear() {
	if f.closed {
		return
	}
	sat := f.Saturation()
	f.counters.Reset()
	f.stamps.Reset()
	f.epoch = f.now()
	f.logger.LogClear(context.Background(), f.name, sat)
}

// EstimateFalsePositiveRate returns the expected false-positive rate at the
// current active occupancy.
func (f *DecayingCountingFilter) EstimateFalsePositiveRate() float64 {
	if f.closed {
		return 0
	}
	return fillBasedFalsePositiveRate(f.SaturationCount(), f.slotCount, f.hashCount)
}

// Stats returns a point-in-time snapshot of the filter.
func (f *DecayingCountingFilter) Stats() DecayingCountingFilterStats {
	return DecayingCountingFilterStats{
		Name:                       f.name,
		SlotCount:                  f.slotCount,
		HashCount:                  f.hashCount,
		ExpectedElements:           f.expected,
		TargetFalsePositiveRate:    f.fpRate,
		TimeoutSeconds:             f.timeout,
		CounterWidth:               f.counterWidth,
		TimestampWidth:             f.tsWidth,
		WheelPeriod:                f.period,
		BufferBytes:                f.BufferBytes(),
		ElapsedSeconds:             f.elapsedSeconds(),
		SaturationCount:            f.SaturationCount(),
		Saturation:                 f.Saturation(),
		ExpiredCount:               f.CountExpired(),
		AverageCount:               f.AverageCount(),
		EstimatedFalsePositiveRate: f.EstimateFalsePositiveRate(),
	}
}

// Close implements Filter.
func (f *DecayingCountingFilter) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	f.counters = nil
	f.stamps = nil
	return nil
}

// DecayingCountingFilterStats is a point-in-time snapshot of a
// DecayingCountingFilter.
type DecayingCountingFilterStats struct {
	Name                       string         `json:"name"`
	SlotCount                  uint64         `json:"slot_count"`
	HashCount                  uint32         `json:"hash_count"`
	ExpectedElements           uint64         `json:"expected_elements"`
	TargetFalsePositiveRate    float64        `json:"target_false_positive_rate"`
	TimeoutSeconds             uint64         `json:"timeout_seconds"`
	CounterWidth               CounterWidth   `json:"counter_width_bits"`
	TimestampWidth             TimestampWidth `json:"timestamp_width_bits"`
	WheelPeriod                uint64         `json:"wheel_period"`
	BufferBytes                uint64         `json:"buffer_bytes"`
	ElapsedSeconds             uint64         `json:"elapsed_seconds"`
	SaturationCount            uint64         `json:"saturation_count"`
	Saturation                 float64        `json:"saturation_pct"`
	ExpiredCount               uint64         `json:"expired_count"`
	AverageCount               float64        `json:"average_count"`
	EstimatedFalsePositiveRate float64        `json:"estimated_false_positive_rate"`
}
