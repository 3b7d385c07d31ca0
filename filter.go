package bloomgo

import "io"

// Variant identifies one of the filter families.
type Variant uint8

const (
	// VariantBloom is the plain bit-per-slot filter.
	VariantBloom Variant = iota + 1
	// VariantCounting stores a saturating counter per slot.
	VariantCounting
	// VariantDecaying stores a logical timestamp per slot.
	VariantDecaying
	// VariantDecayingCounting stores a counter and a timestamp per slot.
	VariantDecayingCounting
)

// String implements fmt.Stringer.
func (v Variant) String() string {
	switch v {
	case VariantBloom:
		return "bloom"
	case VariantCounting:
		return "counting"
	case VariantDecaying:
		return "decaying"
	case VariantDecayingCounting:
		return "decaying-counting"
	default:
		return "unknown"
	}
}

// Filter is the surface shared by all four variants. Load returns it when
// the caller does not know the variant of a serialized filter up front.
//
// Filters are not safe for concurrent use. Wrap access in a mutex when
// sharing one across goroutines.
type Filter interface {
	io.WriterTo

	// Variant reports which filter family this is.
	Variant() Variant

	// Name returns the descriptive filter name.
	Name() string

	// SetName replaces the descriptive filter name. Names longer than 255
	// bytes are rejected with ErrInvalidParameter.
	SetName(name string) error

	// SlotCount returns the number of slots.
	SlotCount() uint64

	// HashCount returns the number of positions derived per element.
	HashCount() uint32

	// ExpectedElements returns the capacity the filter was sized for.
	ExpectedElements() uint64

	// TargetFalsePositiveRate returns the rate the filter was sized for.
	TargetFalsePositiveRate() float64

	// Add inserts an element.
	Add(element []byte)

	// AddString inserts a string element.
	AddString(element string)

	// Lookup reports whether the element is probably present. False means
	// definitely absent, true may be a false positive.
	Lookup(element []byte) bool

	// LookupString reports whether the string element is probably present.
	LookupString(element string) bool

	// LookupOrAdd inserts the element and reports whether it was already
	// present before the call, in one hashing pass.
	LookupOrAdd(element []byte) bool

	// SaturationCount returns the number of occupied slots.
	SaturationCount() uint64

	// Saturation returns the occupied slot percentage, 0 to 100.
	Saturation() float64

	// ClearIfSaturationExceeds resets the filter when its saturation
	// percentage exceeds the threshold, and reports whether it did.
	ClearIfSaturationExceeds(threshold float64) bool

	// Clear resets every slot to zero.
	Clear()

	// Close releases the slot buffer. Closing twice is a no-op. Mutations
	// after Close do nothing and lookups report absence.
	Close() error
}

// positionSeed is the seed fed to the hasher when deriving positions. It is
// fixed so serialized filters remain queryable across processes.
const positionSeed uint32 = 0

// derivePositions fills dst with len(dst) slot positions for element using
// double hashing:
//
//	position_i = (h1 + i*h2) mod slotCount
//
// h2 is forced odd so the position sequence does not collapse onto a short
// cycle. All positions are derived before any slot is touched.
func derivePositions(dst []uint64, h Hasher, element []byte, slotCount uint64) {
	h1, h2 := h.Sum128(element, positionSeed)
	h2 |= 1
	for i := range dst {
		dst[i] = (h1 + uint64(i)*h2) % slotCount
	}
}
