// Package inspect derives occupancy diagnostics from filters. It turns
// the occupied-slot set into a compressed bitmap and computes reports a
// filter cannot answer about itself: how its occupancy clusters, and how
// much of it is shared with another filter.
//
// Occupancy follows each variant's liveness rule, so for the decaying
// variants a bitmap reflects the active slots at the moment it was
// built. Slot indices are only comparable between filters created with
// the same sizing parameters and hasher; Overlap verifies the slot
// count and leaves the rest to the caller.
package inspect

import (
	"iter"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hupe1980/bloomgo"
)

// Source is the surface inspect needs from a filter. Every filter
// variant implements it; ForEachOccupied visits exactly the slots that
// SaturationCount counts.
type Source interface {
	SlotCount() uint64
	ForEachOccupied(fn func(slot uint64) bool)
}

// Bitmap is a compressed set of occupied slot indices.
type Bitmap struct {
	rb        *roaring64.Bitmap
	slotCount uint64
}

// Occupancy captures the occupied slots of f into a bitmap.
func Occupancy(f Source) *Bitmap {
	rb := roaring64.New()
	f.ForEachOccupied(func(slot uint64) bool {
		rb.Add(slot)
		return true
	})

	return &Bitmap{rb: rb, slotCount: f.SlotCount()}
}

// SlotCount returns the number of slots in the source filter.
func (b *Bitmap) SlotCount() uint64 {
	return b.slotCount
}

// Cardinality returns the number of occupied slots.
func (b *Bitmap) Cardinality() uint64 {
	return b.rb.GetCardinality()
}

// IsEmpty reports whether no slot is occupied.
func (b *Bitmap) IsEmpty() bool {
	return b.rb.IsEmpty()
}

// Contains reports whether the slot was occupied.
func (b *Bitmap) Contains(slot uint64) bool {
	return b.rb.Contains(slot)
}

// Saturation returns the occupied share as a percentage of all slots.
func (b *Bitmap) Saturation() float64 {
	if b.slotCount == 0 {
		return 0
	}
	return float64(b.Cardinality()) / float64(b.slotCount) * 100
}

// Slots iterates the occupied slot indices in ascending order.
func (b *Bitmap) Slots() iter.Seq[uint64] {
	return func(yield func(uint64) bool) {
		it := b.rb.Iterator()
		for it.HasNext() {
			if !yield(it.Next()) {
				return
			}
		}
	}
}

// Clone returns a deep copy of the bitmap.
func (b *Bitmap) Clone() *Bitmap {
	return &Bitmap{rb: b.rb.Clone(), slotCount: b.slotCount}
}

// SizeInBytes returns the compressed size of the bitmap.
func (b *Bitmap) SizeInBytes() uint64 {
	return b.rb.GetSizeInBytes()
}

// OccupancyReport summarizes the occupancy of one filter.
type OccupancyReport struct {
	SlotCount  uint64  `json:"slot_count"`
	Occupied   uint64  `json:"occupied"`
	Saturation float64 `json:"saturation_pct"`

	// LongestRun is the longest stretch of consecutive occupied
	// slots. Double hashing spreads positions, so long runs only
	// appear when the filter is badly overfilled.
	LongestRun uint64 `json:"longest_run"`

	// BitmapBytes is the compressed size of the occupancy bitmap, a
	// measure of how clustered the occupancy is.
	BitmapBytes uint64 `json:"bitmap_bytes"`
}

// Report builds an occupancy report for f.
func Report(f Source) OccupancyReport {
	bm := Occupancy(f)

	rep := OccupancyReport{
		SlotCount:   bm.SlotCount(),
		Occupied:    bm.Cardinality(),
		Saturation:  bm.Saturation(),
		BitmapBytes: bm.SizeInBytes(),
	}

	var run, prev uint64
	for slot := range bm.Slots() {
		if run == 0 || slot != prev+1 {
			run = 1
		} else {
			run++
		}
		if run > rep.LongestRun {
			rep.LongestRun = run
		}
		prev = slot
	}

	return rep
}

// OverlapReport summarizes how the occupancy of two filters relates.
type OverlapReport struct {
	SlotCount    uint64 `json:"slot_count"`
	OccupiedA    uint64 `json:"occupied_a"`
	OccupiedB    uint64 `json:"occupied_b"`
	Intersection uint64 `json:"intersection"`
	Union        uint64 `json:"union"`

	// Jaccard is intersection over union, in [0, 1].
	Jaccard float64 `json:"jaccard"`

	// ContainmentA is the share of a's occupied slots also occupied in
	// b, in [0, 1]; ContainmentB mirrors it. High containment with low
	// Jaccard means one filter's contents nest inside the other's.
	ContainmentA float64 `json:"containment_a"`
	ContainmentB float64 `json:"containment_b"`
}

// Overlap compares the occupancy of two filters with the same slot
// count. Shared slots approximate shared elements the same way the set
// algebra does: unrelated elements can collide, so the numbers are an
// upper bound on true overlap.
func Overlap(a, b Source) (OverlapReport, error) {
	if a.SlotCount() != b.SlotCount() {
		return OverlapReport{}, &bloomgo.CompatibilityError{Field: "slot count", A: a.SlotCount(), B: b.SlotCount()}
	}

	ba := Occupancy(a)
	bb := Occupancy(b)

	inter := roaring64.And(ba.rb, bb.rb).GetCardinality()
	union := roaring64.Or(ba.rb, bb.rb).GetCardinality()

	rep := OverlapReport{
		SlotCount:    a.SlotCount(),
		OccupiedA:    ba.Cardinality(),
		OccupiedB:    bb.Cardinality(),
		Intersection: inter,
		Union:        union,
	}
	if union > 0 {
		rep.Jaccard = float64(inter) / float64(union)
	}
	if rep.OccupiedA > 0 {
		rep.ContainmentA = float64(inter) / float64(rep.OccupiedA)
	}
	if rep.OccupiedB > 0 {
		rep.ContainmentB = float64(inter) / float64(rep.OccupiedB)
	}

	return rep, nil
}
