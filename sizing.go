package bloomgo

import "math"

// slotCountLimit bounds the sizing math well below uint64 overflow. A
// filter at this limit would occupy an exbibyte of slots, so hitting it
// always indicates bad input.
const slotCountLimit = float64(1 << 63)

// OptimalSlotCount returns the number of slots needed to hold the expected
// element count at the target false-positive rate:
//
//	m = ceil(-n * ln(p) / ln(2)^2)
//
// The result is rounded up so the realized rate stays at or below the
// target.
func OptimalSlotCount(expectedElements uint64, fpRate float64) (uint64, error) {
	if expectedElements == 0 {
		return 0, &ParameterError{Param: "expectedElements", Reason: "must be positive"}
	}
	if fpRate <= 0 || fpRate >= 1 {
		return 0, &ParameterError{Param: "fpRate", Reason: "must be in (0, 1) exclusive"}
	}

	m := math.Ceil(-float64(expectedElements) * math.Log(fpRate) / (math.Ln2 * math.Ln2))
	if m >= slotCountLimit {
		return 0, &ParameterError{Param: "expectedElements", Reason: "resulting filter too large"}
	}

	return uint64(m), nil
}

// OptimalHashCount returns the number of hash positions per element for a
// filter with slotCount slots and expectedElements expected entries:
//
//	k = round(m/n * ln(2))
//
// The result is never below one.
func OptimalHashCount(slotCount, expectedElements uint64) uint32 {
	if expectedElements == 0 {
		return 1
	}

	k := math.Round(float64(slotCount) / float64(expectedElements) * math.Ln2)
	if k < 1 {
		return 1
	}

	return uint32(k)
}

// estimateFalsePositiveRate computes the expected false-positive rate of a
// filter with hashCount positions per element, slotCount slots and n
// distinct elements added:
//
//	(1 - e^(-k*n/m))^k
func estimateFalsePositiveRate(slotCount uint64, hashCount uint32, n uint64) float64 {
	if slotCount == 0 || n == 0 {
		return 0
	}
	k := float64(hashCount)
	exponent := -k * float64(n) / float64(slotCount)
	return math.Pow(1-math.Exp(exponent), k)
}

// fillBasedFalsePositiveRate estimates the false-positive rate from the
// observed slot occupancy instead of an addition counter. Used by variants
// where slots can be cleared again, so no monotonic counter exists.
func fillBasedFalsePositiveRate(occupied, slotCount uint64, hashCount uint32) float64 {
	if slotCount == 0 || occupied == 0 {
		return 0
	}
	fill := float64(occupied) / float64(slotCount)
	return math.Pow(fill, float64(hashCount))
}
