// Package slots provides fixed-width slot arrays packed into byte buffers.
//
// Architecture:
//   - One flat little-endian byte buffer, slot zero at the lowest byte
//   - Widths of 1, 4, 8, 16, 32 and 64 bits per slot
//   - Saturating arithmetic: writes clamp, increments stop at the ceiling,
//     decrements floor at zero
//
// Used internally for:
//   - Bit planes (plain Bloom filters)
//   - Counter planes (counting filters)
//   - Timestamp planes (decaying filters)
package slots
