package slots

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/bits"
)

// Supported slot widths in bits.
const (
	Width1  = 1
	Width4  = 4
	Width8  = 8
	Width16 = 16
	Width32 = 32
	Width64 = 64
)

// ValidWidth reports whether w is a supported slot width.
func ValidWidth(w int) bool {
	switch w {
	case Width1, Width4, Width8, Width16, Width32, Width64:
		return true
	}
	return false
}

// BufferBytes returns the packed byte length of count slots of w bits each.
func BufferBytes(w int, count uint64) uint64 {
	switch w {
	case Width1:
		return (count + 7) / 8
	case Width4:
		return (count + 1) / 2
	default:
		return count * uint64(w/8)
	}
}

// MaxValue returns the largest value a slot of w bits can hold.
func MaxValue(w int) uint64 {
	if w >= 64 {
		return math.MaxUint64
	}
	return (uint64(1) << w) - 1
}

// Buffer is a fixed-width slot array packed into a byte buffer. Sub-byte
// slots fill bytes from the least significant end: 1-bit slots LSB first,
// 4-bit slots low nibble first. Multi-byte slots are little-endian.
//
// Slot indices are not bounds checked beyond the slice itself; callers
// guarantee i < Count().
type Buffer struct {
	width int
	count uint64
	max   uint64
	data  []byte
}

// New allocates a zeroed buffer of count slots, each width bits wide.
func New(width int, count uint64) (*Buffer, error) {
	if !ValidWidth(width) {
		return nil, fmt.Errorf("slots: unsupported width %d", width)
	}
	if count == 0 {
		return nil, fmt.Errorf("slots: count must be positive")
	}
	return &Buffer{
		width: width,
		count: count,
		max:   MaxValue(width),
		data:  make([]byte, BufferBytes(width, count)),
	}, nil
}

// FromBytes wraps an existing packed buffer without copying it. The length
// of data must match BufferBytes(width, count) exactly.
func FromBytes(width int, count uint64, data []byte) (*Buffer, error) {
	if !ValidWidth(width) {
		return nil, fmt.Errorf("slots: unsupported width %d", width)
	}
	if count == 0 {
		return nil, fmt.Errorf("slots: count must be positive")
	}
	if want := BufferBytes(width, count); uint64(len(data)) != want {
		return nil, fmt.Errorf("slots: buffer length %d, want %d", len(data), want)
	}
	return &Buffer{
		width: width,
		count: count,
		max:   MaxValue(width),
		data:  data,
	}, nil
}

// Width returns the slot width in bits.
func (b *Buffer) Width() int { return b.width }

// Count returns the number of slots.
func (b *Buffer) Count() uint64 { return b.count }

// MaxValue returns the saturation ceiling of a single slot.
func (b *Buffer) MaxValue() uint64 { return b.max }

// Bytes returns the backing buffer. Mutating it mutates the slots.
func (b *Buffer) Bytes() []byte { return b.data }

// Read returns the value of slot i.
func (b *Buffer) Read(i uint64) uint64 {
	switch b.width {
	case Width1:
		return uint64(b.data[i/8]>>(i%8)) & 1
	case Width4:
		shift := (i & 1) * 4
		return uint64(b.data[i/2]>>shift) & 0xF
	case Width8:
		return uint64(b.data[i])
	case Width16:
		return uint64(binary.LittleEndian.Uint16(b.data[i*2:]))
	case Width32:
		return uint64(binary.LittleEndian.Uint32(b.data[i*4:]))
	default:
		return binary.LittleEndian.Uint64(b.data[i*8:])
	}
}

// Write stores v into slot i, clamping to the slot ceiling.
func (b *Buffer) Write(i uint64, v uint64) {
	if v > b.max {
		v = b.max
	}
	switch b.width {
	case Width1:
		mask := byte(1) << (i % 8)
		if v != 0 {
			b.data[i/8] |= mask
		} else {
			b.data[i/8] &^= mask
		}
	case Width4:
		shift := byte(i&1) * 4
		b.data[i/2] = b.data[i/2]&^(0xF<<shift) | byte(v)<<shift
	case Width8:
		b.data[i] = byte(v)
	case Width16:
		binary.LittleEndian.PutUint16(b.data[i*2:], uint16(v))
	case Width32:
		binary.LittleEndian.PutUint32(b.data[i*4:], uint32(v))
	default:
		binary.LittleEndian.PutUint64(b.data[i*8:], v)
	}
}

// Increment adds one to slot i, saturating at the ceiling. It returns the
// new value.
func (b *Buffer) Increment(i uint64) uint64 {
	v := b.Read(i)
	if v == b.max {
		return v
	}
	v++
	b.Write(i, v)
	return v
}

// Decrement subtracts one from slot i, flooring at zero. It returns the
// new value.
func (b *Buffer) Decrement(i uint64) uint64 {
	v := b.Read(i)
	if v == 0 {
		return 0
	}
	v--
	b.Write(i, v)
	return v
}

// OccupiedCount returns the number of slots holding a nonzero value.
func (b *Buffer) OccupiedCount() uint64 {
	switch b.width {
	case Width1:
		return Popcount(b.data)
	case Width4:
		var n uint64
		full := b.count / 2
		for _, p := range b.data[:full] {
			if p&0x0F != 0 {
				n++
			}
			if p&0xF0 != 0 {
				n++
			}
		}
		if b.count&1 == 1 && b.data[full]&0x0F != 0 {
			n++
		}
		return n
	default:
		var n uint64
		for i := uint64(0); i < b.count; i++ {
			if b.Read(i) != 0 {
				n++
			}
		}
		return n
	}
}

// Reset zeroes every slot.
func (b *Buffer) Reset() {
	clear(b.data)
}

// Popcount returns the number of set bits in p.
func Popcount(p []byte) uint64 {
	var n uint64
	i := 0
	for ; i+8 <= len(p); i += 8 {
		n += uint64(bits.OnesCount64(binary.LittleEndian.Uint64(p[i:])))
	}
	for ; i < len(p); i++ {
		n += uint64(bits.OnesCount8(p[i]))
	}
	return n
}
