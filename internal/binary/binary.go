// Package binary reads and writes the HDF5 on-disk encoding: fixed-width
// integers plus the file-specific "offset" and "length" fields whose width
// comes from the superblock.
package binary

import "encoding/binary"

// Config describes the encoding of a file.
type Config struct {
	ByteOrder  binary.ByteOrder
	OffsetSize int
	LengthSize int
}

// undefined is the all-ones address sentinel for a field of n bytes.
func undefined(n int) uint64 {
	if n >= 8 {
		return ^uint64(0)
	}
	return 1<<(8*uint(n)) - 1
}

func getUint(order binary.ByteOrder, b []byte) uint64 {
	switch len(b) {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(order.Uint16(b))
	case 4:
		return uint64(order.Uint32(b))
	case 8:
		return order.Uint64(b)
	}
	// odd widths are always little endian
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func putUint(order binary.ByteOrder, b []byte, v uint64) {
	switch len(b) {
	case 1:
		b[0] = byte(v)
	case 2:
		order.PutUint16(b, uint16(v))
	case 4:
		order.PutUint32(b, uint32(v))
	case 8:
		order.PutUint64(b, v)
	default:
		for i := range b {
			b[i] = byte(v >> (8 * uint(i)))
		}
	}
}

func pad(pos, alignment int64) int64 {
	if alignment <= 1 {
		return 0
	}
	if r := pos % alignment; r != 0 {
		return alignment - r
	}
	return 0
}
