package binary

import "math/bits"

// Lookup3Checksum is Bob Jenkins' hashlittle with a zero seed, the metadata
// checksum of version 2 superblocks and object headers.
func Lookup3Checksum(data []byte) uint32 {
	a := 0xdeadbeef + uint32(len(data))
	b, c := a, a

	// The last block, even a full one, goes through the final mix only.
	for ; len(data) > 12; data = data[12:] {
		a += le32(data[0:4])
		b += le32(data[4:8])
		c += le32(data[8:12])
		a, b, c = mix(a, b, c)
	}
	if len(data) == 0 {
		return c
	}

	var tail [12]byte
	copy(tail[:], data)
	a += le32(tail[0:4])
	b += le32(tail[4:8])
	c += le32(tail[8:12])
	_, _, c = final(a, b, c)
	return c
}

func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func mix(a, b, c uint32) (uint32, uint32, uint32) {
	a -= c
	a ^= bits.RotateLeft32(c, 4)
	c += b
	b -= a
	b ^= bits.RotateLeft32(a, 6)
	a += c
	c -= b
	c ^= bits.RotateLeft32(b, 8)
	b += a
	a -= c
	a ^= bits.RotateLeft32(c, 16)
	c += b
	b -= a
	b ^= bits.RotateLeft32(a, 19)
	a += c
	c -= b
	c ^= bits.RotateLeft32(b, 4)
	b += a
	return a, b, c
}

func final(a, b, c uint32) (uint32, uint32, uint32) {
	c ^= b
	c -= bits.RotateLeft32(b, 14)
	a ^= c
	a -= bits.RotateLeft32(c, 11)
	b ^= a
	b -= bits.RotateLeft32(a, 25)
	c ^= b
	c -= bits.RotateLeft32(b, 16)
	a ^= c
	a -= bits.RotateLeft32(c, 4)
	b ^= a
	b -= bits.RotateLeft32(a, 14)
	c ^= b
	c -= bits.RotateLeft32(b, 24)
	return a, b, c
}

// Fletcher32 is the checksum of the HDF5 fletcher32 filter. Words are read
// big endian, a trailing odd byte is the high half of a final word, and the
// sums are folded to 16 bits every 360 words.
func Fletcher32(data []byte) uint32 {
	var s1, s2 uint32
	fold := func() {
		s1 = s1&0xffff + s1>>16
		s2 = s2&0xffff + s2>>16
	}
	words := len(data) / 2
	for words > 0 {
		n := min(words, 360)
		words -= n
		for ; n > 0; n-- {
			s1 += uint32(data[0])<<8 | uint32(data[1])
			s2 += s1
			data = data[2:]
		}
		fold()
	}
	if len(data) == 1 {
		s1 += uint32(data[0]) << 8
		s2 += s1
		fold()
	}
	fold()
	return s2<<16 | s1
}
