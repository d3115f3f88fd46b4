package superblock

import (
	"encoding/binary"

	binpkg "github.com/richielo/basicFusion/internal/binary"
)

// NewSuperblock returns a version 3 superblock with 8 byte addresses.
func NewSuperblock() *Superblock {
	return &Superblock{
		Version:    3,
		OffsetSize: 8,
		LengthSize: 8,
		ByteOrder:  binary.LittleEndian,
	}
}

// Size is the encoded length of a version 2 or 3 superblock.
func (sb *Superblock) Size() int {
	o := int(sb.OffsetSize)
	if o == 0 {
		o = 8
	}
	return 12 + 4*o + 4
}

// Write encodes sb as version 2 or 3 at the writer's position. Versions 0
// and 1 are never written. A zero extension address is written as undefined.
func (sb *Superblock) Write(w *binpkg.Writer) (int64, error) {
	version := sb.Version
	if version < 2 {
		version = 2
	}

	buf := &memWriterAt{}
	bw := binpkg.NewWriter(buf, binpkg.Config{
		ByteOrder:  binary.LittleEndian,
		OffsetSize: w.OffsetSize(),
		LengthSize: w.LengthSize(),
	})
	if err := bw.WriteBytes(Signature); err != nil {
		return 0, err
	}
	if err := bw.WriteBytes([]byte{version, sb.OffsetSize, sb.LengthSize, sb.FileConsistencyFlags}); err != nil {
		return 0, err
	}

	ext := sb.SuperblockExtensionAddress
	if ext == 0 {
		ext = bw.UndefinedOffset()
	}
	for _, addr := range []uint64{sb.BaseAddress, ext, sb.EOFAddress, sb.RootGroupAddress} {
		if err := bw.WriteOffset(addr); err != nil {
			return 0, err
		}
	}
	if err := bw.WriteUint32(binpkg.Lookup3Checksum(buf.b)); err != nil {
		return 0, err
	}

	if err := w.WriteBytes(buf.b); err != nil {
		return 0, err
	}
	return int64(len(buf.b)), nil
}

type memWriterAt struct{ b []byte }

func (m *memWriterAt) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(m.b) {
		m.b = append(m.b, make([]byte, end-len(m.b))...)
	}
	copy(m.b[off:], p)
	return len(p), nil
}
