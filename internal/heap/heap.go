// Package heap reads the two HDF5 heaps a reader meets: the local heap
// holding member names of old-style groups, and global heap collections
// holding variable-length strings.
package heap

import (
	"bytes"
	"fmt"

	"github.com/richielo/basicFusion/internal/binary"
)

func expect(r *binary.Reader, sig string) error {
	got, err := r.ReadBytes(len(sig))
	if err != nil {
		return err
	}
	if string(got) != sig {
		return fmt.Errorf("found %q where %s was expected", got, sig)
	}
	return nil
}

// cstring returns b up to its first NUL.
func cstring(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// Local is a local heap: one data segment addressed by byte offset.
type Local struct {
	data []byte
}

func ReadLocal(r *binary.Reader, addr uint64) (*Local, error) {
	hr := r.At(int64(addr))
	if err := expect(hr, "HEAP"); err != nil {
		return nil, fmt.Errorf("local heap at %d: %w", addr, err)
	}
	version, err := hr.ReadUint8()
	if err != nil {
		return nil, err
	}
	if version != 0 {
		return nil, fmt.Errorf("local heap version %d is not supported", version)
	}
	hr.Skip(3)
	size, err := hr.ReadLength()
	if err != nil {
		return nil, err
	}
	hr.Skip(int64(r.LengthSize())) // free list head
	dataAddr, err := hr.ReadOffset()
	if err != nil {
		return nil, err
	}
	data, err := r.At(int64(dataAddr)).ReadBytes(int(size))
	if err != nil {
		return nil, fmt.Errorf("local heap data at %d: %w", dataAddr, err)
	}
	return &Local{data: data}, nil
}

// String returns the NUL-terminated string at off, or "" past the end.
func (h *Local) String(off uint64) string {
	if off >= uint64(len(h.data)) {
		return ""
	}
	return cstring(h.data[off:])
}

// Collection is one global heap collection, objects keyed by index.
type Collection struct {
	objects map[uint16][]byte
}

// ReadCollection reads the collection at addr. Objects are padded to eight
// bytes; index 0 is the free space marker and ends the walk.
func ReadCollection(r *binary.Reader, addr uint64) (*Collection, error) {
	if addr == 0 || r.IsUndefinedOffset(addr) {
		return nil, fmt.Errorf("global heap address %d is not valid", addr)
	}
	hr := r.At(int64(addr))
	if err := expect(hr, "GCOL"); err != nil {
		return nil, fmt.Errorf("global heap at %d: %w", addr, err)
	}
	version, err := hr.ReadUint8()
	if err != nil {
		return nil, err
	}
	if version != 1 {
		return nil, fmt.Errorf("global heap version %d is not supported", version)
	}
	hr.Skip(3)
	size, err := hr.ReadLength()
	if err != nil {
		return nil, err
	}

	c := &Collection{objects: map[uint16][]byte{}}
	end := int64(addr + size)
	objHeader := int64(8 + r.LengthSize())
	for hr.Pos()+objHeader <= end {
		index, err := hr.ReadUint16()
		if err != nil {
			return nil, err
		}
		if index == 0 {
			break
		}
		hr.Skip(6) // reference count and reserved
		n, err := hr.ReadLength()
		if err != nil {
			return nil, err
		}
		if hr.Pos()+int64(n) > end {
			return nil, fmt.Errorf("global heap object %d overruns its collection", index)
		}
		if c.objects[index], err = hr.ReadBytes(int(n)); err != nil {
			return nil, err
		}
		hr.Align(8)
	}
	return c, nil
}

func (c *Collection) Object(index uint32) ([]byte, error) {
	b, ok := c.objects[uint16(index)]
	if !ok || index > 0xFFFF {
		return nil, fmt.Errorf("global heap object %d not found", index)
	}
	return b, nil
}

// Collections caches collections by address for one read.
type Collections struct {
	r    *binary.Reader
	seen map[uint64]*Collection
}

func NewCollections(r *binary.Reader) *Collections {
	return &Collections{r: r, seen: map[uint64]*Collection{}}
}

// String resolves a variable-length string reference: a 4 byte length,
// the collection address and a 4 byte object index. A zero address is the
// empty string.
func (cs *Collections) String(ref []byte) (string, error) {
	br := binary.NewReader(bytes.NewReader(ref), binary.Config{
		ByteOrder:  cs.r.ByteOrder(),
		OffsetSize: cs.r.OffsetSize(),
		LengthSize: cs.r.LengthSize(),
	})
	length, err := br.ReadUint32()
	if err != nil {
		return "", err
	}
	addr, err := br.ReadOffset()
	if err != nil {
		return "", err
	}
	index, err := br.ReadUint32()
	if err != nil {
		return "", err
	}
	if addr == 0 {
		return "", nil
	}
	c, ok := cs.seen[addr]
	if !ok {
		if c, err = ReadCollection(cs.r, addr); err != nil {
			return "", err
		}
		cs.seen[addr] = c
	}
	obj, err := c.Object(index)
	if err != nil {
		return "", err
	}
	if uint64(length) < uint64(len(obj)) {
		obj = obj[:length]
	}
	return cstring(obj), nil
}

// RefSize is the width of a variable-length reference.
func RefSize(offsetSize int) int { return 4 + offsetSize + 4 }
