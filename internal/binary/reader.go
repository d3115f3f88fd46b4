package binary

import (
	"encoding/binary"
	"io"
)

// Reader is a cursor over an io.ReaderAt. Copies made with At share the
// source but move independently.
type Reader struct {
	src io.ReaderAt
	cfg Config
	pos int64
}

func NewReader(src io.ReaderAt, cfg Config) *Reader {
	return &Reader{src: src, cfg: cfg}
}

// At returns a reader over the same source positioned at off.
func (r *Reader) At(off int64) *Reader {
	return &Reader{src: r.src, cfg: r.cfg, pos: off}
}

func (r *Reader) Pos() int64                  { return r.pos }
func (r *Reader) OffsetSize() int             { return r.cfg.OffsetSize }
func (r *Reader) LengthSize() int             { return r.cfg.LengthSize }
func (r *Reader) ByteOrder() binary.ByteOrder { return r.cfg.ByteOrder }

func (r *Reader) Skip(n int64) { r.pos += n }

// Align moves the cursor forward to the next multiple of alignment.
func (r *Reader) Align(alignment int64) { r.pos += pad(r.pos, alignment) }

// Peek returns the next n bytes without consuming them.
func (r *Reader) Peek(n int) ([]byte, error) {
	if n <= 0 {
		return nil, nil
	}
	b := make([]byte, n)
	if _, err := r.src.ReadAt(b, r.pos); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *Reader) ReadBytes(n int) ([]byte, error) {
	b, err := r.Peek(n)
	if err != nil || b == nil {
		return nil, err
	}
	r.pos += int64(n)
	return b, nil
}

// ReadUintN reads an n byte unsigned integer.
func (r *Reader) ReadUintN(n int) (uint64, error) {
	b, err := r.ReadBytes(n)
	if err != nil {
		return 0, err
	}
	return getUint(r.cfg.ByteOrder, b), nil
}

func (r *Reader) ReadUint8() (uint8, error) {
	v, err := r.ReadUintN(1)
	return uint8(v), err
}

func (r *Reader) ReadUint16() (uint16, error) {
	v, err := r.ReadUintN(2)
	return uint16(v), err
}

func (r *Reader) ReadUint32() (uint32, error) {
	v, err := r.ReadUintN(4)
	return uint32(v), err
}

func (r *Reader) ReadUint64() (uint64, error) { return r.ReadUintN(8) }

// ReadOffset reads a file address.
func (r *Reader) ReadOffset() (uint64, error) { return r.ReadUintN(r.cfg.OffsetSize) }

// ReadLength reads a size field.
func (r *Reader) ReadLength() (uint64, error) { return r.ReadUintN(r.cfg.LengthSize) }

// IsUndefinedOffset reports whether addr is the all-ones "no address" value.
func (r *Reader) IsUndefinedOffset(addr uint64) bool {
	return addr == undefined(r.cfg.OffsetSize)
}
