package message

import (
	"bytes"
	"errors"

	binpkg "github.com/richielo/basicFusion/internal/binary"
)

var errTruncated = errors.New("truncated message")

// cursor walks a message body. The first short read sets err; every later
// read returns zero values, so a parser checks err once at the end.
type cursor struct {
	b   []byte
	pos int
	err error

	offsetSize, lengthSize int
}

func newCursor(b []byte, r *binpkg.Reader) *cursor {
	return &cursor{b: b, offsetSize: r.OffsetSize(), lengthSize: r.LengthSize()}
}

func (p *cursor) take(n int) []byte {
	if p.err != nil {
		return nil
	}
	if n < 0 || p.pos+n > len(p.b) {
		p.err = errTruncated
		return nil
	}
	s := p.b[p.pos : p.pos+n]
	p.pos += n
	return s
}

func (p *cursor) skip(n int) { p.take(n) }

func (p *cursor) uint(n int) uint64 {
	var v uint64
	s := p.take(n)
	for i := len(s) - 1; i >= 0; i-- {
		v = v<<8 | uint64(s[i])
	}
	return v
}

func (p *cursor) u8() uint8   { return uint8(p.uint(1)) }
func (p *cursor) u16() uint16 { return uint16(p.uint(2)) }
func (p *cursor) u32() uint32 { return uint32(p.uint(4)) }

func (p *cursor) offset() uint64 { return p.uint(p.offsetSize) }
func (p *cursor) length() uint64 { return p.uint(p.lengthSize) }

// rest returns a copy of everything not yet read.
func (p *cursor) rest() []byte {
	if p.err != nil || p.pos >= len(p.b) {
		return nil
	}
	return append([]byte(nil), p.b[p.pos:]...)
}

// name reads a NUL-terminated name. Padded names fill a multiple of eight
// bytes, terminator included.
func (p *cursor) name(padded bool) string {
	if p.err != nil {
		return ""
	}
	end := bytes.IndexByte(p.b[p.pos:], 0)
	if end < 0 {
		p.err = errTruncated
		return ""
	}
	s := string(p.b[p.pos : p.pos+end])
	n := end + 1
	if padded {
		n = (n + 7) &^ 7
	}
	p.skip(n)
	return s
}

// field reads an n byte string field, dropping anything from the first NUL.
func (p *cursor) field(n int) string {
	s := p.take(n)
	if i := bytes.IndexByte(s, 0); i >= 0 {
		s = s[:i]
	}
	return string(s)
}

func (p *cursor) datatype() *Datatype {
	if p.err != nil {
		return nil
	}
	dt, n, err := decodeDatatype(p.b[p.pos:])
	if err != nil {
		p.err = err
		return nil
	}
	p.pos += n
	return dt
}

// pad advances to the next multiple of align, stopping at the end of the
// body.
func (p *cursor) pad(align int) {
	if r := p.pos % align; r != 0 && p.err == nil {
		p.pos = min(p.pos+align-r, len(p.b))
	}
}

// appendUint appends the low n bytes of v, little-endian.
func appendUint(b []byte, v uint64, n int) []byte {
	for i := 0; i < n; i++ {
		b = append(b, byte(v>>(8*i)))
	}
	return b
}
