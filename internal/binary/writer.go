package binary

import (
	"encoding/binary"
	"io"
)

// Writer is the write-side counterpart of Reader.
type Writer struct {
	dst io.WriterAt
	cfg Config
	pos int64
}

func NewWriter(dst io.WriterAt, cfg Config) *Writer {
	return &Writer{dst: dst, cfg: cfg}
}

// At returns a writer over the same destination positioned at off.
func (w *Writer) At(off int64) *Writer {
	return &Writer{dst: w.dst, cfg: w.cfg, pos: off}
}

func (w *Writer) Pos() int64                  { return w.pos }
func (w *Writer) OffsetSize() int             { return w.cfg.OffsetSize }
func (w *Writer) LengthSize() int             { return w.cfg.LengthSize }
func (w *Writer) ByteOrder() binary.ByteOrder { return w.cfg.ByteOrder }

func (w *Writer) Skip(n int64) { w.pos += n }

func (w *Writer) Align(alignment int64) { w.pos += pad(w.pos, alignment) }

func (w *Writer) WriteBytes(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	n, err := w.dst.WriteAt(b, w.pos)
	w.pos += int64(n)
	return err
}

func (w *Writer) WriteZeros(n int) error {
	if n <= 0 {
		return nil
	}
	return w.WriteBytes(make([]byte, n))
}

// WriteUintN writes v in n bytes, truncating high bits.
func (w *Writer) WriteUintN(v uint64, n int) error {
	b := make([]byte, n)
	putUint(w.cfg.ByteOrder, b, v)
	return w.WriteBytes(b)
}

func (w *Writer) WriteUint8(v uint8) error   { return w.WriteUintN(uint64(v), 1) }
func (w *Writer) WriteUint16(v uint16) error { return w.WriteUintN(uint64(v), 2) }
func (w *Writer) WriteUint32(v uint32) error { return w.WriteUintN(uint64(v), 4) }
func (w *Writer) WriteUint64(v uint64) error { return w.WriteUintN(v, 8) }

func (w *Writer) WriteOffset(v uint64) error { return w.WriteUintN(v, w.cfg.OffsetSize) }
func (w *Writer) WriteLength(v uint64) error { return w.WriteUintN(v, w.cfg.LengthSize) }

// UndefinedOffset is the address written for "nothing here".
func (w *Writer) UndefinedOffset() uint64 { return undefined(w.cfg.OffsetSize) }
