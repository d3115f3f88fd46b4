package object

import (
	"bytes"
	stdbin "encoding/binary"
	"fmt"

	"github.com/richielo/basicFusion/internal/binary"
	"github.com/richielo/basicFusion/internal/message"
)

// Version 1 headers open with version, a reserved byte, the message count,
// the reference count and the size of the first message block, padded to
// 16 bytes. Their messages have 8 byte prefixes and 8-aligned bodies.
//
// Version 2 headers open with "OHDR", version, flags, optional times and
// attribute thresholds, and the size of the first block in 1 << (flags&3)
// bytes. Their messages have 4 byte prefixes, 6 when creation order is
// tracked. Every version 2 block ends in a checksum and continuation blocks
// start with "OCHK".

const (
	flagOrderTracked = 0x04
	flagThresholds   = 0x10
	flagTimes        = 0x20

	// upper bound on continuation blocks per header, against cycles
	maxBlocks = 1 << 12
)

var (
	sigHeader       = []byte("OHDR")
	sigContinuation = []byte("OCHK")
	le              = stdbin.LittleEndian
)

type walker struct {
	r       *binary.Reader
	h       *Header
	pending []*message.Continuation
}

// Read parses the object header at address, following continuation blocks.
func Read(r *binary.Reader, address uint64) (*Header, error) {
	peek, err := r.At(int64(address)).Peek(4)
	if err != nil {
		return nil, fmt.Errorf("object header at %d: %w", address, err)
	}
	w := &walker{r: r, h: &Header{Address: address}}

	var body []byte
	switch {
	case bytes.Equal(peek, sigHeader):
		body, err = w.firstV2()
	case peek[0] == 1:
		body, err = w.firstV1()
	default:
		return nil, fmt.Errorf("%w at %d", ErrInvalidHeader, address)
	}
	if err == nil {
		err = w.messages(body)
	}
	for n := 0; err == nil && len(w.pending) > 0; n++ {
		if n == maxBlocks {
			err = fmt.Errorf("%w: more than %d continuation blocks", ErrInvalidHeader, maxBlocks)
			break
		}
		next := w.pending[0]
		w.pending = w.pending[1:]
		if body, err = w.continuation(next); err == nil {
			err = w.messages(body)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("object header at %d: %w", address, err)
	}
	return w.h, nil
}

func (w *walker) firstV1() ([]byte, error) {
	prefix, err := w.r.At(int64(w.h.Address)).ReadBytes(16)
	if err != nil {
		return nil, err
	}
	w.h.Version = 1
	w.h.RefCount = le.Uint32(prefix[4:8])
	size := le.Uint32(prefix[8:12])
	return w.r.At(int64(w.h.Address) + 16).ReadBytes(int(size))
}

func (w *walker) firstV2() ([]byte, error) {
	br := w.r.At(int64(w.h.Address) + 4)
	version, err := br.ReadUint8()
	if err != nil {
		return nil, err
	}
	if version != 2 {
		return nil, fmt.Errorf("%w: version %d", ErrInvalidHeader, version)
	}
	flags, err := br.ReadUint8()
	if err != nil {
		return nil, err
	}
	w.h.Version, w.h.Flags = 2, flags
	if flags&flagTimes != 0 {
		times, err := br.ReadBytes(16)
		if err != nil {
			return nil, err
		}
		w.h.ModTime = le.Uint32(times[4:8])
	}
	if flags&flagThresholds != 0 {
		br.Skip(4)
	}
	size, err := br.ReadUintN(1 << (flags & 0x03))
	if err != nil {
		return nil, err
	}

	// the checksum covers everything from the signature on
	prefixLen := int(br.Pos() - int64(w.h.Address))
	raw, err := w.r.At(int64(w.h.Address)).ReadBytes(prefixLen + int(size) + 4)
	if err != nil {
		return nil, err
	}
	if err := verify(raw); err != nil {
		return nil, err
	}
	return raw[prefixLen : len(raw)-4], nil
}

func (w *walker) continuation(c *message.Continuation) ([]byte, error) {
	raw, err := w.r.At(int64(c.Offset)).ReadBytes(int(c.Length))
	if err != nil {
		return nil, fmt.Errorf("continuation block at %d: %w", c.Offset, err)
	}
	if w.h.Version == 1 {
		return raw, nil
	}
	if len(raw) < 8 || !bytes.Equal(raw[:4], sigContinuation) {
		return nil, fmt.Errorf("%w: no continuation block at %d", ErrInvalidHeader, c.Offset)
	}
	if err := verify(raw); err != nil {
		return nil, err
	}
	return raw[4 : len(raw)-4], nil
}

// verify checks the trailing lookup3 checksum of a version 2 block.
func verify(raw []byte) error {
	n := len(raw) - 4
	if got, want := binary.Lookup3Checksum(raw[:n]), le.Uint32(raw[n:]); got != want {
		return fmt.Errorf("%w: stored %#08x, computed %#08x", ErrChecksumMismatch, want, got)
	}
	return nil
}

// messages decodes one block. A tail shorter than a message prefix is a
// gap and is ignored.
func (w *walker) messages(body []byte) error {
	prefix := 8
	if w.h.Version == 2 {
		prefix = 4
		if w.h.Flags&flagOrderTracked != 0 {
			prefix = 6
		}
	}
	for len(body) >= prefix {
		var (
			typ   message.Type
			size  int
			flags uint8
		)
		if w.h.Version == 2 {
			typ, size, flags = message.Type(body[0]), int(le.Uint16(body[1:3])), body[3]
		} else {
			typ, size, flags = message.Type(le.Uint16(body[0:2])), int(le.Uint16(body[2:4])), body[4]
		}
		body = body[prefix:]
		if size > len(body) {
			return fmt.Errorf("%w: message type %#x runs past its block", ErrInvalidHeader, uint16(typ))
		}
		w.add(typ, body[:size], flags)
		if w.h.Version == 1 {
			size = min((size+7)&^7, len(body))
		}
		body = body[size:]
	}
	return nil
}

func (w *walker) add(typ message.Type, data []byte, flags uint8) {
	if typ == message.TypeNIL {
		return
	}
	msg, err := message.Parse(typ, data, flags, w.r)
	if err != nil {
		w.h.Skipped = append(w.h.Skipped, err)
		return
	}
	switch m := msg.(type) {
	case *message.Continuation:
		w.pending = append(w.pending, m)
		return
	case *message.ModTime:
		w.h.ModTime = m.Seconds
	}
	w.h.Messages = append(w.h.Messages, msg)
}
