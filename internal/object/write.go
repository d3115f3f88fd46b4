package object

import (
	"fmt"

	"github.com/richielo/basicFusion/internal/binary"
	"github.com/richielo/basicFusion/internal/message"
)

// MinGroupChunkSize is the smallest message area given to group headers,
// the same reserve the HDF5 library leaves for later links.
const MinGroupChunkSize = 120

type buffer struct{ b []byte }

func (m *buffer) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(m.b) {
		m.b = append(m.b, make([]byte, end-len(m.b))...)
	}
	copy(m.b[off:], p)
	return len(p), nil
}

// Encode renders messages as a version 2 object header whose message area
// is padded with a NIL message to at least minChunk bytes. Messages that
// cannot be serialized are left out. Address and offset widths follow w.
func Encode(w *binary.Writer, messages []message.Message, minChunk int) ([]byte, error) {
	area := &buffer{}
	bw := binary.NewWriter(area, binary.Config{
		ByteOrder:  w.ByteOrder(),
		OffsetSize: w.OffsetSize(),
		LengthSize: w.LengthSize(),
	})
	for _, m := range messages {
		s, ok := m.(message.Serializable)
		if !ok {
			continue
		}
		size := s.SerializedSize(bw)
		if size > 0xffff {
			return nil, fmt.Errorf("message type %#x is %d bytes, too large for a header", uint16(m.Type()), size)
		}
		if err := bw.WriteBytes([]byte{byte(m.Type()), byte(size), byte(size >> 8), 0}); err != nil {
			return nil, err
		}
		start := bw.Pos()
		if err := s.Serialize(bw); err != nil {
			return nil, fmt.Errorf("message type %#x: %w", uint16(m.Type()), err)
		}
		if n := bw.Pos() - start; n != int64(size) {
			return nil, fmt.Errorf("message type %#x wrote %d bytes, sized %d", uint16(m.Type()), n, size)
		}
	}

	body := area.b
	if gap := minChunk - len(body); gap > 0 {
		gap = max(gap, 4)
		body = append(body, 0, byte(gap-4), byte((gap-4)>>8), 0)
		body = append(body, make([]byte, gap-4)...)
	}

	code, width := sizeField(len(body))
	out := append([]byte(nil), sigHeader...)
	out = append(out, 2, code)
	for i := 0; i < width; i++ {
		out = append(out, byte(len(body)>>(8*i)))
	}
	out = append(out, body...)
	return le.AppendUint32(out, binary.Lookup3Checksum(out)), nil
}

// sizeField is the flag code and byte width for a chunk size of n.
func sizeField(n int) (uint8, int) {
	switch {
	case n <= 0xff:
		return 0, 1
	case n <= 0xffff:
		return 1, 2
	case uint64(n) <= 0xffffffff:
		return 2, 4
	}
	return 3, 8
}

// GroupMessages lists the messages of a compact new-style group.
func GroupMessages(links []*message.Link) []message.Message {
	msgs := make([]message.Message, 0, len(links)+2)
	msgs = append(msgs, message.NewLinkInfo(), message.NewGroupInfo())
	for _, l := range links {
		msgs = append(msgs, l)
	}
	return msgs
}
