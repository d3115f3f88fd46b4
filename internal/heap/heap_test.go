package heap

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	binpkg "github.com/richielo/basicFusion/internal/binary"
)

var cfg = binpkg.Config{ByteOrder: binary.LittleEndian, OffsetSize: 8, LengthSize: 8}

type buffer struct{ b []byte }

func (m *buffer) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(m.b) {
		m.b = append(m.b, make([]byte, end-len(m.b))...)
	}
	copy(m.b[off:], p)
	return len(p), nil
}

// collection writes a global heap collection at addr holding objs under
// indexes 1..n and returns the writer's buffer.
func collection(buf *buffer, addr int64, objs ...string) {
	w := binpkg.NewWriter(buf, cfg).At(addr)
	w.WriteBytes([]byte("GCOL"))
	w.WriteUint8(1)
	w.WriteZeros(3)
	sizeAt := w.Pos()
	w.WriteLength(0)
	for i, o := range objs {
		w.WriteUint16(uint16(i + 1))
		w.WriteUint16(1)
		w.WriteZeros(4)
		w.WriteLength(uint64(len(o)))
		w.WriteBytes([]byte(o))
		w.Align(8)
	}
	// free space object
	w.WriteUint16(0)
	w.WriteZeros(6)
	w.WriteLength(0)
	binpkg.NewWriter(buf, cfg).At(sizeAt).WriteLength(uint64(w.Pos() - addr))
}

func ref(addr uint64, index uint32, length uint32) []byte {
	b := binary.LittleEndian.AppendUint32(nil, length)
	b = binary.LittleEndian.AppendUint64(b, addr)
	return binary.LittleEndian.AppendUint32(b, index)
}

func TestLocal(t *testing.T) {
	buf := &buffer{}
	w := binpkg.NewWriter(buf, cfg).At(8)
	w.WriteBytes([]byte("HEAP"))
	w.WriteUint8(0)
	w.WriteZeros(3)
	w.WriteLength(24)
	w.WriteLength(^uint64(0))
	w.WriteOffset(64)
	binpkg.NewWriter(buf, cfg).At(64).WriteBytes([]byte("\x00Data_Fields\x00geo\x00\x00\x00\x00\x00\x00\x00\x00"))

	h, err := ReadLocal(binpkg.NewReader(bytes.NewReader(buf.b), cfg), 8)
	require.NoError(t, err)
	assert.Equal(t, "", h.String(0))
	assert.Equal(t, "Data_Fields", h.String(1))
	assert.Equal(t, "geo", h.String(13))
	assert.Equal(t, "", h.String(400))

	_, err = ReadLocal(binpkg.NewReader(bytes.NewReader(buf.b), cfg), 64)
	assert.Error(t, err)
}

func TestCollections(t *testing.T) {
	buf := &buffer{}
	collection(buf, 16, "Terra", "MOPITT level 1\x00", "")
	r := binpkg.NewReader(bytes.NewReader(buf.b), cfg)

	c, err := ReadCollection(r, 16)
	require.NoError(t, err)
	obj, err := c.Object(2)
	require.NoError(t, err)
	assert.Equal(t, []byte("MOPITT level 1\x00"), obj)
	_, err = c.Object(9)
	assert.Error(t, err)

	heaps := NewCollections(r)
	for _, tt := range []struct {
		ref  []byte
		want string
	}{
		{ref(16, 1, 5), "Terra"},
		{ref(16, 2, 15), "MOPITT level 1"},
		{ref(16, 1, 3), "Ter"},
		{ref(0, 0, 0), ""},
	} {
		got, err := heaps.String(tt.ref)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
	assert.Len(t, heaps.seen, 1)

	_, err = heaps.String(ref(16, 7, 1))
	assert.Error(t, err)
	_, err = ReadCollection(r, 0)
	assert.Error(t, err)
}

func TestRefSize(t *testing.T) {
	assert.Equal(t, 16, RefSize(8))
	assert.Equal(t, 12, RefSize(4))
}
