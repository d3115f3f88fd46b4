package binary

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type buffer struct{ b []byte }

func (m *buffer) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(m.b) {
		m.b = append(m.b, make([]byte, end-len(m.b))...)
	}
	copy(m.b[off:], p)
	return len(p), nil
}

func TestLookup3KnownValues(t *testing.T) {
	assert.Equal(t, uint32(0xdeadbeef), Lookup3Checksum(nil))
	assert.Equal(t, uint32(0x17770551), Lookup3Checksum([]byte("Four score and seven years ago")))
}

func TestFletcher32(t *testing.T) {
	assert.Equal(t, uint32(0), Fletcher32(nil))
	assert.Equal(t, uint32(0x05080406), Fletcher32([]byte{1, 2, 3, 4}))
	assert.Equal(t, uint32(0x05040402), Fletcher32([]byte{1, 2, 3}))

	// longer than one 360 word block
	long := bytes.Repeat([]byte{0x12, 0x34}, 1000)
	assert.NotEqual(t, Fletcher32(long), Fletcher32(long[:len(long)-2]))
}

func TestReaderWriterWidths(t *testing.T) {
	for _, size := range []int{2, 4, 8} {
		cfg := Config{ByteOrder: binary.LittleEndian, OffsetSize: size, LengthSize: size}
		buf := &buffer{}
		w := NewWriter(buf, cfg)

		require.NoError(t, w.WriteUint8(7))
		require.NoError(t, w.WriteUint16(0xbeef))
		require.NoError(t, w.WriteOffset(0x1234))
		require.NoError(t, w.WriteLength(0x42))
		require.NoError(t, w.WriteOffset(w.UndefinedOffset()))
		w.Align(8)
		require.NoError(t, w.WriteUint32(0xcafef00d))
		require.NoError(t, w.WriteZeros(3))
		require.NoError(t, w.WriteUintN(0x0a0b0c, 3))

		r := NewReader(bytes.NewReader(buf.b), cfg)
		u8, err := r.ReadUint8()
		require.NoError(t, err)
		assert.Equal(t, uint8(7), u8)
		u16, err := r.ReadUint16()
		require.NoError(t, err)
		assert.Equal(t, uint16(0xbeef), u16)
		off, err := r.ReadOffset()
		require.NoError(t, err)
		assert.Equal(t, uint64(0x1234), off)
		n, err := r.ReadLength()
		require.NoError(t, err)
		assert.Equal(t, uint64(0x42), n)
		undef, err := r.ReadOffset()
		require.NoError(t, err)
		assert.True(t, r.IsUndefinedOffset(undef), "size %d", size)
		r.Align(8)
		assert.Equal(t, w.Pos()-10, r.Pos())

		peek, err := r.Peek(4)
		require.NoError(t, err)
		assert.Equal(t, r.Pos(), w.Pos()-10, "peek does not move")
		assert.Equal(t, []byte{0x0d, 0xf0, 0xfe, 0xca}, peek)
		r.Skip(7)
		v, err := r.ReadUintN(3)
		require.NoError(t, err)
		assert.Equal(t, uint64(0x0a0b0c), v)

		_, err = r.ReadUint8()
		assert.Error(t, err, "past the end")
	}
}

func TestAtIsIndependent(t *testing.T) {
	cfg := Config{ByteOrder: binary.BigEndian, OffsetSize: 4, LengthSize: 4}
	r := NewReader(bytes.NewReader([]byte{0, 1, 0, 2, 0, 3}), cfg)
	sub := r.At(2)
	v, err := sub.ReadUint16()
	require.NoError(t, err)
	assert.Equal(t, uint16(2), v)
	assert.Equal(t, int64(0), r.Pos())
	assert.Equal(t, 4, sub.OffsetSize())
	assert.Equal(t, binary.BigEndian, sub.ByteOrder())
}

func TestUintRoundTrip(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	properties := gopter.NewProperties(params)

	properties.Property("WriteUintN then ReadUintN keeps the low bytes", prop.ForAll(
		func(v uint64, n int, big bool) bool {
			cfg := Config{ByteOrder: binary.LittleEndian}
			if big {
				cfg.ByteOrder = binary.BigEndian
			}
			buf := &buffer{}
			if err := NewWriter(buf, cfg).WriteUintN(v, n); err != nil {
				return false
			}
			got, err := NewReader(bytes.NewReader(buf.b), cfg).ReadUintN(n)
			return err == nil && got == v&undefined(n)
		},
		gen.UInt64(),
		gen.IntRange(1, 8),
		gen.Bool(),
	))
	properties.TestingRun(t)
}
