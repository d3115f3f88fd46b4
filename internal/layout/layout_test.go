package layout

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	binpkg "github.com/richielo/basicFusion/internal/binary"
	"github.com/richielo/basicFusion/internal/message"
)

var cfg = binpkg.Config{ByteOrder: binary.LittleEndian, OffsetSize: 8, LengthSize: 8}

const unlimited = ^uint64(0)

// file is an in-memory HDF5 address space. Structures are appended at
// 8-byte aligned addresses; address 0 is never handed out.
type file struct{ b []byte }

func (f *file) WriteAt(p []byte, off int64) (int, error) {
	if end := int(off) + len(p); end > len(f.b) {
		f.b = append(f.b, make([]byte, end-len(f.b))...)
	}
	copy(f.b[off:], p)
	return len(p), nil
}

func newFile() *file { return &file{b: make([]byte, 16)} }

func (f *file) put(fn func(w *binpkg.Writer)) uint64 {
	addr := (len(f.b) + 7) &^ 7
	fn(binpkg.NewWriter(f, cfg).At(int64(addr)))
	return uint64(addr)
}

func (f *file) raw(b []byte) uint64 {
	return f.put(func(w *binpkg.Writer) { w.WriteBytes(b) })
}

func (f *file) reader() *binpkg.Reader { return binpkg.NewReader(bytes.NewReader(f.b), cfg) }

// The fixture is a 5x4 int16 dataset holding 10*row+col, stored in 2x3
// chunks: a 3x2 grid whose last row and column are partial.
var (
	dims    = []uint64{5, 4}
	chunk   = []uint32{2, 3, 2}
	origins = [][]uint64{{0, 0}, {0, 3}, {2, 0}, {2, 3}, {4, 0}, {4, 3}}
	int16LE = &message.Datatype{Class: message.ClassFixedPoint, Size: 2}
)

func value(i, j uint64) uint16 { return uint16(10*i + j) }

func whole() []byte {
	out := make([]byte, 0, 5*4*2)
	for i := uint64(0); i < 5; i++ {
		for j := uint64(0); j < 4; j++ {
			out = binary.LittleEndian.AppendUint16(out, value(i, j))
		}
	}
	return out
}

// chunkData is a full chunk; cells past the dataset edge are zero.
func chunkData(off []uint64) []byte {
	out := make([]byte, 0, 2*3*2)
	for a := uint64(0); a < 2; a++ {
		for b := uint64(0); b < 3; b++ {
			i, j := off[0]+a, off[1]+b
			v := uint16(0)
			if i < 5 && j < 4 {
				v = value(i, j)
			}
			out = binary.LittleEndian.AppendUint16(out, v)
		}
	}
	return out
}

func deflate(t *testing.T, b []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	_, err := zw.Write(b)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

var deflatePipeline = &message.FilterPipeline{
	Version: 2,
	Filters: []message.FilterInfo{{ID: message.FilterDeflate, ClientData: []uint32{6}}},
}

func open(t *testing.T, f *file, msg *message.DataLayout, fp *message.FilterPipeline, maxDims []uint64) *Chunked {
	t.Helper()
	msg.Class = message.LayoutChunked
	msg.ChunkDims = chunk
	space := &message.Dataspace{Version: 2, Rank: 2, Dimensions: dims, MaxDims: maxDims}
	c, err := NewChunked(msg, space, int16LE, fp, f.reader())
	require.NoError(t, err)
	return c
}

// zeroCell clears cell (i, j) of a row-major 5x4 int16 buffer.
func zeroCell(b []byte, i, j int) {
	binary.LittleEndian.PutUint16(b[(i*4+j)*2:], 0)
}

func TestExtract(t *testing.T) {
	data := make([]byte, 12)
	for i := range data {
		data[i] = byte(i)
	}
	got := extract(data, []uint64{3, 4}, []uint64{1, 1}, []uint64{2, 2}, 1)
	assert.Equal(t, []byte{5, 6, 9, 10}, got)

	dst := make([]byte, 6)
	copyBox(dst, []uint64{2, 3}, []uint64{0, 1}, data, []uint64{3, 4}, []uint64{2, 2}, []uint64{2, 2}, 1)
	// the second row would read past the source and is dropped
	assert.Equal(t, []byte{0, 10, 11, 0, 0, 0}, dst)
}

func TestCompact(t *testing.T) {
	msg := &message.DataLayout{Version: 3, Class: message.LayoutCompact, CompactData: []byte{0, 1, 2, 3, 4, 5, 6, 7}}
	l, err := New(msg, message.NewDataspace([]uint64{2, 4}, nil), &message.Datatype{Size: 1}, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, message.LayoutCompact, l.Class())

	all, err := l.Read()
	require.NoError(t, err)
	assert.Equal(t, msg.CompactData, all)

	got, err := l.ReadSlice([]uint64{0, 2}, []uint64{2, 2})
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 3, 6, 7}, got)

	_, err = l.ReadSlice([]uint64{1, 0}, []uint64{2, 4})
	assert.Error(t, err)
}

func TestContiguous(t *testing.T) {
	f := newFile()
	addr := f.raw(whole())
	space := message.NewDataspace(dims, nil)

	l, err := New(&message.DataLayout{Version: 3, Class: message.LayoutContiguous, Address: addr, Size: 40}, space, int16LE, nil, nil, f.reader())
	require.NoError(t, err)

	all, err := l.Read()
	require.NoError(t, err)
	assert.Equal(t, whole(), all)

	rows, err := l.ReadSlice([]uint64{1, 0}, []uint64{2, 4})
	require.NoError(t, err)
	assert.Equal(t, whole()[8:24], rows)

	box, err := l.ReadSlice([]uint64{1, 1}, []uint64{3, 2})
	require.NoError(t, err)
	assert.Equal(t, extract(whole(), dims, []uint64{1, 1}, []uint64{3, 2}, 2), box)

	t.Run("size from dataspace", func(t *testing.T) {
		l, err := New(&message.DataLayout{Version: 1, Class: message.LayoutContiguous, Address: addr}, space, int16LE, nil, nil, f.reader())
		require.NoError(t, err)
		all, err := l.Read()
		require.NoError(t, err)
		assert.Len(t, all, 40)
	})

	t.Run("unallocated", func(t *testing.T) {
		l, err := New(&message.DataLayout{Version: 3, Class: message.LayoutContiguous, Address: unlimited, Size: 40}, space, int16LE, nil, nil, f.reader())
		require.NoError(t, err)
		_, err = l.Read()
		assert.Error(t, err)
	})
}

type v1key struct {
	size uint32
	mask uint32
	off  []uint64
}

// tree writes a version 1 chunk B-tree node; keys has one more entry than
// children.
func (f *file) tree(level uint8, keys []v1key, children []uint64) uint64 {
	return f.put(func(w *binpkg.Writer) {
		w.WriteBytes([]byte("TREE"))
		w.WriteUint8(1)
		w.WriteUint8(level)
		w.WriteUint16(uint16(len(children)))
		w.WriteOffset(w.UndefinedOffset())
		w.WriteOffset(w.UndefinedOffset())
		for i, k := range keys {
			w.WriteUint32(k.size)
			w.WriteUint32(k.mask)
			for _, o := range k.off {
				w.WriteUint64(o)
			}
			w.WriteUint64(0)
			if i < len(children) {
				w.WriteOffset(children[i])
			}
		}
	})
}

func TestChunkedBTreeV1(t *testing.T) {
	t.Run("one leaf", func(t *testing.T) {
		f := newFile()
		var keys []v1key
		var children []uint64
		for _, o := range origins {
			keys = append(keys, v1key{size: 12, off: o})
			children = append(children, f.raw(chunkData(o)))
		}
		keys = append(keys, v1key{off: dims})
		root := f.tree(0, keys, children)

		c := open(t, f, &message.DataLayout{Version: 3, ChunkIndexAddr: root}, nil, nil)
		all, err := c.Read()
		require.NoError(t, err)
		assert.Equal(t, whole(), all)

		box, err := c.ReadSlice([]uint64{1, 2}, []uint64{3, 2})
		require.NoError(t, err)
		assert.Equal(t, extract(whole(), dims, []uint64{1, 2}, []uint64{3, 2}, 2), box)
	})

	t.Run("two levels", func(t *testing.T) {
		f := newFile()
		leaf := func(os [][]uint64) uint64 {
			var keys []v1key
			var children []uint64
			for _, o := range os {
				keys = append(keys, v1key{size: 12, off: o})
				children = append(children, f.raw(chunkData(o)))
			}
			return f.tree(0, append(keys, v1key{off: dims}), children)
		}
		a, b := leaf(origins[:3]), leaf(origins[3:])
		root := f.tree(1, []v1key{{off: origins[0]}, {off: origins[3]}, {off: dims}}, []uint64{a, b})

		c := open(t, f, &message.DataLayout{Version: 3, ChunkIndexAddr: root}, nil, nil)
		all, err := c.Read()
		require.NoError(t, err)
		assert.Equal(t, whole(), all)
	})

	t.Run("deflated with a missing chunk and a masked chunk", func(t *testing.T) {
		f := newFile()
		var keys []v1key
		var children []uint64
		for i, o := range origins {
			switch i {
			case 3:
				continue
			case 5:
				// stored raw, the deflate stage masked off
				keys = append(keys, v1key{size: 12, mask: 1, off: o})
				children = append(children, f.raw(chunkData(o)))
			default:
				z := deflate(t, chunkData(o))
				keys = append(keys, v1key{size: uint32(len(z)), off: o})
				children = append(children, f.raw(z))
			}
		}
		root := f.tree(0, append(keys, v1key{off: dims}), children)

		c := open(t, f, &message.DataLayout{Version: 3, ChunkIndexAddr: root}, deflatePipeline, nil)
		all, err := c.Read()
		require.NoError(t, err)
		want := whole()
		for _, rc := range [][2]int{{2, 3}, {3, 3}} {
			zeroCell(want, rc[0], rc[1])
		}
		assert.Equal(t, want, all)
	})

	t.Run("wrong node type", func(t *testing.T) {
		f := newFile()
		root := f.put(func(w *binpkg.Writer) {
			w.WriteBytes([]byte("TREE"))
			w.WriteBytes([]byte{0, 0, 1, 0})
		})
		c := open(t, f, &message.DataLayout{Version: 3, ChunkIndexAddr: root}, nil, nil)
		_, err := c.Read()
		assert.ErrorContains(t, err, "chunk index")
	})
}

func TestChunkedNoIndex(t *testing.T) {
	c := open(t, newFile(), &message.DataLayout{Version: 4, ChunkIndexType: message.ChunkIndexBTreeV2, ChunkIndexAddr: unlimited}, nil, nil)
	all, err := c.Read()
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 40), all)
}

func TestChunkedFillValue(t *testing.T) {
	f := newFile()
	addr := f.raw(chunkData([]uint64{0, 0}))
	msg := &message.DataLayout{Version: 4, Class: message.LayoutChunked, ChunkDims: chunk,
		ChunkIndexType: message.ChunkIndexSingle, ChunkIndexAddr: addr}
	space := message.NewDataspace(dims, nil)
	fill := &message.FillValue{Version: 3, Value: []byte{0x18, 0xfc}}

	// the one chunk covers only the top left of the dataset
	l, err := New(msg, space, int16LE, nil, fill, f.reader())
	require.NoError(t, err)
	got, err := l.ReadSlice([]uint64{4, 3}, []uint64{1, 1})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x18, 0xfc}, got)

	inChunk, err := l.ReadSlice([]uint64{0, 0}, []uint64{1, 1})
	require.NoError(t, err)
	assert.Equal(t, whole()[:2], inChunk)

	t.Run("wrong width ignored", func(t *testing.T) {
		l, err := New(msg, space, int16LE, nil, &message.FillValue{Value: []byte{1}}, f.reader())
		require.NoError(t, err)
		got, err := l.ReadSlice([]uint64{4, 3}, []uint64{1, 1})
		require.NoError(t, err)
		assert.Equal(t, []byte{0, 0}, got)
	})
}

func TestChunkedSingle(t *testing.T) {
	space := message.NewDataspace([]uint64{2, 3}, nil)
	data := chunkData([]uint64{0, 0})

	t.Run("plain", func(t *testing.T) {
		f := newFile()
		msg := &message.DataLayout{Version: 4, Class: message.LayoutChunked, ChunkDims: chunk,
			ChunkIndexType: message.ChunkIndexSingle, ChunkIndexAddr: f.raw(data)}
		c, err := NewChunked(msg, space, int16LE, nil, f.reader())
		require.NoError(t, err)
		got, err := c.Read()
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})

	t.Run("filtered", func(t *testing.T) {
		f := newFile()
		z := deflate(t, data)
		msg := &message.DataLayout{Version: 4, Class: message.LayoutChunked, ChunkDims: chunk,
			ChunkIndexType: message.ChunkIndexSingle, ChunkIndexAddr: f.raw(z),
			ChunkFlags: 0x02, FilteredChunkSize: uint64(len(z))}
		c, err := NewChunked(msg, space, int16LE, deflatePipeline, f.reader())
		require.NoError(t, err)
		got, err := c.Read()
		require.NoError(t, err)
		assert.Equal(t, data, got)
	})
}

func TestChunkedImplicit(t *testing.T) {
	f := newFile()
	var stored []byte
	for _, o := range origins {
		stored = append(stored, chunkData(o)...)
	}
	c := open(t, f, &message.DataLayout{Version: 4, ChunkIndexType: message.ChunkIndexImplicit, ChunkIndexAddr: f.raw(stored)}, nil, nil)
	all, err := c.Read()
	require.NoError(t, err)
	assert.Equal(t, whole(), all)
}

func TestChunkedImplicitMatchesSource(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 100
	properties := gopter.NewProperties(params)

	properties.Property("chunked reads equal the source array", prop.ForAll(
		func(rows, cols, cr, cc uint64) bool {
			src := make([]byte, rows*cols)
			for k := range src {
				src[k] = byte(k*7 + 1)
			}
			gr, gc := (rows+cr-1)/cr, (cols+cc-1)/cc
			var stored []byte
			for a := uint64(0); a < gr; a++ {
				for b := uint64(0); b < gc; b++ {
					ch := make([]byte, cr*cc)
					for i := uint64(0); i < cr; i++ {
						for j := uint64(0); j < cc; j++ {
							if r, c := a*cr+i, b*cc+j; r < rows && c < cols {
								ch[i*cc+j] = src[r*cols+c]
							}
						}
					}
					stored = append(stored, ch...)
				}
			}
			f := newFile()
			msg := &message.DataLayout{Version: 4, Class: message.LayoutChunked,
				ChunkDims: []uint32{uint32(cr), uint32(cc), 1}, ChunkIndexType: message.ChunkIndexImplicit,
				ChunkIndexAddr: f.raw(stored)}
			c, err := NewChunked(msg, message.NewDataspace([]uint64{rows, cols}, nil), &message.Datatype{Size: 1}, nil, f.reader())
			if err != nil {
				return false
			}
			all, err := c.Read()
			if err != nil || !bytes.Equal(all, src) {
				return false
			}
			start := []uint64{rows / 2, cols / 3}
			count := []uint64{rows - rows/2, cols - cols/3}
			box, err := c.ReadSlice(start, count)
			return err == nil && bytes.Equal(box, extract(src, []uint64{rows, cols}, start, count, 1))
		},
		gen.UInt64Range(1, 9),
		gen.UInt64Range(1, 9),
		gen.UInt64Range(1, 4),
		gen.UInt64Range(1, 4),
	))
	properties.TestingRun(t)
}

// fixedArray writes a fixed array index over entries of entrySize bytes.
// With pageBits small enough the data block is paged and bitmap marks the
// initialized pages.
func (f *file) fixedArray(client uint8, entrySize int, pageBits uint8, entries [][]byte, bitmap []byte) uint64 {
	dblk := f.put(func(w *binpkg.Writer) {
		w.WriteBytes([]byte("FADB"))
		w.WriteUint8(0)
		w.WriteUint8(client)
		w.WriteOffset(0)
		page := 1 << pageBits
		if len(entries) <= page {
			for _, e := range entries {
				w.WriteBytes(e)
			}
			w.WriteUint32(0)
			return
		}
		w.WriteBytes(bitmap)
		w.WriteUint32(0)
		for k, e := range entries {
			w.WriteBytes(e)
			if (k+1)%page == 0 || k == len(entries)-1 {
				w.WriteUint32(0)
			}
		}
	})
	return f.put(func(w *binpkg.Writer) {
		w.WriteBytes([]byte("FAHD"))
		w.WriteUint8(0)
		w.WriteUint8(client)
		w.WriteUint8(uint8(entrySize))
		w.WriteUint8(pageBits)
		w.WriteLength(uint64(len(entries)))
		w.WriteOffset(dblk)
		w.WriteUint32(0)
	})
}

func addrEntry(addr uint64) []byte { return binary.LittleEndian.AppendUint64(nil, addr) }

func TestChunkedFixedArray(t *testing.T) {
	build := func(f *file) [][]byte {
		var entries [][]byte
		for _, o := range origins {
			entries = append(entries, addrEntry(f.raw(chunkData(o))))
		}
		return entries
	}

	t.Run("single block", func(t *testing.T) {
		f := newFile()
		idx := f.fixedArray(0, 8, 10, build(f), nil)
		c := open(t, f, &message.DataLayout{Version: 4, ChunkIndexType: message.ChunkIndexFixedArray, ChunkIndexAddr: idx}, nil, nil)
		all, err := c.Read()
		require.NoError(t, err)
		assert.Equal(t, whole(), all)
	})

	t.Run("paged", func(t *testing.T) {
		f := newFile()
		idx := f.fixedArray(0, 8, 2, build(f), []byte{0xC0})
		c := open(t, f, &message.DataLayout{Version: 4, ChunkIndexType: message.ChunkIndexFixedArray, ChunkIndexAddr: idx}, nil, nil)
		all, err := c.Read()
		require.NoError(t, err)
		assert.Equal(t, whole(), all)
	})

	t.Run("uninitialized page", func(t *testing.T) {
		f := newFile()
		idx := f.fixedArray(0, 8, 2, build(f), []byte{0x80})
		c := open(t, f, &message.DataLayout{Version: 4, ChunkIndexType: message.ChunkIndexFixedArray, ChunkIndexAddr: idx}, nil, nil)
		all, err := c.Read()
		require.NoError(t, err)
		want := whole()
		for j := 0; j < 4; j++ {
			zeroCell(want, 4, j)
		}
		assert.Equal(t, want, all)
	})

	t.Run("filtered entries", func(t *testing.T) {
		f := newFile()
		var entries [][]byte
		for _, o := range origins {
			z := deflate(t, chunkData(o))
			e := addrEntry(f.raw(z))
			e = binary.LittleEndian.AppendUint32(e, uint32(len(z)))
			e = binary.LittleEndian.AppendUint32(e, 0)
			entries = append(entries, e)
		}
		idx := f.fixedArray(1, 16, 10, entries, nil)
		c := open(t, f, &message.DataLayout{Version: 4, ChunkIndexType: message.ChunkIndexFixedArray, ChunkIndexAddr: idx}, deflatePipeline, nil)
		all, err := c.Read()
		require.NoError(t, err)
		assert.Equal(t, whole(), all)
	})
}

func TestChunkedExtensibleArray(t *testing.T) {
	f := newFile()
	// dimension 1 is unlimited, so chunks are numbered column-block first
	order := [][]uint64{{0, 0}, {2, 0}, {4, 0}, {0, 3}, {2, 3}, {4, 3}}
	var entries [][]byte
	for _, o := range order {
		entries = append(entries, addrEntry(f.raw(chunkData(o))))
	}

	dblk := f.put(func(w *binpkg.Writer) {
		w.WriteBytes([]byte("EADB"))
		w.WriteUint8(0)
		w.WriteUint8(0)
		w.WriteOffset(0)
		w.WriteUint32(4) // block offset, 32 max bits
		w.WriteBytes(entries[4])
		w.WriteBytes(entries[5])
		w.WriteUint32(0)
	})
	iblk := f.put(func(w *binpkg.Writer) {
		w.WriteBytes([]byte("EAIB"))
		w.WriteUint8(0)
		w.WriteUint8(0)
		w.WriteOffset(0)
		for _, e := range entries[:4] {
			w.WriteBytes(e)
		}
		// six data block pointers for the first four super blocks
		w.WriteOffset(dblk)
		for k := 0; k < 5; k++ {
			w.WriteOffset(w.UndefinedOffset())
		}
		for k := 0; k < 28; k++ {
			w.WriteOffset(w.UndefinedOffset())
		}
		w.WriteUint32(0)
	})
	hdr := f.put(func(w *binpkg.Writer) {
		w.WriteBytes([]byte("EAHD"))
		w.WriteBytes([]byte{0, 0, 8, 32, 4, 2, 4, 10})
		for _, v := range []uint64{0, 0, 1, 0, 6, 6} {
			w.WriteLength(v)
		}
		w.WriteOffset(iblk)
		w.WriteUint32(0)
	})

	c := open(t, f, &message.DataLayout{Version: 4, ChunkIndexType: message.ChunkIndexExtensibleArray, ChunkIndexAddr: hdr},
		nil, []uint64{5, unlimited})
	all, err := c.Read()
	require.NoError(t, err)
	assert.Equal(t, whole(), all)
}

// bt2Record is a type 10 record: address then scaled offsets.
func bt2Record(addr uint64, off []uint64) []byte {
	b := binary.LittleEndian.AppendUint64(nil, addr)
	for d, o := range off {
		b = binary.LittleEndian.AppendUint64(b, o/uint64(chunk[d]))
	}
	return b
}

func (f *file) bt2Leaf(records [][]byte) uint64 {
	return f.put(func(w *binpkg.Writer) {
		w.WriteBytes([]byte("BTLF"))
		w.WriteUint8(0)
		w.WriteUint8(10)
		for _, r := range records {
			w.WriteBytes(r)
		}
		w.WriteUint32(0)
	})
}

func (f *file) bt2Header(root uint64, depth uint16, nrec uint16, total uint64) uint64 {
	return f.put(func(w *binpkg.Writer) {
		w.WriteBytes([]byte("BTHD"))
		w.WriteUint8(0)
		w.WriteUint8(10)
		w.WriteUint32(512)
		w.WriteUint16(24)
		w.WriteUint16(depth)
		w.WriteUint8(100)
		w.WriteUint8(40)
		w.WriteOffset(root)
		w.WriteUint16(nrec)
		w.WriteLength(total)
		w.WriteUint32(0)
	})
}

func TestChunkedBTreeV2(t *testing.T) {
	records := func(f *file) [][]byte {
		var out [][]byte
		for _, o := range origins {
			out = append(out, bt2Record(f.raw(chunkData(o)), o))
		}
		return out
	}

	t.Run("leaf root", func(t *testing.T) {
		f := newFile()
		recs := records(f)
		hdr := f.bt2Header(f.bt2Leaf(recs), 0, uint16(len(recs)), uint64(len(recs)))
		c := open(t, f, &message.DataLayout{Version: 4, ChunkIndexType: message.ChunkIndexBTreeV2, ChunkIndexAddr: hdr}, nil, nil)
		all, err := c.Read()
		require.NoError(t, err)
		assert.Equal(t, whole(), all)
	})

	t.Run("internal root", func(t *testing.T) {
		f := newFile()
		recs := records(f)
		left, right := f.bt2Leaf(recs[:3]), f.bt2Leaf(recs[4:])
		root := f.put(func(w *binpkg.Writer) {
			w.WriteBytes([]byte("BTIN"))
			w.WriteUint8(0)
			w.WriteUint8(10)
			w.WriteBytes(recs[3])
			// a 512 byte node holds at most 20 leaf records: one byte counts
			w.WriteOffset(left)
			w.WriteUint8(3)
			w.WriteOffset(right)
			w.WriteUint8(2)
			w.WriteUint32(0)
		})
		hdr := f.bt2Header(root, 1, 1, 6)
		c := open(t, f, &message.DataLayout{Version: 4, ChunkIndexType: message.ChunkIndexBTreeV2, ChunkIndexAddr: hdr}, nil, nil)
		all, err := c.Read()
		require.NoError(t, err)
		assert.Equal(t, whole(), all)

		box, err := c.ReadSlice([]uint64{3, 1}, []uint64{2, 3})
		require.NoError(t, err)
		assert.Equal(t, extract(whole(), dims, []uint64{3, 1}, []uint64{2, 3}, 2), box)
	})

	t.Run("not a chunk tree", func(t *testing.T) {
		f := newFile()
		hdr := f.put(func(w *binpkg.Writer) {
			w.WriteBytes([]byte("BTHD"))
			w.WriteBytes([]byte{0, 5, 0, 2, 0, 0, 24, 0, 0, 0, 100, 40})
		})
		c := open(t, f, &message.DataLayout{Version: 4, ChunkIndexType: message.ChunkIndexBTreeV2, ChunkIndexAddr: hdr}, nil, nil)
		_, err := c.Read()
		assert.ErrorContains(t, err, "not a chunk index")
	})
}

func TestChunkedRejects(t *testing.T) {
	f := newFile()
	space := message.NewDataspace(dims, nil)

	_, err := NewChunked(&message.DataLayout{Version: 4, Class: message.LayoutChunked, ChunkDims: []uint32{2}}, space, int16LE, nil, f.reader())
	assert.Error(t, err, "chunk rank below dataset rank")

	_, err = NewChunked(&message.DataLayout{Version: 4, Class: message.LayoutChunked, ChunkDims: []uint32{2, 0, 2}}, space, int16LE, nil, f.reader())
	assert.Error(t, err, "zero chunk dimension")

	c := open(t, f, &message.DataLayout{Version: 4, ChunkIndexType: 9, ChunkIndexAddr: 64}, nil, nil)
	_, err = c.Read()
	assert.ErrorContains(t, err, "not supported")

	_, err = c.ReadSlice([]uint64{4, 0}, []uint64{2, 4})
	assert.Error(t, err)
}
