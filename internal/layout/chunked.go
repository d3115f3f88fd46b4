package layout

import (
	"fmt"

	"github.com/richielo/basicFusion/internal/binary"
	"github.com/richielo/basicFusion/internal/filter"
	"github.com/richielo/basicFusion/internal/message"
)

// chunkRef locates one stored chunk.
type chunkRef struct {
	offset []uint64 // element coordinates of the chunk origin
	addr   uint64
	size   uint64 // bytes on disk, after filtering
	mask   uint32
}

// Chunked data is a grid of equally shaped chunks, each possibly filtered.
// Chunks never written read as the fill value, zeros when there is none.
type Chunked struct {
	msg      *message.DataLayout
	dims     []uint64
	maxDims  []uint64
	chunk    []uint64
	elem     uint64
	pipeline *filter.Pipeline
	fill     []byte
	r        *binary.Reader

	refs []chunkRef
	// last decoded chunk; row windows usually land in the same one
	lastAddr uint64
	lastData []byte
}

func NewChunked(
	msg *message.DataLayout,
	space *message.Dataspace,
	dt *message.Datatype,
	fp *message.FilterPipeline,
	r *binary.Reader,
) (*Chunked, error) {
	dims := space.Dimensions
	if len(dims) == 0 {
		dims = []uint64{1}
	}
	if len(msg.ChunkDims) < len(dims) {
		return nil, fmt.Errorf("chunk rank %d for a rank %d dataset", len(msg.ChunkDims), len(dims))
	}
	chunk := make([]uint64, len(dims))
	for d := range chunk {
		if chunk[d] = uint64(msg.ChunkDims[d]); chunk[d] == 0 {
			return nil, fmt.Errorf("chunk dimension %d is zero", d)
		}
	}
	pipeline, err := filter.NewPipeline(fp)
	if err != nil {
		return nil, err
	}
	return &Chunked{
		msg:      msg,
		dims:     dims,
		maxDims:  space.MaxDims,
		chunk:    chunk,
		elem:     uint64(dt.Size),
		pipeline: pipeline,
		r:        r,
	}, nil
}

func (c *Chunked) Class() message.LayoutClass { return message.LayoutChunked }

func (c *Chunked) chunkBytes() uint64 { return product(c.chunk) * c.elem }

func (c *Chunked) Read() ([]byte, error) {
	return c.ReadSlice(make([]uint64, len(c.dims)), c.dims)
}

func (c *Chunked) ReadSlice(start, count []uint64) ([]byte, error) {
	if err := checkSelection(c.dims, start, count); err != nil {
		return nil, err
	}
	out := make([]byte, product(count)*c.elem)
	if len(out) == 0 {
		return out, nil
	}
	if c.fill != nil {
		for i := 0; i < len(out); i += len(c.fill) {
			copy(out[i:], c.fill)
		}
	}
	if c.refs == nil {
		refs, err := c.index()
		if err != nil {
			return nil, fmt.Errorf("chunk index: %w", err)
		}
		c.refs = refs
	}

	rank := len(c.dims)
	lo, extent := make([]uint64, rank), make([]uint64, rank)
	dstAt, srcAt := make([]uint64, rank), make([]uint64, rank)
	for _, ref := range c.refs {
		overlaps := true
		for d := 0; d < rank && overlaps; d++ {
			lo[d] = max(start[d], ref.offset[d])
			hi := min(start[d]+count[d], ref.offset[d]+c.chunk[d], c.dims[d])
			overlaps = lo[d] < hi
			extent[d] = hi - lo[d]
		}
		if !overlaps {
			continue
		}
		data, err := c.load(ref)
		if err != nil {
			return nil, err
		}
		for d := range lo {
			dstAt[d] = lo[d] - start[d]
			srcAt[d] = lo[d] - ref.offset[d]
		}
		copyBox(out, count, dstAt, data, c.chunk, srcAt, extent, c.elem)
	}
	return out, nil
}

func (c *Chunked) load(ref chunkRef) ([]byte, error) {
	if ref.addr == c.lastAddr && c.lastData != nil {
		return c.lastData, nil
	}
	raw, err := c.r.At(int64(ref.addr)).ReadBytes(int(ref.size))
	if err != nil {
		return nil, fmt.Errorf("chunk %v: %w", ref.offset, err)
	}
	data, err := c.pipeline.Decode(raw, ref.mask)
	if err != nil {
		return nil, fmt.Errorf("chunk %v: %w", ref.offset, err)
	}
	if want := c.chunkBytes(); uint64(len(data)) < want {
		return nil, fmt.Errorf("chunk %v holds %d bytes, want %d", ref.offset, len(data), want)
	}
	c.lastAddr, c.lastData = ref.addr, data
	return data, nil
}

// index lists every stored chunk.
func (c *Chunked) index() ([]chunkRef, error) {
	addr := c.msg.ChunkIndexAddr
	if addr == 0 || c.r.IsUndefinedOffset(addr) {
		return []chunkRef{}, nil
	}
	if c.msg.Version < 4 {
		return c.btreeV1(addr, nil, -1)
	}
	switch c.msg.ChunkIndexType {
	case message.ChunkIndexSingle:
		ref := chunkRef{offset: make([]uint64, len(c.dims)), addr: addr, size: c.chunkBytes()}
		if c.msg.FilteredChunkSize > 0 {
			ref.size, ref.mask = c.msg.FilteredChunkSize, c.msg.SingleChunkFilterMask
		}
		return []chunkRef{ref}, nil
	case message.ChunkIndexImplicit:
		return c.implicit(addr), nil
	case message.ChunkIndexFixedArray:
		return c.fixedArray(addr)
	case message.ChunkIndexExtensibleArray:
		return c.extensibleArray(addr)
	case message.ChunkIndexBTreeV2:
		return c.btreeV2(addr)
	}
	return nil, fmt.Errorf("chunk index type %d is not supported", c.msg.ChunkIndexType)
}

// limit is the extent the linear chunk numbering is based on: the maximum
// dimensions where they are fixed, the current ones otherwise.
func (c *Chunked) limit() []uint64 {
	lim := append([]uint64(nil), c.dims...)
	unlimited := uint64(1)<<(8*uint(c.r.LengthSize())) - 1
	if c.r.LengthSize() >= 8 {
		unlimited = ^uint64(0)
	}
	for d, m := range c.maxDims {
		if d < len(lim) && m != unlimited && m >= lim[d] {
			lim[d] = m
		}
	}
	return lim
}

// unlimitedDim is the first dimension without a maximum, or -1.
func (c *Chunked) unlimitedDim() int {
	lim := c.limit()
	for d, m := range c.maxDims {
		if d < len(c.dims) && m > lim[d] {
			return d
		}
	}
	return -1
}

// origin turns linear chunk number i into element coordinates. order lists
// dimensions from slowest to fastest varying; the slowest never wraps.
func (c *Chunked) origin(i uint64, order []int, lim []uint64) []uint64 {
	off := make([]uint64, len(c.dims))
	for k := len(order) - 1; k >= 0; k-- {
		d := order[k]
		if k == 0 {
			off[d] = i * c.chunk[d]
			break
		}
		n := (lim[d] + c.chunk[d] - 1) / c.chunk[d]
		off[d] = (i % n) * c.chunk[d]
		i /= n
	}
	return off
}

func rowMajor(rank int) []int {
	order := make([]int, rank)
	for d := range order {
		order[d] = d
	}
	return order
}

// implicit chunks are stored back to back, unfiltered.
func (c *Chunked) implicit(addr uint64) []chunkRef {
	lim := c.limit()
	order := rowMajor(len(c.dims))
	n := uint64(1)
	for d := range lim {
		n *= (lim[d] + c.chunk[d] - 1) / c.chunk[d]
	}
	refs := make([]chunkRef, 0, n)
	size := c.chunkBytes()
	for i := uint64(0); i < n; i++ {
		refs = append(refs, chunkRef{offset: c.origin(i, order, lim), addr: addr + i*size, size: size})
	}
	return refs
}
