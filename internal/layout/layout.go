// Package layout reads the raw bytes of a dataset, wherever the layout
// message says they live: in the header, in one contiguous block, or in
// chunks reached through one of the chunk indexes.
package layout

import (
	"fmt"

	"github.com/richielo/basicFusion/internal/binary"
	"github.com/richielo/basicFusion/internal/message"
)

// Layout returns dataset bytes in row-major order.
type Layout interface {
	Read() ([]byte, error)
	// ReadSlice returns the box of count elements starting at start.
	ReadSlice(start, count []uint64) ([]byte, error)
	Class() message.LayoutClass
}

func New(
	msg *message.DataLayout,
	space *message.Dataspace,
	dt *message.Datatype,
	fp *message.FilterPipeline,
	fill *message.FillValue,
	r *binary.Reader,
) (Layout, error) {
	if msg == nil {
		return nil, fmt.Errorf("dataset has no layout message")
	}
	switch msg.Class {
	case message.LayoutCompact:
		return &Compact{data: msg.CompactData, dims: space.Dimensions, elem: uint64(dt.Size)}, nil
	case message.LayoutContiguous:
		return newContiguous(msg, space, dt, r), nil
	case message.LayoutChunked:
		c, err := NewChunked(msg, space, dt, fp, r)
		if err != nil {
			return nil, err
		}
		if fill != nil && uint64(len(fill.Value)) == c.elem {
			c.fill = fill.Value
		}
		return c, nil
	}
	return nil, fmt.Errorf("layout class %d is not supported", msg.Class)
}

func product(v []uint64) uint64 {
	n := uint64(1)
	for _, x := range v {
		n *= x
	}
	return n
}

// checkSelection validates a box against dims. A scalar takes an empty box.
func checkSelection(dims, start, count []uint64) error {
	if len(start) != len(dims) || len(count) != len(dims) {
		return fmt.Errorf("selection rank %d/%d, dataset rank %d", len(start), len(count), len(dims))
	}
	for d := range dims {
		if start[d]+count[d] > dims[d] {
			return fmt.Errorf("selection [%d:%d] outside dimension %d of size %d",
				start[d], start[d]+count[d], d, dims[d])
		}
	}
	return nil
}

func strides(dims []uint64, elem uint64) []uint64 {
	s := make([]uint64, len(dims))
	acc := elem
	for d := len(dims) - 1; d >= 0; d-- {
		s[d] = acc
		acc *= dims[d]
	}
	return s
}

// copyBox copies a box of extent elements from src, an array of srcDims
// starting at srcAt, to dst, an array of dstDims starting at dstAt. Rows that
// would fall outside either buffer are dropped.
func copyBox(dst []byte, dstDims, dstAt []uint64, src []byte, srcDims, srcAt []uint64, extent []uint64, elem uint64) {
	rank := len(extent)
	if rank == 0 {
		copy(dst, src[:min(uint64(len(src)), elem)])
		return
	}
	for _, e := range extent {
		if e == 0 {
			return
		}
	}
	ds, ss := strides(dstDims, elem), strides(srcDims, elem)
	row := extent[rank-1] * elem
	idx := make([]uint64, rank)
	for {
		var do, so uint64
		for d := range idx {
			do += (dstAt[d] + idx[d]) * ds[d]
			so += (srcAt[d] + idx[d]) * ss[d]
		}
		if do+row <= uint64(len(dst)) && so+row <= uint64(len(src)) {
			copy(dst[do:do+row], src[so:so+row])
		}

		d := rank - 2
		for ; d >= 0; d-- {
			if idx[d]++; idx[d] < extent[d] {
				break
			}
			idx[d] = 0
		}
		if d < 0 {
			return
		}
	}
}

// extract cuts a box out of a whole dataset held in memory.
func extract(data []byte, dims, start, count []uint64, elem uint64) []byte {
	out := make([]byte, product(count)*elem)
	copyBox(out, count, make([]uint64, len(count)), data, dims, start, count, elem)
	return out
}

// Compact data lives in the layout message itself.
type Compact struct {
	data []byte
	dims []uint64
	elem uint64
}

func (c *Compact) Class() message.LayoutClass { return message.LayoutCompact }

func (c *Compact) Read() ([]byte, error) {
	return append([]byte(nil), c.data...), nil
}

func (c *Compact) ReadSlice(start, count []uint64) ([]byte, error) {
	if err := checkSelection(c.dims, start, count); err != nil {
		return nil, err
	}
	if len(c.dims) == 0 {
		return c.Read()
	}
	return extract(c.data, c.dims, start, count, c.elem), nil
}

// Contiguous data is one block at a file address.
type Contiguous struct {
	addr uint64
	size uint64
	dims []uint64
	elem uint64
	r    *binary.Reader
}

func newContiguous(msg *message.DataLayout, space *message.Dataspace, dt *message.Datatype, r *binary.Reader) *Contiguous {
	c := &Contiguous{addr: msg.Address, size: msg.Size, dims: space.Dimensions, elem: uint64(dt.Size), r: r}
	if c.size == 0 {
		// layout versions 1 and 2 do not record the size
		c.size = space.NumElements() * c.elem
	}
	return c
}

func (c *Contiguous) Class() message.LayoutClass { return message.LayoutContiguous }

func (c *Contiguous) readRange(off, n uint64) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}
	if c.r.IsUndefinedOffset(c.addr) {
		return nil, fmt.Errorf("contiguous storage was never allocated")
	}
	if off+n > c.size {
		return nil, fmt.Errorf("reading %d bytes at %d of a %d byte block", n, off, c.size)
	}
	return c.r.At(int64(c.addr + off)).ReadBytes(int(n))
}

func (c *Contiguous) Read() ([]byte, error) { return c.readRange(0, c.size) }

// ReadSlice reads only the needed rows when the box spans whole trailing
// dimensions, otherwise it reads everything and cuts.
func (c *Contiguous) ReadSlice(start, count []uint64) ([]byte, error) {
	if err := checkSelection(c.dims, start, count); err != nil {
		return nil, err
	}
	if len(c.dims) == 0 {
		return c.Read()
	}
	row := c.elem * product(c.dims[1:])
	for d := 1; d < len(c.dims); d++ {
		if start[d] != 0 || count[d] != c.dims[d] {
			all, err := c.Read()
			if err != nil {
				return nil, err
			}
			return extract(all, c.dims, start, count, c.elem), nil
		}
	}
	return c.readRange(start[0]*row, count[0]*row)
}
