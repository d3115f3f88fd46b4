package message

import (
	"bytes"
	"fmt"

	binpkg "github.com/richielo/basicFusion/internal/binary"
)

// LayoutClass is where a dataset keeps its raw data.
type LayoutClass uint8

const (
	LayoutCompact    LayoutClass = 0
	LayoutContiguous LayoutClass = 1
	LayoutChunked    LayoutClass = 2
	LayoutVirtual    LayoutClass = 3
)

// ChunkIndexType identifies the structure that maps chunk coordinates to
// file addresses. Layout messages before version 4 always use a version 1
// B-tree.
type ChunkIndexType uint8

const (
	ChunkIndexBTreeV1         ChunkIndexType = 0
	ChunkIndexSingle          ChunkIndexType = 1
	ChunkIndexImplicit        ChunkIndexType = 2
	ChunkIndexFixedArray      ChunkIndexType = 3
	ChunkIndexExtensibleArray ChunkIndexType = 4
	ChunkIndexBTreeV2         ChunkIndexType = 5
)

// singleChunkFiltered is the version 4 flag saying a single chunk went
// through the filter pipeline.
const singleChunkFiltered = 0x02

// DataLayout is the data layout message (0x0008).
type DataLayout struct {
	Version uint8
	Class   LayoutClass

	CompactData []byte

	Address uint64
	Size    uint64

	// ChunkDims has one entry per dataspace dimension followed by the
	// element size.
	ChunkDims      []uint32
	ChunkIndexAddr uint64
	ChunkIndexType ChunkIndexType
	ChunkFlags     uint8

	// Single chunk index of a filtered dataset.
	FilteredChunkSize     uint64
	SingleChunkFilterMask uint32
}

func (m *DataLayout) Type() Type { return TypeDataLayout }

func (m *DataLayout) IsCompact() bool    { return m.Class == LayoutCompact }
func (m *DataLayout) IsContiguous() bool { return m.Class == LayoutContiguous }
func (m *DataLayout) IsChunked() bool    { return m.Class == LayoutChunked }

func parseDataLayout(data []byte, r *binpkg.Reader) (*DataLayout, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("data layout message too short")
	}
	br := binpkg.NewReader(bytes.NewReader(data), binpkg.Config{
		ByteOrder:  r.ByteOrder(),
		OffsetSize: r.OffsetSize(),
		LengthSize: r.LengthSize(),
	})
	m := &DataLayout{Version: data[0]}
	br.Skip(1)

	var err error
	switch m.Version {
	case 1, 2:
		err = m.decodeV1(br)
	case 3, 4:
		err = m.decodeV3(br)
	default:
		return nil, fmt.Errorf("unsupported data layout version %d", m.Version)
	}
	if err != nil {
		return nil, fmt.Errorf("data layout v%d: %w", m.Version, err)
	}
	return m, nil
}

func (m *DataLayout) decodeV1(br *binpkg.Reader) error {
	ndims, err := br.ReadUint8()
	if err != nil {
		return err
	}
	class, err := br.ReadUint8()
	if err != nil {
		return err
	}
	m.Class = LayoutClass(class)
	br.Skip(5)

	if m.Class != LayoutCompact {
		addr, err := br.ReadOffset()
		if err != nil {
			return err
		}
		if m.Class == LayoutChunked {
			m.ChunkIndexAddr = addr
		} else {
			m.Address = addr
		}
	}
	dims := make([]uint32, ndims)
	for i := range dims {
		if dims[i], err = br.ReadUint32(); err != nil {
			return err
		}
	}

	switch m.Class {
	case LayoutChunked:
		// the last dimension is the element size
		m.ChunkDims = dims
	case LayoutCompact:
		n, err := br.ReadUint32()
		if err != nil {
			return err
		}
		m.CompactData, err = br.ReadBytes(int(n))
		return err
	}
	return nil
}

func (m *DataLayout) decodeV3(br *binpkg.Reader) error {
	class, err := br.ReadUint8()
	if err != nil {
		return err
	}
	m.Class = LayoutClass(class)

	switch m.Class {
	case LayoutCompact:
		n, err := br.ReadUint16()
		if err != nil {
			return err
		}
		m.CompactData, err = br.ReadBytes(int(n))
		return err

	case LayoutContiguous:
		if m.Address, err = br.ReadOffset(); err != nil {
			return err
		}
		m.Size, err = br.ReadLength()
		return err

	case LayoutChunked:
		if m.Version == 3 {
			return m.decodeChunkedV3(br)
		}
		return m.decodeChunkedV4(br)
	}
	return fmt.Errorf("layout class %d is not supported", class)
}

func (m *DataLayout) decodeChunkedV3(br *binpkg.Reader) error {
	ndims, err := br.ReadUint8()
	if err != nil {
		return err
	}
	if m.ChunkIndexAddr, err = br.ReadOffset(); err != nil {
		return err
	}
	m.ChunkDims = make([]uint32, ndims)
	for i := range m.ChunkDims {
		if m.ChunkDims[i], err = br.ReadUint32(); err != nil {
			return err
		}
	}
	return nil
}

func (m *DataLayout) decodeChunkedV4(br *binpkg.Reader) error {
	head, err := br.ReadBytes(3)
	if err != nil {
		return err
	}
	m.ChunkFlags = head[0]
	ndims, width := int(head[1]), int(head[2])
	if width < 1 || width > 8 {
		return fmt.Errorf("chunk dimension width %d", width)
	}
	m.ChunkDims = make([]uint32, ndims)
	for i := range m.ChunkDims {
		v, err := br.ReadUintN(width)
		if err != nil {
			return err
		}
		m.ChunkDims[i] = uint32(v)
	}

	kind, err := br.ReadUint8()
	if err != nil {
		return err
	}
	m.ChunkIndexType = ChunkIndexType(kind)
	switch m.ChunkIndexType {
	case ChunkIndexSingle:
		if m.ChunkFlags&singleChunkFiltered != 0 {
			if m.FilteredChunkSize, err = br.ReadLength(); err != nil {
				return err
			}
			if m.SingleChunkFilterMask, err = br.ReadUint32(); err != nil {
				return err
			}
		}
	case ChunkIndexImplicit:
	case ChunkIndexFixedArray:
		br.Skip(1) // page bits
	case ChunkIndexExtensibleArray:
		br.Skip(5)
	case ChunkIndexBTreeV2:
		br.Skip(6) // node size, split and merge percent
	default:
		return fmt.Errorf("unknown chunk index type %d", kind)
	}
	m.ChunkIndexAddr, err = br.ReadOffset()
	return err
}
