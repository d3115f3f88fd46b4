package message

import (
	"fmt"

	"github.com/richielo/basicFusion/internal/binary"
)

type DataspaceType uint8

const (
	DataspaceScalar DataspaceType = 0
	DataspaceSimple DataspaceType = 1
	DataspaceNull   DataspaceType = 2
)

// Dataspace is the dataspace message (0x0001). MaxDims is nil when the
// message does not record maxima, which means they equal Dimensions.
type Dataspace struct {
	Version    uint8
	Rank       int
	SpaceType  DataspaceType
	Dimensions []uint64
	MaxDims    []uint64
}

func (m *Dataspace) Type() Type { return TypeDataspace }

func (m *Dataspace) IsScalar() bool { return m.SpaceType == DataspaceScalar }

func (m *Dataspace) NumElements() uint64 {
	switch m.SpaceType {
	case DataspaceScalar:
		return 1
	case DataspaceSimple:
		if len(m.Dimensions) == 0 {
			return 0
		}
		n := uint64(1)
		for _, d := range m.Dimensions {
			n *= d
		}
		return n
	}
	return 0
}

func parseDataspace(data []byte, r *binary.Reader) (*Dataspace, error) {
	p := newCursor(data, r)
	m := &Dataspace{Version: p.u8(), Rank: int(p.u8())}
	flags := p.u8()
	switch m.Version {
	case 1:
		// no type field: a rank 0 space is scalar
		m.SpaceType = DataspaceSimple
		if m.Rank == 0 {
			m.SpaceType = DataspaceScalar
		}
		p.skip(5)
	case 2:
		m.SpaceType = DataspaceType(p.u8())
	default:
		if p.err == nil {
			return nil, fmt.Errorf("dataspace version %d", m.Version)
		}
	}
	if m.SpaceType == DataspaceSimple && m.Rank > 0 {
		m.Dimensions = make([]uint64, m.Rank)
		for i := range m.Dimensions {
			m.Dimensions[i] = p.length()
		}
		if flags&0x01 != 0 {
			m.MaxDims = make([]uint64, m.Rank)
			for i := range m.MaxDims {
				m.MaxDims[i] = p.length()
			}
		}
	}
	if p.err != nil {
		return nil, fmt.Errorf("dataspace: %w", p.err)
	}
	return m, nil
}

// Serialize writes a version 2 dataspace.
func (m *Dataspace) Serialize(w *binary.Writer) error {
	var flags uint8
	if len(m.MaxDims) > 0 {
		flags = 0x01
	}
	if err := w.WriteBytes([]byte{2, uint8(m.Rank), flags, uint8(m.SpaceType)}); err != nil {
		return err
	}
	for _, dims := range [][]uint64{m.Dimensions, m.MaxDims} {
		for _, d := range dims {
			if err := w.WriteLength(d); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Dataspace) SerializedSize(w *binary.Writer) int {
	return 4 + (len(m.Dimensions)+len(m.MaxDims))*w.LengthSize()
}

func NewDataspace(dims, maxDims []uint64) *Dataspace {
	return &Dataspace{Version: 2, Rank: len(dims), SpaceType: DataspaceSimple, Dimensions: dims, MaxDims: maxDims}
}

func NewScalarDataspace() *Dataspace {
	return &Dataspace{Version: 2, SpaceType: DataspaceScalar}
}
