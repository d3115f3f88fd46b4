package message

import (
	"fmt"

	"github.com/richielo/basicFusion/internal/binary"
)

// IEEE 754 property blocks: bit offset, precision, exponent location and
// size, mantissa location and size, exponent bias.
var ieeeProperties = map[uint32][]byte{
	4: {0, 0, 32, 0, 23, 8, 0, 23, 127, 0, 0, 0},
	8: {0, 0, 64, 0, 52, 11, 0, 52, 0xff, 0x03, 0, 0},
}

func (m *Datatype) Serialize(w *binary.Writer) error {
	b, err := m.encode()
	if err != nil {
		return err
	}
	return w.WriteBytes(b)
}

func (m *Datatype) SerializedSize(*binary.Writer) int {
	b, err := m.encode()
	if err != nil {
		return 8
	}
	return len(b)
}

// encode renders m as a version 1 datatype. Only the classes the writer
// produces are supported.
func (m *Datatype) encode() ([]byte, error) {
	b := []byte{byte(m.Class) | 1<<4, byte(m.ClassBits), byte(m.ClassBits >> 8), byte(m.ClassBits >> 16)}
	b = le.AppendUint32(b, m.Size)

	switch m.Class {
	case ClassFixedPoint, ClassBitfield:
		b = le.AppendUint16(b, m.BitOffset)
		b = le.AppendUint16(b, m.BitPrecision)
	case ClassFloatPoint:
		p := m.Properties
		if len(p) != 12 {
			p = ieeeProperties[m.Size]
		}
		if p == nil {
			return nil, fmt.Errorf("no IEEE layout for %d byte floats", m.Size)
		}
		b = append(b, p...)
	case ClassString, ClassReference:
	case ClassVarLen:
		if m.Base == nil {
			return nil, fmt.Errorf("variable-length datatype without a base type")
		}
		base, err := m.Base.encode()
		if err != nil {
			return nil, err
		}
		b = append(b, base...)
	default:
		return nil, fmt.Errorf("writing %v datatypes is not supported", m.Class)
	}
	return b, nil
}

func NewFixedPointDatatype(size uint32, signed bool, order ByteOrder) *Datatype {
	bits := uint32(order)
	if signed {
		bits |= 0x08
	}
	return &Datatype{
		Class:        ClassFixedPoint,
		Version:      1,
		ClassBits:    bits,
		Size:         size,
		ByteOrder:    order,
		Signed:       signed,
		BitPrecision: uint16(size * 8),
	}
}

// NewFloatDatatype is an IEEE float with an implied mantissa MSB and the
// sign in the top bit.
func NewFloatDatatype(size uint32, order ByteOrder) *Datatype {
	return &Datatype{
		Class:        ClassFloatPoint,
		Version:      1,
		ClassBits:    uint32(order) | 2<<4 | (size*8-1)<<8,
		Size:         size,
		ByteOrder:    order,
		BitPrecision: uint16(size * 8),
		Properties:   ieeeProperties[size],
	}
}

func NewStringDatatype(size uint32, padding StringPadding, charset CharacterSet) *Datatype {
	return &Datatype{
		Class:         ClassString,
		Version:       1,
		ClassBits:     uint32(padding) | uint32(charset)<<4,
		Size:          size,
		StringPadding: padding,
		CharSet:       charset,
	}
}

// NewVarLenStringDatatype is a variable-length string of unsigned bytes.
// Its 16 byte size is the on-disk global heap reference with 8 byte
// offsets.
func NewVarLenStringDatatype(charset CharacterSet) *Datatype {
	return &Datatype{
		Class:          ClassVarLen,
		Version:        1,
		ClassBits:      1 | uint32(charset)<<8,
		Size:           16,
		CharSet:        charset,
		IsVarLenString: true,
		Base:           NewFixedPointDatatype(1, false, OrderLE),
	}
}
