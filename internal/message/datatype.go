package message

import (
	"encoding/binary"
	"errors"
	"fmt"

	binpkg "github.com/richielo/basicFusion/internal/binary"
)

// DatatypeClass is the kind of element a datatype message describes.
type DatatypeClass uint8

const (
	ClassFixedPoint DatatypeClass = iota
	ClassFloatPoint
	ClassTime
	ClassString
	ClassBitfield
	ClassOpaque
	ClassCompound
	ClassReference
	ClassEnum
	ClassVarLen
	ClassArray
)

var classNames = [...]string{
	"integer", "float", "time", "string", "bitfield", "opaque",
	"compound", "reference", "enum", "variable-length", "array",
}

func (c DatatypeClass) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return fmt.Sprintf("class(%d)", uint8(c))
}

type ByteOrder uint8

const (
	OrderLE  ByteOrder = 0
	OrderBE  ByteOrder = 1
	OrderVAX ByteOrder = 2
)

type StringPadding uint8

const (
	PadNullTerm StringPadding = 0
	PadNullPad  StringPadding = 1
	PadSpacePad StringPadding = 2
)

type CharacterSet uint8

const (
	CharsetASCII CharacterSet = 0
	CharsetUTF8  CharacterSet = 1
)

// Datatype is the datatype message (0x0003). Fields beyond Class and Size
// are filled in only for the classes they apply to.
type Datatype struct {
	Class     DatatypeClass
	Version   uint8
	ClassBits uint32
	Size      uint32

	ByteOrder    ByteOrder
	Signed       bool
	BitOffset    uint16
	BitPrecision uint16

	StringPadding  StringPadding
	CharSet        CharacterSet
	IsVarLenString bool

	// Base is the parent type of enums, arrays and variable-length types.
	Base       *Datatype
	ArrayDims  []uint32
	Members    []CompoundMember
	EnumNames  []string
	EnumValues [][]byte

	// Properties is the encoded class property block.
	Properties []byte
}

// CompoundMember is one field of a compound datatype. Dims is only set by
// version 1 messages, which allowed array-valued members.
type CompoundMember struct {
	Name       string
	ByteOffset uint32
	Dims       []uint32
	Type       *Datatype
}

func (m *Datatype) Type() Type { return TypeDatatype }

func (m *Datatype) IsInteger() bool { return m.Class == ClassFixedPoint }
func (m *Datatype) IsFloat() bool   { return m.Class == ClassFloatPoint }

// IsString reports fixed-length and variable-length strings alike.
func (m *Datatype) IsString() bool {
	return m.Class == ClassString || m.Class == ClassVarLen && m.IsVarLenString
}

// Datatype fields are little-endian whatever the superblock says.
var le = binary.LittleEndian

func parseDatatype(data []byte, _ *binpkg.Reader) (*Datatype, error) {
	dt, _, err := decodeDatatype(data)
	return dt, err
}

// decodeDatatype parses one datatype from the front of b and reports how
// many bytes it used, so nested types can be walked in place.
func decodeDatatype(b []byte) (*Datatype, int, error) {
	if len(b) < 8 {
		return nil, 0, errors.New("datatype message too short")
	}
	dt := &Datatype{
		Class:     DatatypeClass(b[0] & 0x0f),
		Version:   b[0] >> 4,
		ClassBits: uint32(b[1]) | uint32(b[2])<<8 | uint32(b[3])<<16,
		Size:      le.Uint32(b[4:8]),
	}
	if dt.Version < 1 || dt.Version > 4 {
		return nil, 0, fmt.Errorf("datatype version %d", dt.Version)
	}

	p := &cursor{b: b, pos: 8}
	switch dt.Class {
	case ClassFixedPoint, ClassBitfield:
		dt.ByteOrder = ByteOrder(dt.ClassBits & 1)
		dt.Signed = dt.ClassBits&0x08 != 0
		dt.BitOffset = uint16(p.uint(2))
		dt.BitPrecision = uint16(p.uint(2))
	case ClassFloatPoint:
		dt.ByteOrder = ByteOrder(dt.ClassBits & 1)
		if dt.ClassBits&0x40 != 0 {
			dt.ByteOrder = OrderVAX
		}
		dt.BitOffset = uint16(p.uint(2))
		dt.BitPrecision = uint16(p.uint(2))
		p.skip(8)
	case ClassTime:
		dt.ByteOrder = ByteOrder(dt.ClassBits & 1)
		dt.BitPrecision = uint16(p.uint(2))
	case ClassString:
		dt.StringPadding = StringPadding(dt.ClassBits & 0x0f)
		dt.CharSet = CharacterSet(dt.ClassBits >> 4 & 0x0f)
	case ClassOpaque:
		p.skip(int(dt.ClassBits & 0xff))
	case ClassReference:
	case ClassCompound:
		dt.decodeMembers(p)
	case ClassEnum:
		dt.decodeEnum(p)
	case ClassVarLen:
		dt.IsVarLenString = dt.ClassBits&0x0f == 1
		dt.StringPadding = StringPadding(dt.ClassBits >> 4 & 0x0f)
		dt.CharSet = CharacterSet(dt.ClassBits >> 8 & 0x0f)
		dt.Base = p.datatype()
	case ClassArray:
		dt.decodeArray(p)
	default:
		return nil, 0, fmt.Errorf("unknown datatype class %d", dt.Class)
	}
	if p.err != nil {
		return nil, 0, fmt.Errorf("%v datatype: %w", dt.Class, p.err)
	}
	dt.Properties = b[8:p.pos]
	return dt, p.pos, nil
}

func (dt *Datatype) decodeMembers(p *cursor) {
	n := int(dt.ClassBits & 0xffff)
	dt.Members = make([]CompoundMember, 0, n)
	for range n {
		var m CompoundMember
		m.Name = p.name(dt.Version < 3)
		if dt.Version < 3 {
			m.ByteOffset = uint32(p.uint(4))
		} else {
			m.ByteOffset = uint32(p.uint(offsetWidth(dt.Size)))
		}
		if dt.Version == 1 {
			rank := min(int(p.uint(1)), 4)
			p.skip(3 + 4 + 4)
			dims := make([]uint32, 4)
			for i := range dims {
				dims[i] = uint32(p.uint(4))
			}
			m.Dims = dims[:rank]
		}
		m.Type = p.datatype()
		if p.err != nil {
			return
		}
		dt.Members = append(dt.Members, m)
	}
}

func (dt *Datatype) decodeEnum(p *cursor) {
	dt.Base = p.datatype()
	if p.err != nil {
		return
	}
	dt.ByteOrder, dt.Signed = dt.Base.ByteOrder, dt.Base.Signed
	n := int(dt.ClassBits & 0xffff)
	dt.EnumNames = make([]string, n)
	for i := range dt.EnumNames {
		dt.EnumNames[i] = p.name(dt.Version < 3)
	}
	dt.EnumValues = make([][]byte, n)
	for i := range dt.EnumValues {
		dt.EnumValues[i] = p.take(int(dt.Base.Size))
	}
}

func (dt *Datatype) decodeArray(p *cursor) {
	rank := int(p.uint(1))
	if dt.Version < 3 {
		p.skip(3)
	}
	dt.ArrayDims = make([]uint32, rank)
	for i := range dt.ArrayDims {
		dt.ArrayDims[i] = uint32(p.uint(4))
	}
	if dt.Version < 3 {
		p.skip(4 * rank)
	}
	dt.Base = p.datatype()
}

// offsetWidth is the byte width of version 3 member offsets in a compound
// of the given size.
func offsetWidth(size uint32) int {
	n := 1
	for size >>= 8; size > 0; size >>= 8 {
		n++
	}
	return n
}
