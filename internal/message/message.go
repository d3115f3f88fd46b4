// Package message decodes and encodes the header messages an object header
// is made of.
package message

import (
	"fmt"

	"github.com/richielo/basicFusion/internal/binary"
)

type Type uint16

const (
	TypeNIL                      Type = 0x00
	TypeDataspace                Type = 0x01
	TypeLinkInfo                 Type = 0x02
	TypeDatatype                 Type = 0x03
	TypeFillValueOld             Type = 0x04
	TypeFillValue                Type = 0x05
	TypeLink                     Type = 0x06
	TypeExternalDataFiles        Type = 0x07
	TypeDataLayout               Type = 0x08
	TypeBogus                    Type = 0x09
	TypeGroupInfo                Type = 0x0A
	TypeFilterPipeline           Type = 0x0B
	TypeAttribute                Type = 0x0C
	TypeObjectComment            Type = 0x0D
	TypeObjectModTimeOld         Type = 0x0E
	TypeSharedMessageTable       Type = 0x0F
	TypeObjectHeaderContinuation Type = 0x10
	TypeSymbolTable              Type = 0x11
	TypeObjectModTime            Type = 0x12
	TypeBTreeKValues             Type = 0x13
	TypeDriverInfo               Type = 0x14
	TypeAttributeInfo            Type = 0x15
	TypeObjectRefCount           Type = 0x16
)

type Message interface {
	Type() Type
}

// flagShared marks a message whose body is a reference to a message stored
// elsewhere.
const flagShared = 0x02

type parser func(data []byte, r *binary.Reader) (Message, error)

func as[T Message](fn func([]byte, *binary.Reader) (T, error)) parser {
	return func(data []byte, r *binary.Reader) (Message, error) { return fn(data, r) }
}

var parsers = map[Type]parser{
	TypeDataspace:                as(parseDataspace),
	TypeDatatype:                 as(parseDatatype),
	TypeDataLayout:               as(parseDataLayout),
	TypeFilterPipeline:           as(parseFilterPipeline),
	TypeFillValue:                as(parseFillValue),
	TypeFillValueOld:             as(parseOldFillValue),
	TypeAttribute:                as(parseAttribute),
	TypeLink:                     as(parseLink),
	TypeSymbolTable:              as(parseSymbolTable),
	TypeObjectHeaderContinuation: as(parseContinuation),
	TypeObjectModTime:            as(parseModTime),
}

// Parse decodes one message body. Types without a decoder, and shared
// messages, come back as *Unknown.
func Parse(typ Type, data []byte, flags uint8, r *binary.Reader) (Message, error) {
	parse, ok := parsers[typ]
	if !ok || flags&flagShared != 0 {
		return &Unknown{typ: typ, data: data, flags: flags}, nil
	}
	msg, err := parse(data, r)
	if err != nil {
		return nil, fmt.Errorf("message type %#x: %w", uint16(typ), err)
	}
	return msg, nil
}

// Unknown keeps the raw body of a message that was not decoded.
type Unknown struct {
	typ   Type
	data  []byte
	flags uint8
}

func (m *Unknown) Type() Type   { return m.typ }
func (m *Unknown) Data() []byte { return m.data }
func (m *Unknown) Shared() bool { return m.flags&flagShared != 0 }

// Continuation points at the next block of header messages.
type Continuation struct {
	Offset uint64
	Length uint64
}

func (m *Continuation) Type() Type { return TypeObjectHeaderContinuation }

func parseContinuation(data []byte, r *binary.Reader) (*Continuation, error) {
	p := newCursor(data, r)
	m := &Continuation{Offset: p.offset(), Length: p.length()}
	return m, p.err
}

// ModTime is the object modification time in seconds since the epoch.
type ModTime struct {
	Seconds uint32
}

func (m *ModTime) Type() Type { return TypeObjectModTime }

func parseModTime(data []byte, r *binary.Reader) (*ModTime, error) {
	p := newCursor(data, r)
	if v := p.u8(); p.err == nil && v != 1 {
		return nil, fmt.Errorf("modification time version %d", v)
	}
	p.skip(3)
	m := &ModTime{Seconds: p.u32()}
	return m, p.err
}
