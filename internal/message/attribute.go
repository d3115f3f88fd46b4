package message

import (
	"fmt"

	"github.com/richielo/basicFusion/internal/binary"
)

// Attribute is the attribute message (0x000C): a small named value stored
// in its owner's header.
type Attribute struct {
	Version   uint8
	Name      string
	Datatype  *Datatype
	Dataspace *Dataspace
	Data      []byte
}

func (m *Attribute) Type() Type { return TypeAttribute }

// Versions 1 to 3 share a layout: version 1 pads every part to eight bytes
// and version 3 adds a name encoding byte.
func parseAttribute(data []byte, r *binary.Reader) (*Attribute, error) {
	p := newCursor(data, r)
	m := &Attribute{Version: p.u8()}
	if p.err == nil && (m.Version < 1 || m.Version > 3) {
		return nil, fmt.Errorf("attribute version %d", m.Version)
	}
	flags := p.u8()
	nameSize, typeSize, spaceSize := int(p.u16()), int(p.u16()), int(p.u16())
	if m.Version == 3 {
		p.skip(1)
	}
	padded := m.Version == 1

	m.Name = p.field(nameSize)
	if flags&0x03 != 0 {
		return nil, fmt.Errorf("attribute %q has a shared datatype or dataspace", m.Name)
	}
	if padded {
		p.pad(8)
	}
	typeBytes := p.take(typeSize)
	if padded {
		p.pad(8)
	}
	spaceBytes := p.take(spaceSize)
	if padded {
		p.pad(8)
	}
	if p.err != nil {
		return nil, fmt.Errorf("attribute: %w", p.err)
	}

	var err error
	if m.Datatype, err = parseDatatype(typeBytes, r); err != nil {
		return nil, fmt.Errorf("attribute %q: %w", m.Name, err)
	}
	if m.Dataspace, err = parseDataspace(spaceBytes, r); err != nil {
		return nil, fmt.Errorf("attribute %q: %w", m.Name, err)
	}
	m.Data = p.rest()
	return m, nil
}

func NewAttribute(name string, dt *Datatype, space *Dataspace, data []byte) *Attribute {
	return &Attribute{Version: 3, Name: name, Datatype: dt, Dataspace: space, Data: data}
}

// Serialize writes a version 3 attribute with an ASCII name.
func (m *Attribute) Serialize(w *binary.Writer) error {
	head := []byte{3, 0}
	head = appendUint(head, uint64(len(m.Name)+1), 2)
	head = appendUint(head, uint64(m.Datatype.SerializedSize(w)), 2)
	head = appendUint(head, uint64(m.Dataspace.SerializedSize(w)), 2)
	head = append(head, 0)
	head = append(append(head, m.Name...), 0)
	if err := w.WriteBytes(head); err != nil {
		return err
	}
	if err := m.Datatype.Serialize(w); err != nil {
		return err
	}
	if err := m.Dataspace.Serialize(w); err != nil {
		return err
	}
	return w.WriteBytes(m.Data)
}

func (m *Attribute) SerializedSize(w *binary.Writer) int {
	return 9 + len(m.Name) + 1 + m.Datatype.SerializedSize(w) + m.Dataspace.SerializedSize(w) + len(m.Data)
}
