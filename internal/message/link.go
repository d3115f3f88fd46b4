package message

import (
	"bytes"
	"fmt"

	"github.com/richielo/basicFusion/internal/binary"
)

type LinkType uint8

const (
	LinkTypeHard     LinkType = 0
	LinkTypeSoft     LinkType = 1
	LinkTypeExternal LinkType = 64
)

// link message flag bits; the low two give the width of the name length
const (
	linkOrderPresent   = 0x04
	linkTypePresent    = 0x08
	linkCharsetPresent = 0x10
)

// Link is the link message (0x0006) of a new-style group. Which target
// fields are set depends on LinkType.
type Link struct {
	Version       uint8
	LinkType      LinkType
	CreationOrder uint64
	Name          string
	Charset       uint8

	ObjectAddress uint64
	SoftLinkValue string
	ExternalFile  string
	ExternalPath  string
}

func (m *Link) Type() Type { return TypeLink }

func (m *Link) IsHard() bool     { return m.LinkType == LinkTypeHard }
func (m *Link) IsSoft() bool     { return m.LinkType == LinkTypeSoft }
func (m *Link) IsExternal() bool { return m.LinkType == LinkTypeExternal }

func parseLink(data []byte, r *binary.Reader) (*Link, error) {
	p := newCursor(data, r)
	m := &Link{Version: p.u8()}
	flags := p.u8()
	if flags&linkTypePresent != 0 {
		m.LinkType = LinkType(p.u8())
	}
	if flags&linkOrderPresent != 0 {
		m.CreationOrder = p.uint(8)
	}
	if flags&linkCharsetPresent != 0 {
		m.Charset = p.u8()
	}
	m.Name = string(p.take(int(p.uint(1 << (flags & 0x03)))))

	switch m.LinkType {
	case LinkTypeHard:
		m.ObjectAddress = p.offset()
	case LinkTypeSoft:
		m.SoftLinkValue = string(p.take(int(p.u16())))
	case LinkTypeExternal:
		info := p.take(int(p.u16()))
		if p.err == nil {
			if len(info) < 2 {
				return nil, fmt.Errorf("external link %q: short target", m.Name)
			}
			file, path, _ := bytes.Cut(info[1:], []byte{0})
			m.ExternalFile = string(file)
			m.ExternalPath = string(bytes.TrimRight(path, "\x00"))
		}
	default:
		p.skip(int(p.u16()))
	}
	if p.err != nil {
		return nil, fmt.Errorf("link %q: %w", m.Name, p.err)
	}
	return m, nil
}

// nameWidth is the flag value and byte width of a name length field.
func nameWidth(n int) (uint8, int) {
	switch {
	case n <= 0xff:
		return 0, 1
	case n <= 0xffff:
		return 1, 2
	case uint64(n) <= 0xffffffff:
		return 2, 4
	}
	return 3, 8
}

// encode renders m as a version 1 link message.
func (m *Link) encode(offsetSize int) []byte {
	code, width := nameWidth(len(m.Name))
	flags := code
	if m.LinkType != LinkTypeHard {
		flags |= linkTypePresent
	}
	b := []byte{1, flags}
	if m.LinkType != LinkTypeHard {
		b = append(b, byte(m.LinkType))
	}
	b = appendUint(b, uint64(len(m.Name)), width)
	b = append(b, m.Name...)

	switch m.LinkType {
	case LinkTypeHard:
		b = appendUint(b, m.ObjectAddress, offsetSize)
	case LinkTypeSoft:
		b = appendUint(b, uint64(len(m.SoftLinkValue)), 2)
		b = append(b, m.SoftLinkValue...)
	case LinkTypeExternal:
		b = appendUint(b, uint64(len(m.ExternalFile)+len(m.ExternalPath)+3), 2)
		b = append(b, 0)
		b = append(append(b, m.ExternalFile...), 0)
		b = append(append(b, m.ExternalPath...), 0)
	}
	return b
}

func (m *Link) Serialize(w *binary.Writer) error { return w.WriteBytes(m.encode(w.OffsetSize())) }

func (m *Link) SerializedSize(w *binary.Writer) int { return len(m.encode(w.OffsetSize())) }

func NewHardLink(name string, addr uint64) *Link {
	return &Link{Version: 1, LinkType: LinkTypeHard, Name: name, ObjectAddress: addr}
}

func NewSoftLink(name, target string) *Link {
	return &Link{Version: 1, LinkType: LinkTypeSoft, Name: name, SoftLinkValue: target}
}

func NewExternalLink(name, file, path string) *Link {
	return &Link{Version: 1, LinkType: LinkTypeExternal, Name: name, ExternalFile: file, ExternalPath: path}
}
