package message

import (
	"fmt"

	"github.com/richielo/basicFusion/internal/binary"
)

// Registered filter identifiers.
const (
	FilterDeflate     uint16 = 1
	FilterShuffle     uint16 = 2
	FilterFletcher32  uint16 = 3
	FilterSZIP        uint16 = 4
	FilterNBit        uint16 = 5
	FilterScaleOffset uint16 = 6
)

type FilterInfo struct {
	ID         uint16
	Flags      uint16
	Name       string
	ClientData []uint32
}

// IsOptional reports whether a chunk may skip the filter when it fails.
func (f *FilterInfo) IsOptional() bool { return f.Flags&0x01 != 0 }

// FilterPipeline is the filter pipeline message (0x000B), filters in the
// order they were applied on write.
type FilterPipeline struct {
	Version uint8
	Filters []FilterInfo
}

func (m *FilterPipeline) Type() Type { return TypeFilterPipeline }

func (m *FilterPipeline) HasFilter(id uint16) bool {
	for _, f := range m.Filters {
		if f.ID == id {
			return true
		}
	}
	return false
}

func (m *FilterPipeline) HasCompression() bool {
	return m.HasFilter(FilterDeflate) || m.HasFilter(FilterSZIP)
}

func parseFilterPipeline(data []byte, r *binary.Reader) (*FilterPipeline, error) {
	p := newCursor(data, r)
	m := &FilterPipeline{Version: p.u8()}
	n := int(p.u8())
	switch m.Version {
	case 1:
		p.skip(6)
	case 2:
	default:
		if p.err == nil {
			return nil, fmt.Errorf("filter pipeline version %d", m.Version)
		}
	}
	m.Filters = make([]FilterInfo, n)
	for i := range m.Filters {
		m.Filters[i] = m.filter(p)
	}
	if p.err != nil {
		return nil, fmt.Errorf("filter pipeline: %w", p.err)
	}
	return m, nil
}

// filter reads one description. Version 2 drops the name of library
// filters and all padding.
func (m *FilterPipeline) filter(p *cursor) FilterInfo {
	f := FilterInfo{ID: p.u16()}
	var nameLen int
	if m.Version == 1 || f.ID >= 256 {
		nameLen = int(p.u16())
	}
	f.Flags = p.u16()
	f.ClientData = make([]uint32, p.u16())
	if nameLen > 0 {
		f.Name = p.field(nameLen)
		if m.Version == 1 {
			p.pad(8)
		}
	}
	for i := range f.ClientData {
		f.ClientData[i] = p.u32()
	}
	if m.Version == 1 && len(f.ClientData)%2 == 1 {
		p.skip(4)
	}
	return f
}
