package message

import (
	"fmt"

	"github.com/richielo/basicFusion/internal/binary"
)

// FillValue is the fill value message (0x0005), or the old-style one
// (0x0004) that only ever carries a value. Value is nil when no fill value
// was set; readers then use zeros.
type FillValue struct {
	Version        uint8
	SpaceAllocTime uint8
	FillWriteTime  uint8
	Value          []byte
}

func (m *FillValue) Type() Type { return TypeFillValue }

func parseFillValue(data []byte, r *binary.Reader) (*FillValue, error) {
	p := newCursor(data, r)
	m := &FillValue{Version: p.u8()}
	switch m.Version {
	case 1, 2:
		m.SpaceAllocTime, m.FillWriteTime = p.u8(), p.u8()
		defined := p.u8() != 0
		// version 2 leaves out the size when no value is defined
		if defined || m.Version == 1 {
			m.Value = p.take(int(p.u32()))
		}
	case 3:
		flags := p.u8()
		m.SpaceAllocTime, m.FillWriteTime = flags&0x03, flags>>2&0x03
		if flags&0x20 != 0 {
			m.Value = p.take(int(p.u32()))
		}
	default:
		if p.err == nil {
			return nil, fmt.Errorf("fill value version %d", m.Version)
		}
	}
	if p.err != nil {
		return nil, fmt.Errorf("fill value: %w", p.err)
	}
	if len(m.Value) == 0 {
		m.Value = nil
	}
	return m, nil
}

func parseOldFillValue(data []byte, r *binary.Reader) (*FillValue, error) {
	p := newCursor(data, r)
	m := &FillValue{Value: p.take(int(p.u32()))}
	if p.err != nil {
		return nil, fmt.Errorf("old fill value: %w", p.err)
	}
	if len(m.Value) == 0 {
		m.Value = nil
	}
	return m, nil
}
