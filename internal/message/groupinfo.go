package message

import (
	"github.com/richielo/basicFusion/internal/binary"
)

// LinkInfo (0x0002) and GroupInfo (0x000A) open every new-style group
// header. Groups written here keep their links compact in the header, so
// both messages carry defaults only.

// UndefinedAddress marks an address field that points nowhere.
const UndefinedAddress = ^uint64(0)

type LinkInfo struct {
	Flags            uint8
	MaxCreationIndex uint64
	FractalHeapAddr  uint64
	NameIndexAddr    uint64
	OrderIndexAddr   uint64
}

func (m *LinkInfo) Type() Type { return TypeLinkInfo }

// The heap and name index addresses are always present, undefined for
// compact storage.
func (m *LinkInfo) Serialize(w *binary.Writer) error {
	b := []byte{0, m.Flags}
	if m.Flags&0x01 != 0 {
		b = appendUint(b, m.MaxCreationIndex, 8)
	}
	b = appendUint(b, m.FractalHeapAddr, w.OffsetSize())
	b = appendUint(b, m.NameIndexAddr, w.OffsetSize())
	if m.Flags&0x02 != 0 {
		b = appendUint(b, m.OrderIndexAddr, w.OffsetSize())
	}
	return w.WriteBytes(b)
}

func (m *LinkInfo) SerializedSize(w *binary.Writer) int {
	n := 2 + 2*w.OffsetSize()
	if m.Flags&0x01 != 0 {
		n += 8
	}
	if m.Flags&0x02 != 0 {
		n += w.OffsetSize()
	}
	return n
}

func NewLinkInfo() *LinkInfo {
	return &LinkInfo{FractalHeapAddr: UndefinedAddress, NameIndexAddr: UndefinedAddress}
}

// GroupInfo with no flags tells readers to use the library's storage
// thresholds.
type GroupInfo struct{}

func (m *GroupInfo) Type() Type                        { return TypeGroupInfo }
func (m *GroupInfo) Serialize(w *binary.Writer) error  { return w.WriteBytes([]byte{0, 0}) }
func (m *GroupInfo) SerializedSize(*binary.Writer) int { return 2 }

func NewGroupInfo() *GroupInfo { return &GroupInfo{} }
