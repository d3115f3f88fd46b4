package message

import (
	"fmt"

	"github.com/richielo/basicFusion/internal/binary"
)

// Serialize writes a version 3 layout message. Only contiguous storage is
// written; compact and chunked layouts are read-only.
func (m *DataLayout) Serialize(w *binary.Writer) error {
	if m.Class != LayoutContiguous {
		return fmt.Errorf("layout class %d cannot be written", m.Class)
	}
	if err := w.WriteUint8(3); err != nil {
		return err
	}
	if err := w.WriteUint8(uint8(m.Class)); err != nil {
		return err
	}
	if err := w.WriteOffset(m.Address); err != nil {
		return err
	}
	return w.WriteLength(m.Size)
}

func (m *DataLayout) SerializedSize(w *binary.Writer) int {
	return 2 + w.OffsetSize() + w.LengthSize()
}

// NewContiguousLayout describes size bytes of raw data stored at address.
func NewContiguousLayout(address, size uint64) *DataLayout {
	return &DataLayout{
		Version: 3,
		Class:   LayoutContiguous,
		Address: address,
		Size:    size,
	}
}
