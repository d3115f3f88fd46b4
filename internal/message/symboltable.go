package message

import (
	"fmt"

	"github.com/richielo/basicFusion/internal/binary"
)

// SymbolTable (0x0011) marks an old-style group: its members live in a
// version 1 B-tree whose names sit in a local heap.
type SymbolTable struct {
	BTreeAddress     uint64
	LocalHeapAddress uint64
}

func (m *SymbolTable) Type() Type { return TypeSymbolTable }

func parseSymbolTable(data []byte, r *binary.Reader) (*SymbolTable, error) {
	p := newCursor(data, r)
	m := &SymbolTable{BTreeAddress: p.offset(), LocalHeapAddress: p.offset()}
	if p.err != nil {
		return nil, fmt.Errorf("symbol table: %w", p.err)
	}
	return m, nil
}
