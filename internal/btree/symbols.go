// Package btree walks the version 1 group B-tree of old-style groups: a
// tree keyed by name whose leaves point at symbol table nodes.
package btree

import (
	"encoding/binary"
	"fmt"

	binpkg "github.com/richielo/basicFusion/internal/binary"
	"github.com/richielo/basicFusion/internal/heap"
)

// Symbol is one member of an old-style group.
type Symbol struct {
	Name    string
	Address uint64
	// Target is set for soft links, whose Address is meaningless.
	Target string
}

func (s Symbol) IsSoft() bool { return s.Target != "" }

// cache type of a symbol table entry whose scratch pad holds a link value
const cacheSoftLink = 2

// maxDepth bounds the walk; real group trees are a few levels deep.
const maxDepth = 32

// Symbols lists the members of the group whose B-tree is at treeAddr and
// whose names live in the local heap at heapAddr, in name order.
func Symbols(r *binpkg.Reader, treeAddr, heapAddr uint64) ([]Symbol, error) {
	names, err := heap.ReadLocal(r, heapAddr)
	if err != nil {
		return nil, err
	}
	return walk(r, treeAddr, names, nil, maxDepth)
}

func walk(r *binpkg.Reader, addr uint64, names *heap.Local, out []Symbol, depth int) ([]Symbol, error) {
	if depth == 0 {
		return nil, fmt.Errorf("group B-tree deeper than %d levels", maxDepth)
	}
	nr := r.At(int64(addr))
	sig, err := nr.ReadBytes(8)
	if err != nil {
		return nil, fmt.Errorf("group B-tree node at %d: %w", addr, err)
	}
	if string(sig[:4]) != "TREE" {
		return nil, fmt.Errorf("found %q where a group B-tree node was expected", sig[:4])
	}
	if sig[4] != 0 {
		return nil, fmt.Errorf("B-tree node type %d is not a group node", sig[4])
	}
	level := sig[5]
	entries := int(binary.LittleEndian.Uint16(sig[6:]))
	nr.Skip(2 * int64(r.OffsetSize()))

	for i := 0; i < entries; i++ {
		nr.Skip(int64(r.LengthSize())) // key: heap offset of the last name below
		child, err := nr.ReadOffset()
		if err != nil {
			return nil, err
		}
		if level > 0 {
			out, err = walk(r, child, names, out, depth-1)
		} else {
			out, err = symbolNode(r, child, names, out)
		}
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// symbolNode appends the entries of the symbol table node at addr.
func symbolNode(r *binpkg.Reader, addr uint64, names *heap.Local, out []Symbol) ([]Symbol, error) {
	nr := r.At(int64(addr))
	head, err := nr.ReadBytes(8)
	if err != nil {
		return nil, fmt.Errorf("symbol table node at %d: %w", addr, err)
	}
	if string(head[:4]) != "SNOD" {
		return nil, fmt.Errorf("found %q where a symbol table node was expected", head[:4])
	}
	if head[4] != 1 {
		return nil, fmt.Errorf("symbol table node version %d is not supported", head[4])
	}
	n := int(binary.LittleEndian.Uint16(head[6:]))

	for i := 0; i < n; i++ {
		nameOff, err := nr.ReadOffset()
		if err != nil {
			return nil, err
		}
		obj, err := nr.ReadOffset()
		if err != nil {
			return nil, err
		}
		cache, err := nr.ReadUint32()
		if err != nil {
			return nil, err
		}
		nr.Skip(4)
		scratch, err := nr.ReadBytes(16)
		if err != nil {
			return nil, err
		}

		s := Symbol{Name: names.String(nameOff), Address: obj}
		if s.Name == "" {
			continue
		}
		if cache == cacheSoftLink {
			s.Address = 0
			s.Target = names.String(uint64(binary.LittleEndian.Uint32(scratch)))
		}
		out = append(out, s)
	}
	return out, nil
}
