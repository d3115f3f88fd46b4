package layout

import (
	"encoding/binary"
	"fmt"
	"math/bits"

	binpkg "github.com/richielo/basicFusion/internal/binary"
)

func le(b []byte) uint64 {
	var v uint64
	for i := len(b) - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

func expect(r *binpkg.Reader, sig string) error {
	got, err := r.ReadBytes(len(sig))
	if err != nil {
		return err
	}
	if string(got) != sig {
		return fmt.Errorf("found %q where %s was expected", got, sig)
	}
	return nil
}

// element decodes an array index entry. Filtered entries carry the stored
// size and filter mask after the address.
func (c *Chunked) element(b []byte, filtered bool, offset []uint64) (chunkRef, bool) {
	o := c.r.OffsetSize()
	ref := chunkRef{offset: offset, addr: le(b[:o]), size: c.chunkBytes()}
	if filtered && len(b) >= o+4 {
		ref.size = le(b[o : len(b)-4])
		ref.mask = binary.LittleEndian.Uint32(b[len(b)-4:])
	}
	return ref, ref.addr != 0 && !c.r.IsUndefinedOffset(ref.addr)
}

// btreeV1 walks a version 1 B-tree of chunks. Keys hold the chunk's stored
// size, filter mask and element offset, plus one trailing zero dimension.
func (c *Chunked) btreeV1(addr uint64, refs []chunkRef, wantLevel int) ([]chunkRef, error) {
	br := c.r.At(int64(addr))
	if err := expect(br, "TREE"); err != nil {
		return nil, err
	}
	head, err := br.ReadBytes(4)
	if err != nil {
		return nil, err
	}
	if head[0] != 1 {
		return nil, fmt.Errorf("B-tree node type %d is not a chunk node", head[0])
	}
	level := int(head[1])
	if wantLevel >= 0 && level != wantLevel {
		return nil, fmt.Errorf("B-tree node at %d has level %d, want %d", addr, level, wantLevel)
	}
	entries := int(binary.LittleEndian.Uint16(head[2:]))
	br.Skip(2 * int64(c.r.OffsetSize()))

	rank := len(c.dims)
	extra := int64(len(c.msg.ChunkDims)-rank) * 8
	for i := 0; i < entries; i++ {
		size, err := br.ReadUint32()
		if err != nil {
			return nil, err
		}
		mask, err := br.ReadUint32()
		if err != nil {
			return nil, err
		}
		off := make([]uint64, rank)
		for d := range off {
			if off[d], err = br.ReadUint64(); err != nil {
				return nil, err
			}
		}
		br.Skip(extra)
		child, err := br.ReadOffset()
		if err != nil {
			return nil, err
		}
		if level > 0 {
			if refs, err = c.btreeV1(child, refs, level-1); err != nil {
				return nil, err
			}
			continue
		}
		if c.r.IsUndefinedOffset(child) {
			continue
		}
		refs = append(refs, chunkRef{offset: off, addr: child, size: uint64(size), mask: mask})
	}
	return refs, nil
}

// fixedArray reads a fixed array index: a header, then one data block that
// is split into pages once it holds more than 2^pageBits entries.
func (c *Chunked) fixedArray(addr uint64) ([]chunkRef, error) {
	br := c.r.At(int64(addr))
	if err := expect(br, "FAHD"); err != nil {
		return nil, err
	}
	head, err := br.ReadBytes(4)
	if err != nil {
		return nil, err
	}
	filtered, entrySize, pageBits := head[1] == 1, int(head[2]), head[3]
	n, err := br.ReadLength()
	if err != nil {
		return nil, err
	}
	dblk, err := br.ReadOffset()
	if err != nil {
		return nil, err
	}

	db := c.r.At(int64(dblk))
	if err := expect(db, "FADB"); err != nil {
		return nil, err
	}
	db.Skip(2 + int64(c.r.OffsetSize()))

	lim, order := c.limit(), rowMajor(len(c.dims))
	var refs []chunkRef
	add := func(i uint64, raw []byte) {
		for k := uint64(0); k*uint64(entrySize) < uint64(len(raw)); k++ {
			e := raw[k*uint64(entrySize) : (k+1)*uint64(entrySize)]
			if ref, ok := c.element(e, filtered, c.origin(i+k, order, lim)); ok {
				refs = append(refs, ref)
			}
		}
	}

	page := uint64(1) << pageBits
	if n <= page {
		raw, err := db.ReadBytes(int(n) * entrySize)
		if err != nil {
			return nil, err
		}
		add(0, raw)
		return refs, nil
	}

	npages := (n + page - 1) / page
	bitmap, err := db.ReadBytes(int((npages + 7) / 8))
	if err != nil {
		return nil, err
	}
	db.Skip(4)
	for p := uint64(0); p < npages; p++ {
		cnt := min(page, n-p*page)
		if bitmap[p/8]&(0x80>>(p%8)) == 0 {
			db.Skip(int64(page)*int64(entrySize) + 4)
			continue
		}
		raw, err := db.ReadBytes(int(cnt) * entrySize)
		if err != nil {
			return nil, err
		}
		add(p*page, raw)
		db.Skip(4)
	}
	return refs, nil
}

// earray holds the creation parameters of an extensible array.
type earray struct {
	filtered      bool
	elemSize      int
	maxBits       int
	idxBlkElmts   uint64
	dblkMinElmts  uint64
	sblkMinPtrs   uint64
	dblkPageElmts uint64
	arrayOffSize  int
	sblkNdblks    []uint64
	sblkDblkElmts []uint64
}

func log2(v uint64) int { return bits.Len64(v) - 1 }

// extensibleArray reads an extensible array index, used when exactly one
// dimension is unlimited. Chunks are numbered with that dimension slowest.
func (c *Chunked) extensibleArray(addr uint64) ([]chunkRef, error) {
	br := c.r.At(int64(addr))
	if err := expect(br, "EAHD"); err != nil {
		return nil, err
	}
	head, err := br.ReadBytes(8)
	if err != nil {
		return nil, err
	}
	ea := &earray{
		filtered:      head[1] == 1,
		elemSize:      int(head[2]),
		maxBits:       int(head[3]),
		idxBlkElmts:   uint64(head[4]),
		dblkMinElmts:  uint64(head[5]),
		sblkMinPtrs:   uint64(head[6]),
		dblkPageElmts: uint64(1) << head[7],
	}
	if ea.dblkMinElmts == 0 || ea.sblkMinPtrs == 0 {
		return nil, fmt.Errorf("extensible array header is corrupt")
	}
	ea.arrayOffSize = (ea.maxBits + 7) / 8
	nsblks := 1 + ea.maxBits - log2(ea.dblkMinElmts)
	for u := 0; u < nsblks; u++ {
		ea.sblkNdblks = append(ea.sblkNdblks, uint64(1)<<(u/2))
		ea.sblkDblkElmts = append(ea.sblkDblkElmts, (uint64(1)<<((u+1)/2))*ea.dblkMinElmts)
	}

	br.Skip(4 * int64(c.r.LengthSize()))
	maxIdx, err := br.ReadLength()
	if err != nil {
		return nil, err
	}
	br.Skip(int64(c.r.LengthSize()))
	iblk, err := br.ReadOffset()
	if err != nil {
		return nil, err
	}

	order := rowMajor(len(c.dims))
	if u := c.unlimitedDim(); u > 0 {
		order = append([]int{u}, append(order[:u:u], order[u+1:]...)...)
	}
	lim := c.limit()

	var refs []chunkRef
	next := uint64(0)
	take := func(raw []byte) {
		for k := 0; k+ea.elemSize <= len(raw) && next < maxIdx; k += ea.elemSize {
			if ref, ok := c.element(raw[k:k+ea.elemSize], ea.filtered, c.origin(next, order, lim)); ok {
				refs = append(refs, ref)
			}
			next++
		}
	}

	ib := c.r.At(int64(iblk))
	if err := expect(ib, "EAIB"); err != nil {
		return nil, err
	}
	ib.Skip(2 + int64(c.r.OffsetSize()))
	raw, err := ib.ReadBytes(int(ea.idxBlkElmts) * ea.elemSize)
	if err != nil {
		return nil, err
	}
	take(raw)

	iblkSblks := 2 * log2(ea.sblkMinPtrs)
	for u := 0; u < iblkSblks && u < nsblks; u++ {
		for j := uint64(0); j < ea.sblkNdblks[u]; j++ {
			a, err := ib.ReadOffset()
			if err != nil {
				return nil, err
			}
			if err := c.eaDataBlock(ea, a, ea.sblkDblkElmts[u], nil, &next, take); err != nil {
				return nil, err
			}
		}
	}
	for u := iblkSblks; u < nsblks; u++ {
		a, err := ib.ReadOffset()
		if err != nil {
			return nil, err
		}
		if err := c.eaSuperBlock(ea, u, a, &next, take); err != nil {
			return nil, err
		}
	}
	return refs, nil
}

func (c *Chunked) eaSuperBlock(ea *earray, u int, addr uint64, next *uint64, take func([]byte)) error {
	n, elmts := ea.sblkNdblks[u], ea.sblkDblkElmts[u]
	if addr == 0 || c.r.IsUndefinedOffset(addr) {
		*next += n * elmts
		return nil
	}
	sb := c.r.At(int64(addr))
	if err := expect(sb, "EASB"); err != nil {
		return err
	}
	sb.Skip(2 + int64(c.r.OffsetSize()) + int64(ea.arrayOffSize))

	var pageInit []byte
	npages := uint64(0)
	if elmts > ea.dblkPageElmts {
		npages = elmts / ea.dblkPageElmts
	}
	bitmapLen := int((npages + 7) / 8)
	if npages > 0 {
		var err error
		if pageInit, err = sb.ReadBytes(int(n) * bitmapLen); err != nil {
			return err
		}
	}
	for j := uint64(0); j < n; j++ {
		a, err := sb.ReadOffset()
		if err != nil {
			return err
		}
		var init []byte
		if npages > 0 {
			init = pageInit[int(j)*bitmapLen : int(j+1)*bitmapLen]
		}
		if err := c.eaDataBlock(ea, a, elmts, init, next, take); err != nil {
			return err
		}
	}
	return nil
}

// eaDataBlock feeds the entries of one data block to take. A paged block
// only has the pages marked in init; nil init means every page.
func (c *Chunked) eaDataBlock(ea *earray, addr, elmts uint64, init []byte, next *uint64, take func([]byte)) error {
	if addr == 0 || c.r.IsUndefinedOffset(addr) {
		*next += elmts
		return nil
	}
	db := c.r.At(int64(addr))
	if err := expect(db, "EADB"); err != nil {
		return err
	}
	db.Skip(2 + int64(c.r.OffsetSize()) + int64(ea.arrayOffSize))

	if elmts <= ea.dblkPageElmts {
		raw, err := db.ReadBytes(int(elmts) * ea.elemSize)
		if err != nil {
			return err
		}
		take(raw)
		return nil
	}

	db.Skip(4)
	pageBytes := int64(ea.dblkPageElmts) * int64(ea.elemSize)
	for p := uint64(0); p < elmts/ea.dblkPageElmts; p++ {
		if init != nil && init[p/8]&(0x80>>(p%8)) == 0 {
			*next += ea.dblkPageElmts
			db.Skip(pageBytes + 4)
			continue
		}
		raw, err := db.ReadBytes(int(pageBytes))
		if err != nil {
			return err
		}
		take(raw)
		db.Skip(4)
	}
	return nil
}

// btreeV2 walks a version 2 B-tree of chunk records (types 10 and 11).
// Records hold scaled offsets, chunk numbers along each dimension.
func (c *Chunked) btreeV2(addr uint64) ([]chunkRef, error) {
	br := c.r.At(int64(addr))
	if err := expect(br, "BTHD"); err != nil {
		return nil, err
	}
	head, err := br.ReadBytes(12)
	if err != nil {
		return nil, err
	}
	kind := head[1]
	if kind != 10 && kind != 11 {
		return nil, fmt.Errorf("B-tree v2 type %d is not a chunk index", kind)
	}
	t := &bt2{
		c:        c,
		filtered: kind == 11,
		nodeSize: uint64(binary.LittleEndian.Uint32(head[2:])),
		recSize:  uint64(binary.LittleEndian.Uint16(head[6:])),
	}
	depth := int(binary.LittleEndian.Uint16(head[8:]))
	root, err := br.ReadOffset()
	if err != nil {
		return nil, err
	}
	nrec, err := br.ReadUint16()
	if err != nil {
		return nil, err
	}
	if t.recSize == 0 || t.nodeSize <= 10 {
		return nil, fmt.Errorf("B-tree v2 header is corrupt")
	}
	t.layout(depth)
	if nrec == 0 {
		return nil, nil
	}
	return t.node(root, uint64(nrec), depth, nil)
}

type bt2 struct {
	c        *Chunked
	filtered bool
	nodeSize uint64
	recSize  uint64
	// nrecSize is the width of a child's record count; cumSize[d] the
	// width of the total record count below a depth d node.
	nrecSize int
	cumSize  []int
}

// encSize is the number of bytes needed to hold v.
func encSize(v uint64) int { return max(log2(v), 0)/8 + 1 }

// layout derives the field widths used in internal nodes from the node size.
func (t *bt2) layout(depth int) {
	const prefix = 10 // signature, version, type and checksum
	o := uint64(t.c.r.OffsetSize())
	leafMax := (t.nodeSize - prefix) / t.recSize
	t.nrecSize = encSize(leafMax)
	cum := leafMax
	t.cumSize = []int{0}
	for d := 1; d <= depth; d++ {
		ptr := o + uint64(t.nrecSize) + uint64(t.cumSize[d-1])
		nmax := (t.nodeSize - prefix - ptr) / (t.recSize + ptr)
		cum = (nmax+1)*cum + nmax
		t.cumSize = append(t.cumSize, encSize(cum))
	}
}

func (t *bt2) node(addr, nrec uint64, depth int, refs []chunkRef) ([]chunkRef, error) {
	br := t.c.r.At(int64(addr))
	sig := "BTLF"
	if depth > 0 {
		sig = "BTIN"
	}
	if err := expect(br, sig); err != nil {
		return nil, err
	}
	br.Skip(2)
	records, err := br.ReadBytes(int(nrec * t.recSize))
	if err != nil {
		return nil, err
	}
	for i := uint64(0); i < nrec; i++ {
		if ref, ok := t.record(records[i*t.recSize : (i+1)*t.recSize]); ok {
			refs = append(refs, ref)
		}
	}
	if depth == 0 {
		return refs, nil
	}

	for i := uint64(0); i <= nrec; i++ {
		child, err := br.ReadOffset()
		if err != nil {
			return nil, err
		}
		n, err := br.ReadUintN(t.nrecSize)
		if err != nil {
			return nil, err
		}
		if depth > 1 {
			br.Skip(int64(t.cumSize[depth-1]))
		}
		if refs, err = t.node(child, n, depth-1, refs); err != nil {
			return nil, err
		}
	}
	return refs, nil
}

func (t *bt2) record(b []byte) (chunkRef, bool) {
	c := t.c
	o := c.r.OffsetSize()
	rank := len(c.dims)
	scaled := b[len(b)-8*rank:]
	off := make([]uint64, rank)
	for d := range off {
		off[d] = binary.LittleEndian.Uint64(scaled[8*d:]) * c.chunk[d]
	}
	ref := chunkRef{offset: off, addr: le(b[:o]), size: c.chunkBytes()}
	if t.filtered {
		meta := b[o : len(b)-8*rank]
		ref.size = le(meta[:len(meta)-4])
		ref.mask = binary.LittleEndian.Uint32(meta[len(meta)-4:])
	}
	return ref, ref.addr != 0 && !c.r.IsUndefinedOffset(ref.addr)
}
