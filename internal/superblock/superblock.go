// Package superblock locates, decodes and encodes the HDF5 superblock, the
// fixed structure that sizes every address in the file and points at the
// root group.
package superblock

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	binpkg "github.com/richielo/basicFusion/internal/binary"
)

// Signature opens every superblock.
var Signature = []byte{0x89, 'H', 'D', 'F', '\r', '\n', 0x1a, '\n'}

// searchOffsets are the places a superblock may start, tried in order.
var searchOffsets = []int64{0, 512, 1024, 2048}

var (
	ErrNotHDF5            = errors.New("not an HDF5 file: signature not found")
	ErrUnsupportedVersion = errors.New("unsupported superblock version")
	ErrInvalidSuperblock  = errors.New("invalid superblock structure")
)

// Superblock holds the fields the rest of the engine needs. Versions 0 and 1
// describe the root group through a symbol table entry; when that entry
// caches its B-tree and local heap, the addresses are kept as well.
type Superblock struct {
	Version              uint8
	OffsetSize           uint8
	LengthSize           uint8
	FileConsistencyFlags uint8

	BaseAddress                uint64
	SuperblockExtensionAddress uint64
	EOFAddress                 uint64
	RootGroupAddress           uint64

	RootGroupBTreeAddress     uint64
	RootGroupLocalHeapAddress uint64

	ByteOrder  binary.ByteOrder
	FileOffset int64
}

// Read finds the signature and decodes the superblock that follows it.
func Read(r io.ReaderAt) (*Superblock, error) {
	sig := make([]byte, len(Signature)+1)
	for _, off := range searchOffsets {
		if _, err := r.ReadAt(sig, off); err != nil {
			if errors.Is(err, io.EOF) {
				continue
			}
			return nil, err
		}
		if !bytes.Equal(sig[:len(Signature)], Signature) {
			continue
		}

		var (
			sb  *Superblock
			err error
		)
		switch v := sig[len(Signature)]; v {
		case 0, 1:
			sb, err = readSymbolTableForm(r, off, v)
		case 2, 3:
			sb, err = readCompactForm(r, off)
		default:
			return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, v)
		}
		if err != nil {
			return nil, err
		}
		sb.FileOffset = off
		return sb, nil
	}
	return nil, ErrNotHDF5
}

// ReaderConfig is the binary encoding implied by this superblock.
func (sb *Superblock) ReaderConfig() binpkg.Config {
	return binpkg.Config{
		ByteOrder:  sb.ByteOrder,
		OffsetSize: int(sb.OffsetSize),
		LengthSize: int(sb.LengthSize),
	}
}

func validSize(n uint8) bool { return n == 2 || n == 4 || n == 8 }

// readSymbolTableForm decodes versions 0 and 1.
func readSymbolTableForm(r io.ReaderAt, off int64, version uint8) (*Superblock, error) {
	head := make([]byte, 16)
	if _, err := r.ReadAt(head, off+8); err != nil {
		return nil, err
	}
	sb := &Superblock{
		Version:    version,
		OffsetSize: head[5],
		LengthSize: head[6],
		ByteOrder:  binary.LittleEndian,
	}
	if !validSize(sb.OffsetSize) || !validSize(sb.LengthSize) {
		return nil, ErrInvalidSuperblock
	}

	br := binpkg.NewReader(r, sb.ReaderConfig()).At(off + 24)
	if version == 1 {
		br.Skip(4) // indexed storage K and reserved
	}

	var freeSpace, driver uint64
	for _, dst := range []*uint64{&sb.BaseAddress, &freeSpace, &sb.EOFAddress, &driver} {
		v, err := br.ReadOffset()
		if err != nil {
			return nil, err
		}
		*dst = v
	}

	// root symbol table entry: name offset, header address, cache type,
	// reserved, scratch pad
	br.Skip(int64(sb.OffsetSize))
	addr, err := br.ReadOffset()
	if err != nil {
		return nil, err
	}
	sb.RootGroupAddress = addr

	cacheType, err := br.ReadUint32()
	if err != nil {
		return nil, err
	}
	br.Skip(4)
	if cacheType == 1 {
		if sb.RootGroupBTreeAddress, err = br.ReadOffset(); err != nil {
			return nil, err
		}
		if sb.RootGroupLocalHeapAddress, err = br.ReadOffset(); err != nil {
			return nil, err
		}
	}
	return sb, nil
}

// readCompactForm decodes versions 2 and 3 and checks the trailing lookup3
// checksum.
func readCompactForm(r io.ReaderAt, off int64) (*Superblock, error) {
	head := make([]byte, 12)
	if _, err := r.ReadAt(head, off); err != nil {
		return nil, err
	}
	sb := &Superblock{
		Version:              head[8],
		OffsetSize:           head[9],
		LengthSize:           head[10],
		FileConsistencyFlags: head[11],
		ByteOrder:            binary.LittleEndian,
	}
	if !validSize(sb.OffsetSize) || !validSize(sb.LengthSize) {
		return nil, ErrInvalidSuperblock
	}

	body := make([]byte, sb.Size())
	if _, err := r.ReadAt(body, off); err != nil {
		return nil, err
	}
	n := len(body) - 4
	if binary.LittleEndian.Uint32(body[n:]) != binpkg.Lookup3Checksum(body[:n]) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrInvalidSuperblock)
	}

	br := binpkg.NewReader(bytes.NewReader(body), sb.ReaderConfig()).At(12)
	for _, dst := range []*uint64{&sb.BaseAddress, &sb.SuperblockExtensionAddress, &sb.EOFAddress, &sb.RootGroupAddress} {
		v, err := br.ReadOffset()
		if err != nil {
			return nil, err
		}
		*dst = v
	}
	return sb, nil
}
