package alloc

import (
	"fmt"
	"sort"
	"sync"
)

// Allocator hands out file offsets. Space returned through Free is reused
// first-fit before the file is grown.
type Allocator struct {
	mu sync.Mutex

	eofAddr  uint64
	baseAddr uint64

	live       map[uint64]uint64 // addr -> size
	freeBlocks []FreeBlock       // sorted by Addr, never adjacent
	stats      Stats
}

// FreeBlock is a span of reusable space.
type FreeBlock struct {
	Addr uint64
	Size uint64
}

// Stats contains allocation statistics.
type Stats struct {
	TotalAllocations uint64
	TotalBytesAlloc  uint64
	TotalBytesFree   uint64
	BytesReused      uint64
	LargestAlloc     uint64
}

// New creates an Allocator whose first allocation lands at baseAddr.
func New(baseAddr uint64) *Allocator {
	return &Allocator{
		eofAddr:  baseAddr,
		baseAddr: baseAddr,
		live:     make(map[uint64]uint64),
	}
}

// Alloc reserves size bytes and returns their address.
func (a *Allocator) Alloc(size uint64) uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	if size == 0 {
		return a.eofAddr
	}

	addr, ok := a.takeFree(size)
	if ok {
		a.stats.BytesReused += size
	} else {
		addr = a.eofAddr
		a.eofAddr += size
	}

	a.live[addr] = size
	a.stats.TotalAllocations++
	a.stats.TotalBytesAlloc += size
	if size > a.stats.LargestAlloc {
		a.stats.LargestAlloc = size
	}
	return addr
}

func (a *Allocator) takeFree(size uint64) (uint64, bool) {
	for i, b := range a.freeBlocks {
		if b.Size < size {
			continue
		}
		if b.Size == size {
			a.freeBlocks = append(a.freeBlocks[:i], a.freeBlocks[i+1:]...)
		} else {
			a.freeBlocks[i] = FreeBlock{Addr: b.Addr + size, Size: b.Size - size}
		}
		return b.Addr, true
	}
	return 0, false
}

// Release frees the live block starting at addr, whatever its size. It
// reports false when addr was not handed out by a, as for structures that
// predate the allocator.
func (a *Allocator) Release(addr uint64) bool {
	a.mu.Lock()
	size, ok := a.live[addr]
	a.mu.Unlock()
	return ok && a.Free(addr, size) == nil
}

// Free returns a block obtained from Alloc. Freeing an address that is not
// live is an error.
func (a *Allocator) Free(addr, size uint64) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if got, ok := a.live[addr]; !ok || got != size {
		return fmt.Errorf("free of unknown block [0x%x, size %d]", addr, size)
	}
	delete(a.live, addr)
	a.stats.TotalBytesFree += size

	i := sort.Search(len(a.freeBlocks), func(i int) bool { return a.freeBlocks[i].Addr > addr })
	a.freeBlocks = append(a.freeBlocks, FreeBlock{})
	copy(a.freeBlocks[i+1:], a.freeBlocks[i:])
	a.freeBlocks[i] = FreeBlock{Addr: addr, Size: size}

	// Merge with neighbours.
	if i+1 < len(a.freeBlocks) && addr+size == a.freeBlocks[i+1].Addr {
		a.freeBlocks[i].Size += a.freeBlocks[i+1].Size
		a.freeBlocks = append(a.freeBlocks[:i+1], a.freeBlocks[i+2:]...)
	}
	if i > 0 && a.freeBlocks[i-1].Addr+a.freeBlocks[i-1].Size == addr {
		a.freeBlocks[i-1].Size += a.freeBlocks[i].Size
		a.freeBlocks = append(a.freeBlocks[:i], a.freeBlocks[i+1:]...)
	}
	return nil
}

// EOFAddr returns the current end-of-file address.
func (a *Allocator) EOFAddr() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.eofAddr
}

// Stats returns a copy of the allocation statistics.
func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

// FreeBlocks returns a copy of the free list.
func (a *Allocator) FreeBlocks() []FreeBlock {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]FreeBlock(nil), a.freeBlocks...)
}

// Validate checks that live blocks sit between the base address and EOF and
// do not overlap each other or the free list.
func (a *Allocator) Validate() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	spans := make([]FreeBlock, 0, len(a.live)+len(a.freeBlocks))
	for addr, size := range a.live {
		spans = append(spans, FreeBlock{Addr: addr, Size: size})
	}
	spans = append(spans, a.freeBlocks...)
	sort.Slice(spans, func(i, j int) bool { return spans[i].Addr < spans[j].Addr })

	for i, s := range spans {
		if s.Addr < a.baseAddr || s.Addr+s.Size > a.eofAddr {
			return fmt.Errorf("block [0x%x, size %d] outside [0x%x, 0x%x)", s.Addr, s.Size, a.baseAddr, a.eofAddr)
		}
		if i > 0 && spans[i-1].Addr+spans[i-1].Size > s.Addr {
			return fmt.Errorf("overlapping blocks at 0x%x and 0x%x", spans[i-1].Addr, s.Addr)
		}
	}
	return nil
}
