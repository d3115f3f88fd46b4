package alloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllocatorAppends(t *testing.T) {
	a := New(100)
	assert.Equal(t, uint64(100), a.Alloc(10))
	assert.Equal(t, uint64(110), a.Alloc(20))
	assert.Equal(t, uint64(130), a.EOFAddr())
	assert.Equal(t, uint64(130), a.Alloc(0), "zero-size allocation returns EOF without growing")
	assert.Equal(t, uint64(130), a.EOFAddr())

	s := a.Stats()
	assert.Equal(t, uint64(2), s.TotalAllocations)
	assert.Equal(t, uint64(30), s.TotalBytesAlloc)
	assert.Equal(t, uint64(20), s.LargestAlloc)
	require.NoError(t, a.Validate())
}

func TestAllocatorReusesFreedSpace(t *testing.T) {
	a := New(0)
	first := a.Alloc(64)
	a.Alloc(8)
	require.NoError(t, a.Free(first, 64))

	reused := a.Alloc(16)
	assert.Equal(t, first, reused)
	assert.Equal(t, []FreeBlock{{Addr: 16, Size: 48}}, a.FreeBlocks())
	assert.Equal(t, uint64(72), a.EOFAddr(), "reuse must not grow the file")
	assert.Equal(t, uint64(16), a.Stats().BytesReused)

	big := a.Alloc(100)
	assert.Equal(t, uint64(72), big, "blocks larger than any free span go to EOF")
	require.NoError(t, a.Validate())
}

func TestAllocatorMergesNeighbours(t *testing.T) {
	a := New(0)
	x := a.Alloc(10)
	y := a.Alloc(10)
	z := a.Alloc(10)

	require.NoError(t, a.Free(x, 10))
	require.NoError(t, a.Free(z, 10))
	assert.Len(t, a.FreeBlocks(), 2)

	require.NoError(t, a.Free(y, 10))
	assert.Equal(t, []FreeBlock{{Addr: 0, Size: 30}}, a.FreeBlocks())
	require.NoError(t, a.Validate())
}

func TestAllocatorFreeUnknown(t *testing.T) {
	a := New(0)
	addr := a.Alloc(10)
	assert.Error(t, a.Free(addr, 5))
	assert.Error(t, a.Free(addr+1, 10))
	require.NoError(t, a.Free(addr, 10))
	assert.Error(t, a.Free(addr, 10), "double free")
}

func TestAllocatorRelease(t *testing.T) {
	a := New(50)
	x := a.Alloc(24)
	a.Alloc(8)

	assert.True(t, a.Release(x))
	assert.Equal(t, []FreeBlock{{Addr: 50, Size: 24}}, a.FreeBlocks())
	assert.False(t, a.Release(x), "already released")
	assert.False(t, a.Release(0), "below the base address")
	require.NoError(t, a.Validate())
}
