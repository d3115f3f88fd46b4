// Package alloc places structures in a file being written.
//
// Every header, heap and data block needs a file offset. The [Allocator]
// grows the file from a base address and keeps a free list, so space given
// back by an abandoned dataset is handed out again before the file grows.
//
//	a := alloc.New(96)
//	data := a.Alloc(4096)
//	_ = a.Free(data, 4096)
//	hdr := a.Alloc(256) // reuses the start of the freed block
package alloc
