package hdf5

import (
	"fmt"
	"os"

	"github.com/richielo/basicFusion/internal/alloc"
	binpkg "github.com/richielo/basicFusion/internal/binary"
	"github.com/richielo/basicFusion/internal/message"
	"github.com/richielo/basicFusion/internal/object"
	"github.com/richielo/basicFusion/internal/superblock"
)

// Create makes a new file at name, truncating any existing one. New files
// carry a version 2 superblock and version 2 object headers, with the root
// group header directly after the superblock.
func Create(name string, opts ...FileOption) (*File, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	fd, err := os.Create(name)
	if err != nil {
		return nil, err
	}
	f, err := initialize(name, fd, cfg)
	if err != nil {
		fd.Close()
		os.Remove(name)
		return nil, err
	}
	return f, nil
}

func initialize(name string, fd *os.File, cfg binpkg.Config) (*File, error) {
	w := binpkg.NewWriter(fd, cfg)

	sb := superblock.NewSuperblock()
	sb.OffsetSize, sb.LengthSize = uint8(cfg.OffsetSize), uint8(cfg.LengthSize)
	rootAt := sb.Size()
	sb.RootGroupAddress = uint64(rootAt)

	root, err := object.Encode(w, object.GroupMessages(nil), object.MinGroupChunkSize)
	if err != nil {
		return nil, fmt.Errorf("encoding root group: %w", err)
	}
	sb.EOFAddress = uint64(rootAt + len(root))
	if _, err := sb.Write(w); err != nil {
		return nil, fmt.Errorf("writing superblock: %w", err)
	}
	if err := w.At(int64(rootAt)).WriteBytes(root); err != nil {
		return nil, fmt.Errorf("writing root group: %w", err)
	}

	f := &File{
		path:       name,
		file:       fd,
		reader:     binpkg.NewReader(fd, cfg),
		superblock: sb,
	}
	f.enableWrites()
	f.root = &Group{file: f, path: "/", addr: sb.RootGroupAddress, loaded: true}
	f.groups["/"] = f.root
	return f, nil
}

// OpenReadWrite opens an existing file so groups, datasets and attributes
// can be added to it.
func OpenReadWrite(name string) (*File, error) {
	fd, err := os.OpenFile(name, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	f, err := attach(name, fd)
	if err != nil {
		fd.Close()
		return nil, err
	}
	f.enableWrites()
	f.groups["/"] = f.root
	return f, nil
}

// enableWrites sets up the writer and allocator. New space is taken from
// the end of the file.
func (f *File) enableWrites() {
	f.writable = true
	f.writer = binpkg.NewWriter(f.file, f.superblock.ReaderConfig())
	f.allocator = alloc.New(f.superblock.EOFAddress)
	f.groups = make(map[string]*Group)
}

// Flush writes the superblock with the current root address and end of
// file, then syncs. It does nothing on a read-only file.
func (f *File) Flush() error {
	switch {
	case f.closed:
		return ErrClosed
	case !f.writable:
		return nil
	}
	return f.flush()
}

func (f *File) flush() error {
	f.superblock.EOFAddress = f.allocator.EOFAddr()
	if _, err := f.superblock.Write(f.writer.At(0)); err != nil {
		return fmt.Errorf("writing superblock: %w", err)
	}
	return f.file.Sync()
}

func (f *File) allocate(size int64) uint64 {
	return f.allocator.Alloc(uint64(size))
}

// release returns a superseded header to the allocator once nothing links
// to it any more.
func (f *File) release(addr uint64) {
	f.allocator.Release(addr)
}

// AllocStats reports free-space accounting for a writable file.
func (f *File) AllocStats() alloc.Stats {
	if f.allocator == nil {
		return alloc.Stats{}
	}
	return f.allocator.Stats()
}

func (f *File) IsWritable() bool { return f.writable }

// group returns the registered group at an absolute path, opening it when
// it has not been touched yet.
func (f *File) group(p string) (*Group, error) {
	if g, ok := f.groups[p]; ok {
		return g, nil
	}
	return f.root.OpenGroup(p)
}

// writeObjectHeader encodes messages as a new object header and returns
// its address.
func writeObjectHeader(f *File, messages []message.Message, minChunk int) (uint64, error) {
	b, err := object.Encode(f.writer, messages, minChunk)
	if err != nil {
		return 0, fmt.Errorf("encoding object header: %w", err)
	}
	addr := f.allocate(int64(len(b)))
	if err := f.writer.At(int64(addr)).WriteBytes(b); err != nil {
		return 0, fmt.Errorf("writing object header: %w", err)
	}
	return addr, nil
}
