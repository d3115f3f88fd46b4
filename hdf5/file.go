package hdf5

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/richielo/basicFusion/internal/alloc"
	"github.com/richielo/basicFusion/internal/binary"
	"github.com/richielo/basicFusion/internal/object"
	"github.com/richielo/basicFusion/internal/superblock"
)

// File is an open HDF5 file. A File returned by Open is read-only; Create
// and OpenReadWrite return one that accepts new groups and datasets.
type File struct {
	path       string
	file       *os.File
	reader     *binary.Reader
	superblock *superblock.Superblock
	root       *Group
	closed     bool

	// Targets of external links, by link file name.
	externalFiles map[string]*File

	writable  bool
	writer    *binary.Writer
	allocator *alloc.Allocator
	// groups maps absolute paths to every group touched while writable, so
	// a header rewrite can always reach the parent linking to it.
	groups map[string]*Group
}

// Open opens an existing file for reading.
func Open(name string) (*File, error) {
	fd, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	f, err := attach(name, fd)
	if err != nil {
		fd.Close()
		return nil, err
	}
	return f, nil
}

// attach reads the superblock and root group of an already open file.
func attach(name string, fd *os.File) (*File, error) {
	sb, err := superblock.Read(fd)
	switch {
	case errors.Is(err, superblock.ErrNotHDF5):
		return nil, fmt.Errorf("%w: %s", ErrNotHDF5, name)
	case err != nil:
		return nil, fmt.Errorf("reading superblock: %w", err)
	}
	f := &File{
		path:       name,
		file:       fd,
		reader:     binary.NewReader(fd, sb.ReaderConfig()),
		superblock: sb,
	}
	if f.root, err = f.groupAt(sb.RootGroupAddress, "/", nil); err != nil {
		return nil, fmt.Errorf("opening root group: %w", err)
	}
	return f, nil
}

// Close flushes a writable file, then closes it and every external file
// opened while following links. A second Close does nothing.
func (f *File) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	var flushErr error
	if f.writable {
		flushErr = f.flush()
	}
	for _, ext := range f.externalFiles {
		ext.Close()
	}
	f.externalFiles, f.groups = nil, nil

	closeErr := f.file.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

func (f *File) Root() *Group { return f.root }

func (f *File) Path() string { return f.path }

// Version is the superblock version.
func (f *File) Version() int { return int(f.superblock.Version) }

// OpenGroup opens the group at an absolute path.
func (f *File) OpenGroup(p string) (*Group, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.root.OpenGroup(p)
}

// OpenDataset opens the dataset at an absolute path.
func (f *File) OpenDataset(p string) (*Dataset, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.root.OpenDataset(p)
}

// Object returns the *Group or *Dataset at an absolute path.
func (f *File) Object(p string) (interface{}, error) {
	if f.closed {
		return nil, ErrClosed
	}
	return f.root.open(p)
}

// GetAttr returns the attribute addressed as /group/object@name.
func (f *File) GetAttr(p string) (*Attribute, error) {
	if f.closed {
		return nil, ErrClosed
	}
	objPath, name, err := ParseAttrPath(p)
	if err != nil {
		return nil, err
	}
	obj, err := f.Object(objPath)
	if err != nil {
		return nil, fmt.Errorf("opening object %s: %w", objPath, err)
	}
	if attr := obj.(attrLister).Attr(name); attr != nil {
		return attr, nil
	}
	return nil, fmt.Errorf("attribute %s: %w", p, ErrNotFound)
}

// ReadAttr is GetAttr followed by Value.
func (f *File) ReadAttr(p string) (interface{}, error) {
	attr, err := f.GetAttr(p)
	if err != nil {
		return nil, err
	}
	return attr.Value()
}

// groupAt returns the group whose header is at addr. header may be nil, in
// which case it is read. A writable file hands back the group registered
// under p when there is one.
func (f *File) groupAt(addr uint64, p string, header *object.Header) (*Group, error) {
	if g, ok := f.groups[p]; ok {
		return g, nil
	}
	if header == nil {
		var err error
		if header, err = readHeader(f, addr); err != nil {
			return nil, err
		}
	}
	g := &Group{file: f, path: p, header: header, addr: addr}
	if f.writable {
		f.groups[p] = g
	}
	return g, nil
}

// external opens the target of an external link, relative to the
// directory of f unless name is absolute. The file stays open until f is
// closed.
func (f *File) external(name string) (*File, error) {
	if ext, ok := f.externalFiles[name]; ok {
		return ext, nil
	}
	p := name
	if !filepath.IsAbs(p) {
		p = filepath.Join(filepath.Dir(f.path), name)
	}
	ext, err := Open(p)
	if err != nil {
		return nil, fmt.Errorf("external file %q: %w", name, err)
	}
	if f.externalFiles == nil {
		f.externalFiles = make(map[string]*File)
	}
	f.externalFiles[name] = ext
	return ext, nil
}

// splitPath returns the non-empty components of p.
func splitPath(p string) []string {
	return strings.FieldsFunc(p, func(r rune) bool { return r == '/' })
}
