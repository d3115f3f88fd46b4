package source

import (
	"sort"
	"sync"

	"github.com/richielo/basicFusion/dataset"
	"github.com/richielo/basicFusion/errkind"
	"github.com/richielo/basicFusion/hdf5"
	"github.com/richielo/basicFusion/transcode"
)

// Memory is a container held entirely in memory. It is safe for
// concurrent use.
type Memory struct {
	name string

	mu     sync.RWMutex
	arrays map[string]memArray
	attrs  map[string]map[string]any
}

type memArray struct {
	desc dataset.Descriptor
	data dataset.Buffer
}

// NewMemory returns an empty container. name is reported by Path.
func NewMemory(name string) *Memory {
	return &Memory{
		name:   name,
		arrays: map[string]memArray{},
		attrs:  map[string]map[string]any{},
	}
}

func (m *Memory) Path() string   { return m.name }
func (m *Memory) Format() Format { return FormatMemory }
func (m *Memory) Close() error   { return nil }

// Put stores buf as the array at path with the given extents. A String
// buffer's width becomes the array's width. The buffer is retained, not
// copied.
func (m *Memory) Put(path string, buf dataset.Buffer, extents ...uint64) error {
	width := 0
	if s, ok := buf.(*dataset.Strings); ok {
		width = s.Width
	}
	path = hdf5.CleanPath(path)
	desc, err := dataset.NewDescriptor(path, buf.Type(), width, extents)
	if err != nil {
		return err
	}
	if uint64(buf.Len()) != desc.NumElements() {
		return errkind.Errorf(errkind.ShapeError, "put", path, "%d elements for extents %v", buf.Len(), extents)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.arrays[path] = memArray{desc: desc, data: buf}
	return nil
}

// SetAttr sets attribute name on the object at path. The object need not
// hold an array.
func (m *Memory) SetAttr(path, name string, value any) {
	path = hdf5.CleanPath(path)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.attrs[path] == nil {
		m.attrs[path] = map[string]any{}
	}
	m.attrs[path][name] = value
}

// Arrays lists the stored array paths in order.
func (m *Memory) Arrays() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.arrays))
	for p := range m.arrays {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

func (m *Memory) Open(path string) (transcode.SourceArray, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.arrays[hdf5.CleanPath(path)]
	if !ok {
		return nil, errkind.Errorf(errkind.NotFound, "open array", path, "not in %s", m.name)
	}
	a.desc.Path = path
	return &a, nil
}

func (m *Memory) Attr(path, name string) (any, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.attrs[hdf5.CleanPath(path)][name]
	if !ok {
		return nil, errkind.Errorf(errkind.NotFound, "read attribute", path+"@"+name, "not in %s", m.name)
	}
	return v, nil
}

func (a *memArray) Descriptor() dataset.Descriptor { return a.desc }

func (a *memArray) Close() error { return nil }

func (a *memArray) ReadInto(buf dataset.Buffer, rows dataset.Rows) error {
	if _, err := selection("read array", a.desc, buf, rows); err != nil {
		return err
	}
	src := a.data
	if !rows.All() {
		per := int(a.desc.RowElements())
		src = dataset.Slice(src, int(rows.Start)*per, int(rows.End())*per)
	}
	return dataset.Convert(src, buf)
}
