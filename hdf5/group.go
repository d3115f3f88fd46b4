package hdf5

import (
	"fmt"
	"path"

	"github.com/richielo/basicFusion/internal/btree"
	"github.com/richielo/basicFusion/internal/message"
	"github.com/richielo/basicFusion/internal/object"
)

// Group is a group in an open file. Groups of version 0/1 files are listed
// through their symbol table; newer groups store link messages directly in
// the header.
type Group struct {
	file   *File
	path   string
	header *object.Header
	addr   uint64

	// Once loaded, links and attrs are the source of truth for lookups and
	// header rewrites of a group being written.
	loaded bool
	links  []*message.Link
	attrs  []*message.Attribute
}

// Name is the last component of the group path, or "/" for the root.
func (g *Group) Name() string {
	if g.path == "/" {
		return "/"
	}
	return path.Base(g.path)
}

func (g *Group) Path() string { return g.path }

func (g *Group) File() *File { return g.file }

// OpenGroup opens a group below g. Soft and external links are followed.
func (g *Group) OpenGroup(rel string) (*Group, error) {
	obj, err := g.open(rel)
	if err != nil {
		return nil, err
	}
	if sub, ok := obj.(*Group); ok {
		return sub, nil
	}
	return nil, fmt.Errorf("%s: %w", rel, ErrNotGroup)
}

// OpenDataset opens a dataset below g.
func (g *Group) OpenDataset(rel string) (*Dataset, error) {
	obj, err := g.open(rel)
	if err != nil {
		return nil, err
	}
	if ds, ok := obj.(*Dataset); ok {
		return ds, nil
	}
	return nil, fmt.Errorf("%s: %w", rel, ErrNotDataset)
}

func (g *Group) open(rel string) (interface{}, error) {
	parts := splitPath(rel)
	if len(parts) == 0 {
		return g, nil
	}
	var r resolver
	t, parent, err := r.lookup(g, parts)
	if err != nil {
		return nil, err
	}
	p := joinPath(parent.path, parts[len(parts)-1])
	if !t.dataset() {
		return t.file.groupAt(t.addr, p, t.header)
	}
	ds, err := newDataset(t.file, p, t.header)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p, err)
	}
	ds.addr = t.addr
	if t.file == parent.file {
		ds.parent = parent
	}
	return ds, nil
}

// ref locates an object, possibly in an external file.
type ref struct {
	file   *File
	addr   uint64
	header *object.Header
}

func (t ref) dataset() bool { return t.header.Dataspace() != nil }

func (f *File) ref(addr uint64) (ref, error) {
	h, err := readHeader(f, addr)
	if err != nil {
		return ref{}, err
	}
	return ref{file: f, addr: addr, header: h}, nil
}

// resolver carries the state of one path lookup: the soft and external
// links taken so far.
type resolver struct {
	seen map[string]bool
}

// follow records a link hop, failing on cycles and overly long chains.
func (r *resolver) follow(key string) error {
	if r.seen == nil {
		r.seen = make(map[string]bool)
	}
	if r.seen[key] {
		return fmt.Errorf("link cycle through %s: %w", key, ErrLinkDepth)
	}
	if len(r.seen) >= MaxLinkDepth {
		return ErrLinkDepth
	}
	r.seen[key] = true
	return nil
}

// lookup resolves parts below g. It returns the target together with the
// group holding its final link.
func (r *resolver) lookup(g *Group, parts []string) (ref, *Group, error) {
	cur := g
	for i, name := range parts {
		p := joinPath(cur.path, name)
		t, err := r.child(cur, name)
		if err != nil {
			return ref{}, nil, fmt.Errorf("%s: %w", p, err)
		}
		if i == len(parts)-1 {
			return t, cur, nil
		}
		if t.dataset() {
			return ref{}, nil, fmt.Errorf("%s: %w", p, ErrNotGroup)
		}
		if cur, err = t.file.groupAt(t.addr, p, t.header); err != nil {
			return ref{}, nil, err
		}
	}
	return ref{}, nil, fmt.Errorf("empty path: %w", ErrInvalidPath)
}

// absolute resolves an absolute path inside f, as soft and external link
// values are.
func (r *resolver) absolute(f *File, p string) (ref, error) {
	parts := splitPath(p)
	if len(parts) == 0 {
		return f.ref(f.root.addr)
	}
	t, _, err := r.lookup(f.root, parts)
	return t, err
}

func (r *resolver) child(g *Group, name string) (ref, error) {
	for _, l := range g.linkMessages() {
		if l.Name == name {
			return r.link(g.file, l)
		}
	}
	st := g.symbolTable()
	if g.loaded || st == nil {
		return ref{}, ErrNotFound
	}
	symbols, err := btree.Symbols(g.file.reader, st.BTreeAddress, st.LocalHeapAddress)
	if err != nil {
		return ref{}, err
	}
	for _, s := range symbols {
		switch {
		case s.Name != name:
		case s.IsSoft():
			if err := r.follow(s.Target); err != nil {
				return ref{}, err
			}
			return r.absolute(g.file, s.Target)
		default:
			return g.file.ref(s.Address)
		}
	}
	return ref{}, ErrNotFound
}

func (r *resolver) link(f *File, l *message.Link) (ref, error) {
	switch {
	case l.IsHard():
		return f.ref(l.ObjectAddress)
	case l.IsSoft():
		if err := r.follow(l.SoftLinkValue); err != nil {
			return ref{}, err
		}
		return r.absolute(f, l.SoftLinkValue)
	case l.IsExternal():
		if err := r.follow(l.ExternalFile + ":" + l.ExternalPath); err != nil {
			return ref{}, err
		}
		ext, err := f.external(l.ExternalFile)
		if err != nil {
			return ref{}, err
		}
		return r.absolute(ext, l.ExternalPath)
	}
	return ref{}, fmt.Errorf("link type %d: %w", l.LinkType, ErrUnsupported)
}

// linkMessages returns the header links of g, or the in-memory ones when g
// is being written.
func (g *Group) linkMessages() []*message.Link {
	if g.loaded || g.header == nil {
		return g.links
	}
	return messagesOf[*message.Link](g.header.GetMessages(message.TypeLink))
}

func (g *Group) attrMessages() []*message.Attribute {
	if g.loaded || g.header == nil {
		return g.attrs
	}
	return messagesOf[*message.Attribute](g.header.GetMessages(message.TypeAttribute))
}

// messagesOf picks the messages of concrete type T.
func messagesOf[T message.Message](msgs []message.Message) []T {
	var out []T
	for _, m := range msgs {
		if v, ok := m.(T); ok {
			out = append(out, v)
		}
	}
	return out
}

// symbolTable returns the old-style group index of g, if it has one. The
// root of a version 0/1 file may only be described by the superblock
// scratch pad.
func (g *Group) symbolTable() *message.SymbolTable {
	if g.header != nil {
		if st, ok := g.header.GetMessage(message.TypeSymbolTable).(*message.SymbolTable); ok {
			return st
		}
	}
	sb := g.file.superblock
	if g.path == "/" && sb.RootGroupBTreeAddress != 0 {
		return &message.SymbolTable{
			BTreeAddress:     sb.RootGroupBTreeAddress,
			LocalHeapAddress: sb.RootGroupLocalHeapAddress,
		}
	}
	return nil
}

// Members lists the names linked from g, in storage order.
func (g *Group) Members() ([]string, error) {
	var names []string
	for _, l := range g.linkMessages() {
		names = append(names, l.Name)
	}
	st := g.symbolTable()
	if len(names) > 0 || g.loaded || st == nil {
		return names, nil
	}
	symbols, err := btree.Symbols(g.file.reader, st.BTreeAddress, st.LocalHeapAddress)
	if err != nil {
		return nil, err
	}
	for _, s := range symbols {
		names = append(names, s.Name)
	}
	return names, nil
}

func (g *Group) HasMember(name string) (bool, error) {
	members, err := g.Members()
	if err != nil {
		return false, err
	}
	for _, m := range members {
		if m == name {
			return true, nil
		}
	}
	return false, nil
}

func (g *Group) NumObjects() (int, error) {
	members, err := g.Members()
	return len(members), err
}

// Attrs returns the attribute names of g.
func (g *Group) Attrs() []string {
	var names []string
	for _, a := range g.attrMessages() {
		names = append(names, a.Name)
	}
	return names
}

// Attr returns the named attribute, or nil.
func (g *Group) Attr(name string) *Attribute {
	for _, a := range g.attrMessages() {
		if a.Name == name {
			return &Attribute{msg: a, reader: g.file.reader}
		}
	}
	return nil
}

func (g *Group) HasAttr(name string) bool { return g.Attr(name) != nil }

func joinPath(parent, name string) string {
	if parent == "/" || parent == "" {
		return "/" + name
	}
	return parent + "/" + name
}
