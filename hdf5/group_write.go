package hdf5

import (
	"fmt"
	"path"
	"strings"

	"github.com/richielo/basicFusion/internal/message"
	"github.com/richielo/basicFusion/internal/object"
)

// CreateGroup creates a new subgroup. It fails with ErrExists when name is
// already a member of g.
func (g *Group) CreateGroup(name string) (*Group, error) {
	if err := g.checkNewMember(name); err != nil {
		return nil, err
	}

	addr, err := writeObjectHeader(g.file, object.GroupMessages(nil), object.MinGroupChunkSize)
	if err != nil {
		return nil, fmt.Errorf("group %q: %w", name, err)
	}

	if err := g.addLink(message.NewHardLink(name, addr)); err != nil {
		return nil, fmt.Errorf("adding link to parent: %w", err)
	}

	child := &Group{
		file:   g.file,
		path:   joinPath(g.path, name),
		addr:   addr,
		loaded: true,
	}
	g.file.groups[child.path] = child
	return child, nil
}

// CreateSoftLink makes name an alias for an absolute path in the same
// file. The target is resolved on every lookup and need not exist yet.
func (g *Group) CreateSoftLink(name, target string) error {
	if err := g.checkNewMember(name); err != nil {
		return err
	}
	return g.addLink(message.NewSoftLink(name, CleanPath(target)))
}

// CreateExternalLink makes name refer to objPath inside another file. A
// relative file name is taken from the directory of g's file.
func (g *Group) CreateExternalLink(name, file, objPath string) error {
	if err := g.checkNewMember(name); err != nil {
		return err
	}
	if file == "" {
		return fmt.Errorf("external link %q: empty file name: %w", name, ErrInvalidPath)
	}
	return g.addLink(message.NewExternalLink(name, file, CleanPath(objPath)))
}

// SetAttr adds or replaces an attribute on the group. See createAttributeMessage
// for the accepted value types.
func (g *Group) SetAttr(name string, value interface{}) error {
	if !g.file.writable {
		return ErrReadOnly
	}
	msg, err := createAttributeMessage(name, value)
	if err != nil {
		return fmt.Errorf("attribute %q: %w", name, err)
	}
	if err := g.load(); err != nil {
		return err
	}
	g.attrs = replaceAttr(g.attrs, msg)
	return g.rewriteHeader()
}

// checkNewMember validates that name can be linked into g.
func (g *Group) checkNewMember(name string) error {
	if !g.file.writable {
		return ErrReadOnly
	}
	if g.file.closed {
		return ErrClosed
	}
	if name == "" || name == "." || name == ".." || strings.Contains(name, "/") {
		return fmt.Errorf("%q: %w", name, ErrInvalidPath)
	}
	if err := g.load(); err != nil {
		return err
	}
	for _, link := range g.links {
		if link.Name == name {
			return fmt.Errorf("%s: %w", joinPath(g.path, name), ErrExists)
		}
	}
	return nil
}

func (g *Group) addLink(link *message.Link) error {
	if err := g.load(); err != nil {
		return fmt.Errorf("loading existing links: %w", err)
	}
	g.links = append(g.links, link)
	return g.rewriteHeader()
}

// load copies the on-disk links and attributes into memory once, so a
// rewrite keeps everything the group already had.
func (g *Group) load() error {
	if g.loaded {
		return nil
	}
	if g.header == nil && g.file.reader != nil {
		header, err := readHeader(g.file, g.addr)
		if err != nil {
			return err
		}
		g.header = header
	}
	if g.header != nil {
		if g.header.GetMessage(message.TypeSymbolTable) != nil {
			return fmt.Errorf("%s: rewriting symbol-table groups: %w", g.path, ErrUnsupported)
		}
		g.links = g.linkMessages()
		g.attrs = g.attrMessages()
	}
	g.loaded = true
	if g.file.groups != nil {
		g.file.groups[g.path] = g
	}
	return nil
}

// rewriteHeader writes the group header at a fresh address, repoints the
// parent link (or the superblock, for the root) at it and frees the old
// header.
func (g *Group) rewriteHeader() error {
	messages := object.GroupMessages(g.links)
	for _, attr := range g.attrs {
		messages = append(messages, attr)
	}

	addr, err := writeObjectHeader(g.file, messages, object.MinGroupChunkSize)
	if err != nil {
		return err
	}
	old := g.addr
	g.addr = addr
	g.header = nil

	if g.path == "/" {
		g.file.superblock.RootGroupAddress = addr
	} else {
		parent, err := g.parent()
		if err != nil {
			return err
		}
		if err := parent.relink(path.Base(g.path), addr); err != nil {
			return err
		}
	}
	g.file.release(old)
	return nil
}

// relink points the child link called name at addr and rewrites g.
func (g *Group) relink(name string, addr uint64) error {
	if err := g.load(); err != nil {
		return err
	}
	for _, link := range g.links {
		if link.Name == name && link.IsHard() {
			link.ObjectAddress = addr
			return g.rewriteHeader()
		}
	}
	return fmt.Errorf("relinking %s in %s: %w", name, g.path, ErrNotFound)
}

func (g *Group) parent() (*Group, error) {
	dir := path.Dir(g.path)
	if dir == "." || dir == "" {
		dir = "/"
	}
	if dir == "/" {
		return g.file.root, nil
	}
	return g.file.group(dir)
}

func replaceAttr(attrs []*message.Attribute, msg *message.Attribute) []*message.Attribute {
	for i, a := range attrs {
		if a.Name == msg.Name {
			attrs[i] = msg
			return attrs
		}
	}
	return append(attrs, msg)
}

func readHeader(f *File, addr uint64) (*object.Header, error) {
	header, err := object.Read(f.reader, addr)
	if err != nil {
		return nil, fmt.Errorf("reading object header at %d: %w", addr, err)
	}
	return header, nil
}
