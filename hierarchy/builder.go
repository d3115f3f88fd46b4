// Package hierarchy builds the group tree of an output file and decorates
// it with attributes.
//
// A Builder owns the output *hdf5.File for the length of one run. It is the
// only place that decides whether a group exists: CreateGroup fails with
// errkind.AlreadyExists instead of callers checking first.
package hierarchy

import (
	"errors"
	"os"
	"reflect"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/richielo/basicFusion/errkind"
	"github.com/richielo/basicFusion/hdf5"
)

// Builder creates groups and attributes in one output file.
type Builder struct {
	file *hdf5.File
	path string
	log  logrus.FieldLogger
}

// Create creates the output file at path, truncating any existing file.
func Create(path string, log logrus.FieldLogger) (*Builder, error) {
	f, err := hdf5.Create(path)
	if err != nil {
		return nil, errkind.E(errkind.IOError, "create output", path, err)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Builder{file: f, path: path, log: log.WithField("output", path)}, nil
}

// Path returns the output file path.
func (b *Builder) Path() string { return b.path }

// File exposes the underlying file, mostly for inspection in tests.
func (b *Builder) File() *hdf5.File { return b.file }

// Root returns the root group.
func (b *Builder) Root() *Group {
	return &Group{b: b, g: b.file.Root()}
}

// Close flushes and closes the output file.
func (b *Builder) Close() error {
	if err := b.file.Close(); err != nil {
		return errkind.E(errkind.IOError, "close output", b.path, err)
	}
	return nil
}

// Abort closes the output and removes it from disk.
func (b *Builder) Abort() error {
	_ = b.file.Close()
	if err := os.Remove(b.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errkind.E(errkind.IOError, "remove output", b.path, err)
	}
	b.log.Warn("Removed partial output")
	return nil
}

// CreateGroup creates name under parent.
func (b *Builder) CreateGroup(parent *Group, name string) (*Group, error) {
	g, err := parent.g.CreateGroup(name)
	if err != nil {
		return nil, classify(err, "create group", joinPath(parent.Path(), name))
	}
	b.log.WithField("group", g.Path()).Debug("Created group")
	return &Group{b: b, g: g}, nil
}

// EnsureGroup walks the slash-separated rel below parent, creating any
// group that does not exist yet.
func (b *Builder) EnsureGroup(parent *Group, rel string) (*Group, error) {
	cur := parent
	for _, name := range strings.Split(strings.Trim(rel, "/"), "/") {
		if name == "" {
			return nil, errkind.Errorf(errkind.InvalidInput, "ensure group", rel, "empty path component")
		}
		has, err := cur.g.HasMember(name)
		if err != nil {
			return nil, classify(err, "ensure group", joinPath(cur.Path(), name))
		}
		if !has {
			if cur, err = b.CreateGroup(cur, name); err != nil {
				return nil, err
			}
			continue
		}
		g, err := cur.g.OpenGroup(name)
		if err != nil {
			return nil, classify(err, "ensure group", joinPath(cur.Path(), name))
		}
		cur = &Group{b: b, g: g}
	}
	return cur, nil
}

// Target is a group or array that can carry attributes.
type Target interface {
	Path() string
	setAttr(name string, value any) error
}

// SetAttribute writes name on target, replacing an existing attribute.
// value must be a numeric scalar of any Go width, a string or a numeric
// slice. Strings are stored at exactly their byte length.
func (b *Builder) SetAttribute(target Target, name string, value any) error {
	const op = "set attribute"
	if err := checkAttrValue(value); err != nil {
		return errkind.E(errkind.TypeError, op, target.Path()+"@"+name, err)
	}
	if err := target.setAttr(name, value); err != nil {
		return classify(err, op, target.Path()+"@"+name)
	}
	return nil
}

func checkAttrValue(value any) error {
	v := reflect.ValueOf(value)
	if !v.IsValid() {
		return errors.New("nil value")
	}
	switch v.Kind() {
	case reflect.String:
		return nil
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return errors.New("empty slice")
		}
		if !isNumeric(v.Type().Elem().Kind()) {
			return errors.New("slice of " + v.Type().Elem().String())
		}
		return nil
	}
	if !isNumeric(v.Kind()) {
		return errors.New("unsupported value of type " + v.Type().String())
	}
	return nil
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

// classify maps engine errors onto the error taxonomy.
func classify(err error, op, path string) error {
	switch {
	case errors.Is(err, hdf5.ErrExists):
		return errkind.E(errkind.AlreadyExists, op, path, err)
	case errors.Is(err, hdf5.ErrNotFound):
		return errkind.E(errkind.NotFound, op, path, err)
	case errors.Is(err, hdf5.ErrUnsupported):
		return errkind.E(errkind.TypeError, op, path, err)
	case errors.Is(err, hdf5.ErrInvalidPath):
		return errkind.E(errkind.InvalidInput, op, path, err)
	case errors.Is(err, hdf5.ErrNotGroup), errors.Is(err, hdf5.ErrNotDataset):
		return errkind.E(errkind.AlreadyExists, op, path, err)
	}
	return errkind.E(errkind.IOError, op, path, err)
}

func joinPath(parent, name string) string {
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}
