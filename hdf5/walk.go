package hdf5

// WalkFunc is called for each object visited by Walk. obj is a *Group or a
// *Dataset, or nil when err reports that the member could not be opened.
// Returning a non-nil error stops the walk; ErrStopWalk stops it quietly.
type WalkFunc func(path string, obj interface{}, err error) error

// Walk visits g and everything below it, depth first, parents before
// children.
func Walk(g *Group, fn WalkFunc) error {
	err := walk(g, fn)
	if err == ErrStopWalk {
		return nil
	}
	return err
}

func walk(g *Group, fn WalkFunc) error {
	if err := fn(g.Path(), g, nil); err != nil {
		return err
	}
	members, err := g.Members()
	if err != nil {
		return err
	}
	for _, name := range members {
		obj, err := g.open(name)
		switch o := obj.(type) {
		case *Group:
			err = walk(o, fn)
		case *Dataset:
			err = fn(o.Path(), o, nil)
		default:
			err = fn(joinPath(g.Path(), name), nil, err)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// AttrInfo describes one attribute visited by WalkAttrs.
type AttrInfo struct {
	Path       string // object@name
	ObjectPath string
	ObjectType string // "group" or "dataset"
	Name       string
	Attr       *Attribute
	Value      interface{} // nil when Err is set
	Err        error
}

// WalkAttrsFunc is called for every attribute visited by WalkAttrs.
type WalkAttrsFunc func(info AttrInfo) error

type attrLister interface {
	Attrs() []string
	Attr(name string) *Attribute
}

// WalkAttrs visits every attribute on every group and dataset in the file.
// Members that cannot be opened are skipped.
func (f *File) WalkAttrs(fn WalkAttrsFunc) error {
	if f.closed {
		return ErrClosed
	}
	return Walk(f.root, func(p string, obj interface{}, err error) error {
		if err != nil {
			return nil
		}
		kind := "dataset"
		if _, ok := obj.(*Group); ok {
			kind = "group"
		}
		holder := obj.(attrLister)
		for _, name := range holder.Attrs() {
			attr := holder.Attr(name)
			info := AttrInfo{
				Path:       JoinAttrPath(p, name),
				ObjectPath: p,
				ObjectType: kind,
				Name:       name,
				Attr:       attr,
			}
			info.Value, info.Err = attr.Value()
			if err := fn(info); err != nil {
				return err
			}
		}
		return nil
	})
}

// ErrStopWalk ends Walk or WalkAttrs early without reporting an error.
var ErrStopWalk = stopWalk{}

type stopWalk struct{}

func (stopWalk) Error() string { return "walk stopped" }
