package hierarchy

import (
	"github.com/richielo/basicFusion/dataset"
	"github.com/richielo/basicFusion/errkind"
	"github.com/richielo/basicFusion/hdf5"
	"github.com/richielo/basicFusion/internal/message"
	"github.com/richielo/basicFusion/transcode"
)

var (
	_ transcode.Destination = (*Group)(nil)
	_ transcode.Array       = (*Array)(nil)
)

// Group is a group in the output file.
type Group struct {
	b *Builder
	g *hdf5.Group
}

func (g *Group) Path() string { return g.g.Path() }

func (g *Group) setAttr(name string, value any) error { return g.g.SetAttr(name, value) }

// SetAttr is shorthand for Builder.SetAttribute on g.
func (g *Group) SetAttr(name string, value any) error {
	return g.b.SetAttribute(g, name, value)
}

// CreateArray stages a new array named name with the shape and type of
// desc. The array appears in g only when the returned writer commits.
func (g *Group) CreateArray(name string, desc dataset.Descriptor) (transcode.ArrayWriter, error) {
	const op = "create array"
	p := joinPath(g.Path(), name)
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	dt, err := datatypeFor(desc)
	if err != nil {
		return nil, errkind.E(errkind.TypeError, op, p, err)
	}
	w, err := g.g.NewDatasetWriter(name, desc.Shape(), dt)
	if err != nil {
		return nil, classify(err, op, p)
	}
	return &arrayWriter{g: g, w: w, desc: desc, path: p}, nil
}

func datatypeFor(desc dataset.Descriptor) (*message.Datatype, error) {
	switch desc.Type {
	case dataset.Float32:
		return message.NewFloatDatatype(4, message.OrderLE), nil
	case dataset.Float64:
		return message.NewFloatDatatype(8, message.OrderLE), nil
	case dataset.Uint16:
		return message.NewFixedPointDatatype(2, false, message.OrderLE), nil
	case dataset.Int64:
		return message.NewFixedPointDatatype(8, true, message.OrderLE), nil
	case dataset.String:
		return message.NewStringDatatype(uint32(desc.Width), message.PadNullPad, message.CharsetASCII), nil
	}
	return nil, errkind.Errorf(errkind.TypeError, "datatype", desc.Path, "element type %s", desc.Type)
}

type arrayWriter struct {
	g    *Group
	w    *hdf5.DatasetWriter
	desc dataset.Descriptor
	path string
}

func (a *arrayWriter) Write(buf dataset.Buffer) error {
	const op = "write array"
	if buf.Type() != a.desc.Type || uint64(buf.Len()) != a.desc.NumElements() {
		return errkind.Errorf(errkind.ShapeError, op, a.path, "%s buffer of %d elements for %s", buf.Type(), buf.Len(), a.desc)
	}
	var data any
	switch b := buf.(type) {
	case dataset.Float32s:
		data = []float32(b)
	case dataset.Float64s:
		data = []float64(b)
	case dataset.Uint16s:
		data = []uint16(b)
	case dataset.Int64s:
		data = []int64(b)
	case *dataset.Strings:
		for _, s := range b.Values {
			if len(s) > a.desc.Width {
				return errkind.Errorf(errkind.TypeError, op, a.path, "string of %d bytes exceeds width %d", len(s), a.desc.Width)
			}
		}
		data = b.Values
	}
	if err := a.w.Write(data); err != nil {
		return classify(err, op, a.path)
	}
	return nil
}

func (a *arrayWriter) SetAttr(name string, value any) error {
	if err := checkAttrValue(value); err != nil {
		return errkind.E(errkind.TypeError, "set attribute", a.path+"@"+name, err)
	}
	if err := a.w.SetAttr(name, value); err != nil {
		return classify(err, "set attribute", a.path+"@"+name)
	}
	return nil
}

func (a *arrayWriter) Commit() (transcode.Array, error) {
	ds, err := a.w.Commit()
	if err != nil {
		return nil, classify(err, "commit array", a.path)
	}
	a.g.b.log.WithField("array", ds.Path()).Debug("Committed array")
	return &Array{b: a.g.b, ds: ds}, nil
}

// Close discards the array unless it was committed.
func (a *arrayWriter) Close() error {
	a.w.Discard()
	return nil
}

// Array is a committed array in the output file.
type Array struct {
	b  *Builder
	ds *hdf5.Dataset
}

func (a *Array) Path() string { return a.ds.Path() }

func (a *Array) setAttr(name string, value any) error { return a.ds.SetAttr(name, value) }

// SetAttr is shorthand for Builder.SetAttribute on a.
func (a *Array) SetAttr(name string, value any) error {
	return a.b.SetAttribute(a, name, value)
}

// Close releases the handle. The array itself stays in the file.
func (a *Array) Close() error { return nil }

// Shape returns the array's extents.
func (a *Array) Shape() []uint64 { return a.ds.Shape() }
