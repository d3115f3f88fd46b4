package source

import (
	"errors"
	"math"

	"github.com/richielo/basicFusion/dataset"
	"github.com/richielo/basicFusion/errkind"
	"github.com/richielo/basicFusion/hdf5"
	"github.com/richielo/basicFusion/internal/message"
	"github.com/richielo/basicFusion/transcode"
)

// H5 reads arrays from an HDF5 file.
type H5 struct {
	f *hdf5.File
}

func openH5(path string) (*H5, error) {
	f, err := hdf5.Open(path)
	if err != nil {
		if errors.Is(err, hdf5.ErrNotHDF5) {
			return nil, errkind.E(errkind.TypeError, "open source", path, err)
		}
		return nil, errkind.E(errkind.IOError, "open source", path, err)
	}
	return &H5{f: f}, nil
}

func (h *H5) Path() string   { return h.f.Path() }
func (h *H5) Format() Format { return FormatHDF5 }
func (h *H5) Close() error   { return h.f.Close() }

// File exposes the underlying file for walking.
func (h *H5) File() *hdf5.File { return h.f }

// Open opens the dataset at path.
func (h *H5) Open(path string) (transcode.SourceArray, error) {
	const op = "open array"
	ds, err := h.f.OpenDataset(path)
	if err != nil {
		return nil, h5Error(err, op, path)
	}
	desc, err := h5Descriptor(path, ds)
	if err != nil {
		return nil, err
	}
	return &h5Array{ds: ds, desc: desc}, nil
}

// Attr returns the attribute name on the group or dataset at path.
func (h *H5) Attr(path, name string) (any, error) {
	v, err := h.f.ReadAttr(hdf5.JoinAttrPath(hdf5.CleanPath(path), name))
	if err != nil {
		return nil, h5Error(err, "read attribute", path+"@"+name)
	}
	return v, nil
}

func h5Error(err error, op, path string) error {
	switch {
	case errors.Is(err, hdf5.ErrNotFound), errors.Is(err, hdf5.ErrNotDataset), errors.Is(err, hdf5.ErrInvalidPath):
		return errkind.E(errkind.NotFound, op, path, err)
	case errors.Is(err, hdf5.ErrUnsupported):
		return errkind.E(errkind.TypeError, op, path, err)
	}
	return errkind.E(errkind.IOError, op, path, err)
}

// h5Descriptor maps the stored type onto an element type. Narrow and
// unsigned integers other than u16 widen to Int64.
func h5Descriptor(path string, ds *hdf5.Dataset) (dataset.Descriptor, error) {
	dt := ds.Datatype()
	var (
		typ   dataset.ElementType
		width int
	)
	switch dt.Class {
	case message.ClassFloatPoint:
		switch dt.Size {
		case 4:
			typ = dataset.Float32
		case 8:
			typ = dataset.Float64
		}
	case message.ClassFixedPoint:
		switch {
		case dt.Size == 2 && !dt.Signed:
			typ = dataset.Uint16
		case dt.Size <= 8:
			typ = dataset.Int64
		}
	case message.ClassString:
		typ, width = dataset.String, int(dt.Size)
	}
	if typ == dataset.Invalid {
		return dataset.Descriptor{}, errkind.Errorf(errkind.TypeError, "describe", path,
			"unsupported datatype class %d size %d", dt.Class, dt.Size)
	}
	return dataset.NewDescriptor(path, typ, width, ds.Shape())
}

type h5Array struct {
	ds   *hdf5.Dataset
	desc dataset.Descriptor
}

func (a *h5Array) Descriptor() dataset.Descriptor { return a.desc }

func (a *h5Array) Close() error { return nil }

// ReadInto decodes the selected rows directly into buf's storage.
func (a *h5Array) ReadInto(buf dataset.Buffer, rows dataset.Rows) error {
	const op = "read array"
	sel, err := selection(op, a.desc, buf, rows)
	if err != nil {
		return err
	}
	read := a.ds.Read
	if !rows.All() {
		start := make([]uint64, sel.Rank())
		start[0] = rows.Start
		count := sel.Shape()
		read = func(dest interface{}) error { return a.ds.ReadSlice(start, count, dest) }
	}

	switch b := buf.(type) {
	case dataset.Float32s:
		s := []float32(b)
		err = read(&s)
	case dataset.Float64s:
		s := []float64(b)
		err = read(&s)
	case dataset.Uint16s:
		s := []uint16(b)
		err = read(&s)
	case dataset.Int64s:
		dt := a.ds.Datatype()
		if dt.Size == 8 && !dt.Signed {
			return a.readUint64(read, b)
		}
		s := []int64(b)
		err = read(&s)
	case *dataset.Strings:
		s := b.Values
		err = read(&s)
	}
	if err != nil {
		return h5Error(err, op, a.desc.Path)
	}
	return nil
}

func (a *h5Array) readUint64(read func(interface{}) error, dst dataset.Int64s) error {
	const op = "read array"
	tmp := make([]uint64, len(dst))
	if err := read(&tmp); err != nil {
		return h5Error(err, op, a.desc.Path)
	}
	for i, v := range tmp {
		if v > math.MaxInt64 {
			return errkind.Errorf(errkind.TypeError, op, a.desc.Path, "value %d at %d does not fit int64", v, i)
		}
		dst[i] = int64(v)
	}
	return nil
}
