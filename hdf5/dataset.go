package hdf5

import (
	"fmt"
	"path"
	"reflect"

	"github.com/richielo/basicFusion/internal/dtype"
	"github.com/richielo/basicFusion/internal/layout"
	"github.com/richielo/basicFusion/internal/message"
	"github.com/richielo/basicFusion/internal/object"
)

// Dataset represents an HDF5 dataset.
type Dataset struct {
	file      *File
	path      string
	header    *object.Header
	dataspace *message.Dataspace
	datatype  *message.Datatype
	layout    layout.Layout

	addr   uint64
	parent *Group

	// Set for datasets written through this File. messages is the full
	// header so attributes can be appended after commit.
	messages []message.Message
	dataAddr uint64
	dataSize uint64
}

func newDataset(f *File, path string, header *object.Header) (*Dataset, error) {
	ds := &Dataset{
		file:   f,
		path:   path,
		header: header,
	}

	if ds.dataspace = header.Dataspace(); ds.dataspace == nil {
		return nil, fmt.Errorf("dataset missing dataspace message")
	}
	if ds.datatype = header.Datatype(); ds.datatype == nil {
		return nil, fmt.Errorf("dataset missing datatype message")
	}
	layoutMsg := header.DataLayout()
	if layoutMsg == nil {
		return nil, fmt.Errorf("dataset missing layout message")
	}

	var err error
	ds.layout, err = layout.New(layoutMsg, ds.dataspace, ds.datatype, header.FilterPipeline(), header.FillValue(), f.reader)
	if err != nil {
		return nil, fmt.Errorf("creating layout: %w", err)
	}
	return ds, nil
}

// Name returns the last component of the dataset path.
func (d *Dataset) Name() string {
	return path.Base(d.path)
}

// Path returns the absolute path of the dataset.
func (d *Dataset) Path() string {
	return d.path
}

// Shape returns the dimensions of the dataset, or nil for a scalar.
func (d *Dataset) Shape() []uint64 {
	if d.dataspace.IsScalar() {
		return nil
	}
	return append([]uint64(nil), d.dataspace.Dimensions...)
}

// Rank returns the number of dimensions.
func (d *Dataset) Rank() int {
	return d.dataspace.Rank
}

// NumElements returns the total number of elements.
func (d *Dataset) NumElements() uint64 {
	return d.dataspace.NumElements()
}

// IsScalar returns true if the dataset holds a single value.
func (d *Dataset) IsScalar() bool {
	return d.dataspace.IsScalar()
}

// DtypeSize returns the size of each element in bytes.
func (d *Dataset) DtypeSize() int {
	return int(d.datatype.Size)
}

// DtypeClass returns the datatype class.
func (d *Dataset) DtypeClass() message.DatatypeClass {
	return d.datatype.Class
}

// Datatype returns the raw datatype message.
func (d *Dataset) Datatype() *message.Datatype {
	return d.datatype
}

// GoType returns the Go type that corresponds to the dataset's datatype.
func (d *Dataset) GoType() (reflect.Type, error) {
	return dtype.GoType(d.datatype)
}

// Read reads the whole dataset into dest, a pointer to a slice whose element
// type matches or can hold the stored type.
func (d *Dataset) Read(dest interface{}) error {
	if d.layout == nil {
		return fmt.Errorf("%s: reading a dataset opened for writing: %w", d.path, ErrUnsupported)
	}
	raw, err := d.layout.Read()
	if err != nil {
		return fmt.Errorf("reading data: %w", err)
	}
	return dtype.Decode(d.datatype, raw, d.dataspace.NumElements(), dest, d.file.reader)
}

// ReadRaw reads the whole dataset as stored bytes.
func (d *Dataset) ReadRaw() ([]byte, error) {
	if d.layout == nil {
		return nil, fmt.Errorf("%s: reading a dataset opened for writing: %w", d.path, ErrUnsupported)
	}
	return d.layout.Read()
}

// ReadSlice reads the hyperslab at start with count elements per dimension
// into dest.
func (d *Dataset) ReadSlice(start, count []uint64, dest interface{}) error {
	if d.layout == nil {
		return fmt.Errorf("%s: reading a dataset opened for writing: %w", d.path, ErrUnsupported)
	}
	raw, err := d.layout.ReadSlice(start, count)
	if err != nil {
		return fmt.Errorf("reading slice: %w", err)
	}
	n := uint64(1)
	for _, c := range count {
		n *= c
	}
	return dtype.Decode(d.datatype, raw, n, dest, d.file.reader)
}

// ReadFloat64 reads the dataset as float64 values.
func (d *Dataset) ReadFloat64() ([]float64, error) {
	var v []float64
	return v, d.Read(&v)
}

// ReadFloat32 reads the dataset as float32 values.
func (d *Dataset) ReadFloat32() ([]float32, error) {
	var v []float32
	return v, d.Read(&v)
}

// ReadInt64 reads the dataset as int64 values.
func (d *Dataset) ReadInt64() ([]int64, error) {
	var v []int64
	return v, d.Read(&v)
}

// ReadInt32 reads the dataset as int32 values.
func (d *Dataset) ReadInt32() ([]int32, error) {
	var v []int32
	return v, d.Read(&v)
}

// ReadUint16 reads the dataset as uint16 values.
func (d *Dataset) ReadUint16() ([]uint16, error) {
	var v []uint16
	return v, d.Read(&v)
}

// ReadString reads the dataset as string values.
func (d *Dataset) ReadString() ([]string, error) {
	var v []string
	return v, d.Read(&v)
}

func (d *Dataset) attrMessages() []*message.Attribute {
	switch {
	case d.messages != nil:
		return messagesOf[*message.Attribute](d.messages)
	case d.header != nil:
		return messagesOf[*message.Attribute](d.header.GetMessages(message.TypeAttribute))
	}
	return nil
}

// Attrs returns the attribute names for this dataset.
func (d *Dataset) Attrs() []string {
	var names []string
	for _, attr := range d.attrMessages() {
		names = append(names, attr.Name)
	}
	return names
}

// Attr returns an attribute by name, or nil if not found.
func (d *Dataset) Attr(name string) *Attribute {
	for _, attr := range d.attrMessages() {
		if attr.Name == name {
			return &Attribute{msg: attr, reader: d.file.reader}
		}
	}
	return nil
}

// HasAttr returns true if the dataset has an attribute with the given name.
func (d *Dataset) HasAttr(name string) bool {
	return d.Attr(name) != nil
}

// SetAttr adds or replaces an attribute on a dataset written through this
// file. The header moves to a fresh address and the parent link follows it.
func (d *Dataset) SetAttr(name string, value interface{}) error {
	if !d.file.writable {
		return ErrReadOnly
	}
	if d.messages == nil {
		if d.header == nil {
			return fmt.Errorf("%s: %w", d.path, ErrUnsupported)
		}
		for _, msg := range d.header.Messages {
			if _, ok := msg.(message.Serializable); !ok {
				return fmt.Errorf("%s: header message %#x cannot be rewritten: %w", d.path, msg.Type(), ErrUnsupported)
			}
		}
		d.messages = append([]message.Message(nil), d.header.Messages...)
	}

	msg, err := createAttributeMessage(name, value)
	if err != nil {
		return fmt.Errorf("attribute %q: %w", name, err)
	}

	replaced := false
	for i, m := range d.messages {
		if a, ok := m.(*message.Attribute); ok && a.Name == name {
			d.messages[i] = msg
			replaced = true
			break
		}
	}
	if !replaced {
		d.messages = append(d.messages, msg)
	}

	addr, err := writeObjectHeader(d.file, d.messages, 0)
	if err != nil {
		return err
	}
	old := d.addr
	d.addr = addr

	parent := d.parent
	if parent == nil {
		if parent, err = d.file.group(path.Dir(d.path)); err != nil {
			return err
		}
	}
	if err := parent.relink(d.Name(), addr); err != nil {
		return err
	}
	d.file.release(old)
	return nil
}
