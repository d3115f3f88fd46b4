package hdf5

import (
	"fmt"
	"reflect"

	"github.com/richielo/basicFusion/internal/dtype"
	"github.com/richielo/basicFusion/internal/message"
)

// DatasetWriter stages a new dataset. Data is written in order through Write
// or WriteRaw and the dataset only becomes a member of its group on Commit.
// Discard drops the staged data and leaves the group untouched.
type DatasetWriter struct {
	group     *Group
	name      string
	dataspace *message.Dataspace
	datatype  *message.Datatype
	attrs     []attrDef

	dataAddr uint64
	dataSize uint64
	written  uint64
	done     bool
}

// NewDatasetWriter reserves storage for a dataset of the given shape and type.
// Nothing is linked into g until Commit succeeds.
func (g *Group) NewDatasetWriter(name string, dims []uint64, dt *message.Datatype, opts ...DatasetOption) (*DatasetWriter, error) {
	if err := g.checkNewMember(name); err != nil {
		return nil, err
	}
	if dt == nil {
		return nil, fmt.Errorf("dataset %q: nil datatype", name)
	}
	if dt.Class == message.ClassVarLen {
		return nil, fmt.Errorf("dataset %q: variable-length data: %w", name, ErrUnsupported)
	}

	numElements := uint64(1)
	for _, d := range dims {
		numElements *= d
	}

	w := &DatasetWriter{
		group:     g,
		name:      name,
		dataspace: message.NewDataspace(dims, nil),
		datatype:  dt,
		dataSize:  dtype.DataSize(dt, numElements),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.dataSize > 0 {
		w.dataAddr = g.file.allocate(int64(w.dataSize))
	}
	return w, nil
}

// Write encodes data with the dataset's datatype and appends it after
// whatever has been written so far.
func (w *DatasetWriter) Write(data interface{}) error {
	raw, err := dtype.Encode(w.datatype, data)
	if err != nil {
		return fmt.Errorf("encoding data: %w", err)
	}
	return w.WriteRaw(raw)
}

// WriteRaw appends already encoded bytes.
func (w *DatasetWriter) WriteRaw(raw []byte) error {
	if w.done {
		return ErrCommitted
	}
	if w.written+uint64(len(raw)) > w.dataSize {
		return fmt.Errorf("dataset %q: writing %d bytes at %d overflows %d", w.name, len(raw), w.written, w.dataSize)
	}

	if len(raw) > 0 {
		if err := w.group.file.writer.At(int64(w.dataAddr + w.written)).WriteBytes(raw); err != nil {
			return fmt.Errorf("writing data: %w", err)
		}
	}
	w.written += uint64(len(raw))
	return nil
}

// SetAttr stages an attribute to be written with the header on Commit. A
// staged attribute of the same name is replaced.
func (w *DatasetWriter) SetAttr(name string, value interface{}) error {
	if w.done {
		return ErrCommitted
	}
	if name == "" {
		return fmt.Errorf("attribute name: %w", ErrInvalidPath)
	}
	if _, err := createAttributeMessage(name, value); err != nil {
		return fmt.Errorf("attribute %q: %w", name, err)
	}
	w.stage(name, value)
	return nil
}

func (w *DatasetWriter) stage(name string, value interface{}) {
	for i, a := range w.attrs {
		if a.name == name {
			w.attrs[i].value = value
			return
		}
	}
	w.attrs = append(w.attrs, attrDef{name: name, value: value})
}

// Written returns the number of bytes staged so far.
func (w *DatasetWriter) Written() uint64 {
	return w.written
}

// Commit writes the dataset header and links it into the group. Every byte
// of the dataset must have been written.
func (w *DatasetWriter) Commit() (*Dataset, error) {
	if w.done {
		return nil, ErrCommitted
	}
	if w.written != w.dataSize {
		return nil, fmt.Errorf("dataset %q: %d of %d bytes written", w.name, w.written, w.dataSize)
	}
	g := w.group
	if err := g.checkNewMember(w.name); err != nil {
		return nil, err
	}

	messages := []message.Message{w.dataspace, w.datatype, w.layoutMessage()}
	for _, attr := range w.attrs {
		msg, err := createAttributeMessage(attr.name, attr.value)
		if err != nil {
			return nil, fmt.Errorf("attribute %q: %w", attr.name, err)
		}
		messages = append(messages, msg)
	}

	addr, err := writeObjectHeader(g.file, messages, 0)
	if err != nil {
		return nil, err
	}
	if err := g.addLink(message.NewHardLink(w.name, addr)); err != nil {
		return nil, fmt.Errorf("adding link to parent: %w", err)
	}
	w.done = true

	return &Dataset{
		file:      g.file,
		path:      joinPath(g.path, w.name),
		dataspace: w.dataspace,
		datatype:  w.datatype,
		addr:      addr,
		parent:    g,
		messages:  messages,
		dataAddr:  w.dataAddr,
		dataSize:  w.dataSize,
	}, nil
}

// Discard abandons the dataset. Reserved space is returned to the allocator.
// Discarding after Commit is a no-op.
func (w *DatasetWriter) Discard() {
	if w.done {
		return
	}
	w.done = true
	if w.dataSize > 0 {
		_ = w.group.file.allocator.Free(w.dataAddr, w.dataSize)
	}
}

func (w *DatasetWriter) layoutMessage() *message.DataLayout {
	return message.NewContiguousLayout(w.dataAddr, w.dataSize)
}

// CreateDataset writes data as a new dataset. The shape and datatype are
// inferred from the Go value; strings are stored fixed-length, as wide as
// the longest value.
func (g *Group) CreateDataset(name string, data interface{}, opts ...DatasetOption) (*Dataset, error) {
	val := reflect.ValueOf(data)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	dims, elemType, err := inferDimensionsAndType(val)
	if err != nil {
		return nil, fmt.Errorf("inferring dimensions: %w", err)
	}

	var dt *message.Datatype
	if elemType.Kind() == reflect.String {
		dt = message.NewStringDatatype(uint32(maxStringLen(val)), message.PadNullPad, message.CharsetASCII)
	} else if dt, err = dtype.FromGoType(elemType); err != nil {
		return nil, fmt.Errorf("dataset %q: %v: %w", name, err, ErrUnsupported)
	}

	if len(dims) > 1 {
		data = flatten(val, elemType).Interface()
	}
	return g.CreateDatasetWithType(name, dims, dt, data, opts...)
}

// flatten copies nested slices into one row-major slice of elemType.
func flatten(val reflect.Value, elemType reflect.Type) reflect.Value {
	out := reflect.MakeSlice(reflect.SliceOf(elemType), 0, 0)
	var walk func(v reflect.Value)
	walk = func(v reflect.Value) {
		if v.Type().Elem() == elemType {
			for i := 0; i < v.Len(); i++ {
				out = reflect.Append(out, v.Index(i))
			}
			return
		}
		for i := 0; i < v.Len(); i++ {
			walk(v.Index(i))
		}
	}
	walk(val)
	return out
}

// CreateDatasetWithType writes data as a new dataset with an explicit shape
// and datatype.
func (g *Group) CreateDatasetWithType(name string, dims []uint64, dt *message.Datatype, data interface{}, opts ...DatasetOption) (*Dataset, error) {
	w, err := g.NewDatasetWriter(name, dims, dt, opts...)
	if err != nil {
		return nil, err
	}
	if err := w.Write(data); err != nil {
		w.Discard()
		return nil, err
	}
	ds, err := w.Commit()
	if err != nil {
		w.Discard()
		return nil, err
	}
	return ds, nil
}

// inferDimensionsAndType walks nested slices and arrays down to the element
// type. A bare scalar is treated as a single element.
func inferDimensionsAndType(val reflect.Value) ([]uint64, reflect.Type, error) {
	if !val.IsValid() {
		return nil, nil, fmt.Errorf("nil data")
	}
	var dims []uint64
	current := val
	for {
		switch current.Kind() {
		case reflect.Slice, reflect.Array:
			dims = append(dims, uint64(current.Len()))
			if current.Len() == 0 {
				return dims, current.Type().Elem(), nil
			}
			current = current.Index(0)
		default:
			if len(dims) == 0 {
				dims = []uint64{1}
			}
			return dims, current.Type(), nil
		}
	}
}

// maxStringLen returns the byte length of the longest string in val, at
// least 1 so the datatype is never zero-sized.
func maxStringLen(val reflect.Value) int {
	n := 1
	var walk func(v reflect.Value)
	walk = func(v reflect.Value) {
		switch v.Kind() {
		case reflect.Slice, reflect.Array:
			for i := 0; i < v.Len(); i++ {
				walk(v.Index(i))
			}
		case reflect.String:
			if v.Len() > n {
				n = v.Len()
			}
		}
	}
	walk(val)
	return n
}

// createAttributeMessage builds an attribute from a Go value. Accepted values
// are scalars and slices of the fixed-size numeric kinds, a string (stored at
// its exact length) and a slice of strings (stored as wide as the longest).
func createAttributeMessage(name string, value interface{}) (*message.Attribute, error) {
	if name == "" {
		return nil, fmt.Errorf("empty attribute name: %w", ErrInvalidPath)
	}
	val := reflect.ValueOf(value)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if !val.IsValid() {
		return nil, fmt.Errorf("nil value: %w", ErrUnsupported)
	}

	switch {
	case val.Kind() == reflect.String:
		return createStringAttribute(name, val.String()), nil
	case (val.Kind() == reflect.Slice || val.Kind() == reflect.Array) && val.Type().Elem().Kind() == reflect.String:
		return createStringArrayAttribute(name, val)
	}

	var dataspace *message.Dataspace
	elemType := val.Type()
	switch val.Kind() {
	case reflect.Slice, reflect.Array:
		dataspace = message.NewDataspace([]uint64{uint64(val.Len())}, nil)
		elemType = elemType.Elem()
	default:
		dataspace = message.NewScalarDataspace()
	}

	datatype, err := attributeDatatype(elemType)
	if err != nil {
		return nil, err
	}
	data, err := dtype.Encode(datatype, val.Interface())
	if err != nil {
		return nil, fmt.Errorf("encoding attribute value: %w", err)
	}
	return message.NewAttribute(name, datatype, dataspace, data), nil
}

func attributeDatatype(t reflect.Type) (*message.Datatype, error) {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return dtype.FromGoType(t)
	}
	return nil, fmt.Errorf("attribute type %v: %w", t, ErrUnsupported)
}

// createStringAttribute stores s as a scalar null-padded string exactly
// len(s) bytes wide.
func createStringAttribute(name, s string) *message.Attribute {
	size := len(s)
	if size == 0 {
		size = 1
	}
	datatype := message.NewStringDatatype(uint32(size), message.PadNullPad, message.CharsetASCII)
	data := make([]byte, size)
	copy(data, s)
	return message.NewAttribute(name, datatype, message.NewScalarDataspace(), data)
}

func createStringArrayAttribute(name string, val reflect.Value) (*message.Attribute, error) {
	n := val.Len()
	if n == 0 {
		return nil, fmt.Errorf("empty string array: %w", ErrUnsupported)
	}
	width := maxStringLen(val)
	datatype := message.NewStringDatatype(uint32(width), message.PadNullPad, message.CharsetASCII)
	data := make([]byte, n*width)
	for i := 0; i < n; i++ {
		copy(data[i*width:], val.Index(i).String())
	}
	return message.NewAttribute(name, datatype, message.NewDataspace([]uint64{uint64(n)}, nil), data), nil
}
