package hdf5

import (
	"fmt"

	"github.com/richielo/basicFusion/internal/binary"
	"github.com/richielo/basicFusion/internal/dtype"
	"github.com/richielo/basicFusion/internal/message"
)

// Attribute is a named value attached to a group or dataset.
type Attribute struct {
	msg    *message.Attribute
	reader *binary.Reader // resolves global heap references
}

// Name returns the attribute name.
func (a *Attribute) Name() string {
	return a.msg.Name
}

// Shape returns the dimensions of the value, or nil for a scalar.
func (a *Attribute) Shape() []uint64 {
	if a.IsScalar() {
		return nil
	}
	return a.msg.Dataspace.Dimensions
}

// NumElements returns the number of elements in the value.
func (a *Attribute) NumElements() uint64 {
	if a.msg.Dataspace == nil {
		return 1
	}
	return a.msg.Dataspace.NumElements()
}

// IsScalar reports whether the attribute holds a single value.
func (a *Attribute) IsScalar() bool {
	return a.msg.Dataspace == nil || a.msg.Dataspace.IsScalar()
}

// DtypeClass returns the datatype class.
func (a *Attribute) DtypeClass() message.DatatypeClass {
	if a.msg.Datatype == nil {
		return 0
	}
	return a.msg.Datatype.Class
}

// Datatype returns the raw datatype message.
func (a *Attribute) Datatype() *message.Datatype {
	return a.msg.Datatype
}

// Read converts the stored value into dest, a pointer to a slice.
func (a *Attribute) Read(dest interface{}) error {
	if a.msg.Datatype == nil {
		return fmt.Errorf("attribute %q has no datatype", a.msg.Name)
	}
	if a.msg.Data == nil {
		return fmt.Errorf("attribute %q has no data", a.msg.Name)
	}
	return dtype.Decode(a.msg.Datatype, a.msg.Data, a.NumElements(), dest, a.reader)
}

func readAll[T any](a *Attribute) ([]T, error) {
	var v []T
	return v, a.Read(&v)
}

func readFirst[T any](a *Attribute) (T, error) {
	var zero T
	vals, err := readAll[T](a)
	if err != nil {
		return zero, err
	}
	if len(vals) == 0 {
		return zero, fmt.Errorf("attribute %q has no values", a.msg.Name)
	}
	return vals[0], nil
}

// ReadFloat64 reads the attribute as float64 values.
func (a *Attribute) ReadFloat64() ([]float64, error) { return readAll[float64](a) }

// ReadInt64 reads the attribute as int64 values.
func (a *Attribute) ReadInt64() ([]int64, error) { return readAll[int64](a) }

// ReadString reads the attribute as string values.
func (a *Attribute) ReadString() ([]string, error) { return readAll[string](a) }

// ReadScalarFloat64 reads the first value as a float64.
func (a *Attribute) ReadScalarFloat64() (float64, error) { return readFirst[float64](a) }

// ReadScalarInt64 reads the first value as an int64.
func (a *Attribute) ReadScalarInt64() (int64, error) { return readFirst[int64](a) }

// ReadScalarString reads the first value as a string.
func (a *Attribute) ReadScalarString() (string, error) { return readFirst[string](a) }

// Value reads the attribute into the natural Go type for its class:
// int64 or uint64 for integers, float64 for floats, string for strings.
// Non-scalar attributes come back as slices of those.
func (a *Attribute) Value() (interface{}, error) {
	if a.msg.Datatype == nil {
		return nil, fmt.Errorf("attribute %q has no datatype", a.msg.Name)
	}

	switch dt := a.msg.Datatype; {
	case dt.Class == message.ClassFixedPoint && dt.Signed, dt.Class == message.ClassEnum:
		return unwrap(readAll[int64](a))(a.IsScalar())
	case dt.Class == message.ClassFixedPoint:
		return unwrap(readAll[uint64](a))(a.IsScalar())
	case dt.Class == message.ClassFloatPoint:
		return unwrap(readAll[float64](a))(a.IsScalar())
	case dt.Class == message.ClassString, dt.Class == message.ClassVarLen && dt.IsVarLenString:
		return unwrap(readAll[string](a))(a.IsScalar())
	}
	return nil, fmt.Errorf("attribute %q of datatype class %d: %w", a.msg.Name, a.msg.Datatype.Class, ErrUnsupported)
}

// unwrap returns the single element of a scalar read, or the slice.
func unwrap[T any](vals []T, err error) func(scalar bool) (interface{}, error) {
	return func(scalar bool) (interface{}, error) {
		if err != nil {
			return nil, err
		}
		if scalar && len(vals) == 1 {
			return vals[0], nil
		}
		return vals, nil
	}
}
