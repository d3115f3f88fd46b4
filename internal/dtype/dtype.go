// Package dtype maps HDF5 datatypes onto Go types and moves values between
// raw file bytes and Go slices. Only the classes satellite products use are
// handled: integers and their enum and bitfield relatives, IEEE floats,
// and fixed or variable-length strings.
package dtype

import (
	"encoding/binary"
	"fmt"
	"reflect"

	"github.com/richielo/basicFusion/internal/message"
)

// ByteOrder is the order of dt's numeric fields.
func ByteOrder(dt *message.Datatype) binary.ByteOrder {
	if dt.ByteOrder == message.OrderBE {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// integer types by size, unsigned then signed
var integers = map[uint32][2]reflect.Type{
	1: {reflect.TypeFor[uint8](), reflect.TypeFor[int8]()},
	2: {reflect.TypeFor[uint16](), reflect.TypeFor[int16]()},
	4: {reflect.TypeFor[uint32](), reflect.TypeFor[int32]()},
	8: {reflect.TypeFor[uint64](), reflect.TypeFor[int64]()},
}

func isInteger(dt *message.Datatype) bool {
	switch dt.Class {
	case message.ClassFixedPoint, message.ClassEnum, message.ClassBitfield:
		return true
	}
	return false
}

func isString(dt *message.Datatype) bool {
	return dt.Class == message.ClassString || dt.Class == message.ClassVarLen && dt.IsVarLenString
}

// GoType is the Go element type a dt value decodes to naturally.
func GoType(dt *message.Datatype) (reflect.Type, error) {
	if dt == nil {
		return nil, fmt.Errorf("nil datatype")
	}
	switch {
	case isInteger(dt):
		pair, ok := integers[dt.Size]
		if !ok {
			return nil, fmt.Errorf("%d byte integers are not supported", dt.Size)
		}
		if dt.Signed && dt.Class != message.ClassBitfield {
			return pair[1], nil
		}
		return pair[0], nil
	case dt.Class == message.ClassFloatPoint:
		switch dt.Size {
		case 4:
			return reflect.TypeFor[float32](), nil
		case 8:
			return reflect.TypeFor[float64](), nil
		}
		return nil, fmt.Errorf("%d byte floats are not supported", dt.Size)
	case isString(dt):
		return reflect.TypeFor[string](), nil
	}
	return nil, fmt.Errorf("datatype class %d has no Go equivalent", dt.Class)
}

// FromGoType is the little-endian HDF5 type for a numeric Go type, or for
// the element type of a slice or array of one.
func FromGoType(t reflect.Type) (*message.Datatype, error) {
	for t.Kind() == reflect.Pointer || t.Kind() == reflect.Slice || t.Kind() == reflect.Array {
		t = t.Elem()
	}
	switch t.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64, reflect.Int:
		return message.NewFixedPointDatatype(uint32(t.Size()), true, message.OrderLE), nil
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uint:
		return message.NewFixedPointDatatype(uint32(t.Size()), false, message.OrderLE), nil
	case reflect.Float32, reflect.Float64:
		return message.NewFloatDatatype(uint32(t.Size()), message.OrderLE), nil
	}
	return nil, fmt.Errorf("no HDF5 type for Go type %v", t)
}

// DataSize is the byte size of n elements of dt.
func DataSize(dt *message.Datatype, n uint64) uint64 { return uint64(dt.Size) * n }
