package dtype

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"reflect"

	binpkg "github.com/richielo/basicFusion/internal/binary"
	"github.com/richielo/basicFusion/internal/heap"
	"github.com/richielo/basicFusion/internal/message"
)

// Decode converts n elements of raw into dest. dest points at a slice,
// which is reused when long enough and replaced otherwise; at a string,
// which takes the first element; or at an interface{}, which receives a
// slice of dt's natural Go type. Numbers convert between widths and
// between integer and float. r resolves variable-length strings and may be
// nil for every other type.
func Decode(dt *message.Datatype, raw []byte, n uint64, dest interface{}, r *binpkg.Reader) error {
	if dt == nil {
		return fmt.Errorf("nil datatype")
	}
	ptr := reflect.ValueOf(dest)
	if ptr.Kind() != reflect.Pointer || ptr.IsNil() {
		return fmt.Errorf("decode destination must be a non-nil pointer, got %T", dest)
	}
	v := ptr.Elem()

	if v.Kind() == reflect.Interface {
		t, err := GoType(dt)
		if err != nil {
			return err
		}
		s := reflect.New(reflect.SliceOf(t))
		if err := Decode(dt, raw, n, s.Interface(), r); err != nil {
			return err
		}
		v.Set(s.Elem())
		return nil
	}

	switch {
	case isInteger(dt), dt.Class == message.ClassFloatPoint:
		return decodeNumbers(dt, raw, n, v)
	case dt.Class == message.ClassString:
		strs, err := fixedStrings(dt, raw, n)
		if err != nil {
			return err
		}
		return setStrings(v, strs)
	case isString(dt):
		if r == nil {
			return fmt.Errorf("variable-length strings need a file reader")
		}
		strs, err := varStrings(raw, n, r)
		if err != nil {
			return err
		}
		return setStrings(v, strs)
	}
	return fmt.Errorf("datatype class %d cannot be decoded", dt.Class)
}

// slice returns the first n elements of v, growing v when it is short.
func slice(v reflect.Value, n uint64) (reflect.Value, error) {
	if v.Kind() != reflect.Slice {
		return reflect.Value{}, fmt.Errorf("cannot decode into %s", v.Type())
	}
	if uint64(v.Len()) < n {
		v.Set(reflect.MakeSlice(v.Type(), int(n), int(n)))
	}
	return v.Slice(0, int(n)), nil
}

// number is one decoded element. Integers keep their bits in u, sign
// extended when signed.
type number struct {
	float  bool
	signed bool
	u      uint64
	f      float64
}

func readNumber(dt *message.Datatype, order binary.ByteOrder, b []byte) number {
	if dt.Class == message.ClassFloatPoint {
		if len(b) == 4 {
			return number{float: true, f: float64(math.Float32frombits(order.Uint32(b)))}
		}
		return number{float: true, f: math.Float64frombits(order.Uint64(b))}
	}
	var u uint64
	switch len(b) {
	case 1:
		u = uint64(b[0])
	case 2:
		u = uint64(order.Uint16(b))
	case 4:
		u = uint64(order.Uint32(b))
	default:
		u = order.Uint64(b)
	}
	signed := dt.Signed && dt.Class != message.ClassBitfield
	if signed {
		shift := 64 - 8*uint(len(b))
		u = uint64(int64(u<<shift) >> shift)
	}
	return number{signed: signed, u: u}
}

func (x number) set(v reflect.Value) error {
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if x.float {
			v.SetInt(int64(x.f))
		} else {
			v.SetInt(int64(x.u))
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		if x.float {
			v.SetUint(uint64(x.f))
		} else {
			v.SetUint(x.u)
		}
	case reflect.Float32, reflect.Float64:
		switch {
		case x.float:
			v.SetFloat(x.f)
		case x.signed:
			v.SetFloat(float64(int64(x.u)))
		default:
			v.SetFloat(float64(x.u))
		}
	default:
		return fmt.Errorf("cannot store a number in %s", v.Type())
	}
	return nil
}

// native reports whether elements of type t have dt's exact layout, so
// the bytes can be read straight into the slice.
func native(dt *message.Datatype, t reflect.Type) bool {
	if uint32(t.Size()) != dt.Size {
		return false
	}
	switch t.Kind() {
	case reflect.Float32, reflect.Float64:
		return dt.Class == message.ClassFloatPoint
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return isInteger(dt) && dt.Signed && dt.Class != message.ClassBitfield
	case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return isInteger(dt) && !(dt.Signed && dt.Class != message.ClassBitfield)
	}
	return false
}

func decodeNumbers(dt *message.Datatype, raw []byte, n uint64, v reflect.Value) error {
	size := uint64(dt.Size)
	switch {
	case dt.Class == message.ClassFloatPoint && size != 4 && size != 8:
		return fmt.Errorf("%d byte floats are not supported", size)
	case isInteger(dt) && size != 1 && size != 2 && size != 4 && size != 8:
		return fmt.Errorf("%d byte integers are not supported", size)
	}
	if uint64(len(raw)) < n*size {
		return fmt.Errorf("%d bytes hold fewer than %d elements of %d bytes", len(raw), n, size)
	}
	dst, err := slice(v, n)
	if err != nil {
		return err
	}
	order := ByteOrder(dt)
	if native(dt, dst.Type().Elem()) {
		return binary.Read(bytes.NewReader(raw[:n*size]), order, dst.Interface())
	}
	for i := uint64(0); i < n; i++ {
		if err := readNumber(dt, order, raw[i*size:(i+1)*size]).set(dst.Index(int(i))); err != nil {
			return err
		}
	}
	return nil
}

// fixedStrings cuts n fixed-width strings, each ending at its first NUL.
// Space padding is trimmed too.
func fixedStrings(dt *message.Datatype, raw []byte, n uint64) ([]string, error) {
	size := uint64(dt.Size)
	if uint64(len(raw)) < n*size {
		return nil, fmt.Errorf("%d bytes hold fewer than %d strings of %d bytes", len(raw), n, size)
	}
	out := make([]string, n)
	for i := range out {
		b := raw[uint64(i)*size : uint64(i+1)*size]
		if k := bytes.IndexByte(b, 0); k >= 0 {
			b = b[:k]
		}
		if dt.StringPadding == message.PadSpacePad {
			b = bytes.TrimRight(b, " ")
		}
		out[i] = string(b)
	}
	return out, nil
}

func varStrings(raw []byte, n uint64, r *binpkg.Reader) ([]string, error) {
	size := uint64(heap.RefSize(r.OffsetSize()))
	if uint64(len(raw)) < n*size {
		return nil, fmt.Errorf("%d bytes hold fewer than %d string references", len(raw), n)
	}
	heaps := heap.NewCollections(r)
	out := make([]string, n)
	for i := range out {
		s, err := heaps.String(raw[uint64(i)*size : uint64(i+1)*size])
		if err != nil {
			return nil, fmt.Errorf("string %d: %w", i, err)
		}
		out[i] = s
	}
	return out, nil
}

func setStrings(v reflect.Value, strs []string) error {
	if v.Kind() == reflect.String {
		if len(strs) > 0 {
			v.SetString(strs[0])
		}
		return nil
	}
	dst, err := slice(v, uint64(len(strs)))
	if err != nil {
		return err
	}
	if dst.Type().Elem().Kind() != reflect.String {
		return fmt.Errorf("cannot decode strings into %s", v.Type())
	}
	for i, s := range strs {
		dst.Index(i).SetString(s)
	}
	return nil
}
