package dtype

import (
	"fmt"
	"math"
	"reflect"

	"github.com/richielo/basicFusion/internal/message"
)

// Encode packs src, a number or string or a slice or array of them, into
// dt's on-disk layout. Numbers convert to dt's width; floats are not
// truncated into integer types.
func Encode(dt *message.Datatype, src interface{}) ([]byte, error) {
	if dt == nil {
		return nil, fmt.Errorf("nil datatype")
	}
	v := reflect.Indirect(reflect.ValueOf(src))
	if !v.IsValid() {
		return nil, fmt.Errorf("nothing to encode")
	}
	if k := v.Kind(); k != reflect.Slice && k != reflect.Array {
		one := reflect.New(reflect.ArrayOf(1, v.Type())).Elem()
		one.Index(0).Set(v)
		v = one
	}

	size := int(dt.Size)
	out := make([]byte, v.Len()*size)
	for i := 0; i < v.Len(); i++ {
		if err := put(dt, out[i*size:(i+1)*size], v.Index(i)); err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
	}
	return out, nil
}

func put(dt *message.Datatype, b []byte, v reflect.Value) error {
	order := ByteOrder(dt)
	switch {
	case dt.Class == message.ClassString:
		if v.Kind() != reflect.String {
			return fmt.Errorf("cannot store %s in a string type", v.Type())
		}
		n := copy(b, v.String())
		if dt.StringPadding == message.PadSpacePad {
			for i := n; i < len(b); i++ {
				b[i] = ' '
			}
		}
		return nil

	case dt.Class == message.ClassFloatPoint:
		var f float64
		switch v.Kind() {
		case reflect.Float32, reflect.Float64:
			f = v.Float()
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			f = float64(v.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			f = float64(v.Uint())
		default:
			return fmt.Errorf("cannot store %s in a float type", v.Type())
		}
		switch len(b) {
		case 4:
			order.PutUint32(b, math.Float32bits(float32(f)))
		case 8:
			order.PutUint64(b, math.Float64bits(f))
		default:
			return fmt.Errorf("%d byte floats are not supported", len(b))
		}
		return nil

	case isInteger(dt):
		var u uint64
		switch v.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			u = uint64(v.Int())
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			u = v.Uint()
		default:
			return fmt.Errorf("cannot store %s in an integer type", v.Type())
		}
		switch len(b) {
		case 1:
			b[0] = byte(u)
		case 2:
			order.PutUint16(b, uint16(u))
		case 4:
			order.PutUint32(b, uint32(u))
		case 8:
			order.PutUint64(b, u)
		default:
			return fmt.Errorf("%d byte integers are not supported", len(b))
		}
		return nil
	}
	return fmt.Errorf("datatype class %d cannot be encoded", dt.Class)
}
