package dataset

import "github.com/richielo/basicFusion/errkind"

// CanConvert reports whether a buffer of type from may be stored as to
// without unpacking. Only identity and lossless widening are allowed.
func CanConvert(from, to ElementType) bool {
	if from == to {
		return from.Valid()
	}
	switch from {
	case Uint16:
		return to == Int64 || to == Float32 || to == Float64
	case Int64, Float32:
		return to == Float64
	}
	return false
}

// Convert copies in into out, widening each element to out's type. The two
// buffers must have the same length. For strings out.Width must be at least
// in.Width.
func Convert(in, out Buffer) error {
	const op = "convert"
	if !CanConvert(in.Type(), out.Type()) {
		return errkind.Errorf(errkind.TypeError, op, "", "cannot store %s as %s", in.Type(), out.Type())
	}
	if in.Len() != out.Len() {
		return errkind.Errorf(errkind.ShapeError, op, "", "length %d into %d", in.Len(), out.Len())
	}

	switch src := in.(type) {
	case Float32s:
		switch dst := out.(type) {
		case Float32s:
			copy(dst, src)
		case Float64s:
			for i, v := range src {
				dst[i] = float64(v)
			}
		}
	case Float64s:
		copy(out.(Float64s), src)
	case Int64s:
		switch dst := out.(type) {
		case Int64s:
			copy(dst, src)
		case Float64s:
			for i, v := range src {
				dst[i] = float64(v)
			}
		}
	case Uint16s:
		switch dst := out.(type) {
		case Uint16s:
			copy(dst, src)
		case Int64s:
			for i, v := range src {
				dst[i] = int64(v)
			}
		case Float32s:
			for i, v := range src {
				dst[i] = float32(v)
			}
		case Float64s:
			for i, v := range src {
				dst[i] = float64(v)
			}
		}
	case *Strings:
		dst := out.(*Strings)
		if dst.Width < src.Width {
			return errkind.Errorf(errkind.TypeError, op, "", "string width %d into %d", src.Width, dst.Width)
		}
		copy(dst.Values, src.Values)
	}
	return nil
}
