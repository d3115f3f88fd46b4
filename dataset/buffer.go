package dataset

import "github.com/richielo/basicFusion/errkind"

// Buffer holds the elements of one array in row-major order. The set of
// implementations is closed; switch over Float32s, Float64s, Uint16s,
// Int64s and *Strings.
type Buffer interface {
	Type() ElementType
	Len() int
	// Bytes is the storage footprint of the elements.
	Bytes() int
	buffer()
}

type (
	Float32s []float32
	Float64s []float64
	Uint16s  []uint16
	Int64s   []int64
)

// Strings is a fixed-width string array. Values longer than Width are an
// error on write; shorter ones are NUL padded.
type Strings struct {
	Width  int
	Values []string
}

func (Float32s) Type() ElementType { return Float32 }
func (Float64s) Type() ElementType { return Float64 }
func (Uint16s) Type() ElementType  { return Uint16 }
func (Int64s) Type() ElementType   { return Int64 }
func (*Strings) Type() ElementType { return String }

func (b Float32s) Len() int { return len(b) }
func (b Float64s) Len() int { return len(b) }
func (b Uint16s) Len() int  { return len(b) }
func (b Int64s) Len() int   { return len(b) }
func (b *Strings) Len() int { return len(b.Values) }

func (b Float32s) Bytes() int { return 4 * len(b) }
func (b Float64s) Bytes() int { return 8 * len(b) }
func (b Uint16s) Bytes() int  { return 2 * len(b) }
func (b Int64s) Bytes() int   { return 8 * len(b) }
func (b *Strings) Bytes() int { return b.Width * len(b.Values) }

func (Float32s) buffer() {}
func (Float64s) buffer() {}
func (Uint16s) buffer()  {}
func (Int64s) buffer()   {}
func (*Strings) buffer() {}

// Floats returns b widened to float64. Strings are not numeric.
func Floats(b Buffer) ([]float64, error) {
	out := make([]float64, b.Len())
	switch v := b.(type) {
	case Float64s:
		copy(out, v)
	case Float32s:
		for i, x := range v {
			out[i] = float64(x)
		}
	case Uint16s:
		for i, x := range v {
			out[i] = float64(x)
		}
	case Int64s:
		for i, x := range v {
			out[i] = float64(x)
		}
	default:
		return nil, errkind.Errorf(errkind.TypeError, "floats", "", "%s buffer is not numeric", b.Type())
	}
	return out, nil
}

// Allocator hands out element buffers. Every successful Alloc must be
// paired with exactly one Release.
type Allocator interface {
	Alloc(t ElementType, n int, width int) (Buffer, error)
	Release(Buffer)
}

// maxElements caps a single allocation. Larger requests are reported as
// I/O errors rather than left to the runtime to fail.
const maxElements = 1 << 33

// Heap allocates from the Go heap. Release is a no-op.
type Heap struct{}

func (Heap) Alloc(t ElementType, n int, width int) (Buffer, error) {
	return New(t, n, width)
}

func (Heap) Release(Buffer) {}

// New makes a zeroed buffer of n elements.
func New(t ElementType, n int, width int) (Buffer, error) {
	const op = "allocate"
	if n < 0 || uint64(n) > maxElements {
		return nil, errkind.Errorf(errkind.IOError, op, "", "cannot allocate %d elements", n)
	}
	switch t {
	case Float32:
		return make(Float32s, n), nil
	case Float64:
		return make(Float64s, n), nil
	case Uint16:
		return make(Uint16s, n), nil
	case Int64:
		return make(Int64s, n), nil
	case String:
		if width <= 0 {
			return nil, errkind.Errorf(errkind.TypeError, op, "", "string width %d", width)
		}
		return &Strings{Width: width, Values: make([]string, n)}, nil
	}
	return nil, errkind.Errorf(errkind.TypeError, op, "", "unsupported element type %s", t)
}

// ForDescriptor allocates a buffer sized for every element of d.
func ForDescriptor(a Allocator, d Descriptor) (Buffer, error) {
	n := d.NumElements()
	if n > maxElements {
		return nil, errkind.Errorf(errkind.IOError, "allocate", d.Path, "%d elements", n)
	}
	buf, err := a.Alloc(d.Type, int(n), d.Width)
	if err != nil {
		return nil, err
	}
	return buf, nil
}

// Slice returns the elements [lo, hi) of b, sharing b's storage.
func Slice(b Buffer, lo, hi int) Buffer {
	switch v := b.(type) {
	case Float32s:
		return v[lo:hi]
	case Float64s:
		return v[lo:hi]
	case Uint16s:
		return v[lo:hi]
	case Int64s:
		return v[lo:hi]
	case *Strings:
		return &Strings{Width: v.Width, Values: v.Values[lo:hi]}
	}
	return nil
}
