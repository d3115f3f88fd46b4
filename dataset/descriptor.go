// Package dataset describes N-dimensional arrays and holds their elements in
// a closed set of typed buffers.
package dataset

import (
	"fmt"
	"strings"

	"github.com/richielo/basicFusion/errkind"
)

// MaxRank is the highest dimensionality an array may have.
const MaxRank = 5

// ElementType is the storage type of an array element.
type ElementType uint8

const (
	Invalid ElementType = iota
	Float32
	Float64
	Uint16
	Int64
	String // fixed-length, see Descriptor.Width
)

func (t ElementType) String() string {
	switch t {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Uint16:
		return "uint16"
	case Int64:
		return "int64"
	case String:
		return "string"
	}
	return fmt.Sprintf("ElementType(%d)", uint8(t))
}

// Valid reports whether t is one of the supported element types.
func (t ElementType) Valid() bool {
	return t >= Float32 && t <= String
}

// IsFloat reports whether t is a floating-point type.
func (t ElementType) IsFloat() bool {
	return t == Float32 || t == Float64
}

// Size returns the bytes per element. width only matters for String.
func (t ElementType) Size(width int) int {
	switch t {
	case Float32:
		return 4
	case Float64, Int64:
		return 8
	case Uint16:
		return 2
	case String:
		return width
	}
	return 0
}

// ParseElementType accepts the names returned by String plus the short
// forms f32, f64, u16 and i64.
func ParseElementType(s string) (ElementType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "float32", "f32":
		return Float32, nil
	case "float64", "f64":
		return Float64, nil
	case "uint16", "u16":
		return Uint16, nil
	case "int64", "i64":
		return Int64, nil
	case "string", "str":
		return String, nil
	}
	return Invalid, errkind.Errorf(errkind.TypeError, "parse element type", "", "unknown element type %q", s)
}

// Descriptor is the shape and type of one array, as described by its
// container just before it is transcoded.
type Descriptor struct {
	Path    string
	Type    ElementType
	Width   int // bytes per element for String, 0 otherwise
	Extents []uint64
}

// NewDescriptor builds a validated descriptor. The extents are copied.
func NewDescriptor(path string, typ ElementType, width int, extents []uint64) (Descriptor, error) {
	d := Descriptor{
		Path:    path,
		Type:    typ,
		Width:   width,
		Extents: append([]uint64(nil), extents...),
	}
	if err := d.Validate(); err != nil {
		return Descriptor{}, err
	}
	return d, nil
}

// Validate checks the rank, extents and type.
func (d Descriptor) Validate() error {
	const op = "describe"
	if !d.Type.Valid() {
		return errkind.Errorf(errkind.TypeError, op, d.Path, "unsupported element type %s", d.Type)
	}
	if d.Type == String && d.Width <= 0 {
		return errkind.Errorf(errkind.TypeError, op, d.Path, "string width %d", d.Width)
	}
	if d.Type != String && d.Width != 0 {
		return errkind.Errorf(errkind.TypeError, op, d.Path, "width %d on %s", d.Width, d.Type)
	}
	if len(d.Extents) == 0 || len(d.Extents) > MaxRank {
		return errkind.Errorf(errkind.ShapeError, op, d.Path, "rank %d outside 1..%d", len(d.Extents), MaxRank)
	}
	for i, e := range d.Extents {
		if e == 0 {
			return errkind.Errorf(errkind.ShapeError, op, d.Path, "dimension %d is zero-sized", i)
		}
	}
	return nil
}

// Rank returns the number of dimensions.
func (d Descriptor) Rank() int { return len(d.Extents) }

// NumElements returns the product of the extents.
func (d Descriptor) NumElements() uint64 {
	n := uint64(1)
	for _, e := range d.Extents {
		n *= e
	}
	return n
}

// Shape returns a copy of the extents.
func (d Descriptor) Shape() []uint64 {
	return append([]uint64(nil), d.Extents...)
}

// RowElements returns the number of elements in one step of the first
// dimension.
func (d Descriptor) RowElements() uint64 {
	n := uint64(1)
	for _, e := range d.Extents[1:] {
		n *= e
	}
	return n
}

// Select narrows the first dimension to rows. The zero Rows selects
// everything.
func (d Descriptor) Select(rows Rows) (Descriptor, error) {
	if rows.All() {
		return d, nil
	}
	if rows.Count == 0 || rows.Start+rows.Count > d.Extents[0] {
		return Descriptor{}, errkind.Errorf(errkind.ShapeError, "select", d.Path,
			"rows [%d, %d) outside extent %d", rows.Start, rows.Start+rows.Count, d.Extents[0])
	}
	out := d
	out.Extents = d.Shape()
	out.Extents[0] = rows.Count
	return out, nil
}

func (d Descriptor) String() string {
	dims := make([]string, len(d.Extents))
	for i, e := range d.Extents {
		dims[i] = fmt.Sprint(e)
	}
	t := d.Type.String()
	if d.Type == String {
		t = fmt.Sprintf("string[%d]", d.Width)
	}
	return fmt.Sprintf("%s %s[%s]", d.Path, t, strings.Join(dims, "x"))
}

// Rows is a contiguous range of the first dimension. The zero value means
// the full extent.
type Rows struct {
	Start uint64
	Count uint64
}

// All reports whether r selects the full extent.
func (r Rows) All() bool { return r == Rows{} }

// End returns the index one past the last selected row.
func (r Rows) End() uint64 { return r.Start + r.Count }
