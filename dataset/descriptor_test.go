package dataset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richielo/basicFusion/errkind"
)

func TestNewDescriptor(t *testing.T) {
	tests := []struct {
		name    string
		typ     ElementType
		width   int
		extents []uint64
		kind    errkind.Kind
	}{
		{name: "rank1", typ: Float32, extents: []uint64{3}},
		{name: "rank5", typ: Uint16, extents: []uint64{1, 2, 3, 4, 5}},
		{name: "string", typ: String, width: 8, extents: []uint64{2}},
		{name: "rank0", typ: Float32, kind: errkind.ShapeError},
		{name: "rank6", typ: Float64, extents: []uint64{1, 1, 1, 1, 1, 1}, kind: errkind.ShapeError},
		{name: "zero extent", typ: Int64, extents: []uint64{4, 0}, kind: errkind.ShapeError},
		{name: "bad type", typ: ElementType(42), extents: []uint64{1}, kind: errkind.TypeError},
		{name: "string no width", typ: String, extents: []uint64{1}, kind: errkind.TypeError},
		{name: "numeric width", typ: Int64, width: 3, extents: []uint64{1}, kind: errkind.TypeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewDescriptor("/x", tt.typ, tt.width, tt.extents)
			if tt.kind != errkind.Other {
				assert.ErrorIs(t, err, tt.kind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.extents), d.Rank())
		})
	}
}

func TestDescriptorShapeIsCopy(t *testing.T) {
	ext := []uint64{2, 3, 4}
	d, err := NewDescriptor("/grid", Float64, 0, ext)
	require.NoError(t, err)
	ext[0] = 99
	assert.Equal(t, uint64(24), d.NumElements())
	assert.Equal(t, uint64(12), d.RowElements())

	s := d.Shape()
	s[1] = 7
	assert.Equal(t, []uint64{2, 3, 4}, d.Extents)
	assert.Equal(t, "/grid float64[2x3x4]", d.String())
}

func TestSelect(t *testing.T) {
	d, err := NewDescriptor("/t", Float64, 0, []uint64{10, 2})
	require.NoError(t, err)

	all, err := d.Select(Rows{})
	require.NoError(t, err)
	assert.Equal(t, d, all)

	sub, err := d.Select(Rows{Start: 3, Count: 4})
	require.NoError(t, err)
	assert.Equal(t, []uint64{4, 2}, sub.Extents)
	assert.Equal(t, []uint64{10, 2}, d.Extents, "original untouched")

	_, err = d.Select(Rows{Start: 8, Count: 3})
	assert.ErrorIs(t, err, errkind.ShapeError)
	_, err = d.Select(Rows{Start: 2})
	assert.ErrorIs(t, err, errkind.ShapeError)
}

func TestParseElementType(t *testing.T) {
	for s, want := range map[string]ElementType{
		"float32": Float32, "F64": Float64, "u16": Uint16, " int64 ": Int64, "string": String,
	} {
		got, err := ParseElementType(s)
		require.NoError(t, err, s)
		assert.Equal(t, want, got, s)
	}
	_, err := ParseElementType("complex128")
	assert.ErrorIs(t, err, errkind.TypeError)
}
