package hdf5

import (
	"encoding/binary"

	binpkg "github.com/richielo/basicFusion/internal/binary"
)

// FileOption adjusts the encoding of a file made by Create.
type FileOption func(*binpkg.Config)

func defaultConfig() binpkg.Config {
	return binpkg.Config{ByteOrder: binary.LittleEndian, OffsetSize: 8, LengthSize: 8}
}

// WithOffsetSize sets the width of file addresses. Widths other than 2, 4
// and 8 are ignored.
func WithOffsetSize(n int) FileOption {
	return func(c *binpkg.Config) {
		if validWidth(n) {
			c.OffsetSize = n
		}
	}
}

// WithLengthSize sets the width of length fields, like WithOffsetSize.
func WithLengthSize(n int) FileOption {
	return func(c *binpkg.Config) {
		if validWidth(n) {
			c.LengthSize = n
		}
	}
}

func validWidth(n int) bool { return n == 2 || n == 4 || n == 8 }

// DatasetOption adjusts a dataset before anything is written for it.
type DatasetOption func(*DatasetWriter)

// WithAttribute stages an attribute written with the dataset header. See
// Group.SetAttr for the accepted value types.
func WithAttribute(name string, value interface{}) DatasetOption {
	return func(w *DatasetWriter) {
		w.stage(name, value)
	}
}

type attrDef struct {
	name  string
	value interface{}
}
