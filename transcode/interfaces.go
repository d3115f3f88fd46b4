package transcode

import (
	"time"

	"github.com/richielo/basicFusion/dataset"
)

// Source is a container that arrays are read from.
type Source interface {
	// Open fails with errkind.NotFound when path is not an array.
	Open(path string) (SourceArray, error)
	// Attr returns the value of attribute name on the object at path.
	Attr(path, name string) (any, error)
}

// SourceArray is one open array of a Source.
type SourceArray interface {
	Descriptor() dataset.Descriptor
	// ReadInto fills buf with the selected rows. buf must have the
	// descriptor's element type and exactly the selected element count.
	ReadInto(buf dataset.Buffer, rows dataset.Rows) error
	Close() error
}

// Destination is a group new arrays are created in.
type Destination interface {
	// CreateArray fails with errkind.AlreadyExists when name is taken.
	CreateArray(name string, desc dataset.Descriptor) (ArrayWriter, error)
}

// ArrayWriter stages one array. Nothing is visible in the destination
// until Commit succeeds; closing an uncommitted writer discards it.
type ArrayWriter interface {
	Write(buf dataset.Buffer) error
	// SetAttr stages an attribute written together with the array.
	SetAttr(name string, value any) error
	Commit() (Array, error)
	Close() error
}

// Array is a committed destination array.
type Array interface {
	Path() string
	SetAttr(name string, value any) error
	Close() error
}

// Recorder receives one observation per transcode. *metrics.Registry
// implements it.
type Recorder interface {
	RecordTranscode(d time.Duration, bytes int, err error)
}
