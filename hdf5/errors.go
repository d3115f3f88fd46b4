// Package hdf5 is a pure Go reader and writer for HDF5 files. It is the
// destination container of a repackaging run and the reader for HDF5 source
// granules.
package hdf5

import "errors"

// Common errors
var (
	ErrNotHDF5     = errors.New("not an HDF5 file")
	ErrNotFound    = errors.New("object not found")
	ErrExists      = errors.New("object already exists")
	ErrNotDataset  = errors.New("object is not a dataset")
	ErrNotGroup    = errors.New("object is not a group")
	ErrUnsupported = errors.New("unsupported feature")
	ErrInvalidPath = errors.New("invalid path")
	ErrClosed      = errors.New("file is closed")
	ErrReadOnly    = errors.New("file is not writable")
	ErrLinkDepth   = errors.New("maximum link depth exceeded")
	ErrCommitted   = errors.New("dataset writer already finished")
)

// MaxLinkDepth bounds the number of soft/external links followed while
// resolving a single path.
const MaxLinkDepth = 100
