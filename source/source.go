// Package source opens instrument files for reading.
//
// Two on-disk layouts are understood: HDF5, where arrays live in nested
// groups, and netCDF classic, where variables form a flat namespace. Both
// present arrays through the transcode.Source interface with slash-delimited
// paths. Memory is an in-process container for tests and dry runs.
package source

import (
	"bytes"
	"errors"
	"io"
	"os"

	"github.com/richielo/basicFusion/dataset"
	"github.com/richielo/basicFusion/errkind"
	"github.com/richielo/basicFusion/transcode"
)

// Format identifies a container backend.
type Format string

const (
	FormatHDF5   Format = "hdf5"
	FormatNetCDF Format = "netcdf"
	FormatMemory Format = "memory"
)

// Container is an open source file.
type Container interface {
	transcode.Source
	Path() string
	Format() Format
	Close() error
}

var (
	hdf5Signature = []byte("\x89HDF\r\n\x1a\n")
	hdf4Signature = []byte("\x0e\x03\x13\x01")
	cdfSignature  = []byte("CDF")
)

// hdf5 allows a user block before the superblock, so the signature may sit
// at any of these offsets.
var hdf5Offsets = []int64{0, 512, 1024, 2048, 4096}

// Open sniffs the file at path and opens it with the matching backend.
func Open(path string) (Container, error) {
	const op = "open source"
	format, err := Sniff(path)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatHDF5:
		return openH5(path)
	case FormatNetCDF:
		return openCDF(path)
	}
	return nil, errkind.Errorf(errkind.TypeError, op, path, "unsupported format %q", format)
}

// Sniff reports the container format of the file at path.
func Sniff(path string) (Format, error) {
	const op = "sniff source"
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", errkind.E(errkind.NotFound, op, path, err)
		}
		return "", errkind.E(errkind.IOError, op, path, err)
	}
	defer f.Close()

	head := make([]byte, 8)
	n, err := f.ReadAt(head, 0)
	if err != nil && err != io.EOF {
		return "", errkind.E(errkind.IOError, op, path, err)
	}
	head = head[:n]

	switch {
	case len(head) >= 4 && (head[3] == 1 || head[3] == 2) && bytes.HasPrefix(head, cdfSignature):
		return FormatNetCDF, nil
	case bytes.HasPrefix(head, hdf4Signature):
		return "", errkind.Errorf(errkind.TypeError, op, path, "HDF4 files must be converted to HDF5 first")
	}
	for _, off := range hdf5Offsets {
		sig := make([]byte, len(hdf5Signature))
		if _, err := f.ReadAt(sig, off); err != nil {
			break
		}
		if bytes.Equal(sig, hdf5Signature) {
			return FormatHDF5, nil
		}
	}
	return "", errkind.Errorf(errkind.TypeError, op, path, "unrecognized file signature % x", head)
}

// selection narrows desc to rows and checks that buf can receive it.
func selection(op string, desc dataset.Descriptor, buf dataset.Buffer, rows dataset.Rows) (dataset.Descriptor, error) {
	sel, err := desc.Select(rows)
	if err != nil {
		return dataset.Descriptor{}, err
	}
	if buf.Type() != desc.Type {
		return dataset.Descriptor{}, errkind.Errorf(errkind.TypeError, op, desc.Path, "%s buffer for %s array", buf.Type(), desc.Type)
	}
	if uint64(buf.Len()) != sel.NumElements() {
		return dataset.Descriptor{}, errkind.Errorf(errkind.ShapeError, op, desc.Path, "buffer of %d elements for %d", buf.Len(), sel.NumElements())
	}
	return sel, nil
}
