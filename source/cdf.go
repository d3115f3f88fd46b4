package source

import (
	"os"
	"path"
	"strings"

	"github.com/ctessum/cdf"

	"github.com/richielo/basicFusion/dataset"
	"github.com/richielo/basicFusion/errkind"
	"github.com/richielo/basicFusion/transcode"
)

// CDF reads variables from a netCDF classic file. Variable names may
// contain slashes; a path resolves to the variable named by the full path
// without its leading slash, or failing that, by its last element.
type CDF struct {
	path string
	file *os.File
	cf   *cdf.File
	size int64
}

func openCDF(p string) (*CDF, error) {
	const op = "open source"
	f, err := os.Open(p)
	if err != nil {
		return nil, errkind.E(errkind.IOError, op, p, err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, errkind.E(errkind.IOError, op, p, err)
	}
	cf, err := cdf.Open(f)
	if err != nil {
		f.Close()
		return nil, errkind.E(errkind.TypeError, op, p, err)
	}
	return &CDF{path: p, file: f, cf: cf, size: st.Size()}, nil
}

func (c *CDF) Path() string   { return c.path }
func (c *CDF) Format() Format { return FormatNetCDF }
func (c *CDF) Close() error   { return c.file.Close() }

// Variables lists the variable names in the file.
func (c *CDF) Variables() []string { return c.cf.Header.Variables() }

// AttrNames lists the attributes of the variable at p, or the global
// attributes when p is empty or "/".
func (c *CDF) AttrNames(p string) []string {
	if strings.Trim(p, "/") == "" {
		return c.cf.Header.Attributes("")
	}
	v, ok := c.resolve(p)
	if !ok {
		return nil
	}
	return c.cf.Header.Attributes(v)
}

func (c *CDF) resolve(p string) (string, bool) {
	h := c.cf.Header
	full := strings.TrimPrefix(p, "/")
	for _, name := range []string{full, path.Base(full)} {
		if name != "" && h.Lengths(name) != nil {
			return name, true
		}
	}
	return "", false
}

// Open opens the variable at path.
func (c *CDF) Open(p string) (transcode.SourceArray, error) {
	const op = "open array"
	name, ok := c.resolve(p)
	if !ok {
		return nil, errkind.Errorf(errkind.NotFound, op, p, "no variable in %s", c.path)
	}
	h := c.cf.Header
	lengths := append([]int(nil), h.Lengths(name)...)
	if h.IsRecordVariable(name) {
		lengths[0] = int(h.NumRecs(c.size))
	}

	a := &cdfArray{c: c, name: name, lengths: lengths}
	extents := make([]uint64, len(lengths))
	for i, l := range lengths {
		extents[i] = uint64(max(l, 0))
	}

	var (
		typ   dataset.ElementType
		width int
	)
	switch h.ZeroValue(name, 0).(type) {
	case []float32:
		typ = dataset.Float32
	case []float64:
		typ = dataset.Float64
	case []int16:
		typ = dataset.Int64
		if c.unsigned(name) {
			typ = dataset.Uint16
		}
	case []int32, []uint8:
		typ = dataset.Int64
	case string:
		// CHAR: the last dimension is the string width.
		typ = dataset.String
		if len(extents) == 0 {
			return nil, errkind.Errorf(errkind.ShapeError, op, p, "scalar CHAR variable")
		}
		width = int(extents[len(extents)-1])
		extents = extents[:len(extents)-1]
		if len(extents) == 0 {
			extents = []uint64{1}
		}
		a.char = true
	default:
		return nil, errkind.Errorf(errkind.TypeError, op, p, "unsupported variable type")
	}
	desc, err := dataset.NewDescriptor(p, typ, width, extents)
	if err != nil {
		return nil, err
	}
	a.desc = desc
	return a, nil
}

func (c *CDF) unsigned(name string) bool {
	s, ok := c.cf.Header.GetAttribute(name, "_Unsigned").(string)
	return ok && strings.EqualFold(strings.TrimRight(s, "\x00"), "true")
}

// Attr returns a variable attribute, or a global one when path is "/" or
// empty. Single-element values are returned as scalars; integers widen to
// int64 and floats to float64.
func (c *CDF) Attr(p, name string) (any, error) {
	const op = "read attribute"
	v := ""
	if strings.Trim(p, "/") != "" {
		var ok bool
		if v, ok = c.resolve(p); !ok {
			return nil, errkind.Errorf(errkind.NotFound, op, p, "no variable in %s", c.path)
		}
	}
	val := c.cf.Header.GetAttribute(v, name)
	if val == nil {
		return nil, errkind.Errorf(errkind.NotFound, op, p+"@"+name, "no such attribute")
	}
	return normalizeAttr(val), nil
}

func normalizeAttr(val any) any {
	switch v := val.(type) {
	case string:
		return strings.TrimRight(v, "\x00")
	case []uint8:
		return widen(v, func(x uint8) int64 { return int64(int8(x)) })
	case []int16:
		return widen(v, func(x int16) int64 { return int64(x) })
	case []int32:
		return widen(v, func(x int32) int64 { return int64(x) })
	case []float32:
		return widen(v, func(x float32) float64 { return float64(x) })
	case []float64:
		return widen(v, func(x float64) float64 { return x })
	}
	return val
}

func widen[S, T any](in []S, f func(S) T) any {
	if len(in) == 1 {
		return f(in[0])
	}
	out := make([]T, len(in))
	for i, x := range in {
		out[i] = f(x)
	}
	return out
}

type cdfArray struct {
	c       *CDF
	name    string
	lengths []int
	desc    dataset.Descriptor
	char    bool
}

func (a *cdfArray) Descriptor() dataset.Descriptor { return a.desc }

func (a *cdfArray) Close() error { return nil }

func (a *cdfArray) ReadInto(buf dataset.Buffer, rows dataset.Rows) error {
	const op = "read array"
	sel, err := selection(op, a.desc, buf, rows)
	if err != nil {
		return err
	}

	// Corners are inclusive. CHAR variables carry the width dimension
	// after the descriptor's.
	begin := make([]int, len(a.lengths))
	end := make([]int, len(a.lengths))
	for i, l := range a.lengths {
		end[i] = l - 1
	}
	if !rows.All() {
		begin[0] = int(rows.Start)
		end[0] = int(rows.End()) - 1
	}
	r := a.c.cf.Reader(a.name, begin, end)
	if r == nil {
		return errkind.Errorf(errkind.NotFound, op, a.desc.Path, "variable vanished")
	}

	n := int(sel.NumElements())
	switch b := buf.(type) {
	case dataset.Float32s:
		_, err = r.Read([]float32(b))
	case dataset.Float64s:
		_, err = r.Read([]float64(b))
	case dataset.Uint16s:
		tmp := make([]int16, n)
		if _, err = r.Read(tmp); err == nil {
			for i, v := range tmp {
				b[i] = uint16(v)
			}
		}
	case dataset.Int64s:
		err = a.readInts(r, b)
	case *dataset.Strings:
		raw := make([]byte, n*b.Width)
		if _, err = r.Read(raw); err == nil {
			for i := range b.Values {
				b.Values[i] = strings.TrimRight(string(raw[i*b.Width:(i+1)*b.Width]), "\x00")
			}
		}
	}
	if err != nil {
		return errkind.E(errkind.IOError, op, a.desc.Path, err)
	}
	return nil
}

func (a *cdfArray) readInts(r cdf.Reader, dst dataset.Int64s) error {
	unsigned := a.c.unsigned(a.name)
	switch tmp := r.Zero(0).(type) {
	case []uint8:
		tmp = make([]uint8, len(dst))
		if _, err := r.Read(tmp); err != nil {
			return err
		}
		for i, v := range tmp {
			if unsigned {
				dst[i] = int64(v)
			} else {
				dst[i] = int64(int8(v))
			}
		}
	case []int16:
		tmp = make([]int16, len(dst))
		if _, err := r.Read(tmp); err != nil {
			return err
		}
		for i, v := range tmp {
			dst[i] = int64(v)
		}
	case []int32:
		tmp = make([]int32, len(dst))
		if _, err := r.Read(tmp); err != nil {
			return err
		}
		for i, v := range tmp {
			if unsigned {
				dst[i] = int64(uint32(v))
			} else {
				dst[i] = int64(v)
			}
		}
	default:
		return errkind.Errorf(errkind.TypeError, "read array", a.desc.Path, "variable is not integral")
	}
	return nil
}
