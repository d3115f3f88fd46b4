package transcode_test

import (
	"context"
	"fmt"
	"math"
	"path/filepath"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/richielo/basicFusion/dataset"
	"github.com/richielo/basicFusion/hierarchy"
	"github.com/richielo/basicFusion/source"
	"github.com/richielo/basicFusion/transcode"
	"github.com/richielo/basicFusion/unpack"
)

func fill(typ dataset.ElementType, n int) dataset.Buffer {
	switch typ {
	case dataset.Float32:
		b := make(dataset.Float32s, n)
		for i := range b {
			b[i] = float32(i)*1.25 - 3
		}
		return b
	case dataset.Float64:
		b := make(dataset.Float64s, n)
		for i := range b {
			b[i] = math.Pi * float64(i)
		}
		return b
	case dataset.Uint16:
		b := make(dataset.Uint16s, n)
		for i := range b {
			b[i] = uint16(i * 997)
		}
		return b
	case dataset.Int64:
		b := make(dataset.Int64s, n)
		for i := range b {
			b[i] = int64(i-n/2) << 33
		}
		return b
	}
	b := &dataset.Strings{Width: 6, Values: make([]string, n)}
	for i := range b.Values {
		b.Values[i] = fmt.Sprintf("g%d", i)
	}
	return b
}

func readBack(t *testing.T, path, array string) dataset.Buffer {
	t.Helper()
	src, err := source.Open(path)
	require.NoError(t, err)
	defer src.Close()
	a, err := src.Open(array)
	require.NoError(t, err)
	defer a.Close()
	buf, err := dataset.ForDescriptor(dataset.Heap{}, a.Descriptor())
	require.NoError(t, err)
	require.NoError(t, a.ReadInto(buf, dataset.Rows{}))
	return buf
}

// Arrays of every type and rank survive a transcode into an HDF5 file
// unchanged.
func TestRoundTripIdentity(t *testing.T) {
	logger, _ := test.NewNullLogger()
	out := filepath.Join(t.TempDir(), "out.h5")
	b, err := hierarchy.Create(out, logger)
	require.NoError(t, err)

	mem := source.NewMemory("granule")
	extents := []uint64{3, 2, 2, 1, 2}
	want := map[string]dataset.Buffer{}
	shapes := map[string][]uint64{}
	for _, typ := range []dataset.ElementType{dataset.Float32, dataset.Float64, dataset.Uint16, dataset.Int64, dataset.String} {
		for rank := 1; rank <= dataset.MaxRank; rank++ {
			ext := extents[:rank]
			n := 1
			for _, e := range ext {
				n *= int(e)
			}
			name := fmt.Sprintf("%s_rank%d", typ, rank)
			buf := fill(typ, n)
			require.NoError(t, mem.Put(name, buf, ext...))
			want[name] = buf
			shapes[name] = ext
		}
	}

	tr := &transcode.Transcoder{Log: logger}
	for name, buf := range want {
		_, err := tr.Transcode(context.Background(), mem, name, b.Root(), name, buf.Type(), false, unpack.Params{})
		require.NoError(t, err, name)
	}
	require.NoError(t, b.Close())

	src, err := source.Open(out)
	require.NoError(t, err)
	defer src.Close()
	for name, buf := range want {
		a, err := src.Open("/" + name)
		require.NoError(t, err, name)
		assert.Equal(t, shapes[name], a.Descriptor().Extents, name)
		require.NoError(t, a.Close())
		assert.Equal(t, buf, readBack(t, out, "/"+name), name)
	}
}

func TestRoundTripSubsetAndUnpack(t *testing.T) {
	logger, _ := test.NewNullLogger()
	out := filepath.Join(t.TempDir(), "out.h5")
	b, err := hierarchy.Create(out, logger)
	require.NoError(t, err)
	g, err := b.EnsureGroup(b.Root(), "MOPITT/granule1/Data Fields")
	require.NoError(t, err)

	mem := source.NewMemory("MOP01.he5")
	require.NoError(t, mem.Put("/HDFEOS/Counts", dataset.Uint16s{1, 2, 3, 4, 65535, 6, 7, 8}, 4, 2))

	arr, err := transcode.Transcode(context.Background(), mem, "/HDFEOS/Counts", g, "Radiance", dataset.Float32, true,
		unpack.New(0.5).WithFill(65535), transcode.WithRows(dataset.Rows{Start: 1, Count: 3}), transcode.WithStats())
	require.NoError(t, err)
	assert.Equal(t, "/MOPITT/granule1/Data Fields/Radiance", arr.Path())
	require.NoError(t, b.Close())

	got := readBack(t, out, "/MOPITT/granule1/Data Fields/Radiance")
	assert.Equal(t, dataset.Float32s{1.5, 2, -999, 3, 3.5, 4}, got)

	src, err := source.Open(out)
	require.NoError(t, err)
	defer src.Close()
	for name, want := range map[string]any{"scale_factor": 0.5, "_FillValue": -999.0, "valid_min": 1.5, "valid_max": 4.0} {
		v, err := src.Attr("/MOPITT/granule1/Data Fields/Radiance", name)
		require.NoError(t, err, name)
		assert.Equal(t, want, v, name)
	}
}

// Any packed value list unpacks to value*scale except the fill.
func TestRoundTripUnpackProperty(t *testing.T) {
	properties := gopter.NewProperties(gopter.DefaultTestParameters())
	ctx := context.Background()

	properties.Property("unpacked output matches Value", prop.ForAll(
		func(raw []uint16, scale float64) bool {
			if len(raw) == 0 {
				return true
			}
			mem := source.NewMemory("p")
			if mem.Put("/v", dataset.Uint16s(raw), uint64(len(raw))) != nil {
				return false
			}
			dest := &memDest{}
			p := unpack.New(scale).WithFill(0)
			if _, err := transcode.Transcode(ctx, mem, "/v", dest, "v", dataset.Float64, true, p); err != nil {
				return false
			}
			out := dest.buf.(dataset.Float64s)
			for i, r := range raw {
				if out[i] != unpack.Value(float64(r), p) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.UInt16()),
		gen.Float64Range(1e-4, 1e4),
	))

	properties.TestingRun(t)
}

// memDest keeps the last committed buffer.
type memDest struct{ buf dataset.Buffer }

func (d *memDest) CreateArray(name string, desc dataset.Descriptor) (transcode.ArrayWriter, error) {
	return &memWriter{d: d}, nil
}

type memWriter struct {
	d   *memDest
	buf dataset.Buffer
}

func (w *memWriter) Write(buf dataset.Buffer) error { w.buf = buf; return nil }
func (w *memWriter) SetAttr(string, any) error      { return nil }
func (w *memWriter) Close() error                   { return nil }
func (w *memWriter) Commit() (transcode.Array, error) {
	cp, _ := dataset.New(w.buf.Type(), w.buf.Len(), 0)
	if err := dataset.Convert(w.buf, cp); err != nil {
		return nil, err
	}
	w.d.buf = cp
	return nil, nil
}
