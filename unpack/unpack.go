// Package unpack turns packed integer encodings into physical units.
//
// A packed value r with scale s unpacks to float64(r)*s. When a fill value
// is configured, raw values equal to it become the Missing sentinel instead
// of a scaled magnitude.
package unpack

import (
	"context"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/richielo/basicFusion/dataset"
	"github.com/richielo/basicFusion/errkind"
)

// DefaultMissing is written in place of fill values unless Params.Missing
// says otherwise. Unpacked arrays carry it as their _FillValue.
const DefaultMissing = -999.0

// minChunk keeps tiny arrays on one goroutine.
const minChunk = 1 << 14

// Params controls the transform for one array.
type Params struct {
	Scale   float64
	HasFill bool
	Fill    float64 // compared against the raw value, before scaling
	Missing float64
}

// New returns params with the given scale and no fill value.
func New(scale float64) Params {
	return Params{Scale: scale, Missing: DefaultMissing}
}

// WithFill returns a copy of p that maps fill to p.Missing.
func (p Params) WithFill(fill float64) Params {
	p.HasFill = true
	p.Fill = fill
	return p
}

// Validate rejects scales that are not finite and positive.
func (p Params) Validate() error {
	if math.IsNaN(p.Scale) || math.IsInf(p.Scale, 0) || p.Scale <= 0 {
		return errkind.Errorf(errkind.InvalidConfig, "unpack", "", "scale factor %v must be finite and > 0", p.Scale)
	}
	if math.IsNaN(p.Missing) {
		return errkind.Errorf(errkind.InvalidConfig, "unpack", "", "missing value is NaN")
	}
	return nil
}

// Value unpacks a single raw value.
func Value(raw float64, p Params) float64 {
	if p.HasFill && raw == p.Fill {
		return p.Missing
	}
	return raw * p.Scale
}

// Apply unpacks every element of in into out. out must be Float32s or
// Float64s of the same length. Work is split into contiguous chunks run on
// up to workers goroutines; workers <= 0 means GOMAXPROCS.
func Apply(ctx context.Context, in, out dataset.Buffer, p Params, workers int) error {
	const op = "unpack"
	if err := p.Validate(); err != nil {
		return err
	}
	if !out.Type().IsFloat() {
		return errkind.Errorf(errkind.TypeError, op, "", "output type %s is not floating point", out.Type())
	}
	if in.Len() != out.Len() {
		return errkind.Errorf(errkind.ShapeError, op, "", "length %d into %d", in.Len(), out.Len())
	}
	raw, err := rawAccessor(in)
	if err != nil {
		return err
	}
	var set func(i int, v float64)
	switch dst := out.(type) {
	case dataset.Float32s:
		set = func(i int, v float64) { dst[i] = float32(v) }
	case dataset.Float64s:
		set = func(i int, v float64) { dst[i] = v }
	}

	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	n := in.Len()
	chunk := (n + workers - 1) / workers
	if chunk < minChunk {
		chunk = minChunk
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += chunk {
		lo, hi := lo, min(lo+chunk, n)
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := lo; i < hi; i++ {
				set(i, Value(raw(i), p))
			}
			return nil
		})
	}
	return g.Wait()
}

func rawAccessor(in dataset.Buffer) (func(int) float64, error) {
	switch src := in.(type) {
	case dataset.Uint16s:
		return func(i int) float64 { return float64(src[i]) }, nil
	case dataset.Int64s:
		return func(i int) float64 { return float64(src[i]) }, nil
	case dataset.Float32s:
		return func(i int) float64 { return float64(src[i]) }, nil
	case dataset.Float64s:
		return func(i int) float64 { return src[i] }, nil
	}
	return nil, errkind.Errorf(errkind.TypeError, "unpack", "", "cannot unpack %s", in.Type())
}
