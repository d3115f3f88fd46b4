// Package transcode copies an N-dimensional array from a source container
// into a destination group, optionally unpacking it to physical units.
//
// A transcode opens the source array, reads it in one full-extent read,
// converts or unpacks it into an output buffer and writes that buffer once
// into a freshly created array. Every buffer and handle acquired on the way
// is released before Transcode returns, on success and on failure, and a
// failed transcode leaves nothing behind in the destination.
package transcode

import (
	"context"
	"io"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"

	"github.com/richielo/basicFusion/dataset"
	"github.com/richielo/basicFusion/errkind"
	"github.com/richielo/basicFusion/unpack"
)

// Transcoder holds the collaborators shared by many transcodes. The zero
// value allocates from the heap and does not log or record metrics.
type Transcoder struct {
	Alloc   dataset.Allocator
	Log     logrus.FieldLogger
	Metrics Recorder
	Workers int // unpack parallelism, 0 means GOMAXPROCS
}

var defaultTranscoder = &Transcoder{}

// Transcode runs a transcode with the default Transcoder.
func Transcode(ctx context.Context, src Source, srcPath string, dest Destination, destName string,
	outType dataset.ElementType, applyUnpack bool, params unpack.Params, opts ...Option) (Array, error) {
	return defaultTranscoder.Transcode(ctx, src, srcPath, dest, destName, outType, applyUnpack, params, opts...)
}

// Transcode copies the array at srcPath in src to destName in dest, stored
// as outType. With applyUnpack each element goes through the unpack
// transform and outType must be a float type; otherwise elements are only
// widened (see dataset.CanConvert). The new array has the source's rank and
// extents, narrowed by WithRows if given.
func (t *Transcoder) Transcode(ctx context.Context, src Source, srcPath string, dest Destination, destName string,
	outType dataset.ElementType, applyUnpack bool, params unpack.Params, opts ...Option) (Array, error) {
	start := time.Now()
	log := t.logger().WithFields(logrus.Fields{
		"src":    srcPath,
		"dest":   destName,
		"type":   outType.String(),
		"unpack": applyUnpack,
	})

	r := run{Transcoder: t, o: newOptions(opts)}
	arr, err := r.do(ctx, src, srcPath, dest, destName, outType, applyUnpack, params)
	elapsed := time.Since(start)
	if t.Metrics != nil {
		t.Metrics.RecordTranscode(elapsed, r.bytes, err)
	}
	if err != nil {
		log.WithError(err).WithField("duration", elapsed).Warn("Transcode failed")
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"elements": r.desc.NumElements(),
		"duration": elapsed,
	}).Debug("Transcoded array")
	return arr, nil
}

func (t *Transcoder) logger() logrus.FieldLogger {
	if t.Log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		return l
	}
	return t.Log
}

func (t *Transcoder) allocator() dataset.Allocator {
	if t.Alloc == nil {
		return dataset.Heap{}
	}
	return t.Alloc
}

// run carries the state of one transcode.
type run struct {
	*Transcoder
	o     *options
	desc  dataset.Descriptor
	bytes int
}

type attr struct {
	name  string
	value any
}

func (r *run) do(ctx context.Context, src Source, srcPath string, dest Destination, destName string,
	outType dataset.ElementType, applyUnpack bool, params unpack.Params) (Array, error) {
	const op = "transcode"
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if applyUnpack {
		if err := params.Validate(); err != nil {
			return nil, err
		}
		if !outType.IsFloat() {
			return nil, errkind.Errorf(errkind.TypeError, op, srcPath, "unpacking into %s", outType)
		}
	}

	// open
	sa, err := src.Open(srcPath)
	if err != nil {
		return nil, errkind.Classify(err, errkind.NotFound, op, srcPath)
	}
	defer sa.Close()

	r.desc, err = sa.Descriptor().Select(r.o.rows)
	if err != nil {
		return nil, err
	}
	if !applyUnpack && !dataset.CanConvert(r.desc.Type, outType) {
		return nil, errkind.Errorf(errkind.TypeError, op, srcPath, "cannot store %s as %s", r.desc.Type, outType)
	}
	outDesc := r.desc
	outDesc.Path = destName
	outDesc.Type = outType
	if outType != dataset.String {
		outDesc.Width = 0
	}

	// read
	alloc := r.allocator()
	in, err := dataset.ForDescriptor(alloc, r.desc)
	if err != nil {
		return nil, errkind.Classify(err, errkind.IOError, op, srcPath)
	}
	defer alloc.Release(in)
	if err := sa.ReadInto(in, r.o.rows); err != nil {
		return nil, errkind.Classify(err, errkind.IOError, op, srcPath)
	}

	// unpack or convert
	out := in
	if applyUnpack || outType != r.desc.Type {
		out, err = dataset.ForDescriptor(alloc, outDesc)
		if err != nil {
			return nil, errkind.Classify(err, errkind.IOError, op, srcPath)
		}
		defer alloc.Release(out)
		if applyUnpack {
			err = unpack.Apply(ctx, in, out, params, r.Workers)
		} else {
			err = dataset.Convert(in, out)
		}
		if err != nil {
			return nil, err
		}
	}
	attrs := r.o.staticAttrs()
	attrs = append(attrs, derivedAttrs(out, applyUnpack, params, r.o.stats)...)

	// write
	w, err := dest.CreateArray(destName, outDesc)
	if err != nil {
		return nil, err
	}
	defer w.Close()
	if err := w.Write(out); err != nil {
		return nil, errkind.Classify(err, errkind.IOError, op, destName)
	}
	for _, a := range attrs {
		if err := w.SetAttr(a.name, a.value); err != nil {
			return nil, errkind.Classify(err, errkind.TypeError, op, destName)
		}
	}
	arr, err := w.Commit()
	if err != nil {
		return nil, errkind.Classify(err, errkind.IOError, op, destName)
	}
	r.bytes = out.Bytes()
	return arr, nil
}

// derivedAttrs describes how out was produced.
func derivedAttrs(out dataset.Buffer, unpacked bool, p unpack.Params, stats bool) []attr {
	var attrs []attr
	if unpacked {
		attrs = append(attrs, attr{"scale_factor", p.Scale})
		if out.Type() == dataset.Float32 {
			attrs = append(attrs, attr{"_FillValue", float32(p.Missing)})
		} else {
			attrs = append(attrs, attr{"_FillValue", p.Missing})
		}
	}
	if !stats || out.Type() == dataset.String {
		return attrs
	}
	vals, err := dataset.Floats(out)
	if err != nil {
		return attrs
	}
	valid := vals[:0]
	for _, v := range vals {
		if math.IsNaN(v) || (unpacked && v == missingAs(out.Type(), p.Missing)) {
			continue
		}
		valid = append(valid, v)
	}
	if len(valid) == 0 {
		return attrs
	}
	return append(attrs,
		attr{"valid_min", floats.Min(valid)},
		attr{"valid_max", floats.Max(valid)})
}

// missingAs is the missing value as it reads back from a buffer of type t.
func missingAs(t dataset.ElementType, m float64) float64 {
	if t == dataset.Float32 {
		return float64(float32(m))
	}
	return m
}
