// Package repack drives a whole repackaging run: it opens every granule a
// plan names, places it under its instrument in a fresh output file and
// records what went in.
package repack

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"os"
	"path"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/richielo/basicFusion/config"
	"github.com/richielo/basicFusion/dataset"
	"github.com/richielo/basicFusion/errkind"
	"github.com/richielo/basicFusion/granule"
	"github.com/richielo/basicFusion/hierarchy"
	"github.com/richielo/basicFusion/metrics"
	"github.com/richielo/basicFusion/orbit"
	"github.com/richielo/basicFusion/source"
	"github.com/richielo/basicFusion/transcode"
	"github.com/richielo/basicFusion/unpack"
)

// Root and granule group attribute names.
const (
	AttrInputGranules = "Input Granules"
	AttrRunID         = "Run ID"
	AttrOrbitNumber   = "Orbit Number"
	AttrOrbitStart    = "Orbit Start"
	AttrOrbitEnd      = "Orbit End"

	AttrGranuleName   = "GranuleName"
	AttrGranuleFormat = "GranuleFormat"
	AttrGranuleHash   = "GranuleBLAKE3"
	AttrOrbitRecords  = "Orbit Records"
	AttrRepackError   = "Repack Error"
)

// Options are the collaborators of a run. The zero value is usable.
type Options struct {
	Log     logrus.FieldLogger
	Metrics *metrics.Registry
	Alloc   dataset.Allocator
	// RunID is stamped on the output; a random one is drawn when zero.
	RunID uuid.UUID
}

// Result summarizes a finished run.
type Result struct {
	Output   string
	RunID    uuid.UUID
	Orbit    *orbit.Record
	Granules []string
	Arrays   int
	Skipped  []string
}

// run is the state owned by one Run call. Nothing outlives it.
type run struct {
	plan   *config.Plan
	opts   Options
	log    logrus.FieldLogger
	b      *hierarchy.Builder
	tc     *transcode.Transcoder
	window *orbit.Window
	acc    granule.Accumulator
	res    *Result
}

// Run executes plan. With fail_fast set, the first failing granule aborts
// the run and the partial output is removed. Otherwise the failure is
// recorded on the granule's group and the run goes on.
func Run(ctx context.Context, plan *config.Plan, opts Options) (*Result, error) {
	if err := plan.Validate(); err != nil {
		return nil, errkind.E(errkind.InvalidConfig, "run", plan.Output, err)
	}
	if opts.RunID == uuid.Nil {
		opts.RunID = uuid.New()
	}
	log := opts.Log
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	log = log.WithFields(logrus.Fields{"run": opts.RunID.String(), "output": plan.Output})

	r := &run{
		plan: plan,
		opts: opts,
		log:  log,
		tc:   &transcode.Transcoder{Alloc: opts.Alloc, Log: log, Workers: plan.Workers},
		res:  &Result{Output: plan.Output, RunID: opts.RunID},
	}
	if opts.Metrics != nil {
		r.tc.Metrics = opts.Metrics
	}

	err := r.execute(ctx)
	if opts.Metrics != nil {
		var number uint32
		if r.res.Orbit != nil {
			number = r.res.Orbit.Number
		}
		opts.Metrics.RecordRun(number, err)
	}
	if err != nil {
		log.WithError(err).Error("Repackaging failed")
		return nil, err
	}
	log.WithFields(logrus.Fields{
		"granules": len(r.res.Granules),
		"arrays":   r.res.Arrays,
		"skipped":  len(r.res.Skipped),
	}).Info("Repackaging done")
	return r.res, nil
}

func (r *run) execute(ctx context.Context) (err error) {
	if err := r.loadOrbit(); err != nil {
		return err
	}
	if r.b, err = hierarchy.Create(r.plan.Output, r.log); err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = r.b.Abort()
			return
		}
		err = r.b.Close()
	}()

	for _, in := range r.plan.Instruments {
		if err := r.instrument(ctx, in); err != nil {
			return err
		}
	}
	return r.finish()
}

func (r *run) loadOrbit() error {
	o := r.plan.Orbit
	if o.Table == "" {
		return nil
	}
	f, err := os.Open(o.Table)
	if err != nil {
		return errkind.E(errkind.NotFound, "open orbit table", o.Table, err)
	}
	defer f.Close()
	table, err := orbit.ReadTable(f)
	if err != nil {
		return err
	}
	rec, err := table.Lookup(o.Number)
	if err != nil {
		return err
	}
	epoch := orbit.TAI93
	if o.Epoch != "" {
		if epoch, err = orbit.ParseEpoch(o.Epoch); err != nil {
			return err
		}
	}
	w, err := rec.Window(epoch)
	if err != nil {
		return err
	}
	r.window = &w
	r.res.Orbit = &rec
	r.log.WithField("orbit", rec.String()).Info("Subsetting to orbit")
	return nil
}

func (r *run) instrument(ctx context.Context, in config.Instrument) error {
	log := r.log.WithField("instrument", in.Name)
	if len(in.Granules) == 0 {
		log.Info("No granules, instrument is N/A")
		return nil
	}
	g, err := r.b.CreateGroup(r.b.Root(), in.Name)
	if err != nil {
		return err
	}
	for _, name := range slices.Sorted(maps.Keys(in.Attrs)) {
		if err := g.SetAttr(name, in.Attrs[name]); err != nil {
			return err
		}
	}

	for i, p := range in.Granules {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := r.granule(ctx, in, g, i, p)
		if r.opts.Metrics != nil {
			r.opts.Metrics.RecordGranule(in.Name, err)
		}
		if err == nil {
			continue
		}
		if r.plan.FailFast || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		log.WithError(err).WithField("granule", p).Warn("Skipping granule")
		r.res.Skipped = append(r.res.Skipped, p)
	}
	return nil
}

func (r *run) granule(ctx context.Context, in config.Instrument, parent *hierarchy.Group, i int, p string) error {
	name, err := granule.Name(p)
	if err != nil {
		return err
	}
	if err := r.acc.Append(name); err != nil {
		return err
	}
	r.res.Granules = append(r.res.Granules, name)
	log := r.log.WithFields(logrus.Fields{"instrument": in.Name, "granule": name})

	src, err := source.Open(p)
	if err != nil {
		return err
	}
	defer src.Close()

	var (
		rows dataset.Rows
		rng  orbit.Range
	)
	subset := r.window != nil && in.TimeField != ""
	if subset {
		var ok bool
		if rng, ok, err = orbit.Resolve(src, in.TimeField, *r.window); err != nil {
			return err
		}
		if !ok {
			log.Warn("Granule has no records in the orbit window")
			return nil
		}
		rows = rng.Rows()
		log.WithFields(logrus.Fields{"start": rng.Start, "end": rng.End}).Debug("Resolved orbit records")
	}

	g, err := r.b.CreateGroup(parent, in.GroupName(i))
	if err != nil {
		return err
	}
	hash, err := granule.FingerprintFile(p)
	if err != nil {
		return err
	}
	attrs := map[string]any{
		AttrGranuleName:   name,
		AttrGranuleFormat: string(src.Format()),
		AttrGranuleHash:   hash,
	}
	if subset {
		attrs[AttrOrbitRecords] = []int64{int64(rng.Start), int64(rng.End)}
	}
	for _, a := range in.CopyAttrs {
		v, err := src.Attr("/", a)
		if err != nil {
			return err
		}
		attrs[a] = v
	}
	for _, k := range slices.Sorted(maps.Keys(attrs)) {
		if err := g.SetAttr(k, attrs[k]); err != nil {
			return err
		}
	}

	for _, f := range in.Fields {
		fr := rows
		if f.Whole {
			fr = dataset.Rows{}
		}
		if err := r.field(ctx, src, g, f, fr); err != nil {
			// Best effort: the group stays, marked with what went wrong.
			_ = g.SetAttr(AttrRepackError, err.Error())
			return err
		}
	}
	log.WithField("fields", len(in.Fields)).Info("Granule repackaged")
	return nil
}

func (r *run) field(ctx context.Context, src transcode.Source, g *hierarchy.Group, f config.Field, rows dataset.Rows) error {
	const op = "repack field"
	dest := g
	dir, base := path.Split(strings.Trim(f.Dest, "/"))
	if dir != "" {
		var err error
		if dest, err = r.b.EnsureGroup(g, dir); err != nil {
			return err
		}
	}

	applyUnpack := r.plan.Unpack && f.Packed()
	var params unpack.Params
	if applyUnpack {
		var scale float64
		if f.Scale != nil {
			scale = *f.Scale
		}
		if f.ScaleAttr != "" {
			v, err := src.Attr(f.Src, f.ScaleAttr)
			if err != nil {
				return err
			}
			if scale, err = scalar(v); err != nil {
				return errkind.E(errkind.InvalidConfig, op, f.Src+"@"+f.ScaleAttr, err)
			}
		}
		params = unpack.New(scale)
		if f.Fill != nil {
			params = params.WithFill(*f.Fill)
		}
	}

	outType, err := f.ElementType()
	if err != nil {
		return err
	}
	if outType == dataset.Invalid {
		if outType, err = r.defaultType(src, f.Src, applyUnpack); err != nil {
			return err
		}
	}

	opts := []transcode.Option{transcode.WithRows(rows)}
	if f.Stats {
		opts = append(opts, transcode.WithStats())
	}
	attrs := make(map[string]any, len(f.Attrs)+len(f.CopyAttrs))
	for _, a := range f.CopyAttrs {
		v, err := src.Attr(f.Src, a)
		if err != nil {
			return err
		}
		attrs[a] = v
	}
	for k, v := range f.Attrs {
		attrs[k] = v
	}
	if len(attrs) > 0 {
		opts = append(opts, transcode.WithAttrs(attrs))
	}

	arr, err := r.tc.Transcode(ctx, src, f.Src, dest, base, outType, applyUnpack, params, opts...)
	if err != nil {
		return err
	}
	r.res.Arrays++
	return arr.Close()
}

// defaultType is the output type of a field that does not name one:
// float32 when unpacking, otherwise the source's own type.
func (r *run) defaultType(src transcode.Source, p string, unpacking bool) (dataset.ElementType, error) {
	if unpacking {
		return dataset.Float32, nil
	}
	arr, err := src.Open(p)
	if err != nil {
		return dataset.Invalid, errkind.Classify(err, errkind.NotFound, "repack field", p)
	}
	defer arr.Close()
	return arr.Descriptor().Type, nil
}

func (r *run) finish() error {
	root := r.b.Root()
	if r.acc.Len() > 0 {
		if err := root.SetAttr(AttrInputGranules, r.acc.String()); err != nil {
			return err
		}
	}
	if err := root.SetAttr(AttrRunID, r.opts.RunID.String()); err != nil {
		return err
	}
	if rec := r.res.Orbit; rec != nil {
		if err := root.SetAttr(AttrOrbitNumber, int64(rec.Number)); err != nil {
			return err
		}
		if err := root.SetAttr(AttrOrbitStart, rec.StartTime().Format("2006-01-02T15:04:05Z")); err != nil {
			return err
		}
		if err := root.SetAttr(AttrOrbitEnd, rec.EndTime().Format("2006-01-02T15:04:05Z")); err != nil {
			return err
		}
	}
	return nil
}

// scalar reads a scale factor attribute, which may be stored as a one
// element array.
func scalar(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case int16:
		return float64(x), nil
	case uint16:
		return float64(x), nil
	case []float64:
		if len(x) == 1 {
			return x[0], nil
		}
	case []float32:
		if len(x) == 1 {
			return float64(x[0]), nil
		}
	}
	return 0, fmt.Errorf("scale attribute %v (%T) is not a number", v, v)
}
