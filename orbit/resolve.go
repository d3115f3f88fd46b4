// Package orbit finds the records of a swath that fall inside an orbit's
// time window, and reads the table of orbit windows.
package orbit

import (
	"math"
	"sort"

	"github.com/richielo/basicFusion/dataset"
	"github.com/richielo/basicFusion/errkind"
	"github.com/richielo/basicFusion/transcode"
)

// Window is an inclusive time range in the source's native unit.
type Window struct {
	Start float64
	End   float64
}

// Validate rejects inverted or NaN windows.
func (w Window) Validate() error {
	if math.IsNaN(w.Start) || math.IsNaN(w.End) || w.Start > w.End {
		return errkind.Errorf(errkind.InvalidConfig, "orbit window", "", "start %v after end %v", w.Start, w.End)
	}
	return nil
}

// Range is an inclusive index range into a time series.
type Range struct {
	Start int
	End   int
}

// Count returns the number of records in r.
func (r Range) Count() int { return r.End - r.Start + 1 }

// Rows converts r to a first-dimension selection.
func (r Range) Rows() dataset.Rows {
	return dataset.Rows{Start: uint64(r.Start), Count: uint64(r.Count())}
}

// Series is a time series prepared for repeated window lookups. Whether it
// is sorted is decided once, when it is built.
type Series struct {
	ts     []float64
	sorted bool
}

// NewSeries wraps ts without copying it.
func NewSeries(ts []float64) Series {
	return Series{ts: ts, sorted: sort.Float64sAreSorted(ts)}
}

func (s Series) Len() int { return len(s.ts) }

// Sorted reports whether the series is non-decreasing.
func (s Series) Sorted() bool { return s.sorted }

// Resolve returns the first index with a time >= w.Start and the last index
// with a time <= w.End. Records sitting exactly on a boundary are included.
// ok is false when no record lies inside the window.
//
// A sorted series is searched in O(log n); anything else falls back to a
// linear scan that reports the smallest and largest qualifying indices.
func (s Series) Resolve(w Window) (r Range, ok bool) {
	ts := s.ts
	if len(ts) == 0 {
		return Range{}, false
	}
	if !s.sorted {
		return scan(ts, w)
	}
	start := sort.Search(len(ts), func(i int) bool { return ts[i] >= w.Start })
	end := sort.Search(len(ts), func(i int) bool { return ts[i] > w.End }) - 1
	if start >= len(ts) || end < 0 || start > end {
		return Range{}, false
	}
	return Range{Start: start, End: end}, true
}

// ResolveRange resolves a single window against ts. Callers resolving more
// than one window against the same series should build a Series once.
func ResolveRange(ts []float64, w Window) (Range, bool) {
	return NewSeries(ts).Resolve(w)
}

func scan(ts []float64, w Window) (Range, bool) {
	r := Range{Start: -1, End: -1}
	for i, t := range ts {
		if t < w.Start || t > w.End {
			continue
		}
		if r.Start < 0 {
			r.Start = i
		}
		r.End = i
	}
	if r.Start < 0 {
		return Range{}, false
	}
	return r, true
}

// Resolve reads the time series at timePath from src and resolves w
// against it. Read failures are errors; a window that matches nothing is
// reported through ok.
func Resolve(src transcode.Source, timePath string, w Window) (r Range, ok bool, err error) {
	if err := w.Validate(); err != nil {
		return Range{}, false, err
	}
	s, err := ReadSeries(src, timePath)
	if err != nil {
		return Range{}, false, err
	}
	r, ok = s.Resolve(w)
	return r, ok, nil
}

// ReadSeries reads the rank-1 float time series at timePath from src.
func ReadSeries(src transcode.Source, timePath string) (Series, error) {
	const op = "read time series"
	arr, err := src.Open(timePath)
	if err != nil {
		return Series{}, err
	}
	defer arr.Close()

	desc := arr.Descriptor()
	if !desc.Type.IsFloat() {
		return Series{}, errkind.Errorf(errkind.TypeError, op, timePath, "time series is %s", desc.Type)
	}
	if desc.Rank() != 1 {
		return Series{}, errkind.Errorf(errkind.ShapeError, op, timePath, "time series has rank %d", desc.Rank())
	}
	buf, err := dataset.New(desc.Type, int(desc.NumElements()), 0)
	if err != nil {
		return Series{}, err
	}
	if err := arr.ReadInto(buf, dataset.Rows{}); err != nil {
		return Series{}, err
	}
	ts, err := dataset.Floats(buf)
	if err != nil {
		return Series{}, err
	}
	return NewSeries(ts), nil
}
