package transcode

import (
	"errors"
	"fmt"

	"github.com/richielo/basicFusion/dataset"
	"github.com/richielo/basicFusion/errkind"
)

var errInjected = errors.New("injected")

// stage names a point at which the fakes fail on request.
type stage string

const (
	atOpen     stage = "open"
	atRead     stage = "read"
	atAllocate stage = "allocate"
	atCreate   stage = "create"
	atWrite    stage = "write"
	atAttr     stage = "attr"
	atCommit   stage = "commit"
)

// ledger counts acquisitions and releases across every fake.
type ledger struct {
	fail     stage
	acquired map[string]int
	released map[string]int
}

func newLedger(fail stage) *ledger {
	return &ledger{fail: fail, acquired: map[string]int{}, released: map[string]int{}}
}

func (l *ledger) balanced() bool {
	for k, n := range l.acquired {
		if l.released[k] != n {
			return false
		}
	}
	return true
}

type countingAlloc struct {
	l     *ledger
	live  int
	peak  int
	calls int
}

func (a *countingAlloc) Alloc(t dataset.ElementType, n, width int) (dataset.Buffer, error) {
	a.calls++
	if a.l.fail == atAllocate && a.calls == 2 {
		return nil, errkind.E(errkind.IOError, "allocate", "", errInjected)
	}
	buf, err := dataset.New(t, n, width)
	if err != nil {
		return nil, err
	}
	a.l.acquired["buffer"]++
	a.live++
	a.peak = max(a.peak, a.live)
	return buf, nil
}

func (a *countingAlloc) Release(dataset.Buffer) {
	a.l.released["buffer"]++
	a.live--
}

type fakeSource struct {
	l    *ledger
	desc dataset.Descriptor
	data dataset.Buffer
}

func (s *fakeSource) Open(path string) (SourceArray, error) {
	if s.l.fail == atOpen || path != s.desc.Path {
		return nil, errkind.E(errkind.NotFound, "open", path, nil)
	}
	s.l.acquired["source"]++
	return &fakeArray{s: s}, nil
}

func (s *fakeSource) Attr(path, name string) (any, error) {
	return nil, errkind.E(errkind.NotFound, "attr", path, nil)
}

type fakeArray struct{ s *fakeSource }

func (a *fakeArray) Descriptor() dataset.Descriptor { return a.s.desc }

func (a *fakeArray) ReadInto(buf dataset.Buffer, rows dataset.Rows) error {
	if a.s.l.fail == atRead {
		return errInjected
	}
	if !rows.All() {
		return fmt.Errorf("fake source reads whole arrays only")
	}
	return dataset.Convert(a.s.data, buf)
}

func (a *fakeArray) Close() error {
	a.s.l.released["source"]++
	return nil
}

type fakeDest struct {
	l       *ledger
	visible map[string]dataset.Buffer
	attrs   map[string]map[string]any
}

func newFakeDest(l *ledger) *fakeDest {
	return &fakeDest{l: l, visible: map[string]dataset.Buffer{}, attrs: map[string]map[string]any{}}
}

func (d *fakeDest) CreateArray(name string, desc dataset.Descriptor) (ArrayWriter, error) {
	if d.l.fail == atCreate {
		return nil, errkind.E(errkind.IOError, "create", name, errInjected)
	}
	if _, ok := d.visible[name]; ok {
		return nil, errkind.E(errkind.AlreadyExists, "create", name, nil)
	}
	d.l.acquired["writer"]++
	return &fakeWriter{d: d, name: name, desc: desc, attrs: map[string]any{}}, nil
}

type fakeWriter struct {
	d         *fakeDest
	name      string
	desc      dataset.Descriptor
	buf       dataset.Buffer
	attrs     map[string]any
	committed bool
	closed    bool
}

func (w *fakeWriter) Write(buf dataset.Buffer) error {
	if w.d.l.fail == atWrite {
		return errInjected
	}
	if uint64(buf.Len()) != w.desc.NumElements() || buf.Type() != w.desc.Type {
		return errkind.E(errkind.ShapeError, "write", w.name, nil)
	}
	cp, _ := dataset.New(buf.Type(), buf.Len(), w.desc.Width)
	if err := dataset.Convert(buf, cp); err != nil {
		return err
	}
	w.buf = cp
	return nil
}

func (w *fakeWriter) SetAttr(name string, value any) error {
	if w.d.l.fail == atAttr {
		return errInjected
	}
	w.attrs[name] = value
	return nil
}

func (w *fakeWriter) Commit() (Array, error) {
	if w.d.l.fail == atCommit {
		return nil, errInjected
	}
	w.committed = true
	w.d.visible[w.name] = w.buf
	w.d.attrs[w.name] = w.attrs
	return &fakeDestArray{path: "/" + w.name}, nil
}

func (w *fakeWriter) Close() error {
	if !w.closed {
		w.closed = true
		w.d.l.released["writer"]++
	}
	return nil
}

type fakeDestArray struct{ path string }

func (a *fakeDestArray) Path() string                     { return a.path }
func (a *fakeDestArray) SetAttr(name string, v any) error { return nil }
func (a *fakeDestArray) Close() error                     { return nil }
