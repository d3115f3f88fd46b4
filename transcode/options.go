package transcode

import (
	"sort"

	"github.com/richielo/basicFusion/dataset"
)

// Option configures a single transcode.
type Option func(*options)

type options struct {
	rows  dataset.Rows
	stats bool
	attrs map[string]any
}

func newOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithRows transcodes only the given range of the first dimension.
func WithRows(rows dataset.Rows) Option {
	return func(o *options) {
		o.rows = rows
	}
}

// WithStats adds valid_min and valid_max attributes computed over the
// non-missing output values.
func WithStats() Option {
	return func(o *options) {
		o.stats = true
	}
}

// WithAttrs adds static attributes to the new array. Derived attributes of
// the same name take precedence.
func WithAttrs(attrs map[string]any) Option {
	return func(o *options) {
		if o.attrs == nil {
			o.attrs = make(map[string]any, len(attrs))
		}
		for k, v := range attrs {
			o.attrs[k] = v
		}
	}
}

func (o *options) staticAttrs() []attr {
	names := make([]string, 0, len(o.attrs))
	for k := range o.attrs {
		names = append(names, k)
	}
	sort.Strings(names)
	out := make([]attr, len(names))
	for i, k := range names {
		out[i] = attr{k, o.attrs[k]}
	}
	return out
}
