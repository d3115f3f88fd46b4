// Package granule records which input files went into an output.
package granule

import (
	"bytes"
	"strings"

	"github.com/richielo/basicFusion/errkind"
)

// Accumulator builds a newline-terminated list of entries. The zero value
// is empty with no storage allocated. An Accumulator is not safe for
// concurrent use.
type Accumulator struct {
	buf []byte
}

// Append adds entry followed by a newline. Entries must be at least two
// bytes long and may not contain NUL or newline characters.
//
// When the entry does not fit, capacity grows to the larger of twice the
// current capacity and the exact size needed.
func (a *Accumulator) Append(entry string) error {
	const op = "append granule"
	if len(entry) < 2 {
		return errkind.Errorf(errkind.InvalidInput, op, entry, "entry %q is shorter than 2 bytes", entry)
	}
	if strings.ContainsAny(entry, "\x00\n") {
		return errkind.Errorf(errkind.InvalidInput, op, entry, "entry contains NUL or newline")
	}

	needed := len(a.buf) + len(entry) + 1
	if needed > cap(a.buf) {
		nb := make([]byte, len(a.buf), max(2*cap(a.buf), needed))
		copy(nb, a.buf)
		a.buf = nb
	}
	a.buf = append(a.buf, entry...)
	a.buf = append(a.buf, '\n')
	return nil
}

// String returns the accumulated text.
func (a *Accumulator) String() string { return string(a.buf) }

// Bytes returns the accumulated text. The slice aliases internal storage
// until the next Append.
func (a *Accumulator) Bytes() []byte { return a.buf }

// Len returns the number of bytes used.
func (a *Accumulator) Len() int { return len(a.buf) }

// Cap returns the number of bytes allocated.
func (a *Accumulator) Cap() int { return cap(a.buf) }

// Entries returns the entries in the order they were appended.
func (a *Accumulator) Entries() []string {
	if len(a.buf) == 0 {
		return nil
	}
	lines := bytes.Split(bytes.TrimSuffix(a.buf, []byte{'\n'}), []byte{'\n'})
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = string(l)
	}
	return out
}

// Reset empties the accumulator and releases its storage.
func (a *Accumulator) Reset() { a.buf = nil }
