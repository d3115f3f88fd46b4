// Package errkind classifies repackaging failures. A *Error carries the
// operation and the path it failed on, and matches its Kind through
// errors.Is, so callers can branch on the class of failure without caring
// which layer produced it.
package errkind

import (
	"errors"
	"fmt"
)

// Kind is a failure class. Kinds are themselves errors, so
// errors.Is(err, errkind.NotFound) works on any wrapped chain.
type Kind uint8

const (
	Other Kind = iota
	NotFound
	AlreadyExists
	ShapeError
	TypeError
	IOError
	InvalidConfig
	InvalidInput
)

var kindNames = [...]string{
	Other:         "other",
	NotFound:      "not found",
	AlreadyExists: "already exists",
	ShapeError:    "shape error",
	TypeError:     "type error",
	IOError:       "I/O error",
	InvalidConfig: "invalid config",
	InvalidInput:  "invalid input",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

func (k Kind) Error() string { return k.String() }

// Label is a metric-friendly form of the kind name.
func (k Kind) Label() string {
	switch k {
	case NotFound:
		return "not_found"
	case AlreadyExists:
		return "already_exists"
	case ShapeError:
		return "shape"
	case TypeError:
		return "type"
	case IOError:
		return "io"
	case InvalidConfig:
		return "config"
	case InvalidInput:
		return "input"
	}
	return "other"
}

// Error is a classified failure.
type Error struct {
	Kind Kind
	Op   string // operation that failed, e.g. "transcode"
	Path string // source or destination path, if any
	Err  error  // underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", msg, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the error's Kind, so errors.Is(err, errkind.ShapeError) holds
// for any *Error of that kind in the chain.
func (e *Error) Is(target error) bool {
	k, ok := target.(Kind)
	return ok && k == e.Kind
}

// E builds a classified error. err may be nil.
func E(kind Kind, op, path string, err error) error {
	return &Error{Kind: kind, Op: op, Path: path, Err: err}
}

// Errorf builds a classified error with a formatted cause.
func Errorf(kind Kind, op, path, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Path: path, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the kind of the outermost *Error in err's chain, or Other
// when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	var k Kind
	if errors.As(err, &k) {
		return k
	}
	return Other
}

// Classify wraps err as kind unless it already carries a classification.
// It returns nil for a nil err.
func Classify(err error, kind Kind, op, path string) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return E(kind, op, path, err)
}
