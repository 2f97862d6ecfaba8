// Package errs carries the error taxonomy shared by the stores: every
// failure surfaced to a caller is one of a small set of kinds, tagged with
// the operation that produced it.
package errs

import (
	"errors"
	"fmt"
)

// Error kinds. Match them with errors.Is.
var (
	// ErrValidation marks malformed input: out-of-range score, empty identity or text.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks an unknown category, collection or submission.
	ErrNotFound = errors.New("not found")
	// ErrStorage marks a durable write or read that did not complete. Prior
	// committed state is intact.
	ErrStorage = errors.New("storage failure")
	// ErrCancelled marks a mutation abandoned before commit; nothing was written.
	ErrCancelled = errors.New("mutation cancelled")
	// ErrUnavailable marks a component that is not running.
	ErrUnavailable = errors.New("unavailable")
)

// Error is an operation-scoped failure of a given kind.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Err != nil && e.Kind != nil:
		return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
}

// Unwrap exposes both the kind and the cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// New returns an error of kind for op.
func New(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// Newf returns an error of kind for op with a formatted detail.
func Newf(op string, kind error, format string, args ...any) error {
	return &Error{Op: op, Kind: kind, Err: fmt.Errorf(format, args...)}
}

// Wrap tags err with op, keeping whatever kind err already carries. An
// error already tagged with op is returned as is.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) && e.Op == op {
		return err
	}
	return &Error{Op: op, Err: err}
}

// WrapKind tags err with op and kind.
func WrapKind(op string, kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// KindOf returns the taxonomy kind carried by err, or nil if none.
func KindOf(err error) error {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrStorage, ErrCancelled, ErrUnavailable} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
