// Where: internal/errs/errs.go
// What: Error kinds surfaced by stages and collaborators.
// Why: Let callers branch on failure category without string matching.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	ConfigInvalid       Kind = "config invalid"
	ExternalUnavailable Kind = "external unavailable"
	BuildFailure        Kind = "build failure"
	PushFailure         Kind = "push failure"
	NotFound            Kind = "not found"
	SchemaValidation    Kind = "schema validation"
)

// Error is a categorized failure with the operation that produced it.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error by kind so errors.Is(err, errs.Of(kind)) works.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Op == "" && other.Err == nil && other.Kind == e.Kind
}

// Of returns a bare sentinel for kind comparisons with errors.Is.
func Of(kind Kind) error {
	return &Error{Kind: kind}
}

// New builds a categorized error from a message.
func New(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// Wrap categorizes err. A nil err stays nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf returns the kind of the outermost categorized error in the chain.
func KindOf(err error) (Kind, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target.Kind, true
	}
	return "", false
}
