package positional

import (
	"fmt"

	grailerrors "github.com/grailbio/base/errors"
)

// ErrKind classifies a pipeline failure. It is distinct from
// github.com/grailbio/base/errors.Kind (which enumerates infra-level
// failure modes like NotExist/Unavailable); ours enumerates the four
// assembly-specific outcomes the outer driver dispatches on.
type ErrKind int

const (
	// ErrKindMalformedInput: evidence missing required fields or out of
	// sort order. Fatal to the current contig's pipeline; in Driver
	// recovery mode, the contig is abandoned and assembly resumes at the
	// next reference index.
	ErrKindMalformedInput ErrKind = iota
	// ErrKindInvariantViolation: a tracker/stage consistency check failed in
	// a debug build (Config.SanityCheckGraph). Fatal to the current
	// contig's pipeline unless the Driver is in recovery mode.
	ErrKindInvariantViolation
	// ErrKindResourceFailure: export tracker write failure. Logged at
	// debug; the pipeline continues without export.
	ErrKindResourceFailure
	// ErrKindAssemblyFailure: any other failure while assembling a given
	// contig.
	ErrKindAssemblyFailure
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindMalformedInput:
		return "MalformedInput"
	case ErrKindInvariantViolation:
		return "InvariantViolation"
	case ErrKindResourceFailure:
		return "ResourceFailure"
	case ErrKindAssemblyFailure:
		return "AssemblyFailure"
	default:
		return "Unknown"
	}
}

// Error is the error type returned by every stage in this package. It
// wraps a github.com/grailbio/base/errors error (for consistent
// message/context formatting) with the ErrKind the outer driver needs to
// decide whether a failure is recoverable.
type Error struct {
	Kind ErrKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// newError builds an *Error of the given kind, formatting args the same way
// github.com/grailbio/base/errors.E does (a trailing error, if any, plus a
// message built from the remaining arguments).
func newError(kind ErrKind, err error, args ...interface{}) *Error {
	var wrapped error
	if err != nil {
		wrapped = grailerrors.E(append(args, err)...)
	} else {
		wrapped = grailerrors.E(args...)
	}
	return &Error{Kind: kind, Err: wrapped}
}

// KindOf extracts the ErrKind from err if it (or something it wraps) is an
// *Error, and reports whether one was found.
func KindOf(err error) (ErrKind, bool) {
	type unwrapper interface{ Unwrap() error }
	for err != nil {
		if pe, ok := err.(*Error); ok {
			return pe.Kind, true
		}
		u, ok := err.(unwrapper)
		if !ok {
			return 0, false
		}
		err = u.Unwrap()
	}
	return 0, false
}
