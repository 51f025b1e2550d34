// Package errs defines the error taxonomy shared by every layer of the
// page-table reconstruction core. All failures surfaced across package
// boundaries use *Error so that callers can branch on Kind with errors.Is
// instead of matching on message text.
package errs

import "fmt"

// Kind enumerates the exhaustive set of failure reasons the core can
// surface. Sub-table failures during an x86 walk are absorbed rather than
// raised (see package arch/x86); every other boundary returns exactly one
// Kind or succeeds.
type Kind int

const (
	// FailedToReadBlock means a memory view could not satisfy a read in full.
	FailedToReadBlock Kind = iota
	// GenericParsingError means malformed table contents prevented progress
	// at the root of a walk.
	GenericParsingError
	// InvalidBlock means a structurally impossible entry was encountered at
	// the root of a walk.
	InvalidBlock
	// ResourceError means acquiring a host resource (e.g. duplicating a
	// file descriptor) failed.
	ResourceError
)

func (k Kind) String() string {
	switch k {
	case FailedToReadBlock:
		return "failed to read block"
	case GenericParsingError:
		return "generic parsing error"
	case InvalidBlock:
		return "invalid block"
	case ResourceError:
		return "resource error"
	default:
		return "unknown error kind"
	}
}

// Error is the concrete error type returned by this module. Module names
// the package that raised it; Err, when non-nil, is the underlying cause.
type Error struct {
	Kind    Kind
	Module  string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", e.Module, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Module, e.Message)
}

// Unwrap exposes the wrapped cause to errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error with the same Kind, so callers can
// write errors.Is(err, errs.New(errs.FailedToReadBlock, "", "")) or, more
// idiomatically, errors.Is(err, errs.FailedToReadBlock.Sentinel()).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// New constructs an *Error. module should be the short package name that
// detected the failure (e.g. "memview", "x86", "arm64").
func New(kind Kind, module, message string) *Error {
	return &Error{Kind: kind, Module: module, Message: message}
}

// Wrap constructs an *Error that carries cause as its wrapped Err.
func Wrap(kind Kind, module, message string, cause error) *Error {
	return &Error{Kind: kind, Module: module, Message: message, Err: cause}
}

// Sentinel returns a bare *Error of this Kind suitable for use with
// errors.Is(err, kind.Sentinel()) when the caller only cares about Kind.
func (k Kind) Sentinel() *Error {
	return &Error{Kind: k}
}
