package vcrefresh

import (
	"errors"
	"fmt"
)

var (
	// ErrPrecondition is wrapped by every panic raised for caller defects:
	// empty names, scoped-in-scoped nesting, out-of-order closes and
	// operations applied to the wrong kind of buffer.
	ErrPrecondition = errors.New("vcrefresh: precondition violated")

	// ErrWrite is wrapped by WriteError.
	ErrWrite = errors.New("vcrefresh: write failed")

	// ErrNestedScope is returned by BuildFromHTML when a scoped region is
	// declared directly inside another scoped region.
	ErrNestedScope = errors.New("scoped region nested directly inside another scoped region")

	// ErrEmptyRegionName is returned by BuildFromHTML for a region
	// attribute with no value.
	ErrEmptyRegionName = errors.New("refresh region name is empty")

	// ErrDuplicateRegion is returned by BuildFromHTML when two rows of the
	// same scoped region share a name.
	ErrDuplicateRegion = errors.New("duplicate region name in scoped region")
)

func violate(format string, args ...any) {
	panic(fmt.Errorf("%w: "+format, append([]any{ErrPrecondition}, args...)...))
}

// WriteError reports that the output sink rejected a write. The emit walk
// stops at the first WriteError; whatever was written before it must be
// discarded by the caller.
type WriteError struct {
	Buffer string // name of the buffer being emitted
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("vcrefresh: writing buffer %q: %v", e.Buffer, e.Err)
}

func (e *WriteError) Unwrap() []error { return []error{ErrWrite, e.Err} }
