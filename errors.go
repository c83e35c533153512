package atomcell

import (
	"errors"
	"fmt"
)

var (
	// ErrRefCountOverflow is raised (as a panic) when a [Cell] or [Weak]
	// would exceed the maximum representable number of outstanding handles.
	// There is no meaningful recovery.
	ErrRefCountOverflow = errors.New(`atomcell: reference count overflow`)

	// ErrReleased is raised (as a panic) on any use of a handle after its
	// Release method has been called.
	ErrReleased = errors.New(`atomcell: use of released handle`)
)

// panicf panics with an error wrapping err, so callers that recover may use
// errors.Is.
func panicf(err error, format string, args ...any) {
	panic(fmt.Errorf("%w: "+format, append([]any{err}, args...)...))
}
