package exec

import (
	"errors"
	"fmt"
	"runtime"
)

// ErrNotBound is returned when an operation requires a bound execution but
// the calling context carries none.
var ErrNotBound = errors.New("exec: context has no bound execution")

// ErrPoolClosed is returned when work is submitted to a pool that has been
// closed.
var ErrPoolClosed = errors.New("exec: pool is closed")

// ErrAlreadySubscribed is returned by a second subscription attempt on a
// promise. Promises are single-subscription.
var ErrAlreadySubscribed = errors.New("exec: promise already subscribed")

// ErrAlreadyFulfilled is returned when a fulfiller that has already
// delivered an outcome is invoked again. Exactly one of Success or Error
// may be called, exactly once.
var ErrAlreadyFulfilled = errors.New("exec: fulfiller already delivered an outcome")

// PanicError wraps a panic recovered inside a segment or blocking operation
// together with the goroutine stack captured at the point of the panic.
// Panics never cross goroutine boundaries raw; they are converted to a
// PanicError and routed like any other segment error.
type PanicError struct {
	// Value is the original value passed to panic().
	Value any

	// Stack is the goroutine stack trace at the point of panic.
	Stack string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("exec: panic: %v\n\n%s", e.Value, e.Stack)
}

func newPanicError(v any) *PanicError {
	// 8 KiB covers most stacks; runtime.Stack truncates gracefully.
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	return &PanicError{
		Value: v,
		Stack: string(buf[:n]),
	}
}

// runRecovered runs fn, converting a panic into a *PanicError.
func runRecovered(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newPanicError(r)
		}
	}()
	return fn()
}
