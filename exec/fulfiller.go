package exec

import (
	"context"
	"sync/atomic"
)

// Fulfiller supplies the outcome of a single promise. Exactly one of
// Success or Error must be invoked, exactly once; it may be called
// synchronously or from any goroutine, including unmanaged ones. A second
// invocation returns [ErrAlreadyFulfilled] and delivers nothing.
type Fulfiller[T any] interface {
	Success(value T) error
	Error(cause error) error
}

// Fulfillment invokes an asynchronous API, forwarding its eventual outcome
// to the given fulfiller.
type Fulfillment[T any] func(f Fulfiller[T]) error

type fulfiller[T any] struct {
	b       *backing
	deliver func(ctx context.Context, r Result[T]) error
	once    atomic.Bool
}

func (f *fulfiller[T]) Success(value T) error {
	return f.fulfill(Success(value))
}

func (f *fulfiller[T]) Error(cause error) error {
	return f.fulfill(Failure[T](cause))
}

// fulfill hands the outcome back to the originating execution as a new
// segment; the consumer's continuation never runs on the fulfilling
// goroutine.
func (f *fulfiller[T]) fulfill(r Result[T]) error {
	if !f.once.CompareAndSwap(false, true) {
		return ErrAlreadyFulfilled
	}
	f.b.resume(func(ctx context.Context) error {
		defer f.b.release()
		return f.deliver(ctx, r)
	})
	return nil
}
