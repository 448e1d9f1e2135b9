package exec

import (
	"context"
	"sync/atomic"
)

// Promise is a lazy, single-subscription asynchronous value bound to the
// execution that created it. The producing fulfillment only runs once a
// consumer subscribes via Then or Result, and the consumer's continuation
// always runs as a new segment of the originating execution, under its
// interceptor chain, regardless of which goroutine produced the value.
type Promise[T any] struct {
	backing     *backing
	fulfillment Fulfillment[T]
	bindErr     error
	subscribed  atomic.Bool
}

// NewPromise creates a promise for an asynchronously produced value. The
// fulfillment should invoke the asynchronous API and forward its outcome to
// the fulfiller it is given; it does not run until the promise is
// subscribed.
//
// ctx must carry a bound execution; otherwise subscribing the promise
// fails with [ErrNotBound].
func NewPromise[T any](ctx context.Context, fulfillment Fulfillment[T]) *Promise[T] {
	b := backingFrom(ctx)
	if b == nil {
		return &Promise[T]{bindErr: ErrNotBound}
	}
	return &Promise[T]{backing: b, fulfillment: fulfillment}
}

// Then subscribes to the promise with a success continuation. A failure
// outcome is routed to the execution's error handler.
func (p *Promise[T]) Then(fn func(ctx context.Context, value T) error) error {
	return p.Result(func(ctx context.Context, r Result[T]) error {
		if r.IsFailure() {
			return r.Err()
		}
		return fn(ctx, r.Value())
	})
}

// Result subscribes to the promise with a continuation receiving the full
// outcome, success or failure. This starts the producing fulfillment
// immediately, on the calling goroutine. A second subscription returns
// [ErrAlreadySubscribed].
func (p *Promise[T]) Result(fn func(ctx context.Context, r Result[T]) error) error {
	if p.bindErr != nil {
		return p.bindErr
	}
	if !p.subscribed.CompareAndSwap(false, true) {
		return ErrAlreadySubscribed
	}

	b := p.backing
	b.retain()
	f := &fulfiller[T]{b: b, deliver: fn}

	if err := runRecovered(func() error { return p.fulfillment(f) }); err != nil {
		// The fulfillment failed before delivering an outcome; surface the
		// error as the promise's failure. If an outcome was already
		// delivered, fall back to the execution's error handler rather
		// than losing the error.
		if f.Error(err) != nil {
			b.onError(err)
		}
	}
	return nil
}
