package exec

import "context"

// Control is the façade an application uses to obtain the current
// execution, register interceptors and fork new executions. The generic
// operations [NewPromise], [Blocking] and [Stream] are package-level
// functions for the same reason Go methods cannot introduce type
// parameters; they belong to this façade conceptually.
type Control struct {
	controller *Controller
}

// Controller returns the controller behind this façade.
func (c *Control) Controller() *Controller {
	return c.controller
}

// Execution returns the execution bound to ctx, failing with
// [ErrNotBound] outside of a segment.
func (c *Control) Execution(ctx context.Context) (*Execution, error) {
	return FromContext(ctx)
}

// AddInterceptor registers the interceptor on the current execution and
// immediately runs continuation wrapped by it, synchronously on the calling
// goroutine. The interceptor applies to the continuation and to all future
// segments of the execution; code already executed earlier in the current
// segment is unaffected, so callers should not run anything after this call
// within the same segment.
//
// Errors from continuation propagate to the caller, not to the execution's
// error handler: this is a direct call, not a scheduled segment.
func (c *Control) AddInterceptor(ctx context.Context, in Interceptor, continuation Action) error {
	b := backingFrom(ctx)
	if b == nil {
		return ErrNotBound
	}
	b.interceptors = append(b.interceptors, in)
	// Only the new interceptor wraps the continuation; the previously
	// registered ones already wrap the segment in flight.
	return b.intercept(KindCompute, []Interceptor{in}, func() error {
		return continuation(ctx, b.execution)
	})
}

// ForkOption configures a forked execution.
type ForkOption func(*forkOptions)

type forkOptions struct {
	onError    func(error)
	onComplete func(*Execution)
}

// WithOnError sets the handler receiving any error that escapes a segment
// of the forked execution. The default re-raises the error as a panic on
// the draining worker.
func WithOnError(fn func(error)) ForkOption {
	return func(o *forkOptions) {
		o.onError = fn
	}
}

// WithOnComplete sets the callback invoked once the execution has drained
// all segments and holds no further obligations. The default does nothing.
func WithOnComplete(fn func(*Execution)) ForkOption {
	return func(o *forkOptions) {
		o.onComplete = fn
	}
}

// Fork creates and starts a brand-new execution whose first segment is
// action. When the calling context belongs to an idle managed worker (no
// execution currently bound), the execution starts synchronously in place,
// avoiding a pool round-trip; in every other case construction is submitted
// to the compute pool, and a pool rejection is returned to the caller.
func (c *Control) Fork(ctx context.Context, action Action, opts ...ForkOption) error {
	o := forkOptions{
		onError:    func(err error) { panic(err) },
		onComplete: func(*Execution) {},
	}
	for _, opt := range opts {
		opt(&o)
	}

	if isManaged(ctx) && backingFrom(ctx) == nil {
		b := newBacking(c.controller, action, o.onError, o.onComplete)
		b.drain(ctx)
		return nil
	}

	return c.controller.compute.Submit(func(workerCtx context.Context) {
		b := newBacking(c.controller, action, o.onError, o.onComplete)
		b.drain(workerCtx)
	})
}

// Blocking returns a promise for the value of an operation expected to
// block (I/O, database calls and the like). On subscription the operation
// is submitted to the blocking pool and runs there wrapped in a
// blocking-kind interception using the execution's interceptor chain as it
// was when Blocking was called. Its outcome, value or error, resumes the
// promise on the compute pool; the operation never occupies a compute
// worker.
func Blocking[T any](ctx context.Context, operation func() (T, error)) *Promise[T] {
	b := backingFrom(ctx)
	if b == nil {
		return &Promise[T]{bindErr: ErrNotBound}
	}
	// Chain captured at call time, not at subscription time.
	interceptors := b.interceptors

	return NewPromise(ctx, func(f Fulfiller[T]) error {
		blockingOperationsTotal.Inc()
		return b.controller.blocking.Submit(func() {
			var value T
			var opErr error
			segmentsTotal.WithLabelValues(KindBlocking.String()).Inc()
			err := b.intercept(KindBlocking, interceptors, func() error {
				value, opErr = operation()
				return nil
			})
			if err != nil {
				// An interceptor failed or panicked; that takes precedence
				// over the operation's own outcome.
				opErr = err
			}
			if opErr != nil {
				_ = f.Error(opErr)
			} else {
				_ = f.Success(value)
			}
		})
	})
}
