package exec

import (
	"context"
	"sync"
)

// segment is one quantum of an execution's work, run without preemption and
// wrapped by the interceptor chain in effect when it starts.
type segment func(ctx context.Context) error

// backing is the state machine behind one logical execution. It enforces
// single occupancy (at most one goroutine drains segments at any instant),
// holds the ordered interceptor chain, queues and drains segments, and
// re-enters the execution for stream callbacks arriving on foreign
// goroutines.
type backing struct {
	controller *Controller
	execution  *Execution
	onError    func(error)
	onComplete func(*Execution)

	// interceptors is append-only and only ever mutated by the goroutine
	// currently bound to the execution, so reads from that same goroutine
	// need no locking. Segment runs snapshot the slice header at segment
	// start; a continuation already in flight keeps its chain.
	interceptors []Interceptor

	mu       sync.Mutex
	queue    []segment
	draining bool // a goroutine is bound and popping segments
	pending  int  // subscribed-unresolved promises plus open streams
	done     bool
}

// newBacking creates a backing whose queue holds the initial segment. The
// creator is expected to call drain immediately; the backing is born in the
// draining state so that concurrent resumes queue up behind it.
func newBacking(ctrl *Controller, action Action, onError func(error), onComplete func(*Execution)) *backing {
	b := &backing{
		controller: ctrl,
		onError:    onError,
		onComplete: onComplete,
		draining:   true,
	}
	b.execution = &Execution{id: newExecutionID(), backing: b}
	b.queue = []segment{func(ctx context.Context) error {
		return action(ctx, b.execution)
	}}
	executionsStarted.Inc()
	executionsActive.Inc()
	return b
}

// drain binds the calling goroutine to the execution and pops segments
// until the queue empties. ctx must be a managed worker context. When the
// queue empties with no outstanding obligations the execution terminates
// and onComplete runs, exactly once.
func (b *backing) drain(ctx context.Context) {
	bound := withBacking(ctx, b)
	for {
		b.mu.Lock()
		if len(b.queue) == 0 {
			b.draining = false
			terminal := b.pending == 0 && !b.done
			if terminal {
				b.done = true
			}
			b.mu.Unlock()
			if terminal {
				executionsActive.Dec()
				executionsCompleted.Inc()
				b.onComplete(b.execution)
			}
			return
		}
		seg := b.queue[0]
		b.queue = b.queue[1:]
		b.mu.Unlock()

		b.runSegment(bound, seg)
	}
}

// runSegment runs one segment under the interceptor chain snapshotted now.
// An error escaping the segment is routed to the execution's error handler,
// never to the pool.
func (b *backing) runSegment(ctx context.Context, seg segment) {
	interceptors := b.interceptors
	segmentsTotal.WithLabelValues(KindCompute.String()).Inc()
	if err := b.intercept(KindCompute, interceptors, func() error {
		return seg(ctx)
	}); err != nil {
		b.onError(err)
	}
}

// intercept runs fn wrapped by the given interceptors, outermost first, on
// the calling goroutine. Panics anywhere in the chain become a *PanicError.
func (b *backing) intercept(kind Kind, interceptors []Interceptor, fn func() error) error {
	wrapped := fn
	for i := len(interceptors) - 1; i >= 0; i-- {
		in, next := interceptors[i], wrapped
		wrapped = func() error {
			return in.Intercept(b.execution, kind, next)
		}
	}
	return runRecovered(wrapped)
}

// resume queues seg as the execution's next segment and, if the execution
// is unbound, re-binds it to a compute worker. Safe to call from any
// goroutine; this is the only way foreign threads hand work to an
// execution.
func (b *backing) resume(seg segment) {
	b.mu.Lock()
	if b.done {
		b.mu.Unlock()
		b.controller.logger.Warn("segment dropped after execution completed",
			"execution_id", b.execution.id,
		)
		return
	}
	b.queue = append(b.queue, seg)
	if b.draining {
		b.mu.Unlock()
		return
	}
	b.draining = true
	b.mu.Unlock()

	if err := b.controller.compute.Submit(func(ctx context.Context) {
		b.drain(ctx)
	}); err != nil {
		b.mu.Lock()
		b.draining = false
		b.mu.Unlock()
		b.onError(err)
	}
}

// retain records an obligation (a subscribed promise or an open stream)
// that keeps the execution alive while its queue is empty.
func (b *backing) retain() {
	b.mu.Lock()
	b.pending++
	b.mu.Unlock()
}

func (b *backing) release() {
	b.mu.Lock()
	b.pending--
	b.mu.Unlock()
}

// streamEvent re-enters the execution to run a single stream callback,
// preserving the same single-occupancy invariant as regular segments.
func (b *backing) streamEvent(fn segment) {
	b.resume(fn)
}

// streamEventComplete is streamEvent for a terminal stream callback: once
// the callback returns, the stream no longer keeps the execution alive.
func (b *backing) streamEventComplete(fn segment) {
	b.resume(func(ctx context.Context) error {
		defer b.release()
		return fn(ctx)
	})
}
