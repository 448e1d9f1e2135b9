package exec

import (
	"context"
	"sync/atomic"

	"github.com/dsyer/ratpack/stream"
)

// Stream bridges a push-based publisher to a subscriber that must only ever
// be invoked on the execution bound to ctx. Every signal, onSubscribe, each
// onNext and the terminal onComplete/onError, is re-dispatched onto the
// owning execution as its own segment, in producer order, regardless of
// which goroutine the producer used.
//
// Demand flows straight back to the producer without passing through the
// execution queue. The stream keeps the execution alive until a terminal
// signal has been delivered or the subscriber cancels.
func Stream[T any](ctx context.Context, publisher stream.Publisher[T], subscriber stream.Subscriber[T]) error {
	b := backingFrom(ctx)
	if b == nil {
		return ErrNotBound
	}
	b.retain()

	bridge := &bridgeSubscriber[T]{backing: b, target: subscriber}
	p := NewPromise(ctx, func(f Fulfiller[stream.Subscription]) error {
		bridge.onSubscribe = f
		publisher.Subscribe(bridge)
		return nil
	})
	// The continuation is itself a segment of the owning execution, so the
	// subscriber sees onSubscribe there, before any element, since a
	// conforming publisher emits nothing until demand is signalled.
	return p.Then(func(ctx context.Context, s stream.Subscription) error {
		subscriber.OnSubscribe(&bridgeSubscription[T]{owner: bridge, upstream: s})
		return nil
	})
}

// bridgeSubscriber is the internal adapter subscribed to the external
// publisher. It runs on whatever goroutine the producer uses and forwards
// every signal to the owning execution. terminated flips exactly once, on
// the first terminal signal or cancellation; later signals are dropped.
type bridgeSubscriber[T any] struct {
	backing     *backing
	target      stream.Subscriber[T]
	onSubscribe Fulfiller[stream.Subscription]
	terminated  atomic.Bool
}

func (s *bridgeSubscriber[T]) OnSubscribe(sub stream.Subscription) {
	_ = s.onSubscribe.Success(sub)
}

func (s *bridgeSubscriber[T]) OnNext(element T) {
	if s.terminated.Load() {
		return
	}
	s.backing.streamEvent(func(context.Context) error {
		s.target.OnNext(element)
		return nil
	})
}

func (s *bridgeSubscriber[T]) OnComplete() {
	if !s.terminated.CompareAndSwap(false, true) {
		return
	}
	s.backing.streamEventComplete(func(context.Context) error {
		s.target.OnComplete()
		return nil
	})
}

func (s *bridgeSubscriber[T]) OnError(cause error) {
	if !s.terminated.CompareAndSwap(false, true) {
		return
	}
	s.backing.streamEventComplete(func(context.Context) error {
		s.target.OnError(cause)
		return nil
	})
}

// bridgeSubscription is what the application subscriber holds. Request is a
// pass-through; Cancel additionally ends the stream's hold on the execution,
// since a conforming publisher sends no terminal signal after cancellation.
type bridgeSubscription[T any] struct {
	owner    *bridgeSubscriber[T]
	upstream stream.Subscription
}

func (s *bridgeSubscription[T]) Request(n int64) {
	s.upstream.Request(n)
}

func (s *bridgeSubscription[T]) Cancel() {
	s.upstream.Cancel()
	if !s.owner.terminated.CompareAndSwap(false, true) {
		return
	}
	s.owner.backing.streamEventComplete(func(context.Context) error { return nil })
}
