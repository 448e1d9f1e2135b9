package stream

import "sync"

// FromSlice creates a publisher that emits the elements of items in order,
// honouring demand, then completes. Each subscriber gets its own pass over
// the slice. Emission happens synchronously on the goroutine calling
// Request.
func FromSlice[T any](items []T) Publisher[T] {
	return &slicePublisher[T]{items: items}
}

type slicePublisher[T any] struct {
	items []T
}

func (p *slicePublisher[T]) Subscribe(s Subscriber[T]) {
	s.OnSubscribe(&sliceSubscription[T]{items: p.items, subscriber: s})
}

type sliceSubscription[T any] struct {
	subscriber Subscriber[T]

	mu        sync.Mutex
	items     []T
	pos       int
	demand    int64
	emitting  bool
	cancelled bool
	completed bool
}

func (s *sliceSubscription[T]) Request(n int64) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	s.demand += n
	// Re-entrant Request from OnNext lands here while the outer call is
	// still emitting; the added demand is picked up by its loop.
	if s.emitting || s.cancelled || s.completed {
		s.mu.Unlock()
		return
	}
	s.emitting = true
	s.mu.Unlock()

	s.emit()
}

func (s *sliceSubscription[T]) emit() {
	for {
		s.mu.Lock()
		if s.cancelled {
			s.emitting = false
			s.mu.Unlock()
			return
		}
		if s.pos >= len(s.items) {
			s.completed = true
			s.emitting = false
			s.mu.Unlock()
			s.subscriber.OnComplete()
			return
		}
		if s.demand == 0 {
			s.emitting = false
			s.mu.Unlock()
			return
		}
		item := s.items[s.pos]
		s.pos++
		s.demand--
		s.mu.Unlock()

		s.subscriber.OnNext(item)
	}
}

func (s *sliceSubscription[T]) Cancel() {
	s.mu.Lock()
	s.cancelled = true
	s.mu.Unlock()
}

// FromChan creates a publisher that emits every value received from ch,
// honouring demand, and completes when ch is closed. The channel is drained
// by a dedicated goroutine started at subscription, so a single channel
// supports a single subscriber.
func FromChan[T any](ch <-chan T) Publisher[T] {
	return &chanPublisher[T]{ch: ch}
}

type chanPublisher[T any] struct {
	ch <-chan T
}

func (p *chanPublisher[T]) Subscribe(s Subscriber[T]) {
	sub := &chanSubscription[T]{
		requests: make(chan int64, 16),
		cancel:   make(chan struct{}),
	}
	s.OnSubscribe(sub)
	go sub.run(p.ch, s)
}

type chanSubscription[T any] struct {
	requests   chan int64
	cancel     chan struct{}
	cancelOnce sync.Once
}

func (s *chanSubscription[T]) Request(n int64) {
	if n <= 0 {
		return
	}
	select {
	case s.requests <- n:
	case <-s.cancel:
	}
}

func (s *chanSubscription[T]) Cancel() {
	s.cancelOnce.Do(func() {
		close(s.cancel)
	})
}

func (s *chanSubscription[T]) run(ch <-chan T, sub Subscriber[T]) {
	var demand int64
	for {
		// Wait for demand before touching the channel.
		for demand <= 0 {
			select {
			case n := <-s.requests:
				demand += n
			case <-s.cancel:
				return
			}
		}

		select {
		case v, ok := <-ch:
			if !ok {
				sub.OnComplete()
				return
			}
			demand--
			sub.OnNext(v)
		case n := <-s.requests:
			demand += n
		case <-s.cancel:
			return
		}
	}
}
