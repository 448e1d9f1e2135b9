package exec

import (
	"context"
	"sync"
	"sync/atomic"
)

// task is a unit of work scheduled on the compute pool. The context it
// receives is the worker's managed base context.
type task func(ctx context.Context)

// computePool is the bounded pool of managed worker goroutines. All
// execution segments and promise continuations run here.
type computePool struct {
	tasks  chan task
	wg     sync.WaitGroup
	closed atomic.Bool
}

func newComputePool(workers, queueSize int) *computePool {
	p := &computePool{tasks: make(chan task, queueSize)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.worker()
	}
	return p
}

func (p *computePool) worker() {
	defer p.wg.Done()
	ctx := withManaged(context.Background())
	for fn := range p.tasks {
		fn(ctx)
	}
}

// Submit schedules fn on a worker. It blocks while the queue is full and
// returns ErrPoolClosed once the pool has been closed.
func (p *computePool) Submit(fn task) (err error) {
	if p.closed.Load() {
		poolRejectionsTotal.WithLabelValues("compute").Inc()
		return ErrPoolClosed
	}

	// Close may fire between the check above and the send below, making
	// the send panic on the closed channel; recover and report rejection.
	defer func() {
		if r := recover(); r != nil {
			poolRejectionsTotal.WithLabelValues("compute").Inc()
			err = ErrPoolClosed
		}
	}()

	p.tasks <- fn
	return nil
}

// Close stops accepting tasks and waits for queued work to finish.
// Safe to call multiple times.
func (p *computePool) Close() {
	if p.closed.CompareAndSwap(false, true) {
		close(p.tasks)
	}
	p.wg.Wait()
}

// blockingPool runs operations that are expected to block natively. It is
// unbounded: every submission gets its own goroutine.
type blockingPool struct {
	mu     sync.Mutex
	wg     sync.WaitGroup
	closed bool
}

// Submit runs fn on a new goroutine. Returns ErrPoolClosed after Close.
func (p *blockingPool) Submit(fn func()) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		poolRejectionsTotal.WithLabelValues("blocking").Inc()
		return ErrPoolClosed
	}
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		fn()
	}()
	return nil
}

// Close stops accepting operations and waits for in-flight ones to finish.
func (p *blockingPool) Close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	p.wg.Wait()
}
