package exec

import (
	"context"
	"log/slog"
	"runtime"
)

const defaultQueueSize = 256

// Controller owns the two pools the engine schedules on: a bounded compute
// pool of managed workers and an unbounded blocking pool. One controller is
// shared by every execution it forks.
type Controller struct {
	compute  *computePool
	blocking *blockingPool
	control  *Control
	logger   *slog.Logger
}

// Option configures a Controller.
type Option func(*options)

type options struct {
	workers   int
	queueSize int
	logger    *slog.Logger
}

// WithComputeWorkers sets the number of managed compute workers.
// Default is runtime.NumCPU(). Panics if n <= 0.
func WithComputeWorkers(n int) Option {
	if n <= 0 {
		panic("exec: WithComputeWorkers requires n > 0")
	}
	return func(o *options) {
		o.workers = n
	}
}

// WithQueueSize sets the compute task queue buffer size. Panics if n < 0.
func WithQueueSize(n int) Option {
	if n < 0 {
		panic("exec: WithQueueSize requires non-negative size")
	}
	return func(o *options) {
		o.queueSize = n
	}
}

// WithLogger sets the structured logger used for engine diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// NewController creates a controller and starts its compute workers.
func NewController(opts ...Option) *Controller {
	o := options{
		workers:   runtime.NumCPU(),
		queueSize: defaultQueueSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	c := &Controller{
		compute:  newComputePool(o.workers, o.queueSize),
		blocking: &blockingPool{},
		logger:   o.logger,
	}
	c.control = &Control{controller: c}
	return c
}

// Control returns the façade used to fork executions and create promises.
func (c *Controller) Control() *Control {
	return c.control
}

// IsManaged reports whether ctx originates from a compute-pool worker.
func (c *Controller) IsManaged(ctx context.Context) bool {
	return isManaged(ctx)
}

// Close shuts both pools down: the blocking pool first, so that in-flight
// blocking operations can still resume their executions on the compute
// pool, then the compute pool itself. Submissions after Close surface
// ErrPoolClosed.
func (c *Controller) Close() {
	c.blocking.Close()
	c.compute.Close()
}
