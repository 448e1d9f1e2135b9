package exec

import "context"

// Action is one segment of an execution's work. The context carries the
// execution binding and must be passed to any exec operation called from
// within the segment.
type Action func(ctx context.Context, e *Execution) error

// Noop is an Action that does nothing.
func Noop(context.Context, *Execution) error { return nil }
