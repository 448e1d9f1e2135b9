package exec

import "context"

type ctxKey int

const (
	managedKey ctxKey = iota + 1
	backingKey
)

// withManaged marks ctx as originating from a compute-pool worker.
func withManaged(ctx context.Context) context.Context {
	return context.WithValue(ctx, managedKey, true)
}

func isManaged(ctx context.Context) bool {
	v, _ := ctx.Value(managedKey).(bool)
	return v
}

// withBacking binds ctx to b for the duration of a segment.
func withBacking(ctx context.Context, b *backing) context.Context {
	return context.WithValue(ctx, backingKey, b)
}

func backingFrom(ctx context.Context) *backing {
	b, _ := ctx.Value(backingKey).(*backing)
	return b
}

// FromContext returns the execution bound to ctx. It fails with
// [ErrNotBound] when called outside of an execution segment.
func FromContext(ctx context.Context) (*Execution, error) {
	if b := backingFrom(ctx); b != nil {
		return b.execution, nil
	}
	return nil, ErrNotBound
}
