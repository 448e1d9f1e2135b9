package exec

// Result is the immutable outcome of a single asynchronous operation:
// either a success value or a failure cause, never both.
type Result[T any] struct {
	value   T
	failure error
}

// Success creates a successful Result holding value.
func Success[T any](value T) Result[T] {
	return Result[T]{value: value}
}

// Failure creates a failed Result holding cause.
func Failure[T any](cause error) Result[T] {
	return Result[T]{failure: cause}
}

// IsSuccess reports whether the result holds a value.
func (r Result[T]) IsSuccess() bool {
	return r.failure == nil
}

// IsFailure reports whether the result holds a failure cause.
func (r Result[T]) IsFailure() bool {
	return r.failure != nil
}

// Value returns the success value, or the zero value for a failed result.
func (r Result[T]) Value() T {
	return r.value
}

// Err returns the failure cause, or nil for a successful result.
func (r Result[T]) Err() error {
	return r.failure
}

// ValueOrErr returns the success value, surfacing a failure as an error
// rather than a value.
func (r Result[T]) ValueOrErr() (T, error) {
	return r.value, r.failure
}
