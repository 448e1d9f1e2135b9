package exec

// Kind distinguishes compute segments from blocking operations when a
// segment is intercepted.
type Kind int

const (
	// KindCompute marks a segment running on the compute pool.
	KindCompute Kind = iota

	// KindBlocking marks an operation running on the blocking pool.
	KindBlocking
)

func (k Kind) String() string {
	switch k {
	case KindCompute:
		return "compute"
	case KindBlocking:
		return "blocking"
	default:
		return "unknown"
	}
}

// Interceptor wraps the processing of a single execution segment.
// Interceptors registered on an execution apply, in registration order
// (outermost first), to every segment that starts after the registration.
//
// An implementation must call continuation exactly once and return its
// error (or an error of its own).
type Interceptor interface {
	Intercept(e *Execution, kind Kind, continuation func() error) error
}

// InterceptorFunc adapts a function to the Interceptor interface.
type InterceptorFunc func(e *Execution, kind Kind, continuation func() error) error

func (f InterceptorFunc) Intercept(e *Execution, kind Kind, continuation func() error) error {
	return f(e, kind, continuation)
}
