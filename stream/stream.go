// Package stream defines the push-based producer boundary bridged into the
// execution engine: a publisher emits a sequenced, potentially unbounded
// series of elements according to the demand its subscriber signals through
// the subscription.
package stream

// Subscription links one subscriber to one publisher and carries demand
// back to it. Request and Cancel may be called from any goroutine.
type Subscription interface {
	// Request signals demand for up to n more elements.
	Request(n int64)

	// Cancel asks the publisher to stop emitting. Elements already in
	// flight may still be delivered.
	Cancel()
}

// Subscriber consumes a sequenced stream of elements from a publisher.
// OnSubscribe is invoked first, exactly once; OnNext zero or more times;
// then at most one of OnComplete or OnError, after which no further
// signals arrive.
type Subscriber[T any] interface {
	OnSubscribe(s Subscription)
	OnNext(element T)
	OnComplete()
	OnError(cause error)
}

// Publisher emits elements to a subscriber according to the demand it
// signals. A publisher must not emit before demand has been requested.
type Publisher[T any] interface {
	Subscribe(s Subscriber[T])
}
