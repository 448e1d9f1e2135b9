// Package exec implements the execution and promise engine: a cooperative
// concurrency core that lets asynchronous, callback-driven and blocking work
// interleave on a small pool of managed worker goroutines while giving each
// logical unit of work (an "execution") the illusion of single-threaded,
// ordered, interceptable progress.
//
// An execution is started with [Control.Fork] and drains its work one
// segment at a time; no two segments of the same execution ever run
// concurrently, even though consecutive segments may run on different
// workers. Asynchronous values are modelled as lazy, single-subscription
// promises ([NewPromise], [Blocking]) whose continuations always resume as
// new segments of the originating execution. Push-based producers are
// bridged in with [Stream], which re-dispatches every event onto the owning
// execution while handing the subscription (and therefore backpressure)
// straight through to the consumer.
//
// The current execution travels in the context passed to every segment;
// [FromContext] recovers it anywhere inside the call tree of a segment.
package exec
