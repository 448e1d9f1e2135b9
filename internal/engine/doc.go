// Package engine provides the asynchronous job engine. Each submitted job
// runs as one execution: lifecycle transitions are compute segments, while
// store writes and the processor itself resolve as promises on the blocking
// pool. Lifecycle events are persisted and fanned out to live subscribers.
package engine
