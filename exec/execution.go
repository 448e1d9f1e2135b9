package exec

import "github.com/oklog/ulid/v2"

// Execution is the opaque handle for one logical, strictly
// single-threaded-at-a-time unit of asynchronous work.
type Execution struct {
	id      string
	backing *backing
}

// ID returns the execution's unique identifier.
func (e *Execution) ID() string {
	return e.id
}

// Controller returns the controller hosting this execution.
func (e *Execution) Controller() *Controller {
	return e.backing.controller
}

// Control returns the control façade of the hosting controller.
func (e *Execution) Control() *Control {
	return e.backing.controller.control
}

func newExecutionID() string {
	return ulid.Make().String()
}
