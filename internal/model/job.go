package model

import "time"

// Job status constants.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// validTransitions maps each status to the set of statuses it may transition to.
var validTransitions = map[string]map[string]bool{
	StatusPending: {
		StatusRunning: true,
		StatusFailed:  true,
	},
	StatusRunning: {
		StatusCompleted: true,
		StatusFailed:    true,
	},
}

// ValidTransition reports whether transitioning from one status to another is allowed.
func ValidTransition(from, to string) bool {
	targets, ok := validTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// Terminal reports whether status is a final job state.
func Terminal(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// Job represents one unit of work submitted to the job engine. Each job is
// processed on its own execution by the processor named in Processor.
type Job struct {
	ID         string     `json:"id"`
	Status     string     `json:"status"`
	Processor  string     `json:"processor"`
	Payload    []byte     `json:"payload,omitempty"`
	Output     []byte     `json:"output,omitempty"`
	Error      string     `json:"error,omitempty"`
	DurationMS *int       `json:"duration_ms,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Event lifecycle kinds, in the order a job emits them.
const (
	EventAccepted  = "accepted"
	EventRunning   = "running"
	EventCompleted = "completed"
	EventFailed    = "failed"
)

// Event is one entry in a job's lifecycle stream.
type Event struct {
	JobID     string    `json:"job_id"`
	Kind      string    `json:"kind"`
	Data      string    `json:"data,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
