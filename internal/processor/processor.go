package processor

// Processor is the interface that all job processors implement. A processor
// runs on the blocking pool, so it is free to perform I/O or sleep.
type Processor interface {
	// Process transforms the job payload into an output. An error marks the
	// job failed.
	Process(payload []byte) ([]byte, error)

	// Describe reports the processor's name and what it does.
	Describe() Info
}

// Info pairs a processor name with a human-readable description.
type Info struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}
