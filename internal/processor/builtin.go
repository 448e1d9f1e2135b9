package processor

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// Echo returns the payload unchanged.
type Echo struct{}

func (Echo) Process(payload []byte) ([]byte, error) {
	return payload, nil
}

func (Echo) Describe() Info {
	return Info{Name: "echo", Description: "returns the payload unchanged"}
}

// Digest hashes the payload with SHA-256 and returns the hex digest.
type Digest struct{}

func (Digest) Process(payload []byte) ([]byte, error) {
	sum := sha256.Sum256(payload)
	return []byte(hex.EncodeToString(sum[:])), nil
}

func (Digest) Describe() Info {
	return Info{Name: "digest", Description: "returns the hex SHA-256 of the payload"}
}

// Sleep pauses for the duration named in the payload and echoes it back.
// The payload is a JSON document like {"duration_ms": 50}; it exists mostly
// to exercise long-running work without burning CPU.
type Sleep struct {
	// MaxDuration caps the requested sleep. Zero means one minute.
	MaxDuration time.Duration
}

type sleepRequest struct {
	DurationMS int `json:"duration_ms"`
}

func (s Sleep) Process(payload []byte) ([]byte, error) {
	var req sleepRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, fmt.Errorf("parse sleep payload: %w", err)
	}
	if req.DurationMS < 0 {
		return nil, fmt.Errorf("negative duration: %d", req.DurationMS)
	}

	max := s.MaxDuration
	if max == 0 {
		max = time.Minute
	}
	d := time.Duration(req.DurationMS) * time.Millisecond
	if d > max {
		return nil, fmt.Errorf("duration %v exceeds maximum %v", d, max)
	}

	time.Sleep(d)
	return payload, nil
}

func (s Sleep) Describe() Info {
	return Info{Name: "sleep", Description: "sleeps for duration_ms milliseconds, then echoes the payload"}
}

// DefaultRegistry returns a registry with every built-in processor registered.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, p := range []Processor{Echo{}, Digest{}, Sleep{}} {
		r.Register(p.Describe().Name, p)
	}
	return r
}
