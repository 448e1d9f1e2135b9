package api

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dsyer/ratpack/exec"
	"github.com/dsyer/ratpack/internal/engine"
	"github.com/dsyer/ratpack/internal/model"
	"github.com/dsyer/ratpack/internal/processor"
	"github.com/dsyer/ratpack/internal/store"
)

// newTestServer wires a server against an in-memory store, the built-in
// processors and a small controller.
func newTestServer(t *testing.T) *Server {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	ctrl := exec.NewController(exec.WithComputeWorkers(4), exec.WithLogger(logger))
	t.Cleanup(ctrl.Close)

	reg := processor.DefaultRegistry()
	eng := engine.NewEngine(s, reg, ctrl.Control(), logger)

	return NewServer("127.0.0.1:0", s, reg, eng, ctrl.Control(), logger)
}

// waitForTerminal polls the server's store until the job leaves its
// non-terminal states.
func waitForTerminal(t *testing.T, srv *Server, id string, timeout time.Duration) *model.Job {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		j, err := srv.store.GetJob(context.Background(), id)
		if err != nil {
			t.Fatalf("GetJob: %v", err)
		}
		if model.Terminal(j.Status) {
			return j
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach a terminal status within %v", id, timeout)
	return nil
}
