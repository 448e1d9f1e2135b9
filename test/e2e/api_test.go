package e2e

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dsyer/ratpack/exec"
	"github.com/dsyer/ratpack/internal/api"
	"github.com/dsyer/ratpack/internal/engine"
	"github.com/dsyer/ratpack/internal/model"
	"github.com/dsyer/ratpack/internal/processor"
	"github.com/dsyer/ratpack/internal/store"
)

// startServer wires the full stack against an in-memory database and returns
// a running test server.
func startServer(t *testing.T) *httptest.Server {
	t.Helper()

	db, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	ctrl := exec.NewController(exec.WithComputeWorkers(4), exec.WithLogger(logger))
	t.Cleanup(ctrl.Close)

	registry := processor.DefaultRegistry()
	eng := engine.NewEngine(db, registry, ctrl.Control(), logger)
	srv := api.NewServer("127.0.0.1:0", db, registry, eng, ctrl.Control(), logger)

	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts
}

func submitJob(t *testing.T, ts *httptest.Server, body string) model.Job {
	t.Helper()
	resp, err := http.Post(ts.URL+"/v1/jobs", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST /v1/jobs: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	var j model.Job
	if err := json.NewDecoder(resp.Body).Decode(&j); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return j
}

func getJob(t *testing.T, ts *httptest.Server, id string) model.Job {
	t.Helper()
	resp, err := http.Get(ts.URL + "/v1/jobs/" + id)
	if err != nil {
		t.Fatalf("GET /v1/jobs/%s: %v", id, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var j model.Job
	if err := json.NewDecoder(resp.Body).Decode(&j); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return j
}

func pollUntilTerminal(t *testing.T, ts *httptest.Server, id string, timeout time.Duration) model.Job {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		j := getJob(t, ts, id)
		if model.Terminal(j.Status) {
			return j
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s did not reach a terminal status within %v", id, timeout)
	return model.Job{}
}

func TestJobLifecycleEndToEnd(t *testing.T) {
	ts := startServer(t)

	j := submitJob(t, ts, `{"processor":"digest","payload":"hello"}`)
	done := pollUntilTerminal(t, ts, j.ID, 5*time.Second)

	if done.Status != model.StatusCompleted {
		t.Fatalf("status = %q, want completed (error: %s)", done.Status, done.Error)
	}
	if len(done.Output) != 64 {
		t.Errorf("output length = %d, want a 64-char hex digest", len(done.Output))
	}
	if done.StartedAt == nil || done.FinishedAt == nil {
		t.Error("timestamps missing on completed job")
	}

	// The event history records the full lifecycle in order.
	resp, err := http.Get(ts.URL + "/v1/jobs/" + j.ID + "/events/history")
	if err != nil {
		t.Fatalf("GET events/history: %v", err)
	}
	defer resp.Body.Close()
	var hist struct {
		Events []model.Event `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&hist); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	want := []string{model.EventAccepted, model.EventRunning, model.EventCompleted}
	if len(hist.Events) != len(want) {
		t.Fatalf("got %d events, want %d", len(hist.Events), len(want))
	}
	for i, kind := range want {
		if hist.Events[i].Kind != kind {
			t.Errorf("events[%d].Kind = %q, want %q", i, hist.Events[i].Kind, kind)
		}
	}
}

func TestJobFailureEndToEnd(t *testing.T) {
	ts := startServer(t)

	// Sleep rejects malformed payloads, so the job fails.
	j := submitJob(t, ts, `{"processor":"sleep","payload":"not an object"}`)
	done := pollUntilTerminal(t, ts, j.ID, 5*time.Second)

	if done.Status != model.StatusFailed {
		t.Fatalf("status = %q, want failed", done.Status)
	}
	if done.Error == "" {
		t.Error("failed job has no error message")
	}
}

func TestEventStreamEndToEnd(t *testing.T) {
	ts := startServer(t)

	j := submitJob(t, ts, `{"processor":"sleep","payload":{"duration_ms":150}}`)

	resp, err := http.Get(ts.URL + "/v1/jobs/" + j.ID + "/events")
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()

	var kinds []string
	sawDone := false
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: done"):
			sawDone = true
		case strings.HasPrefix(line, "data: {"):
			var e model.Event
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &e); err != nil {
				t.Fatalf("unmarshal event %q: %v", line, err)
			}
			kinds = append(kinds, e.Kind)
		}
	}

	if !sawDone {
		t.Error("stream ended without a done event")
	}
	if len(kinds) == 0 {
		t.Fatal("no events received over SSE")
	}
	if last := kinds[len(kinds)-1]; last != model.EventCompleted {
		t.Errorf("last streamed event = %q, want completed", last)
	}
}

func TestConcurrentJobsEndToEnd(t *testing.T) {
	ts := startServer(t)

	ids := make([]string, 10)
	for i := range ids {
		ids[i] = submitJob(t, ts, `{"processor":"echo","payload":"x"}`).ID
	}
	for _, id := range ids {
		done := pollUntilTerminal(t, ts, id, 5*time.Second)
		if done.Status != model.StatusCompleted {
			t.Errorf("job %s status = %q, want completed", id, done.Status)
		}
	}
}
