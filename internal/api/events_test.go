package api

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dsyer/ratpack/internal/model"
)

// readSSEEvents reads SSE frames until the stream ends, returning the kind
// of each JSON data event in arrival order.
func readSSEEvents(t *testing.T, resp *http.Response) (kinds []string, sawDone bool) {
	t.Helper()
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: done"):
			sawDone = true
		case strings.HasPrefix(line, "data: {"):
			var e model.Event
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &e); err != nil {
				t.Fatalf("unmarshal SSE event %q: %v", line, err)
			}
			kinds = append(kinds, e.Kind)
		}
	}
	return kinds, sawDone
}

func TestStreamEventsDeliversLifecycle(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	// A sleeping job leaves time to connect before it finishes.
	resp := postJob(t, ts.URL, `{"processor":"sleep","payload":{"duration_ms":150}}`)
	var j model.Job
	if err := json.NewDecoder(resp.Body).Decode(&j); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	resp.Body.Close()

	events, err := http.Get(ts.URL + "/v1/jobs/" + j.ID + "/events")
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer events.Body.Close()

	if events.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", events.StatusCode)
	}
	if ct := events.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	kinds, sawDone := readSSEEvents(t, events)
	if !sawDone {
		t.Error("stream ended without a done event")
	}
	// The subscriber may join before or after the running event, but never
	// out of order, and the terminal event always arrives.
	if len(kinds) == 0 {
		t.Fatal("no events received")
	}
	if kinds[len(kinds)-1] != model.EventCompleted {
		t.Errorf("last event = %q, want completed", kinds[len(kinds)-1])
	}
	for i := 1; i < len(kinds); i++ {
		if kinds[i-1] == model.EventCompleted {
			t.Errorf("event %q arrived after the terminal event", kinds[i])
		}
	}
}

func TestStreamEventsTerminalJob(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp := postJob(t, ts.URL, `{"processor":"echo","payload":"x"}`)
	var j model.Job
	if err := json.NewDecoder(resp.Body).Decode(&j); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	resp.Body.Close()
	waitForTerminal(t, srv, j.ID, 5*time.Second)

	events, err := http.Get(ts.URL + "/v1/jobs/" + j.ID + "/events")
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer events.Body.Close()

	if events.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", events.StatusCode)
	}
	_, sawDone := readSSEEvents(t, events)
	if !sawDone {
		t.Error("terminal job stream did not end with a done event")
	}
}

func TestStreamEventsNotFound(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/jobs/nonexistent/events")
	if err != nil {
		t.Fatalf("GET events: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestEventHistory(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp := postJob(t, ts.URL, `{"processor":"echo","payload":"x"}`)
	var j model.Job
	if err := json.NewDecoder(resp.Body).Decode(&j); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	resp.Body.Close()
	waitForTerminal(t, srv, j.ID, 5*time.Second)

	hist, err := http.Get(ts.URL + "/v1/jobs/" + j.ID + "/events/history")
	if err != nil {
		t.Fatalf("GET history: %v", err)
	}
	defer hist.Body.Close()

	if hist.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", hist.StatusCode)
	}
	var body eventHistoryResponse
	if err := json.NewDecoder(hist.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.JobID != j.ID {
		t.Errorf("job_id = %q, want %q", body.JobID, j.ID)
	}

	want := []string{model.EventAccepted, model.EventRunning, model.EventCompleted}
	if len(body.Events) != len(want) {
		t.Fatalf("got %d events, want %d", len(body.Events), len(want))
	}
	for i, kind := range want {
		if body.Events[i].Kind != kind {
			t.Errorf("events[%d].Kind = %q, want %q", i, body.Events[i].Kind, kind)
		}
	}
}

func TestEventHistoryNotFound(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/jobs/nonexistent/events/history")
	if err != nil {
		t.Fatalf("GET history: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
