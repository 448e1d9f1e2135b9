package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dsyer/ratpack/exec"
	"github.com/dsyer/ratpack/internal/model"
	"github.com/dsyer/ratpack/internal/store"
	"github.com/dsyer/ratpack/stream"
)

// handleStreamEvents serves GET /v1/jobs/{id}/events as a live SSE stream.
// The broker channel is exposed as a publisher and bridged onto a dedicated
// execution, so every SSE write happens as an ordered segment of that
// execution with demand signalled one event at a time.
func (s *Server) handleStreamEvents(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	j, err := s.store.GetJob(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "job not found")
		return
	}
	if err != nil {
		s.logger.Error("get job for events", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get job")
		return
	}

	// Set SSE headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// If already in a terminal state, return a done event immediately.
	if model.Terminal(j.Status) {
		w.WriteHeader(http.StatusOK)
		_ = writeSSEEvent(w, "done", j.Status)
		return
	}

	// Disable write timeout for long-lived SSE connections.
	rc := http.NewResponseController(w)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		s.logger.Error("set write deadline for SSE", "error", err)
	}

	// Subscribe to the event stream. This is safe even if the job completed
	// between the status check above and this call; Subscribe on a closed
	// topic returns a closed channel, which ends the bridged stream at once.
	ch, unsub := s.engine.Broker().Subscribe(id)
	defer unsub()

	w.WriteHeader(http.StatusOK)
	flusher, canFlush := w.(http.Flusher)
	if canFlush {
		flusher.Flush()
	}

	done := make(chan struct{})
	sub := &sseSubscriber{w: w, flusher: flusher, canFlush: canFlush, logger: s.logger}

	err = s.control.Fork(context.Background(), func(ctx context.Context, e *exec.Execution) error {
		return exec.Stream(ctx, stream.FromChan(ch), sub)
	},
		exec.WithOnError(func(err error) {
			s.logger.Error("event stream error", "job_id", id, "error", err)
		}),
		exec.WithOnComplete(func(*exec.Execution) { close(done) }),
	)
	if err != nil {
		s.logger.Error("fork event stream", "job_id", id, "error", err)
		return
	}

	// The handler must outlive every write the execution makes to w, so it
	// blocks until the streaming execution has fully terminated.
	select {
	case <-done:
	case <-r.Context().Done():
		sub.cancel()
		<-done
	}
}

// sseSubscriber writes each bridged event as an SSE frame and requests the
// next one, so a slow client applies backpressure all the way to the broker
// channel.
type sseSubscriber struct {
	w        http.ResponseWriter
	flusher  http.Flusher
	canFlush bool
	logger   *slog.Logger

	mu  sync.Mutex
	sub stream.Subscription
}

func (s *sseSubscriber) OnSubscribe(sub stream.Subscription) {
	s.mu.Lock()
	s.sub = sub
	s.mu.Unlock()
	sub.Request(1)
}

// cancel stops the stream from the handler goroutine on client disconnect.
func (s *sseSubscriber) cancel() {
	s.mu.Lock()
	sub := s.sub
	s.mu.Unlock()
	if sub != nil {
		sub.Cancel()
	}
}

func (s *sseSubscriber) OnNext(e model.Event) {
	payload, err := json.Marshal(e)
	if err != nil {
		s.logger.Error("marshal event", "error", err)
		s.cancel()
		return
	}
	if err := writeSSEData(s.w, string(payload)); err != nil {
		// Client gone; stop pulling.
		s.cancel()
		return
	}
	if s.canFlush {
		s.flusher.Flush()
	}
	s.mu.Lock()
	sub := s.sub
	s.mu.Unlock()
	sub.Request(1)
}

func (s *sseSubscriber) OnComplete() {
	// Job finished; send explicit done event before closing.
	_ = writeSSEEvent(s.w, "done", "stream complete")
	if s.canFlush {
		s.flusher.Flush()
	}
}

func (s *sseSubscriber) OnError(cause error) {
	s.logger.Error("event stream failed", "error", cause)
}

// eventHistoryResponse is the JSON response for GET /v1/jobs/:id/events/history.
type eventHistoryResponse struct {
	JobID  string        `json:"job_id"`
	Events []model.Event `json:"events"`
}

func (s *Server) handleGetEventHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := s.store.GetJob(r.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.logger.Error("get job for event history", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get job")
		return
	}

	events, err := s.store.ListEvents(r.Context(), id)
	if err != nil {
		s.logger.Error("list events", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list events")
		return
	}

	s.writeJSON(w, http.StatusOK, eventHistoryResponse{
		JobID:  id,
		Events: events,
	})
}

// writeSSEData writes one SSE data event. Multi-line strings are split so
// that each line of the payload gets its own "data:" prefix.
func writeSSEData(w http.ResponseWriter, data string) error {
	for _, seg := range strings.Split(data, "\n") {
		if _, err := fmt.Fprintf(w, "data: %s\n", seg); err != nil {
			return err
		}
	}
	// Blank line terminates the event.
	_, err := fmt.Fprint(w, "\n")
	return err
}

// writeSSEEvent writes a named SSE event (event: <type>\ndata: <data>\n\n).
func writeSSEEvent(w http.ResponseWriter, eventType, data string) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	return nil
}
