package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dsyer/ratpack/exec"
	"github.com/dsyer/ratpack/internal/model"
	"github.com/dsyer/ratpack/internal/processor"
	"github.com/dsyer/ratpack/internal/store"
)

// Engine orchestrates asynchronous job processing. Each submitted job runs
// on its own execution: store writes and the processor itself go through the
// blocking pool, while the lifecycle transitions between them are compute
// segments.
type Engine struct {
	store    store.Store
	registry *processor.Registry
	control  *exec.Control
	logger   *slog.Logger
	broker   *EventBroker
}

// ErrUnknownProcessor is returned by Submit for an unregistered processor.
var ErrUnknownProcessor = errors.New("unknown processor")

// NewEngine creates a new job engine.
func NewEngine(s store.Store, reg *processor.Registry, control *exec.Control, logger *slog.Logger) *Engine {
	return &Engine{
		store:    s,
		registry: reg,
		control:  control,
		logger:   logger,
		broker:   NewEventBroker(),
	}
}

// Broker returns the engine's event broker for SSE subscription.
func (e *Engine) Broker() *EventBroker {
	return e.broker
}

// Submit validates the job, stores it with status "pending" and forks an
// execution that carries it to a terminal state. The job record written
// before returning is the caller's receipt; everything after happens on the
// engine's pools.
func (e *Engine) Submit(ctx context.Context, j *model.Job) error {
	if _, err := e.registry.Resolve(j.Processor); err != nil {
		return fmt.Errorf("%w: %s", ErrUnknownProcessor, j.Processor)
	}

	if err := e.store.CreateJob(ctx, j); err != nil {
		return fmt.Errorf("create job: %w", err)
	}
	e.recordEvent(ctx, j.ID, model.EventAccepted, "")

	jobID, processorName, payload := j.ID, j.Processor, j.Payload
	err := e.control.Fork(ctx, e.run(jobID, processorName, payload),
		exec.WithOnError(func(err error) {
			e.logger.Error("job execution error", "job_id", jobID, "error", err)
			e.failDirect(jobID, err.Error())
		}),
		exec.WithOnComplete(func(*exec.Execution) {
			e.broker.Close(jobID)
		}),
	)
	if err != nil {
		return fmt.Errorf("fork job execution: %w", err)
	}
	return nil
}

// run is the initial segment of a job's execution. Every store touch and the
// processor invocation are promises resolved on the blocking pool; their
// continuations run back on this execution.
func (e *Engine) run(jobID, processorName string, payload []byte) exec.Action {
	return func(ctx context.Context, _ *exec.Execution) error {
		start := time.Now().UTC()

		transition := exec.Blocking(ctx, func() (struct{}, error) {
			err := e.store.UpdateJobStatus(context.Background(), jobID, model.StatusRunning)
			if err == nil {
				e.recordEvent(context.Background(), jobID, model.EventRunning, "")
			}
			return struct{}{}, err
		})
		return transition.Result(func(ctx context.Context, r exec.Result[struct{}]) error {
			if r.IsFailure() {
				return e.finishFailed(ctx, jobID, nil, fmt.Sprintf("failed to start: %v", r.Err()))
			}

			proc, err := e.registry.Resolve(processorName)
			if err != nil {
				return e.finishFailed(ctx, jobID, &start, fmt.Sprintf("resolve processor: %v", err))
			}

			work := exec.Blocking(ctx, func() ([]byte, error) {
				return proc.Process(payload)
			})
			return work.Result(func(ctx context.Context, r exec.Result[[]byte]) error {
				if r.IsFailure() {
					return e.finishFailed(ctx, jobID, &start, r.Err().Error())
				}
				return e.finishCompleted(ctx, jobID, &start, r.Value())
			})
		})
	}
}

// finishCompleted persists the terminal completed state and emits the final
// event, all on the blocking pool.
func (e *Engine) finishCompleted(ctx context.Context, jobID string, startedAt *time.Time, output []byte) error {
	now := time.Now().UTC()
	durationMS := int(now.Sub(*startedAt).Milliseconds())

	j := &model.Job{
		ID:         jobID,
		Status:     model.StatusCompleted,
		Output:     output,
		DurationMS: &durationMS,
		StartedAt:  startedAt,
		FinishedAt: &now,
	}

	final := exec.Blocking(ctx, func() (struct{}, error) {
		if err := e.store.UpdateJob(context.Background(), j); err != nil {
			return struct{}{}, fmt.Errorf("update completed job: %w", err)
		}
		e.recordEvent(context.Background(), jobID, model.EventCompleted, string(output))
		return struct{}{}, nil
	})
	return final.Result(func(ctx context.Context, r exec.Result[struct{}]) error {
		if r.IsFailure() {
			e.logger.Error("failed to persist completed job", "job_id", jobID, "error", r.Err())
		}
		return nil
	})
}

// finishFailed marks a job as failed with the given error message.
// startedAt may be nil if the job never started running.
func (e *Engine) finishFailed(ctx context.Context, jobID string, startedAt *time.Time, errMsg string) error {
	now := time.Now().UTC()
	var durationMS int
	if startedAt != nil {
		durationMS = int(now.Sub(*startedAt).Milliseconds())
	}

	j := &model.Job{
		ID:         jobID,
		Status:     model.StatusFailed,
		Error:      errMsg,
		DurationMS: &durationMS,
		StartedAt:  startedAt,
		FinishedAt: &now,
	}

	final := exec.Blocking(ctx, func() (struct{}, error) {
		if err := e.store.UpdateJob(context.Background(), j); err != nil {
			return struct{}{}, fmt.Errorf("update failed job: %w", err)
		}
		e.recordEvent(context.Background(), jobID, model.EventFailed, errMsg)
		return struct{}{}, nil
	})
	return final.Result(func(ctx context.Context, r exec.Result[struct{}]) error {
		if r.IsFailure() {
			e.logger.Error("failed to persist failed job", "job_id", jobID, "error", r.Err())
		}
		return nil
	})
}

// failDirect is the last-resort failure path used when a segment error
// escapes to the execution's error handler. It runs outside any execution,
// so it writes to the store directly.
func (e *Engine) failDirect(jobID, errMsg string) {
	now := time.Now().UTC()
	j := &model.Job{
		ID:         jobID,
		Status:     model.StatusFailed,
		Error:      errMsg,
		FinishedAt: &now,
	}
	if err := e.store.UpdateJob(context.Background(), j); err != nil {
		e.logger.Error("failed to persist failed job", "job_id", jobID, "error", err)
		return
	}
	e.recordEvent(context.Background(), jobID, model.EventFailed, errMsg)
}

// recordEvent persists one lifecycle event and publishes it to live
// subscribers. Persistence failures are logged, not propagated; the event
// stream is advisory.
func (e *Engine) recordEvent(ctx context.Context, jobID, kind, data string) {
	ev := model.Event{
		JobID:     jobID,
		Kind:      kind,
		Data:      data,
		CreatedAt: time.Now().UTC(),
	}
	if err := e.store.AppendEvent(ctx, &ev); err != nil {
		e.logger.Error("failed to persist event", "job_id", jobID, "kind", kind, "error", err)
	}
	e.broker.Publish(ev)
}
