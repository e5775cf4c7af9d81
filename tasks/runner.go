package tasks

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/goliatone/go-tracking/core"
)

// AttemptNacker is satisfied by deliveries that can bound retries by
// attempt count (see adapters/gojob).
type AttemptNacker interface {
	NackForAttempt(ctx context.Context, opts core.JobNackOptions, attempt int) error
}

// Runner drains the durable queue and dispatches each delivery to its
// task handler through an exhaustive switch over the closed message
// set. Soft not-found failures are acked; non-retryable failures are
// dead-lettered; everything else is requeued with backoff until
// MaxAttempts is reached, then dead-lettered. On context
// cancellation no new deliveries are dequeued and the in-flight task
// finishes.
type Runner struct {
	Dequeuer  core.JobDequeuer
	Register  *RegisterTask
	Ingest    *IngestTask
	Recompute *RecomputeTask
	Hook      core.JobWorkerHook
	Logger    core.Logger

	RetryDelay  time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

func NewRunner(
	dequeuer core.JobDequeuer,
	register *RegisterTask,
	ingest *IngestTask,
	recompute *RecomputeTask,
	logger core.Logger,
) *Runner {
	return &Runner{
		Dequeuer:   dequeuer,
		Register:   register,
		Ingest:     ingest,
		Recompute:  recompute,
		Logger:      logger,
		RetryDelay:  5 * time.Second,
		MaxDelay:    5 * time.Minute,
		MaxAttempts: 5,
	}
}

func (r *Runner) Run(ctx context.Context) error {
	if r == nil || r.Dequeuer == nil {
		return fmt.Errorf("tasks: runner requires a dequeuer")
	}
	for {
		if ctx.Err() != nil {
			return nil
		}
		delivery, err := r.Dequeuer.Dequeue(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil
			}
			return err
		}
		if delivery == nil {
			continue
		}
		r.handle(ctx, delivery)
	}
}

func (r *Runner) handle(ctx context.Context, delivery core.JobDelivery) {
	msg := delivery.Message()
	startedAt := time.Now().UTC()
	attempt := deliveryAttempt(msg)

	r.hookStart(ctx, msg, attempt, startedAt)

	decoded, err := Decode(msg)
	if err != nil {
		// An undecodable message can never succeed; park it for an
		// operator instead of looping.
		r.logError("dead-lettering undecodable task", "error", err)
		_ = delivery.Nack(ctx, core.JobNackOptions{
			DeadLetter: true,
			Reason:     err.Error(),
		})
		r.hookFailure(ctx, msg, attempt, startedAt, err)
		return
	}

	err = r.execute(ctx, decoded)
	duration := time.Since(startedAt)

	switch {
	case err == nil:
		if ackErr := delivery.Ack(ctx); ackErr != nil {
			r.logError("task ack failed", "job_id", msg.JobID, "error", ackErr)
		}
		r.hookSuccess(ctx, msg, attempt, startedAt, duration)
	case core.IsNotFound(err):
		// Missing reference: retrying cannot fix it. Log and ack.
		r.logError("task reference missing", "job_id", msg.JobID, "error", err)
		if ackErr := delivery.Ack(ctx); ackErr != nil {
			r.logError("task ack failed", "job_id", msg.JobID, "error", ackErr)
		}
		r.hookSuccess(ctx, msg, attempt, startedAt, duration)
	case !core.IsRetryable(err):
		r.logError("dead-lettering failed task", "job_id", msg.JobID, "error", err)
		r.nack(ctx, delivery, core.JobNackOptions{
			DeadLetter: true,
			Reason:     err.Error(),
		}, attempt)
		r.hookFailure(ctx, msg, attempt, startedAt, err)
	default:
		if r.MaxAttempts > 0 && attempt >= r.MaxAttempts {
			// The retry budget is spent; park the message for an
			// operator instead of requeueing forever.
			r.logError("dead-lettering exhausted task", "job_id", msg.JobID, "attempt", attempt, "error", err)
			r.nack(ctx, delivery, core.JobNackOptions{
				DeadLetter: true,
				Reason:     err.Error(),
			}, attempt)
			r.hookFailure(ctx, msg, attempt, startedAt, err)
			return
		}
		delay := r.backoff(attempt)
		r.logError("requeueing failed task", "job_id", msg.JobID, "attempt", attempt, "delay", delay, "error", err)
		r.nack(ctx, delivery, core.JobNackOptions{
			Delay:   delay,
			Requeue: true,
			Reason:  err.Error(),
		}, attempt)
		r.hookRetry(ctx, msg, attempt, startedAt, delay, err)
	}
}

func (r *Runner) execute(ctx context.Context, msg Message) error {
	switch decoded := msg.(type) {
	case RegisterMessage:
		if r.Register == nil {
			return fmt.Errorf("tasks: register task is not configured")
		}
		return r.Register.Execute(ctx, decoded)
	case IngestMessage:
		if r.Ingest == nil {
			return fmt.Errorf("tasks: ingest task is not configured")
		}
		return r.Ingest.Execute(ctx, decoded)
	case RecomputeMessage:
		if r.Recompute == nil {
			return fmt.Errorf("tasks: recompute task is not configured")
		}
		return r.Recompute.Execute(ctx, decoded)
	default:
		return core.NewBadInput(fmt.Sprintf("tasks: unhandled task message %q", msg.Type()))
	}
}

func (r *Runner) nack(ctx context.Context, delivery core.JobDelivery, opts core.JobNackOptions, attempt int) {
	if nacker, ok := delivery.(AttemptNacker); ok {
		if err := nacker.NackForAttempt(ctx, opts, attempt); err != nil {
			r.logError("task nack failed", "error", err)
		}
		return
	}
	if err := delivery.Nack(ctx, opts); err != nil {
		r.logError("task nack failed", "error", err)
	}
}

func (r *Runner) backoff(attempt int) time.Duration {
	initial := r.RetryDelay
	if initial <= 0 {
		initial = 5 * time.Second
	}
	maximum := r.MaxDelay
	if maximum <= 0 {
		maximum = 5 * time.Minute
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	if delay > maximum {
		return maximum
	}
	return delay
}

func deliveryAttempt(msg *core.JobExecutionMessage) int {
	if msg == nil || len(msg.Parameters) == 0 {
		return 1
	}
	switch value := msg.Parameters["attempt"].(type) {
	case int:
		if value > 0 {
			return value
		}
	case float64:
		if value > 0 {
			return int(value)
		}
	case string:
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return 1
}

func (r *Runner) hookStart(ctx context.Context, msg *core.JobExecutionMessage, attempt int, startedAt time.Time) {
	if r == nil || r.Hook == nil {
		return
	}
	r.Hook.OnStart(ctx, core.JobWorkerEvent{Message: msg, Attempt: attempt, StartedAt: startedAt})
}

func (r *Runner) hookSuccess(ctx context.Context, msg *core.JobExecutionMessage, attempt int, startedAt time.Time, duration time.Duration) {
	if r == nil || r.Hook == nil {
		return
	}
	r.Hook.OnSuccess(ctx, core.JobWorkerEvent{Message: msg, Attempt: attempt, StartedAt: startedAt, Duration: duration})
}

func (r *Runner) hookFailure(ctx context.Context, msg *core.JobExecutionMessage, attempt int, startedAt time.Time, err error) {
	if r == nil || r.Hook == nil {
		return
	}
	r.Hook.OnFailure(ctx, core.JobWorkerEvent{Message: msg, Attempt: attempt, StartedAt: startedAt, Err: err})
}

func (r *Runner) hookRetry(ctx context.Context, msg *core.JobExecutionMessage, attempt int, startedAt time.Time, delay time.Duration, err error) {
	if r == nil || r.Hook == nil {
		return
	}
	r.Hook.OnRetry(ctx, core.JobWorkerEvent{Message: msg, Attempt: attempt, StartedAt: startedAt, Delay: delay, Err: err})
}

func (r *Runner) logError(msg string, args ...any) {
	if r != nil && r.Logger != nil {
		r.Logger.Error(msg, args...)
	}
}
