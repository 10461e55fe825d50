// Package retry implements the Retry Controller: the bounded-backoff
// schedule that decides whether a failed job is re-enqueued or moved to
// the dead-letter queue. The Worker Pool owns the attempts_made counter
// itself, advancing it once per attempt it runs to completion; this
// package only reads it to decide the next step. Any attempts/backoff
// bookkeeping a queue backend keeps for its own redelivery purposes is
// advisory only — this package is what the rest of the system trusts.
package retry

import (
	"context"
	"fmt"
	"time"

	"forgerun/internal/domain"
	"forgerun/internal/statuspipeline"
)

// Delays is the fixed backoff schedule, indexed by the retry number
// (attempts_made-1) at the time of failure. len(Delays) is the default
// MAX_RETRIES, i.e. the number of retries on top of the initial attempt.
var Delays = []time.Duration{
	1 * time.Second,
	5 * time.Second,
	15 * time.Second,
	60 * time.Second,
	300 * time.Second,
}

// Queue is the subset of the durable queue the Retry Controller drives.
type Queue interface {
	// Requeue re-enqueues the same job payload, visible again after delay,
	// and persists the attempt count the job is being retried at.
	Requeue(ctx context.Context, jobID string, delay time.Duration, attemptsMade int) error
	// MoveToDeadLetter records the exhausted job in the dead-letter queue,
	// preserving its original payload for inspection and manual retry.
	MoveToDeadLetter(ctx context.Context, jobID string, reason string) error
}

// StatusPublisher is the narrow slice of statuspipeline.Pipeline this
// package needs.
type StatusPublisher interface {
	Publish(jobID string, status domain.Status, result *statuspipeline.Result)
}

// Controller applies the retry/dead-letter policy on executor failure.
type Controller struct {
	queue  Queue
	status StatusPublisher
	delays []time.Duration
}

// New constructs a Controller using the default Delays schedule.
func New(q Queue, status StatusPublisher) *Controller {
	return &Controller{queue: q, status: status, delays: Delays}
}

// WithDelays overrides the backoff schedule (e.g. from RETRY_DELAYS). A nil
// or empty slice leaves the default schedule in place.
func (c *Controller) WithDelays(delays []time.Duration) *Controller {
	if len(delays) > 0 {
		c.delays = delays
	}
	return c
}

// maxAttempts resolves the effective retry budget for job — the number of
// retries on top of the initial attempt: its own MaxAttempts override if
// set, otherwise the schedule's length. The job's total attempt ceiling
// is one more than this (MAX_RETRIES+1).
func (c *Controller) maxAttempts(job *domain.Job) int {
	if job.MaxAttempts != nil {
		return *job.MaxAttempts
	}
	return len(c.delays)
}

// HandleFailure is invoked once per executor failure (including timeouts
// and container-kill exits, which are failures like any other), after the
// Worker Pool has already advanced job.AttemptsMade for the attempt that
// just ran. It marks the job failed, then either schedules a retry with
// the backoff indexed by the retry number, or exhausts it to the
// dead-letter queue once attempts_made reaches MAX_RETRIES+1.
func (c *Controller) HandleFailure(ctx context.Context, job *domain.Job, exitCode *int, errMsg string) error {
	jobID := job.ID.String()

	c.status.Publish(jobID, domain.StatusFailed, &statuspipeline.Result{
		ExitCode: exitCode,
		Error:    errMsg,
	})

	budget := c.maxAttempts(job)
	if job.AttemptsMade < budget+1 {
		// Indices beyond the schedule's length (possible when a job's own
		// MaxAttempts override exceeds len(c.delays)) reuse the longest delay.
		idx := job.AttemptsMade - 1
		if idx < 0 {
			idx = 0
		}
		if idx >= len(c.delays) {
			idx = len(c.delays) - 1
		}
		delay := c.delays[idx]

		c.status.Publish(jobID, domain.StatusRetrying, nil)

		if err := c.queue.Requeue(ctx, jobID, delay, job.AttemptsMade); err != nil {
			return fmt.Errorf("retry: requeue job %s: %w", jobID, err)
		}
		c.status.Publish(jobID, domain.StatusWaiting, nil)
		return nil
	}

	if err := c.queue.MoveToDeadLetter(ctx, jobID, errMsg); err != nil {
		return fmt.Errorf("retry: move job %s to dead-letter queue: %w", jobID, err)
	}
	c.status.Publish(jobID, domain.StatusFailedPermanently, &statuspipeline.Result{
		ExitCode: exitCode,
		Error:    errMsg,
	})
	return nil
}
