// Package worker implements the Worker Pool: a fixed (but rescalable) set
// of pull-loop consumers that claim jobs from the durable queue, run them
// through admission and the Container Executor, and hand terminal outcomes
// to the Status Pipeline, Log Multiplexer, and Retry Controller. The
// pull-loop shape — semaphore-bounded concurrency, adaptive backoff on an
// empty queue, and a heartbeat goroutine extending queue visibility during
// long executions — follows the same pattern as a single worker agent,
// scaled out to N.
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"forgerun/internal/domain"
	"forgerun/internal/executor"
	"forgerun/internal/logger"
	"forgerun/internal/statuspipeline"
)

// Queue is the subset of the durable queue the pool drives directly.
// Requeue-on-failure and dead-lettering belong to the Retry Controller,
// not here.
type Queue interface {
	// ClaimBatch atomically claims up to limit waiting jobs.
	ClaimBatch(ctx context.Context, limit int) ([]*domain.Job, error)
	// Delay moves a claimed-but-not-yet-started job back to delayed,
	// visible again at after. Used when admission denies a job: try_admit
	// is non-blocking; on denial the worker defers, it does not fail the
	// job.
	Delay(ctx context.Context, jobID string, after time.Time) error
	// SetVisibleAfter extends a claimed job's visibility timeout; the
	// heartbeat during long executions.
	SetVisibleAfter(ctx context.Context, jobID string, after time.Time) error
	// Depth reports the combined waiting+delayed backlog, for the Scaler.
	Depth(ctx context.Context) (int64, error)
}

// Executor runs one job's container to completion.
type Executor interface {
	Run(ctx context.Context, job *domain.Job) (executor.Result, error)
}

// Admitter gates container launches on the process-wide resource budget.
// The Worker Pool owns the admission check as a step ahead of the
// Workspace Manager and Container Executor; it is not the Executor's
// concern.
type Admitter interface {
	TryAdmit() bool
	Release()
}

// RetryController decides requeue-with-backoff vs dead-letter on failure.
type RetryController interface {
	HandleFailure(ctx context.Context, job *domain.Job, exitCode *int, errMsg string) error
}

// StatusPublisher is the narrow slice of statuspipeline.Pipeline the pool
// needs.
type StatusPublisher interface {
	Publish(jobID string, status domain.Status, result *statuspipeline.Result)
	// Seed records a claimed job's current status without running it
	// through the DAG check. The Pipeline's in-memory last-status map
	// starts out knowing nothing about a job it hasn't seen this
	// process's lifetime; without seeding it from the status the claim
	// just read out of durable storage, the first real transition
	// (waiting->active) would be checked against an unknown prior status
	// and rejected.
	Seed(jobID string, status domain.Status)
}

// LogFlusher consolidates and persists a job's accumulated output once it
// reaches a terminal state.
type LogFlusher interface {
	Flush(ctx context.Context, jobID string) error
}

// Config tunes the pool's pull-loop behavior.
type Config struct {
	Concurrency         int
	PollInterval        time.Duration
	MaxBackoff          time.Duration
	HeartbeatInterval   time.Duration
	VisibilityExtension time.Duration
	// DelayOnDenial is how long a denied-admission job waits before it is
	// eligible to be claimed again.
	DelayOnDenial time.Duration
}

func (c *Config) applyDefaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 30 * time.Second
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 2 * time.Minute
	}
	if c.VisibilityExtension <= 0 {
		c.VisibilityExtension = 5 * time.Minute
	}
	if c.DelayOnDenial <= 0 {
		c.DelayOnDenial = 5 * time.Second
	}
}

// Pool is one scalable group of job consumers.
type Pool struct {
	queue    Queue
	admitter Admitter
	exec     Executor
	retry    RetryController
	status   StatusPublisher
	logs     LogFlusher
	cfg      Config
	log      *slog.Logger

	mu          sync.Mutex
	concurrency int
	sem         chan struct{}

	done chan struct{}
}

// New constructs a Pool. Call Run to start its pull-loop; Run blocks until
// ctx is cancelled.
func New(queue Queue, admitter Admitter, exec Executor, retry RetryController, status StatusPublisher, logs LogFlusher, cfg Config) *Pool {
	cfg.applyDefaults()
	return &Pool{
		queue:       queue,
		admitter:    admitter,
		exec:        exec,
		retry:       retry,
		status:      status,
		logs:        logs,
		cfg:         cfg,
		concurrency: cfg.Concurrency,
		sem:         make(chan struct{}, cfg.Concurrency),
		done:        make(chan struct{}),
		log:         logger.New(),
	}
}

// WithLogger overrides the pool's structured logger, for callers that want
// a shared logger instance across components.
func (p *Pool) WithLogger(l *slog.Logger) *Pool {
	p.log = l
	return p
}

// Concurrency reports the pool's current worker count, for the Scaler.
func (p *Pool) Concurrency() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.concurrency
}

// Resize changes the pool's claim concurrency. Scale-up takes effect
// immediately (more semaphore capacity is available on the next poll);
// scale-down is cooperative — already-acquired slots drain naturally as
// in-flight jobs finish, a graceful stop rather than a hard cutoff.
func (p *Pool) Resize(n int) {
	if n <= 0 {
		n = 1
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if n == p.concurrency {
		return
	}
	p.concurrency = n
	p.sem = make(chan struct{}, n)
}

func (p *Pool) capacity() (total, used int) {
	p.mu.Lock()
	sem := p.sem
	total = p.concurrency
	p.mu.Unlock()
	return total, len(sem)
}

// Done returns a channel closed once Run has fully drained in-flight jobs
// after ctx is cancelled.
func (p *Pool) Done() <-chan struct{} {
	return p.done
}

// Run is the pool's pull-loop. It blocks until ctx is cancelled, then
// waits for in-flight jobs before returning.
func (p *Pool) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	pollNow := make(chan struct{}, 1)
	trigger := func() {
		select {
		case pollNow <- struct{}{}:
		default:
		}
	}
	trigger()

	backoff := p.cfg.PollInterval

	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			close(p.done)
			return ctx.Err()

		case <-time.After(backoff):
			trigger()

		case <-pollNow:
			total, used := p.capacity()
			slots := total - used
			if slots <= 0 {
				continue
			}

			jobs, err := p.queue.ClaimBatch(ctx, slots)
			if err != nil {
				p.log.Error("worker: claim batch", "error", err)
				continue
			}
			if len(jobs) == 0 {
				backoff *= 2
				if backoff > p.cfg.MaxBackoff {
					backoff = p.cfg.MaxBackoff
				}
				continue
			}
			backoff = p.cfg.PollInterval

			p.mu.Lock()
			sem := p.sem
			p.mu.Unlock()

			for _, job := range jobs {
				sem <- struct{}{}
				wg.Add(1)
				go func(j *domain.Job) {
					defer wg.Done()
					defer func() {
						<-sem
						trigger()
					}()
					p.processJob(ctx, j)
				}(job)
			}

			if len(jobs) < slots {
				trigger()
			}
		}
	}
}

// processJob runs admit → persist active → execute → flush → terminal
// status for one claimed job, handing failures to the Retry Controller.
// Admission is checked before the job is ever marked active: a denial is
// a transient, locally-handled deferral, not a job failure, and the
// status DAG has no active→delayed edge, only waiting→delayed.
func (p *Pool) processJob(ctx context.Context, job *domain.Job) {
	jobID := job.ID.String()
	ctx = logger.WithJobID(logger.WithTenantID(ctx, job.TenantID.String()), jobID)
	log := logger.FromContext(ctx, p.log)

	p.status.Seed(jobID, job.Status)

	if !p.admitter.TryAdmit() {
		if derr := p.queue.Delay(context.Background(), jobID, time.Now().Add(p.cfg.DelayOnDenial)); derr != nil {
			log.Error("worker: delay denied job", "error", derr)
		}
		p.status.Publish(jobID, domain.StatusDelayed, nil)
		return
	}
	defer p.admitter.Release()

	p.status.Publish(jobID, domain.StatusActive, nil)

	heartbeatCtx, cancelHeartbeat := context.WithCancel(context.Background())
	defer cancelHeartbeat()
	go p.runHeartbeat(heartbeatCtx, jobID)

	now := time.Now().UTC()
	job.StartTime = &now

	result, err := p.exec.Run(ctx, job)
	cancelHeartbeat()

	job.Touch(time.Now().UTC())

	// One attempt has now run to completion, success or failure; the
	// counter advances here rather than in the Retry Controller so a job
	// that fails once and then succeeds on retry still ends with
	// attempts_made=2.
	job.AttemptsMade++
	attemptsMade := job.AttemptsMade

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if ferr := p.logs.Flush(flushCtx, jobID); ferr != nil {
		log.Error("worker: flush logs", "error", ferr)
	}
	flushCancel()

	if err == nil {
		exitCode := result.ExitCode
		p.status.Publish(jobID, domain.StatusCompleted, &statuspipeline.Result{
			ExitCode:     &exitCode,
			EndTime:      job.EndTime,
			AttemptsMade: &attemptsMade,
		})
		return
	}

	// A timeout is reported through the error text (the executor already
	// formats it as "timed out after <duration>") rather than a distinct
	// timed_out status: the status DAG only has an active->failed edge, and
	// the Retry Controller immediately republishes failed as its first step
	// regardless of cause, so tracking timeouts as their own terminal status
	// here would just dead-end the job at timed_out once the controller's
	// own failed/retrying/waiting chain ran on top of it.
	exitCode := result.ExitCode
	p.status.Publish(jobID, domain.StatusFailed, &statuspipeline.Result{
		ExitCode:     &exitCode,
		Error:        err.Error(),
		EndTime:      job.EndTime,
		AttemptsMade: &attemptsMade,
	})

	if rerr := p.retry.HandleFailure(context.Background(), job, &exitCode, err.Error()); rerr != nil {
		log.Error("worker: retry controller", "error", rerr)
	}
}

func (p *Pool) runHeartbeat(ctx context.Context, jobID string) {
	ticker := time.NewTicker(p.cfg.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			after := time.Now().Add(p.cfg.VisibilityExtension)
			if err := p.queue.SetVisibleAfter(context.Background(), jobID, after); err != nil {
				logger.FromContext(logger.WithJobID(ctx, jobID), p.log).Error("worker: heartbeat", "error", err)
			}
		}
	}
}
