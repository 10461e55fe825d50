// Package statuspipeline serializes status writes per job through a
// single consumer, keeping the executing worker's hot path non-blocking
// while guaranteeing that durable storage only ever sees legal
// transitions.
package statuspipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"forgerun/internal/domain"
	"forgerun/internal/logger"
)

// eventQueueSize bounds the pending-write queue. The pipeline is the
// system's only writer of job status, so this only needs to absorb bursts
// from many workers finishing at once, not sustained backpressure.
const eventQueueSize = 1024

// Result carries the terminal detail that accompanies certain transitions
// (exit code, error text, end time, attempt count). Nil for transitions
// that carry none. AttemptsMade is a pointer so a transition that doesn't
// know the count (e.g. the Retry Controller's intermediate retrying/
// waiting republishes) leaves the durably stored value untouched instead
// of clobbering it.
type Result struct {
	ExitCode     *int
	Error        string
	EndTime      *time.Time
	AttemptsMade *int
}

// Event is one requested status transition for a job.
type Event struct {
	JobID  string
	Status domain.Status
	Result *Result
}

// Store applies a validated status transition to durable storage.
// Satisfied by the Postgres job repository.
type Store interface {
	UpdateStatus(ctx context.Context, jobID string, status domain.Status, result *Result) error
}

// Publisher republishes an applied transition on the realtime status
// channel. Satisfied by the pub/sub package.
type Publisher interface {
	PublishStatus(ctx context.Context, jobID string, status domain.Status) error
}

// Pipeline is the single-consumer status queue.
type Pipeline struct {
	store     Store
	publisher Publisher

	queue chan Event

	mu   sync.Mutex
	last map[string]domain.Status

	done chan struct{}
	log  *slog.Logger
}

// New constructs a Pipeline and starts its consumer goroutine. Call Close
// to drain and stop it during shutdown.
func New(store Store, publisher Publisher) *Pipeline {
	p := &Pipeline{
		store:     store,
		publisher: publisher,
		queue:     make(chan Event, eventQueueSize),
		last:      make(map[string]domain.Status),
		done:      make(chan struct{}),
		log:       logger.New(),
	}
	go p.consume()
	return p
}

// WithLogger overrides the pipeline's structured logger.
func (p *Pipeline) WithLogger(l *slog.Logger) *Pipeline {
	p.log = l
	return p
}

// Seed records a job's current status without running it through the DAG
// check, for pipelines started against jobs already in flight (e.g. after
// a process restart, seeded from a durable-store read).
func (p *Pipeline) Seed(jobID string, status domain.Status) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.last[jobID] = status
}

// Publish enqueues a requested transition. It blocks only if the queue is
// saturated, which signals the consumer has fallen critically behind.
func (p *Pipeline) Publish(jobID string, status domain.Status, result *Result) {
	p.queue <- Event{JobID: jobID, Status: status, Result: result}
}

// Close stops accepting further transitions and waits for the consumer to
// drain the queue it already has.
func (p *Pipeline) Close() {
	close(p.queue)
	<-p.done
}

func (p *Pipeline) consume() {
	defer close(p.done)
	for evt := range p.queue {
		p.apply(evt)
	}
}

func (p *Pipeline) apply(evt Event) {
	ctx := logger.WithJobID(context.Background(), evt.JobID)
	log := logger.FromContext(ctx, p.log)

	p.mu.Lock()
	prev, known := p.last[evt.JobID]
	if !known {
		prev = ""
	}
	if prev == evt.Status {
		// Idempotent replay: no-op, not an error.
		p.mu.Unlock()
		return
	}
	if !domain.ValidTransition(prev, evt.Status) {
		p.mu.Unlock()
		log.Warn("statuspipeline: dropping illegal transition", "from", prev, "to", evt.Status)
		return
	}
	p.last[evt.JobID] = evt.Status
	p.mu.Unlock()

	writeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := p.store.UpdateStatus(writeCtx, evt.JobID, evt.Status, evt.Result); err != nil {
		log.Error("statuspipeline: persist status", "error", err)
		return
	}
	if err := p.publisher.PublishStatus(writeCtx, evt.JobID, evt.Status); err != nil {
		log.Error("statuspipeline: publish status", "error", err)
	}
}
