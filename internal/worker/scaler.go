package worker

import (
	"context"
	"log"
	"sync/atomic"
	"time"
)

// ScalableQueue is the Depth probe the Scaler polls.
type ScalableQueue interface {
	Depth(ctx context.Context) (int64, error)
}

// Resizable is the pull-loop concurrency knob the Scaler drives.
type Resizable interface {
	Resize(n int)
	Concurrency() int
}

// ScalerConfig tunes the desired-worker-count formula:
// desired = clamp(ceil(depth/JobsPerWorker), MinWorkers, MaxWorkers).
type ScalerConfig struct {
	MinWorkers    int
	MaxWorkers    int
	JobsPerWorker int
	Interval      time.Duration
}

func (c *ScalerConfig) applyDefaults() {
	if c.MinWorkers <= 0 {
		c.MinWorkers = 1
	}
	if c.MaxWorkers < c.MinWorkers {
		c.MaxWorkers = c.MinWorkers
	}
	if c.JobsPerWorker <= 0 {
		c.JobsPerWorker = 1
	}
	if c.Interval <= 0 {
		c.Interval = 10 * time.Second
	}
}

// Scaler periodically resizes a Pool to match queue backlog. A single
// in-flight scale decision is enforced with an atomic flag so a slow
// Depth call never stacks concurrent Resize calls.
type Scaler struct {
	queue  ScalableQueue
	pool   Resizable
	cfg    ScalerConfig
	inFlight atomic.Bool
}

// NewScaler constructs a Scaler. Call Run to start its periodic loop; Run
// blocks until ctx is cancelled.
func NewScaler(queue ScalableQueue, pool Resizable, cfg ScalerConfig) *Scaler {
	cfg.applyDefaults()
	return &Scaler{queue: queue, pool: pool, cfg: cfg}
}

// Run blocks, recomputing and applying the desired worker count on each
// tick, until ctx is cancelled.
func (s *Scaler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scaler) tick(ctx context.Context) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer s.inFlight.Store(false)

	depth, err := s.queue.Depth(ctx)
	if err != nil {
		log.Printf("scaler: read queue depth: %v", err)
		return
	}

	desired := s.desiredWorkers(depth)
	if desired != s.pool.Concurrency() {
		log.Printf("scaler: resizing pool from %d to %d workers (depth=%d)", s.pool.Concurrency(), desired, depth)
		s.pool.Resize(desired)
	}
}

func (s *Scaler) desiredWorkers(depth int64) int {
	n := int((depth + int64(s.cfg.JobsPerWorker) - 1) / int64(s.cfg.JobsPerWorker))
	if n < s.cfg.MinWorkers {
		n = s.cfg.MinWorkers
	}
	if n > s.cfg.MaxWorkers {
		n = s.cfg.MaxWorkers
	}
	return n
}
