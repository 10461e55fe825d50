package retry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"forgerun/internal/domain"
	"forgerun/internal/statuspipeline"
)

type fakeQueue struct {
	mu              sync.Mutex
	requeued        []time.Duration
	requeuedAttempt []int
	deadLettered    []string
}

func (f *fakeQueue) Requeue(ctx context.Context, jobID string, delay time.Duration, attemptsMade int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requeued = append(f.requeued, delay)
	f.requeuedAttempt = append(f.requeuedAttempt, attemptsMade)
	return nil
}

func (f *fakeQueue) MoveToDeadLetter(ctx context.Context, jobID string, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deadLettered = append(f.deadLettered, jobID)
	return nil
}

type fakeStatus struct {
	mu        sync.Mutex
	published []domain.Status
}

func (f *fakeStatus) Publish(jobID string, status domain.Status, result *statuspipeline.Result) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, status)
}

// The Worker Pool, not this controller, owns attempts_made: it increments
// the counter once per attempt it runs to completion, before handing a
// failure here. These tests set job.AttemptsMade as the pool would have
// left it — already reflecting the attempt that just failed.
func TestHandleFailure_RetriesWithScheduledDelay(t *testing.T) {
	q := &fakeQueue{}
	s := &fakeStatus{}
	c := New(q, s)

	job := &domain.Job{ID: uuid.New(), AttemptsMade: 2}
	if err := c.HandleFailure(context.Background(), job, nil, "boom"); err != nil {
		t.Fatalf("HandleFailure: %v", err)
	}

	if len(q.requeued) != 1 || q.requeued[0] != Delays[1] {
		t.Fatalf("expected requeue with Delays[1]=%s, got %v", Delays[1], q.requeued)
	}
	if q.requeuedAttempt[0] != 2 {
		t.Fatalf("expected requeue to carry attempts_made=2, got %d", q.requeuedAttempt[0])
	}
	if job.AttemptsMade != 2 {
		t.Fatalf("expected HandleFailure to leave attempts_made untouched, got %d", job.AttemptsMade)
	}
	if len(q.deadLettered) != 0 {
		t.Fatalf("expected no dead-letter move, got %v", q.deadLettered)
	}
}

func TestHandleFailure_ExhaustsToDeadLetterAtScheduleLength(t *testing.T) {
	q := &fakeQueue{}
	s := &fakeStatus{}
	c := New(q, s)

	job := &domain.Job{ID: uuid.New(), AttemptsMade: len(Delays) + 1}
	if err := c.HandleFailure(context.Background(), job, nil, "still failing"); err != nil {
		t.Fatalf("HandleFailure: %v", err)
	}

	if len(q.deadLettered) != 1 {
		t.Fatalf("expected job moved to dead-letter queue, got %v", q.deadLettered)
	}
	if len(q.requeued) != 0 {
		t.Fatalf("expected no further requeue, got %v", q.requeued)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	last := s.published[len(s.published)-1]
	if last != domain.StatusFailedPermanently {
		t.Fatalf("expected final status failed_permanently, got %v", last)
	}
}

func TestHandleFailure_ZeroMaxAttemptsOptsOutOfRetry(t *testing.T) {
	q := &fakeQueue{}
	s := &fakeStatus{}
	c := New(q, s)

	zero := 0
	job := &domain.Job{ID: uuid.New(), AttemptsMade: 1, MaxAttempts: &zero}
	if err := c.HandleFailure(context.Background(), job, nil, "no retries wanted"); err != nil {
		t.Fatalf("HandleFailure: %v", err)
	}

	if len(q.requeued) != 0 {
		t.Fatalf("expected attempts=0 to skip retry entirely, got %v", q.requeued)
	}
	if len(q.deadLettered) != 1 {
		t.Fatalf("expected immediate dead-letter move, got %v", q.deadLettered)
	}
}

func TestHandleFailure_PublishesFailedBeforeDecidingOutcome(t *testing.T) {
	q := &fakeQueue{}
	s := &fakeStatus{}
	c := New(q, s)

	job := &domain.Job{ID: uuid.New(), AttemptsMade: 1}
	if err := c.HandleFailure(context.Background(), job, nil, "err"); err != nil {
		t.Fatalf("HandleFailure: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.published) == 0 || s.published[0] != domain.StatusFailed {
		t.Fatalf("expected failed to be published first, got %v", s.published)
	}
}

// TestHandleFailure_RetrySuccessReachesAttemptsMadeTwo exercises the exact
// boundary scenario: a job whose first attempt fails and whose retry
// succeeds ends with attempts_made=2. The increment itself happens in the
// Worker Pool; this only verifies the controller schedules the retry
// rather than dead-lettering a job with a single failed attempt.
func TestHandleFailure_RetrySuccessReachesAttemptsMadeTwo(t *testing.T) {
	q := &fakeQueue{}
	s := &fakeStatus{}
	c := New(q, s)

	job := &domain.Job{ID: uuid.New(), AttemptsMade: 1}
	if err := c.HandleFailure(context.Background(), job, nil, "first attempt failed"); err != nil {
		t.Fatalf("HandleFailure: %v", err)
	}
	if len(q.deadLettered) != 0 {
		t.Fatalf("expected a retry to be scheduled after a single failure, got dead-letter")
	}

	job.AttemptsMade++
	if job.AttemptsMade != 2 {
		t.Fatalf("expected attempts_made=2 after retry succeeds, got %d", job.AttemptsMade)
	}
}
