package statuspipeline

import (
	"context"
	"sync"
	"testing"
	"time"

	"forgerun/internal/domain"
)

type recordedUpdate struct {
	jobID  string
	status domain.Status
}

type fakeStore struct {
	mu      sync.Mutex
	updates []recordedUpdate
}

func (f *fakeStore) UpdateStatus(ctx context.Context, jobID string, status domain.Status, result *Result) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, recordedUpdate{jobID, status})
	return nil
}

func (f *fakeStore) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

type fakePublisher struct {
	mu        sync.Mutex
	published []recordedUpdate
}

func (f *fakePublisher) PublishStatus(ctx context.Context, jobID string, status domain.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, recordedUpdate{jobID, status})
	return nil
}

func waitFor(t *testing.T, get func() int, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if get() >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for count >= %d, got %d", want, get())
}

func TestPublish_AppliesLegalTransitionChain(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	p := New(store, pub)
	defer p.Close()

	p.Publish("job-1", domain.StatusWaiting, nil)
	p.Publish("job-1", domain.StatusActive, nil)
	p.Publish("job-1", domain.StatusCompleted, nil)

	waitFor(t, store.count, 3)
	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.updates) != 3 {
		t.Fatalf("expected 3 applied updates, got %d", len(store.updates))
	}
	if store.updates[2].status != domain.StatusCompleted {
		t.Fatalf("expected final status completed, got %v", store.updates[2].status)
	}
}

func TestPublish_DropsIllegalTransition(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	p := New(store, pub)
	defer p.Close()

	p.Publish("job-2", domain.StatusWaiting, nil)
	p.Publish("job-2", domain.StatusCompleted, nil) // illegal: waiting -> completed

	waitFor(t, store.count, 1)
	time.Sleep(20 * time.Millisecond)

	store.mu.Lock()
	defer store.mu.Unlock()
	if len(store.updates) != 1 {
		t.Fatalf("expected illegal transition to be dropped, got %d updates", len(store.updates))
	}
}

func TestPublish_ReplayOfSameStatusIsNoOp(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	p := New(store, pub)
	defer p.Close()

	p.Publish("job-3", domain.StatusWaiting, nil)
	waitFor(t, store.count, 1)

	p.Publish("job-3", domain.StatusWaiting, nil)
	time.Sleep(20 * time.Millisecond)

	if store.count() != 1 {
		t.Fatalf("expected replay of same status to be a no-op, got %d updates", store.count())
	}
}

func TestSeed_AllowsResumingFromKnownStatus(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	p := New(store, pub)
	defer p.Close()

	p.Seed("job-4", domain.StatusActive)
	p.Publish("job-4", domain.StatusCompleted, nil)

	waitFor(t, store.count, 1)
	if store.updates[0].status != domain.StatusCompleted {
		t.Fatalf("expected completed to apply cleanly after seeding active, got %v", store.updates[0].status)
	}
}

func TestClose_DrainsPendingEventsBeforeReturning(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	p := New(store, pub)

	p.Publish("job-5", domain.StatusWaiting, nil)
	p.Close()

	if store.count() != 1 {
		t.Fatalf("expected Close to drain the queued event, got %d", store.count())
	}
}
