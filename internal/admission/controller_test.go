package admission

import (
	"sync"
	"testing"
)

func TestTryAdmit_RespectsMaxConcurrent(t *testing.T) {
	c := New(Config{MaxConcurrent: 2, MemoryPerContainerMB: 1, TotalMemoryMB: 1000, MemoryThreshold: 1})

	if !c.TryAdmit() {
		t.Fatal("expected first admit to succeed")
	}
	if !c.TryAdmit() {
		t.Fatal("expected second admit to succeed")
	}
	if c.TryAdmit() {
		t.Fatal("expected third admit to be denied at MaxConcurrent=2")
	}
}

func TestTryAdmit_RespectsMemoryBudget(t *testing.T) {
	c := New(Config{MaxConcurrent: 10, MemoryPerContainerMB: 512, TotalMemoryMB: 1000, MemoryThreshold: 1})

	if !c.TryAdmit() {
		t.Fatal("expected first admit to succeed (512 <= 1000)")
	}
	if c.TryAdmit() {
		t.Fatal("expected second admit to be denied (1024 > 1000)")
	}
}

func TestTryAdmit_ZeroMaxConcurrentDisablesAdmission(t *testing.T) {
	c := New(Config{MaxConcurrent: 0, MemoryPerContainerMB: 1, TotalMemoryMB: 1000, MemoryThreshold: 1})

	if c.TryAdmit() {
		t.Fatal("expected all admits to be denied when MaxConcurrent=0")
	}
}

func TestReleaseAllowsReAdmission(t *testing.T) {
	c := New(Config{MaxConcurrent: 1, MemoryPerContainerMB: 1, TotalMemoryMB: 1000, MemoryThreshold: 1})

	if !c.TryAdmit() {
		t.Fatal("expected admit to succeed")
	}
	if c.TryAdmit() {
		t.Fatal("expected second admit to be denied")
	}
	c.Release()
	if !c.TryAdmit() {
		t.Fatal("expected admit to succeed after release")
	}
}

func TestReleaseWithoutAdmitPanics(t *testing.T) {
	c := New(Config{MaxConcurrent: 1, MemoryPerContainerMB: 1, TotalMemoryMB: 1000, MemoryThreshold: 1})

	defer func() {
		if recover() == nil {
			t.Fatal("expected Release without a matching TryAdmit to panic")
		}
	}()
	c.Release()
}

func TestConcurrentAdmitNeverExceedsMax(t *testing.T) {
	const maxConcurrent = 5
	c := New(Config{MaxConcurrent: maxConcurrent, MemoryPerContainerMB: 1, TotalMemoryMB: 100000, MemoryThreshold: 1})

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	peak := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.TryAdmit() {
				mu.Lock()
				admitted++
				if admitted > peak {
					peak = admitted
				}
				mu.Unlock()

				c.Release()

				mu.Lock()
				admitted--
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if peak > maxConcurrent {
		t.Fatalf("observed peak concurrency %d exceeds MaxConcurrent %d", peak, maxConcurrent)
	}
}

type fixedProbe struct{ mb int }

func (f fixedProbe) AvailableMemoryMB() int { return f.mb }

func TestRecomputeLimitsUsesProbe(t *testing.T) {
	c := New(Config{MaxConcurrent: 1, MemoryPerContainerMB: 256, TotalMemoryMB: 100000, MemoryThreshold: 1})
	c.WithProbe(fixedProbe{mb: 2560})

	c.RecomputeLimits()

	_, max, _, _, _ := c.Snapshot()
	if max != 10 {
		t.Fatalf("expected MaxConcurrent derived to 10, got %d", max)
	}
}
