// Package admission implements the Resource Admission Controller: a
// single process-wide instance that gates container launches on both a
// concurrency ceiling and a memory-reservation budget.
package admission

import (
	"fmt"
	"sync"
)

// HostResourceProbe reports host capacity so RecomputeLimits can adjust
// MaxConcurrent from real conditions. Implementations are injected so
// tests can supply a fixed view; this package ships no implementation.
type HostResourceProbe interface {
	// AvailableMemoryMB returns memory the host can dedicate to containers.
	AvailableMemoryMB() int
}

// Config seeds the controller's resource budget.
type Config struct {
	MaxConcurrent        int
	MemoryPerContainerMB int
	TotalMemoryMB        int
	MemoryThreshold      float64 // (0,1]
}

// Controller is the process-wide Resource Admission Controller. All
// mutations are serialized through mu; activeContainers must never go
// negative — Release below a floor of zero is a fatal
// invariant violation and panics rather than silently corrupting state.
type Controller struct {
	mu sync.Mutex

	activeContainers    int
	maxConcurrent        int
	memoryPerContainerMB int
	totalMemoryMB        int
	memoryThreshold      float64

	probe HostResourceProbe
}

// New constructs a Controller from the given budget. A MemoryThreshold
// outside (0,1], zero included, is replaced by 1.0.
func New(cfg Config) *Controller {
	threshold := cfg.MemoryThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = 1
	}
	return &Controller{
		maxConcurrent:        cfg.MaxConcurrent,
		memoryPerContainerMB: cfg.MemoryPerContainerMB,
		totalMemoryMB:        cfg.TotalMemoryMB,
		memoryThreshold:      threshold,
	}
}

// WithProbe attaches a HostResourceProbe used by RecomputeLimits.
func (c *Controller) WithProbe(p HostResourceProbe) *Controller {
	c.probe = p
	return c
}

// TryAdmit reports whether one more container may be admitted and, if so,
// reserves the slot atomically. Callers that receive true MUST call
// Release exactly once when the container's lifecycle ends.
func (c *Controller) TryAdmit() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.activeContainers >= c.maxConcurrent {
		return false
	}
	projected := float64(c.activeContainers+1) * float64(c.memoryPerContainerMB)
	budget := float64(c.totalMemoryMB) * c.memoryThreshold
	if projected > budget {
		return false
	}

	c.activeContainers++
	return true
}

// Release gives back a slot reserved by a successful TryAdmit.
func (c *Controller) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.activeContainers <= 0 {
		panic(fmt.Sprintf("admission: Release called with activeContainers=%d", c.activeContainers))
	}
	c.activeContainers--
}

// Snapshot returns a point-in-time copy of the controller's resource
// state, suitable for metrics reporting.
func (c *Controller) Snapshot() (active, max int, memPerContainer, totalMem int, threshold float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.activeContainers, c.maxConcurrent, c.memoryPerContainerMB, c.totalMemoryMB, c.memoryThreshold
}

// RecomputeLimits optionally adjusts MaxConcurrent using the injected
// HostResourceProbe. It is a no-op if no probe was attached.
func (c *Controller) RecomputeLimits() {
	if c.probe == nil {
		return
	}
	avail := c.probe.AvailableMemoryMB()
	if avail <= 0 || c.memoryPerContainerMB <= 0 {
		return
	}
	derived := avail / c.memoryPerContainerMB

	c.mu.Lock()
	defer c.mu.Unlock()
	if derived > 0 {
		c.maxConcurrent = derived
	}
}
