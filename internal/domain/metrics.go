package domain

import "time"

// SystemMetric is a collaborator-owned aggregate snapshot. The core only
// produces and publishes it; it plays no role in scheduling correctness.
type SystemMetric struct {
	Timestamp        time.Time
	QueueWaiting     int64
	QueueActive      int64
	QueueDelayed     int64
	QueueCompleted   int64
	QueueFailed      int64
	ActiveContainers int
	MaxConcurrent    int
}

// ResourceState is the process-local state owned by the Resource Admission
// Controller.
type ResourceState struct {
	ActiveContainers      int
	MaxConcurrent         int
	MemoryPerContainerMB  int
	TotalMemoryMB         int
	MemoryThreshold       float64
}
