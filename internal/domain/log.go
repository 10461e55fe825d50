package domain

import "time"

// LogType distinguishes the two durable streams a job produces.
type LogType string

const (
	LogStdout LogType = "stdout"
	LogStderr LogType = "stderr"
)

// JobLog is one chunk of output. In-memory entries are deduplicated by
// (Type, Content) before reaching durable storage; only the consolidated
// per-type record survives a job's termination.
type JobLog struct {
	JobID     string
	Type      LogType
	Content   string
	Timestamp time.Time
}

// LogEntry is a persisted, consolidated record — one per (job, type).
type LogEntry struct {
	ID        int64
	JobID     string
	Type      LogType
	Content   string
	CreatedAt time.Time
}
