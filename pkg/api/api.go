// Package api contains shared JSON request/response structs. It is
// imported by both the CLI and the controller handlers so the wire shape
// is defined exactly once.
package api

import "time"

// CreateTenantRequest is the request body for creating a new tenant.
type CreateTenantRequest struct {
	Name string `json:"name"`
}

// CreateTenantResponse is the response body after creating a tenant. ApiKey
// is visible exactly once, at creation time.
type CreateTenantResponse struct {
	ID     string `json:"tenant_id"`
	Name   string `json:"name"`
	ApiKey string `json:"api_key"`
}

// SubmitJobRequest is the request body for POST /jobs. SubmissionType
// selects which one of GitLink, RawCode, DockerImage must be set; the
// other two are not checked.
type SubmitJobRequest struct {
	SubmissionType string            `json:"submission_type"`
	GitLink        string            `json:"git_link,omitempty"`
	RawCode        string            `json:"raw_code,omitempty"`
	DockerImage    string            `json:"docker_image,omitempty"`
	Runtime        string            `json:"runtime,omitempty"`
	Dependencies   []string          `json:"dependencies,omitempty"`
	StartDirectory string            `json:"start_directory,omitempty"`
	InitialCmds    []string          `json:"initial_cmds,omitempty"`
	BuildCmd       string            `json:"build_cmd,omitempty"`
	Env            map[string]string `json:"env,omitempty"`
	MemoryLimit    string            `json:"memory_limit,omitempty"`
	TimeoutMS      int               `json:"timeout_ms,omitempty"`
	Priority       int               `json:"priority,omitempty"`
	MaxAttempts    *int              `json:"max_attempts,omitempty"`
}

// SubmitJobResponse is the response body after accepting a submission.
type SubmitJobResponse struct {
	JobID string `json:"job_id"`
}

// JobResponse represents a job's full lifecycle state in API responses.
type JobResponse struct {
	ID             string     `json:"id"`
	TenantID       string     `json:"tenant_id"`
	SubmissionType string     `json:"submission_type"`
	Runtime        string     `json:"runtime,omitempty"`
	Status         string     `json:"status"`
	Priority       int        `json:"priority"`
	AttemptsMade   int        `json:"attempts_made"`
	SubmittedAt    time.Time  `json:"submitted_at"`
	StartTime      *time.Time `json:"start_time,omitempty"`
	EndTime        *time.Time `json:"end_time,omitempty"`
	DurationMS     *int64     `json:"duration_ms,omitempty"`
	ExitCode       *int       `json:"exit_code,omitempty"`
	Error          string     `json:"error,omitempty"`
	RetriedFrom    string     `json:"retried_from,omitempty"`
}

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// LogEntry represents one consolidated log record in the response.
type LogEntry struct {
	ID        int64     `json:"id"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// GetLogsResponse is the response body for fetching a job's logs.
type GetLogsResponse struct {
	Logs []LogEntry `json:"logs"`
}

// DLQEntryResponse represents one dead-lettered job.
type DLQEntryResponse struct {
	ID           int64     `json:"id"`
	JobID        string    `json:"job_id"`
	Reason       string    `json:"reason"`
	AttemptsMade int       `json:"attempts_made"`
	FailedAt     time.Time `json:"failed_at"`
}

// RetryDLQResponse is the response body after manually retrying a
// dead-lettered job.
type RetryDLQResponse struct {
	NewJobID string `json:"new_job_id"`
}

// QueueStatsResponse is the response body for GET /stats: the Durable
// Queue Client's get_counts() breakdown alongside the durable store's
// get_job_statistics() aggregate snapshot.
type QueueStatsResponse struct {
	Waiting   int64 `json:"waiting"`
	Active    int64 `json:"active"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Delayed   int64 `json:"delayed"`

	TotalJobs     int64            `json:"total_jobs"`
	DeadLettered  int64            `json:"dead_lettered"`
	AvgDurationMS *float64         `json:"avg_duration_ms,omitempty"`
	ByStatus      map[string]int64 `json:"by_status"`
}

// Priority levels for job submission.
const (
	PriorityLow      = 0
	PriorityNormal   = 50
	PriorityHigh     = 75
	PriorityCritical = 100

	PriorityMin = 0
	PriorityMax = 100
)
