package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"forgerun/internal/domain"
	"forgerun/internal/statuspipeline"
)

// DBTransaction defines the methods shared by *sql.DB and *sql.Tx. This
// allows repository methods to accept either a connection pool or an
// active transaction.
type DBTransaction interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

type Tx interface {
	DBTransaction
	Commit() error
	Rollback() error
}

// TenantStore handles retrieving tenant information for authentication
// and admission (per-tenant concurrency limits, rate limits).
type TenantStore interface {
	CreateTenant(ctx context.Context, tenant *domain.Tenant, hashedKey string) error
	GetTenantByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error)
	GetTenantByAPIKeyHash(ctx context.Context, hash string) (*domain.Tenant, error)
}

// JobStore persists job submissions and their lifecycle state. It
// satisfies statuspipeline.Store directly, since the pipeline is the
// system's sole writer of status.
type JobStore interface {
	CreateJob(ctx context.Context, job *domain.Job) error
	GetJobByID(ctx context.Context, id uuid.UUID) (*domain.Job, error)
	UpdateStatus(ctx context.Context, jobID string, status domain.Status, result *statuspipeline.Result) error
	ListDLQ(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]DLQEntry, error)
	RetryFromDLQ(ctx context.Context, jobID uuid.UUID) (uuid.UUID, error)
	// GetJobStatistics returns the full per-status breakdown and aggregate
	// turnaround time across all jobs, for operational dashboards.
	GetJobStatistics(ctx context.Context) (JobStatistics, error)
}

// QueueCounts is the Durable Queue Client's get_counts() breakdown: a
// coarse, queue-level view across five buckets. The other failure-side
// states (timed_out, retrying, failed_permanently) all roll up into Failed here;
// JobStatistics carries the full per-status detail.
type QueueCounts struct {
	Waiting   int64
	Active    int64
	Completed int64
	Failed    int64
	Delayed   int64
}

// JobStatistics is the durable store's get_job_statistics() aggregate
// snapshot.
type JobStatistics struct {
	ByStatus      map[domain.Status]int64
	TotalJobs     int64
	DeadLettered  int64
	AvgDurationMS *float64
}

// LogStore persists the consolidated log records the Log Multiplexer
// flushes on a job's terminal transition. It satisfies logmux.Store
// directly.
type LogStore interface {
	SaveLogEntries(ctx context.Context, entries []domain.LogEntry) error
	GetJobLogs(ctx context.Context, jobID uuid.UUID) ([]domain.LogEntry, error)
}

// QueueStore is the durable, SELECT...FOR UPDATE SKIP LOCKED backed queue.
// It satisfies both worker.Queue and retry.Queue.
type QueueStore interface {
	// Enqueue makes a freshly submitted job claimable.
	Enqueue(ctx context.Context, job *domain.Job) error
	// ClaimBatch atomically claims up to limit waiting jobs and marks them
	// invisible until their heartbeat extends it or they terminate.
	ClaimBatch(ctx context.Context, limit int) ([]*domain.Job, error)
	// Delay pushes a claimed job's visibility back out without counting it
	// as an attempt — used when admission denies a job.
	Delay(ctx context.Context, jobID string, after time.Time) error
	// SetVisibleAfter extends a claimed job's visibility timeout.
	SetVisibleAfter(ctx context.Context, jobID string, after time.Time) error
	// Requeue makes a failed job claimable again after delay, persisting
	// the attempt count it is being retried at.
	Requeue(ctx context.Context, jobID string, delay time.Duration, attemptsMade int) error
	// MoveToDeadLetter removes a job from the claimable queue and records it
	// in the dead-letter table.
	MoveToDeadLetter(ctx context.Context, jobID string, reason string) error
	// Depth reports the combined waiting+delayed backlog, for the Scaler.
	Depth(ctx context.Context) (int64, error)
	// CountActiveForTenant reports a tenant's current in-flight job count,
	// for per-tenant admission limits.
	CountActiveForTenant(ctx context.Context, tenantID uuid.UUID) (int64, error)
	// GetCounts reports the queue-level breakdown across waiting, active,
	// completed, failed, and delayed jobs.
	GetCounts(ctx context.Context) (QueueCounts, error)
}
