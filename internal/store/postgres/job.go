package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"forgerun/internal/domain"
	"forgerun/internal/statuspipeline"
	"forgerun/internal/store"
)

// CreateJob inserts a new job row and makes it claimable in one
// transaction, so a submission is never visible to the Worker Pool
// before its definition is durable.
func (s *Store) CreateJob(ctx context.Context, job *domain.Job) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	deps, err := json.Marshal(job.Dependencies)
	if err != nil {
		return fmt.Errorf("marshal dependencies: %w", err)
	}
	cmds, err := json.Marshal(job.InitialCmds)
	if err != nil {
		return fmt.Errorf("marshal initial_cmds: %w", err)
	}
	env, err := json.Marshal(job.Env)
	if err != nil {
		return fmt.Errorf("marshal env: %w", err)
	}

	query := `
		INSERT INTO jobs (
			id, tenant_id, submission_type, git_link, raw_code, docker_image, runtime,
			dependencies, start_directory, initial_cmds, build_cmd, env, memory_limit,
			timeout_ms, submitted_at, status, attempts_made, max_attempts, priority, retried_from
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
	`
	_, err = tx.ExecContext(ctx, query,
		job.ID, job.TenantID, job.SubmissionType, job.GitLink, job.RawCode, job.DockerImage, job.Runtime,
		deps, job.StartDirectory, cmds, job.BuildCmd, env, job.MemoryLimit,
		job.TimeoutMS, job.SubmittedAt, job.Status, job.AttemptsMade, job.MaxAttempts, job.Priority, job.RetriedFrom,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO job_queue (job_id, visible_after) VALUES ($1, now())`,
		job.ID,
	); err != nil {
		return fmt.Errorf("enqueue job: %w", err)
	}

	return tx.Commit()
}

func scanJob(row scanner) (*domain.Job, error) {
	var j domain.Job
	var deps, cmds, env []byte
	var maxAttempts sql.NullInt64
	var startTime, endTime sql.NullTime
	var durationMS sql.NullInt64
	var exitCode sql.NullInt64
	var retriedFrom sql.NullString

	err := row.Scan(
		&j.ID, &j.TenantID, &j.SubmissionType, &j.GitLink, &j.RawCode, &j.DockerImage, &j.Runtime,
		&deps, &j.StartDirectory, &cmds, &j.BuildCmd, &env, &j.MemoryLimit,
		&j.TimeoutMS, &j.SubmittedAt, &j.Status, &j.AttemptsMade, &maxAttempts,
		&startTime, &endTime, &durationMS, &exitCode, &j.Error, &j.Priority, &retriedFrom,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(deps, &j.Dependencies); err != nil {
		return nil, fmt.Errorf("unmarshal dependencies: %w", err)
	}
	if err := json.Unmarshal(cmds, &j.InitialCmds); err != nil {
		return nil, fmt.Errorf("unmarshal initial_cmds: %w", err)
	}
	if err := json.Unmarshal(env, &j.Env); err != nil {
		return nil, fmt.Errorf("unmarshal env: %w", err)
	}
	if maxAttempts.Valid {
		n := int(maxAttempts.Int64)
		j.MaxAttempts = &n
	}
	if startTime.Valid {
		j.StartTime = &startTime.Time
	}
	if endTime.Valid {
		j.EndTime = &endTime.Time
	}
	if durationMS.Valid {
		j.DurationMS = &durationMS.Int64
	}
	if exitCode.Valid {
		n := int(exitCode.Int64)
		j.ExitCode = &n
	}
	if retriedFrom.Valid {
		id, err := uuid.Parse(retriedFrom.String)
		if err != nil {
			return nil, fmt.Errorf("parse retried_from: %w", err)
		}
		j.RetriedFrom = &id
	}
	return &j, nil
}

// scanner abstracts *sql.Row and *sql.Rows for scanJob.
type scanner interface {
	Scan(dest ...interface{}) error
}

const jobColumns = `
	id, tenant_id, submission_type, git_link, raw_code, docker_image, runtime,
	dependencies, start_directory, initial_cmds, build_cmd, env, memory_limit,
	timeout_ms, submitted_at, status, attempts_made, max_attempts,
	start_time, end_time, duration_ms, exit_code, error, priority, retried_from
`

func (s *Store) GetJobByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = $1", id)
	return scanJob(row)
}

// UpdateStatus satisfies statuspipeline.Store: it applies an already
// DAG-validated transition and, for terminal transitions, the
// accompanying exit code/error/end time/duration.
func (s *Store) UpdateStatus(ctx context.Context, jobID string, status domain.Status, result *statuspipeline.Result) error {
	id, err := uuid.Parse(jobID)
	if err != nil {
		return fmt.Errorf("parse job id %q: %w", jobID, err)
	}

	if result == nil {
		_, err := s.db.ExecContext(ctx, `UPDATE jobs SET status = $1 WHERE id = $2`, status, id)
		return err
	}

	var durationMS *int64
	if result.EndTime != nil {
		var startTime sql.NullTime
		if err := s.db.QueryRowContext(ctx, `SELECT start_time FROM jobs WHERE id = $1`, id).Scan(&startTime); err != nil {
			return fmt.Errorf("read start_time for job %s: %w", jobID, err)
		}
		if startTime.Valid {
			d := result.EndTime.Sub(startTime.Time).Milliseconds()
			durationMS = &d
		}
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE jobs
		SET status = $1, exit_code = $2, error = $3, end_time = $4, duration_ms = $5,
		    attempts_made = COALESCE($6, attempts_made)
		WHERE id = $7
	`, status, result.ExitCode, result.Error, result.EndTime, durationMS, result.AttemptsMade, id)
	return err
}

// ListDLQ returns a tenant's dead-lettered jobs, newest first.
func (s *Store) ListDLQ(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]store.DLQEntry, error) {
	query := `
		SELECT id, job_id, tenant_id, reason, attempts_made, failed_at
		FROM job_dlq
		WHERE tenant_id = $1
		ORDER BY failed_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := s.db.QueryContext(ctx, query, tenantID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []store.DLQEntry
	for rows.Next() {
		var e store.DLQEntry
		if err := rows.Scan(&e.ID, &e.JobID, &e.TenantID, &e.Reason, &e.AttemptsMade, &e.FailedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RetryFromDLQ clones a dead-lettered job into a fresh submission,
// re-enqueues it with attempts_made reset to zero, and removes the
// original dead-letter record.
func (s *Store) RetryFromDLQ(ctx context.Context, jobID uuid.UUID) (uuid.UUID, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return uuid.Nil, err
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = $1", jobID)
	original, err := scanJob(row)
	if err != nil {
		return uuid.Nil, fmt.Errorf("load original job %s: %w", jobID, err)
	}

	clone := *original
	clone.ID = uuid.New()
	clone.Status = domain.StatusWaiting
	clone.AttemptsMade = 0
	clone.StartTime = nil
	clone.EndTime = nil
	clone.DurationMS = nil
	clone.ExitCode = nil
	clone.Error = ""
	clone.SubmittedAt = time.Now().UTC()
	clone.RetriedFrom = &original.ID

	deps, _ := json.Marshal(clone.Dependencies)
	cmds, _ := json.Marshal(clone.InitialCmds)
	env, _ := json.Marshal(clone.Env)

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO jobs (
			id, tenant_id, submission_type, git_link, raw_code, docker_image, runtime,
			dependencies, start_directory, initial_cmds, build_cmd, env, memory_limit,
			timeout_ms, submitted_at, status, attempts_made, max_attempts, priority, retried_from
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
	`,
		clone.ID, clone.TenantID, clone.SubmissionType, clone.GitLink, clone.RawCode, clone.DockerImage, clone.Runtime,
		deps, clone.StartDirectory, cmds, clone.BuildCmd, env, clone.MemoryLimit,
		clone.TimeoutMS, clone.SubmittedAt, clone.Status, clone.AttemptsMade, clone.MaxAttempts, clone.Priority, clone.RetriedFrom,
	); err != nil {
		return uuid.Nil, fmt.Errorf("insert retried job: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO job_queue (job_id, visible_after) VALUES ($1, now())`, clone.ID); err != nil {
		return uuid.Nil, fmt.Errorf("enqueue retried job: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM job_dlq WHERE job_id = $1`, jobID); err != nil {
		return uuid.Nil, fmt.Errorf("remove dead-letter record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return uuid.Nil, err
	}
	return clone.ID, nil
}

// GetJobStatistics returns the full per-status breakdown across all jobs,
// the dead-letter count, and the average turnaround time of completed
// jobs, for operational dashboards.
func (s *Store) GetJobStatistics(ctx context.Context) (store.JobStatistics, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return store.JobStatistics{}, fmt.Errorf("get job statistics: %w", err)
	}
	defer rows.Close()

	stats := store.JobStatistics{ByStatus: make(map[domain.Status]int64)}
	for rows.Next() {
		var status domain.Status
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return store.JobStatistics{}, err
		}
		stats.ByStatus[status] = n
		stats.TotalJobs += n
	}
	if err := rows.Err(); err != nil {
		return store.JobStatistics{}, err
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM job_dlq`).Scan(&stats.DeadLettered); err != nil {
		return store.JobStatistics{}, fmt.Errorf("count dead-lettered jobs: %w", err)
	}

	var avg sql.NullFloat64
	err = s.db.QueryRowContext(ctx,
		`SELECT AVG(duration_ms) FROM jobs WHERE status = $1 AND duration_ms IS NOT NULL`,
		domain.StatusCompleted,
	).Scan(&avg)
	if err != nil {
		return store.JobStatistics{}, fmt.Errorf("average completed duration: %w", err)
	}
	if avg.Valid {
		stats.AvgDurationMS = &avg.Float64
	}

	return stats, nil
}
