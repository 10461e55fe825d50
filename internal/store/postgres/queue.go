package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"forgerun/internal/domain"
	"forgerun/internal/store"
)

// VisibilityTimeout is how long a claimed job stays invisible to other
// workers before its heartbeat must extend it again.
const VisibilityTimeout = 5 * time.Minute

// Enqueue makes a freshly submitted job claimable. CreateJob already does
// this as part of its own transaction, and so does RetryFromDLQ; Enqueue
// exists for callers (e.g. a future manual-resubmit admin path) that need
// to enqueue a job that already exists as a row.
func (s *Store) Enqueue(ctx context.Context, job *domain.Job) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO job_queue (job_id, visible_after) VALUES ($1, now())`, job.ID)
	if err != nil {
		return fmt.Errorf("enqueue job %s: %w", job.ID, err)
	}
	return nil
}

// ClaimBatch atomically claims up to limit waiting jobs via
// SELECT...FOR UPDATE SKIP LOCKED and extends their visibility; it does
// not change their status. Returns a nil slice if nothing is claimable.
func (s *Store) ClaimBatch(ctx context.Context, limit int) ([]*domain.Job, error) {
	if limit <= 0 {
		limit = 1
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT job_id FROM job_queue
		WHERE visible_after <= now()
		ORDER BY created_at ASC
		FOR UPDATE SKIP LOCKED
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("claim batch query: %w", err)
	}

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("claim batch scan: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if len(ids) == 0 {
		return nil, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE job_queue SET visible_after = now() + $1 WHERE job_id = ANY($2)`,
		VisibilityTimeout, pq.Array(ids),
	); err != nil {
		return nil, fmt.Errorf("claim batch extend visibility: %w", err)
	}

	jobs := make([]*domain.Job, 0, len(ids))
	for _, id := range ids {
		row := tx.QueryRowContext(ctx, "SELECT "+jobColumns+" FROM jobs WHERE id = $1", id)
		job, err := scanJob(row)
		if err != nil {
			return nil, fmt.Errorf("claim batch load job %s: %w", id, err)
		}
		jobs = append(jobs, job)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return jobs, nil
}

// Delay pushes a claimed job's visibility out without removing it from
// the queue or counting it as an attempt; the admission check denied it,
// it did not fail.
func (s *Store) Delay(ctx context.Context, jobID string, after time.Time) error {
	id, err := uuid.Parse(jobID)
	if err != nil {
		return fmt.Errorf("parse job id %q: %w", jobID, err)
	}
	_, err = s.db.ExecContext(ctx, `UPDATE job_queue SET visible_after = $1 WHERE job_id = $2`, after, id)
	return err
}

// SetVisibleAfter extends a claimed job's visibility timeout; the
// heartbeat during long executions.
func (s *Store) SetVisibleAfter(ctx context.Context, jobID string, after time.Time) error {
	return s.Delay(ctx, jobID, after)
}

// Requeue makes a failed job claimable again after delay and persists the
// attempt count the Retry Controller is scheduling the retry at. Unlike
// Enqueue, the job row already exists in job_queue (it was claimed to
// run); this just pushes its visibility out.
func (s *Store) Requeue(ctx context.Context, jobID string, delay time.Duration, attemptsMade int) error {
	id, err := uuid.Parse(jobID)
	if err != nil {
		return fmt.Errorf("parse job id %q: %w", jobID, err)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE jobs SET attempts_made = $1 WHERE id = $2`, attemptsMade, id); err != nil {
		return fmt.Errorf("persist attempts_made for job %s: %w", jobID, err)
	}
	return s.Delay(ctx, jobID, time.Now().Add(delay))
}

// MoveToDeadLetter removes a job from the claimable queue and records it
// in job_dlq, preserving its attempts_made for inspection.
func (s *Store) MoveToDeadLetter(ctx context.Context, jobID string, reason string) error {
	id, err := uuid.Parse(jobID)
	if err != nil {
		return fmt.Errorf("parse job id %q: %w", jobID, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var tenantID uuid.UUID
	var attemptsMade int
	if err := tx.QueryRowContext(ctx, `SELECT tenant_id, attempts_made FROM jobs WHERE id = $1`, id).Scan(&tenantID, &attemptsMade); err != nil {
		return fmt.Errorf("load job %s for dead-letter: %w", jobID, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO job_dlq (job_id, tenant_id, reason, attempts_made) VALUES ($1, $2, $3, $4)`,
		id, tenantID, reason, attemptsMade,
	); err != nil {
		return fmt.Errorf("insert dead-letter record for %s: %w", jobID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM job_queue WHERE job_id = $1`, id); err != nil {
		return fmt.Errorf("remove %s from queue: %w", jobID, err)
	}

	return tx.Commit()
}

// Depth reports the combined waiting+delayed backlog, for the Scaler.
func (s *Store) Depth(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM job_queue q JOIN jobs j ON j.id = q.job_id WHERE j.status IN ($1, $2)`,
		domain.StatusWaiting, domain.StatusDelayed,
	).Scan(&n)
	return n, err
}

// CountActiveForTenant reports a tenant's current in-flight job count.
func (s *Store) CountActiveForTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM jobs WHERE tenant_id = $1 AND status = $2`,
		tenantID, domain.StatusActive,
	).Scan(&n)
	return n, err
}

// GetCounts reports the Durable Queue Client's five-bucket breakdown.
// timed_out, retrying, and failed_permanently all roll up into Failed:
// this is a coarse operational view, not the full status DAG (see
// GetJobStatistics for that).
func (s *Store) GetCounts(ctx context.Context) (store.QueueCounts, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM jobs GROUP BY status`)
	if err != nil {
		return store.QueueCounts{}, fmt.Errorf("get counts: %w", err)
	}
	defer rows.Close()

	var counts store.QueueCounts
	for rows.Next() {
		var status domain.Status
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return store.QueueCounts{}, err
		}
		switch status {
		case domain.StatusWaiting:
			counts.Waiting += n
		case domain.StatusDelayed:
			counts.Delayed += n
		case domain.StatusActive:
			counts.Active += n
		case domain.StatusCompleted:
			counts.Completed += n
		default:
			counts.Failed += n
		}
	}
	return counts, rows.Err()
}
