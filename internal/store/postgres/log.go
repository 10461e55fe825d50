package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"forgerun/internal/domain"
)

// SaveLogEntries persists the Log Multiplexer's consolidated, per-type
// records on a job's terminal transition.
func (s *Store) SaveLogEntries(ctx context.Context, entries []domain.LogEntry) error {
	if len(entries) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range entries {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO job_logs (job_id, type, content, created_at) VALUES ($1, $2, $3, $4)`,
			e.JobID, e.Type, e.Content, e.CreatedAt,
		); err != nil {
			return fmt.Errorf("save log entry for job %s: %w", e.JobID, err)
		}
	}
	return tx.Commit()
}

// GetJobLogs returns a job's consolidated log records, oldest first.
func (s *Store) GetJobLogs(ctx context.Context, jobID uuid.UUID) ([]domain.LogEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, job_id, type, content, created_at FROM job_logs WHERE job_id = $1 ORDER BY created_at ASC`,
		jobID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LogEntry
	for rows.Next() {
		var e domain.LogEntry
		if err := rows.Scan(&e.ID, &e.JobID, &e.Type, &e.Content, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
