package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"

	"forgerun/internal/domain"
	"forgerun/internal/statuspipeline"
)

// jobRow builds a sqlmock row set matching jobColumns for one minimal,
// waiting raw_code job, for tests that only care about round-tripping the
// envelope rather than every field.
func jobRow(id, tenantID uuid.UUID) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "tenant_id", "submission_type", "git_link", "raw_code", "docker_image", "runtime",
		"dependencies", "start_directory", "initial_cmds", "build_cmd", "env", "memory_limit",
		"timeout_ms", "submitted_at", "status", "attempts_made", "max_attempts",
		"start_time", "end_time", "duration_ms", "exit_code", "error", "priority", "retried_from",
	}).AddRow(
		id, tenantID, domain.SubmissionRawCode, "", "print(1)", "", "python",
		[]byte(`[]`), "", []byte(`[]`), "", []byte(`{}`), "512MB",
		180000, time.Now().UTC(), domain.StatusWaiting, 0, nil,
		nil, nil, nil, nil, "", 50, nil,
	)
}

func TestCreateJob_InsertsRowAndEnqueues(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	job := &domain.Job{
		ID:             uuid.New(),
		TenantID:       uuid.New(),
		SubmissionType: domain.SubmissionRawCode,
		RawCode:        "print(1)",
		Runtime:        "python",
		TimeoutMS:      180000,
		SubmittedAt:    time.Now().UTC(),
		Status:         domain.StatusWaiting,
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO jobs`).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`INSERT INTO job_queue`).WithArgs(job.ID).WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	if err := s.CreateJob(context.Background(), job); err != nil {
		t.Fatalf("CreateJob failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestGetJobByID_RoundTripsEnvelope(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	jobID := uuid.New()
	tenantID := uuid.New()

	mock.ExpectQuery(`SELECT id, tenant_id, submission_type, .* FROM jobs WHERE id = \$1`).
		WithArgs(jobID).
		WillReturnRows(jobRow(jobID, tenantID))

	job, err := s.GetJobByID(context.Background(), jobID)
	if err != nil {
		t.Fatalf("GetJobByID failed: %v", err)
	}
	if job.ID != jobID || job.TenantID != tenantID {
		t.Fatalf("got job %+v, want ids %s/%s", job, jobID, tenantID)
	}
	if job.SubmissionType != domain.SubmissionRawCode || job.RawCode != "print(1)" {
		t.Errorf("unexpected payload fields: %+v", job)
	}
}

func TestUpdateStatus_TransitionWithoutResultOnlyTouchesStatus(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	jobID := uuid.New()

	mock.ExpectExec(`UPDATE jobs SET status = \$1 WHERE id = \$2`).
		WithArgs(domain.StatusActive, jobID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := s.UpdateStatus(context.Background(), jobID.String(), domain.StatusActive, nil); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestUpdateStatus_TerminalTransitionComputesDuration(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	jobID := uuid.New()
	start := time.Now().Add(-2 * time.Second)
	end := time.Now()
	exitCode := 0

	mock.ExpectQuery(`SELECT start_time FROM jobs WHERE id = \$1`).
		WithArgs(jobID).
		WillReturnRows(sqlmock.NewRows([]string{"start_time"}).AddRow(start))
	mock.ExpectExec(`UPDATE jobs`).
		WithArgs(domain.StatusCompleted, sqlmock.AnyArg(), "", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), jobID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	result := &statuspipeline.Result{ExitCode: &exitCode, EndTime: &end}
	if err := s.UpdateStatus(context.Background(), jobID.String(), domain.StatusCompleted, result); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestUpdateStatus_PersistsAttemptsMadeWhenProvided(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	jobID := uuid.New()
	start := time.Now().Add(-time.Second)
	end := time.Now()
	exitCode := 1
	attempts := 2

	mock.ExpectQuery(`SELECT start_time FROM jobs WHERE id = \$1`).
		WithArgs(jobID).
		WillReturnRows(sqlmock.NewRows([]string{"start_time"}).AddRow(start))
	mock.ExpectExec(`UPDATE jobs`).
		WithArgs(domain.StatusFailed, sqlmock.AnyArg(), "boom", sqlmock.AnyArg(), sqlmock.AnyArg(), attempts, jobID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	result := &statuspipeline.Result{ExitCode: &exitCode, Error: "boom", EndTime: &end, AttemptsMade: &attempts}
	if err := s.UpdateStatus(context.Background(), jobID.String(), domain.StatusFailed, result); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unfulfilled expectations: %v", err)
	}
}

func TestGetJobStatistics_AggregatesStatusesAndDuration(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	mock.ExpectQuery(`SELECT status, COUNT\(\*\) FROM jobs GROUP BY status`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow(domain.StatusCompleted, int64(8)).
			AddRow(domain.StatusFailedPermanently, int64(2)))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM job_dlq`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(2)))
	mock.ExpectQuery(`SELECT AVG\(duration_ms\) FROM jobs WHERE status = \$1 AND duration_ms IS NOT NULL`).
		WithArgs(domain.StatusCompleted).
		WillReturnRows(sqlmock.NewRows([]string{"avg"}).AddRow(1500.5))

	stats, err := s.GetJobStatistics(context.Background())
	if err != nil {
		t.Fatalf("GetJobStatistics failed: %v", err)
	}
	if stats.TotalJobs != 10 || stats.DeadLettered != 2 {
		t.Fatalf("unexpected totals: %+v", stats)
	}
	if stats.AvgDurationMS == nil || *stats.AvgDurationMS != 1500.5 {
		t.Fatalf("expected avg duration 1500.5, got %v", stats.AvgDurationMS)
	}
	if stats.ByStatus[domain.StatusCompleted] != 8 || stats.ByStatus[domain.StatusFailedPermanently] != 2 {
		t.Fatalf("unexpected per-status breakdown: %+v", stats.ByStatus)
	}
}

func TestListDLQ_ReturnsTenantEntries(t *testing.T) {
	s, mock := newMockStore(t)
	defer s.db.Close()

	tenantID := uuid.New()
	jobID := uuid.New()

	mock.ExpectQuery(`SELECT id, job_id, tenant_id, reason, attempts_made, failed_at FROM job_dlq`).
		WithArgs(tenantID, 10, 0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "job_id", "tenant_id", "reason", "attempts_made", "failed_at"}).
			AddRow(int64(1), jobID, tenantID, "exhausted retries", 5, time.Now()))

	entries, err := s.ListDLQ(context.Background(), tenantID, 10, 0)
	if err != nil {
		t.Fatalf("ListDLQ failed: %v", err)
	}
	if len(entries) != 1 || entries[0].JobID != jobID {
		t.Fatalf("expected one entry for job %s, got %v", jobID, entries)
	}
}
