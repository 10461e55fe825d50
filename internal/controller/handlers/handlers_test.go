package handlers

import (
	"context"
	"time"

	"github.com/google/uuid"

	"forgerun/internal/domain"
	"forgerun/internal/statuspipeline"
	"forgerun/internal/store"
)

// mockStore is a hand-rolled fake satisfying StoreFactory, configured per
// test via its response and error fields rather than a mocking framework.
type mockStore struct {
	pingErr error

	createTenantErr           error
	getTenantByIDResp         *domain.Tenant
	getTenantByIDErr          error
	getTenantByAPIKeyHashResp *domain.Tenant
	getTenantByAPIKeyHashErr  error

	createJobErr   error
	getJobByIDResp *domain.Job
	getJobByIDErr  error
	updateStatusErr error

	listDLQResp        []store.DLQEntry
	listDLQErr         error
	retryFromDLQResp   uuid.UUID
	retryFromDLQErr    error
	getJobStatisticsResp store.JobStatistics
	getJobStatisticsErr  error

	saveLogEntriesErr error
	getJobLogsResp    []domain.LogEntry
	getJobLogsErr     error

	enqueueErr error

	claimBatchResp []*domain.Job
	claimBatchErr  error

	delayErr          error
	setVisibleAfterErr error
	requeueErr        error
	moveToDeadLetterErr error

	depthResp int64
	depthErr  error

	countActiveForTenantResp int64
	countActiveForTenantErr  error

	getCountsResp store.QueueCounts
	getCountsErr  error

	// Spies, to verify arguments passed by handlers.
	capturedLimit  int
	capturedOffset int
}

func (m *mockStore) Ping(ctx context.Context) error {
	return m.pingErr
}

func (m *mockStore) CreateTenant(ctx context.Context, tenant *domain.Tenant, hashedKey string) error {
	return m.createTenantErr
}

func (m *mockStore) GetTenantByID(ctx context.Context, id uuid.UUID) (*domain.Tenant, error) {
	return m.getTenantByIDResp, m.getTenantByIDErr
}

func (m *mockStore) GetTenantByAPIKeyHash(ctx context.Context, hash string) (*domain.Tenant, error) {
	return m.getTenantByAPIKeyHashResp, m.getTenantByAPIKeyHashErr
}

func (m *mockStore) CreateJob(ctx context.Context, job *domain.Job) error {
	return m.createJobErr
}

func (m *mockStore) GetJobByID(ctx context.Context, id uuid.UUID) (*domain.Job, error) {
	return m.getJobByIDResp, m.getJobByIDErr
}

func (m *mockStore) UpdateStatus(ctx context.Context, jobID string, status domain.Status, result *statuspipeline.Result) error {
	return m.updateStatusErr
}

func (m *mockStore) ListDLQ(ctx context.Context, tenantID uuid.UUID, limit, offset int) ([]store.DLQEntry, error) {
	m.capturedLimit = limit
	m.capturedOffset = offset
	return m.listDLQResp, m.listDLQErr
}

func (m *mockStore) RetryFromDLQ(ctx context.Context, jobID uuid.UUID) (uuid.UUID, error) {
	return m.retryFromDLQResp, m.retryFromDLQErr
}

func (m *mockStore) GetJobStatistics(ctx context.Context) (store.JobStatistics, error) {
	return m.getJobStatisticsResp, m.getJobStatisticsErr
}

func (m *mockStore) SaveLogEntries(ctx context.Context, entries []domain.LogEntry) error {
	return m.saveLogEntriesErr
}

func (m *mockStore) GetJobLogs(ctx context.Context, jobID uuid.UUID) ([]domain.LogEntry, error) {
	return m.getJobLogsResp, m.getJobLogsErr
}

func (m *mockStore) Enqueue(ctx context.Context, job *domain.Job) error {
	return m.enqueueErr
}

func (m *mockStore) ClaimBatch(ctx context.Context, limit int) ([]*domain.Job, error) {
	return m.claimBatchResp, m.claimBatchErr
}

func (m *mockStore) Delay(ctx context.Context, jobID string, after time.Time) error {
	return m.delayErr
}

func (m *mockStore) SetVisibleAfter(ctx context.Context, jobID string, after time.Time) error {
	return m.setVisibleAfterErr
}

func (m *mockStore) Requeue(ctx context.Context, jobID string, delay time.Duration, attemptsMade int) error {
	return m.requeueErr
}

func (m *mockStore) MoveToDeadLetter(ctx context.Context, jobID string, reason string) error {
	return m.moveToDeadLetterErr
}

func (m *mockStore) Depth(ctx context.Context) (int64, error) {
	return m.depthResp, m.depthErr
}

func (m *mockStore) CountActiveForTenant(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	return m.countActiveForTenantResp, m.countActiveForTenantErr
}

func (m *mockStore) GetCounts(ctx context.Context) (store.QueueCounts, error) {
	return m.getCountsResp, m.getCountsErr
}
