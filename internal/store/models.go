// Package store contains the database layer: the narrow interfaces the
// Worker Pool, Retry Controller, Status Pipeline, and Log Multiplexer
// depend on, satisfied by a PostgreSQL implementation in the postgres
// subpackage.
package store

import (
	"time"

	"github.com/google/uuid"
)

// DLQEntry is a dead-lettered job preserved for inspection and manual
// retry, once its Retry Controller budget is exhausted.
type DLQEntry struct {
	ID           int64
	JobID        uuid.UUID
	TenantID     uuid.UUID
	Reason       string
	AttemptsMade int
	FailedAt     time.Time
}
