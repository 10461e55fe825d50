// Package domain holds the core data model for job submission and
// execution: the tagged submission payload, the mutable lifecycle state,
// and the invariants that bind them.
package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"forgerun/internal/runtimecatalog"
)

// SubmissionType is the tag of the submission payload's sum type.
type SubmissionType string

const (
	SubmissionGitRepo     SubmissionType = "git_repo"
	SubmissionRawCode     SubmissionType = "raw_code"
	SubmissionCustomImage SubmissionType = "custom_image"
)

// Status is a node in the job lifecycle DAG:
//
//	waiting -> {active, delayed, failed_permanently}
//	delayed -> waiting
//	active  -> {completed, failed}
//	failed  -> {retrying -> waiting | failed_permanently}
//
// StatusTimedOut is a terminal value a job's status can hold from older
// rows (timeouts used to be published as their own status); a timeout is
// now reported as a failed transition carrying the timeout detail in the
// error text, so no live transition produces timed_out anymore.
type Status string

const (
	StatusWaiting           Status = "waiting"
	StatusDelayed           Status = "delayed"
	StatusActive            Status = "active"
	StatusCompleted         Status = "completed"
	StatusFailed            Status = "failed"
	StatusTimedOut          Status = "timed_out"
	StatusRetrying          Status = "retrying"
	StatusFailedPermanently Status = "failed_permanently"
)

// transitions enumerates the legal status DAG. A transition not listed
// here is rejected by the Status Pipeline.
var transitions = map[Status]map[Status]bool{
	StatusWaiting:  {StatusActive: true, StatusDelayed: true, StatusFailedPermanently: true},
	StatusDelayed:  {StatusWaiting: true},
	StatusActive:   {StatusCompleted: true, StatusFailed: true},
	StatusFailed:   {StatusRetrying: true, StatusFailedPermanently: true},
	StatusRetrying: {StatusWaiting: true},
}

// ValidTransition reports whether moving from `from` to `to` is legal under
// the status DAG. The empty `from` (unknown prior status, e.g. a freshly
// created job) permits only the initial `waiting` state.
func ValidTransition(from, to Status) bool {
	if from == "" {
		return to == StatusWaiting
	}
	if from == to {
		// Idempotent replay of the same status is a no-op, not a violation.
		return true
	}
	next, ok := transitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// envNameRE matches the POSIX-ish environment variable name grammar:
// [A-Za-z_][A-Za-z0-9_]*
var envNameRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// runtimeSupported reports whether tag names a runtime in the catalog,
// case-insensitively, matching runtimecatalog.Lookup's own normalization.
func runtimeSupported(tag string) bool {
	tag = strings.ToLower(strings.TrimSpace(tag))
	for _, t := range runtimecatalog.Tags() {
		if t == tag {
			return true
		}
	}
	return false
}

const (
	// DefaultTimeoutMS is applied when a submission omits timeout_ms.
	DefaultTimeoutMS = 180000
	// MaxTimeoutMS is the hard cap on a submission's timeout_ms; Validate
	// rejects larger values.
	MaxTimeoutMS = 300000
	// DefaultMemoryLimit is applied when a submission omits memory_limit.
	DefaultMemoryLimit = "512MB"
)

// Job is the immutable submission payload plus the mutable lifecycle state
// tracked for one execution attempt chain.
type Job struct {
	ID       uuid.UUID
	TenantID uuid.UUID

	// Immutable payload fields.
	SubmissionType SubmissionType
	GitLink        string
	RawCode        string
	DockerImage    string
	Runtime        string
	Dependencies   []string
	StartDirectory string
	InitialCmds    []string
	BuildCmd       string
	Env            map[string]string
	MemoryLimit    string
	TimeoutMS      int
	SubmittedAt    time.Time

	// Mutable lifecycle fields.
	Status       Status
	AttemptsMade int
	StartTime    *time.Time
	EndTime      *time.Time
	DurationMS   *int64
	ExitCode     *int
	Error        string

	Priority    int
	RetriedFrom *uuid.UUID
	// MaxAttempts overrides the Retry Controller's default schedule length.
	// A submission that explicitly sets attempts=0 opts out of retries
	// entirely: the first failure goes straight to failed_permanently.
	MaxAttempts *int
}

// Validate enforces the admission-time checks on a submission. It does not mutate
// the job; callers apply defaults via ApplyDefaults first.
func (j *Job) Validate() error {
	present := 0
	switch j.SubmissionType {
	case SubmissionGitRepo:
		if j.GitLink == "" {
			return fmt.Errorf("git_link is required when submission_type=git_repo")
		}
		present++
	case SubmissionRawCode:
		if j.RawCode == "" {
			return fmt.Errorf("raw_code is required when submission_type=raw_code")
		}
		if j.Runtime != "" && !runtimeSupported(j.Runtime) {
			return fmt.Errorf("unsupported runtime %q, must be one of %s", j.Runtime, strings.Join(runtimecatalog.Tags(), ", "))
		}
		present++
	case SubmissionCustomImage:
		if j.DockerImage == "" {
			return fmt.Errorf("docker_image is required when submission_type=custom_image")
		}
		present++
	default:
		return fmt.Errorf("unknown or missing submission_type %q", j.SubmissionType)
	}
	if present == 0 {
		return fmt.Errorf("one of git_link, raw_code, docker_image is required")
	}

	if j.TimeoutMS > MaxTimeoutMS {
		return fmt.Errorf("timeout_ms %d exceeds hard cap %d", j.TimeoutMS, MaxTimeoutMS)
	}
	if j.TimeoutMS < 0 {
		return fmt.Errorf("timeout_ms must be non-negative")
	}

	for name := range j.Env {
		if !envNameRE.MatchString(name) {
			return fmt.Errorf("invalid env var name %q", name)
		}
	}

	return nil
}

// ApplyDefaults fills in the payload defaults for an unset submission. Call before
// Validate so the cap check applies to the resolved value.
func (j *Job) ApplyDefaults() {
	if j.TimeoutMS == 0 {
		j.TimeoutMS = DefaultTimeoutMS
	}
	if j.MemoryLimit == "" {
		j.MemoryLimit = DefaultMemoryLimit
	}
	if j.Priority == 0 {
		j.Priority = 50
	}
	if j.Status == "" {
		j.Status = StatusWaiting
	}
}

// ContainerName derives the stable per-job container name:
// "<prefix>-<job_id>". At most one container with this name may exist
// across the fleet at any time.
func ContainerName(prefix string, id uuid.UUID) string {
	return fmt.Sprintf("%s-%s", prefix, id.String())
}

// Touch stamps the end time and derives duration, enforcing the
// end_time >= start_time invariant.
func (j *Job) Touch(end time.Time) {
	j.EndTime = &end
	if j.StartTime != nil {
		d := end.Sub(*j.StartTime)
		if d < 0 {
			d = 0
		}
		ms := d.Milliseconds()
		j.DurationMS = &ms
	}
}
