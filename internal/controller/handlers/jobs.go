package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"forgerun/internal/controller/middleware"
	"forgerun/internal/domain"
	"forgerun/pkg/api"
)

// SubmitJob handles POST /jobs: validates and persists a new submission,
// making it immediately claimable by the Worker Pool.
func (h *Handlers) SubmitJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID, ok := middleware.TenantIDFromContext(ctx)
	if !ok {
		h.httpError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req api.SubmitJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.httpError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	job := &domain.Job{
		ID:             uuid.New(),
		TenantID:       tenantID,
		SubmissionType: domain.SubmissionType(req.SubmissionType),
		GitLink:        req.GitLink,
		RawCode:        req.RawCode,
		DockerImage:    req.DockerImage,
		Runtime:        req.Runtime,
		Dependencies:   req.Dependencies,
		StartDirectory: req.StartDirectory,
		InitialCmds:    req.InitialCmds,
		BuildCmd:       req.BuildCmd,
		Env:            req.Env,
		MemoryLimit:    req.MemoryLimit,
		TimeoutMS:      req.TimeoutMS,
		SubmittedAt:    time.Now().UTC(),
		Priority:       req.Priority,
		MaxAttempts:    req.MaxAttempts,
	}

	job.ApplyDefaults()
	if err := job.Validate(); err != nil {
		h.httpError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.store.CreateJob(ctx, job); err != nil {
		h.httpError(w, "Failed to create job", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusCreated, api.SubmitJobResponse{JobID: job.ID.String()})
}

// GetJob handles GET /jobs/{id}: returns a job's current lifecycle state,
// scoped to the authenticated tenant.
func (h *Handlers) GetJob(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID, ok := middleware.TenantIDFromContext(ctx)
	if !ok {
		h.httpError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	jobID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		h.httpError(w, "Invalid job id", http.StatusBadRequest)
		return
	}

	job, err := h.store.GetJobByID(ctx, jobID)
	if err != nil || job.TenantID != tenantID {
		h.httpError(w, "Job not found", http.StatusNotFound)
		return
	}

	h.respondJson(w, http.StatusOK, jobToResponse(job))
}

func jobToResponse(j *domain.Job) api.JobResponse {
	resp := api.JobResponse{
		ID:             j.ID.String(),
		TenantID:       j.TenantID.String(),
		SubmissionType: string(j.SubmissionType),
		Runtime:        j.Runtime,
		Status:         string(j.Status),
		Priority:       j.Priority,
		AttemptsMade:   j.AttemptsMade,
		SubmittedAt:    j.SubmittedAt,
		StartTime:      j.StartTime,
		EndTime:        j.EndTime,
		DurationMS:     j.DurationMS,
		ExitCode:       j.ExitCode,
		Error:          j.Error,
	}
	if j.RetriedFrom != nil {
		resp.RetriedFrom = j.RetriedFrom.String()
	}
	return resp
}
