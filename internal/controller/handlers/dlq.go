package handlers

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"forgerun/internal/controller/middleware"
	"forgerun/pkg/api"
)

// ListDLQ handles GET /jobs/dlq: returns the authenticated tenant's
// dead-lettered jobs, newest first.
func (h *Handlers) ListDLQ(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	tenantID, ok := middleware.TenantIDFromContext(ctx)
	if !ok {
		h.httpError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	query := r.URL.Query()
	limit := 50
	if l := query.Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}
	offset := 0
	if o := query.Get("offset"); o != "" {
		if parsed, err := strconv.Atoi(o); err == nil && parsed >= 0 {
			offset = parsed
		}
	}

	entries, err := h.store.ListDLQ(ctx, tenantID, limit, offset)
	if err != nil {
		h.httpError(w, "Failed to fetch dead-letter queue", http.StatusInternalServerError)
		return
	}

	resp := make([]api.DLQEntryResponse, len(entries))
	for i, e := range entries {
		resp[i] = api.DLQEntryResponse{
			ID:           e.ID,
			JobID:        e.JobID.String(),
			Reason:       e.Reason,
			AttemptsMade: e.AttemptsMade,
			FailedAt:     e.FailedAt,
		}
	}
	h.respondJson(w, http.StatusOK, resp)
}

// RetryDLQ handles POST /jobs/dlq/{id}/retry: clones a dead-lettered job
// into a fresh submission and re-enqueues it.
func (h *Handlers) RetryDLQ(w http.ResponseWriter, r *http.Request) {
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

	newID, err := h.store.RetryFromDLQ(ctx, jobID)
	if err != nil {
		h.httpError(w, "Failed to retry job", http.StatusInternalServerError)
		return
	}

	h.respondJson(w, http.StatusCreated, api.RetryDLQResponse{NewJobID: newID.String()})
}
