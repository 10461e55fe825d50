package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"forgerun/internal/controller/middleware"
	"forgerun/pkg/api"
)

// GetJobLogs handles GET /jobs/{id}/logs: returns a job's consolidated
// stdout/stderr records, scoped to the authenticated tenant.
func (h *Handlers) GetJobLogs(w http.ResponseWriter, r *http.Request) {
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

	logs, err := h.store.GetJobLogs(ctx, jobID)
	if err != nil {
		h.httpError(w, "Failed to fetch logs", http.StatusInternalServerError)
		return
	}

	apiLogs := make([]api.LogEntry, len(logs))
	for i, log := range logs {
		apiLogs[i] = api.LogEntry{
			ID:        log.ID,
			Type:      string(log.Type),
			Content:   log.Content,
			CreatedAt: log.CreatedAt,
		}
	}

	h.respondJson(w, http.StatusOK, api.GetLogsResponse{Logs: apiLogs})
}
