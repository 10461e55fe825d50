package handlers

import (
	"net/http"

	"forgerun/pkg/api"
)

// GetQueueStats handles GET /stats: an operational snapshot combining the
// Durable Queue Client's get_counts() breakdown with the durable store's
// get_job_statistics() aggregate. Unauthenticated, like /healthz and
// /readyz — it reports process-wide state, not anything tenant-scoped.
func (h *Handlers) GetQueueStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	counts, err := h.store.GetCounts(ctx)
	if err != nil {
		h.httpError(w, "Failed to read queue counts", http.StatusInternalServerError)
		return
	}

	stats, err := h.store.GetJobStatistics(ctx)
	if err != nil {
		h.httpError(w, "Failed to read job statistics", http.StatusInternalServerError)
		return
	}

	byStatus := make(map[string]int64, len(stats.ByStatus))
	for status, n := range stats.ByStatus {
		byStatus[string(status)] = n
	}

	h.respondJson(w, http.StatusOK, api.QueueStatsResponse{
		Waiting:       counts.Waiting,
		Active:        counts.Active,
		Completed:     counts.Completed,
		Failed:        counts.Failed,
		Delayed:       counts.Delayed,
		TotalJobs:     stats.TotalJobs,
		DeadLettered:  stats.DeadLettered,
		AvgDurationMS: stats.AvgDurationMS,
		ByStatus:      byStatus,
	})
}
