package handlers

import (
	"net/http"

	"github.com/atticlabs/attic/internal/storage"
)

// StatsHandler handles the /api/stats endpoint.
type StatsHandler struct {
	store storage.Store
	queue QueueSizeGetter
}

// NewStatsHandler creates a new StatsHandler. The queue getter is optional
// and may be nil when no engine is running.
func NewStatsHandler(store storage.Store, queue QueueSizeGetter) *StatsHandler {
	return &StatsHandler{
		store: store,
		queue: queue,
	}
}

// StatsResponse is the response format for GET /api/stats.
type StatsResponse struct {
	Captures        int `json:"captures"`
	Entities        int `json:"entities"`
	Linkages        int `json:"linkages"`
	Tags            int `json:"tags"`
	ActiveReminders int `json:"active_reminders"`
	QueueSize       int `json:"queue_size"`
}

// GetStats handles GET /api/stats.
func (h *StatsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == "" {
		return
	}

	stats, err := h.store.OwnerStats(r.Context(), owner)
	if err != nil {
		respondStoreError(w, "failed to compute stats", err)
		return
	}

	resp := StatsResponse{
		Captures:        stats.Captures,
		Entities:        stats.Entities,
		Linkages:        stats.Linkages,
		Tags:            stats.Tags,
		ActiveReminders: stats.ActiveReminders,
	}
	if h.queue != nil {
		resp.QueueSize = h.queue.GetQueueSize()
	}

	respondJSON(w, http.StatusOK, resp)
}
