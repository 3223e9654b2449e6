package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/atticlabs/attic/internal/attribution"
	"github.com/atticlabs/attic/internal/engine"
	"github.com/atticlabs/attic/internal/storage"
	"github.com/atticlabs/attic/pkg/types"
)

// CaptureHandlers contains HTTP handlers for the capture resource.
type CaptureHandlers struct {
	store  storage.Store
	engine *engine.Engine
}

// NewCaptureHandlers creates a new CaptureHandlers instance.
func NewCaptureHandlers(store storage.Store, eng *engine.Engine) *CaptureHandlers {
	return &CaptureHandlers{
		store:  store,
		engine: eng,
	}
}

// CreateCaptureRequest represents the request body for creating a capture.
type CreateCaptureRequest struct {
	Text       string                 `json:"text"`
	SourceKind string                 `json:"source_kind,omitempty"`
	AudioPath  string                 `json:"audio_path,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	CreatedBy  string                 `json:"created_by,omitempty"`
}

// CreateCapture handles POST /api/captures. The capture is stored with
// status "pending"; extraction happens asynchronously through the engine.
func (h *CaptureHandlers) CreateCapture(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == "" {
		return
	}

	var req CreateCaptureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse request body", err)
		return
	}

	sourceKind := types.SourceKind(req.SourceKind)
	if sourceKind == "" {
		sourceKind = types.SourceText
	}
	if req.CreatedBy == "" {
		req.CreatedBy = attribution.ClientAPI
	}

	capture, err := h.engine.Ingest(r.Context(), engine.Submission{
		OwnerID:    owner,
		Text:       req.Text,
		SourceKind: sourceKind,
		AudioPath:  req.AudioPath,
		CreatedBy:  req.CreatedBy,
		Metadata:   req.Metadata,
	})
	if err != nil {
		if capture == nil {
			respondStoreError(w, "failed to create capture", err)
			return
		}
		// The capture was persisted but could not be queued; it is returned
		// in the failed state and can be retried later.
		log.Printf("WARNING: capture %s stored but not queued: %v", capture.ID, err)
	}

	respondJSON(w, http.StatusCreated, capture)
}

// GetCapture handles GET /api/captures/{id}.
func (h *CaptureHandlers) GetCapture(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == "" {
		return
	}

	id := extractID(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "capture ID is required", nil)
		return
	}

	capture, err := h.store.GetCapture(r.Context(), owner, id)
	if err != nil {
		respondStoreError(w, "failed to get capture", err)
		return
	}

	respondJSON(w, http.StatusOK, capture)
}

// DeleteCapture handles DELETE /api/captures/{id}. Deleting an already
// absent capture succeeds.
func (h *CaptureHandlers) DeleteCapture(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == "" {
		return
	}

	id := extractID(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "capture ID is required", nil)
		return
	}

	if err := h.store.DeleteCapture(r.Context(), owner, id); err != nil {
		respondStoreError(w, "failed to delete capture", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": id})
}

// ListCaptures handles GET /api/captures with pagination and filtering.
func (h *CaptureHandlers) ListCaptures(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == "" {
		return
	}

	q := r.URL.Query()
	opts := storage.ListOptions{
		Page:         parseInt(q.Get("page"), 1),
		Limit:        parseInt(q.Get("limit"), 10),
		SortBy:       q.Get("sort_by"),
		SortOrder:    q.Get("sort_order"),
		SourceKind:   types.SourceKind(q.Get("source_kind")),
		Status:       types.CaptureStatus(q.Get("status")),
		CreatedBy:    q.Get("created_by"),
		TextContains: q.Get("contains"),
	}
	if after := q.Get("created_after"); after != "" {
		t, err := time.Parse(time.RFC3339, after)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid created_after timestamp", err)
			return
		}
		opts.CreatedAfter = t
	}
	if before := q.Get("created_before"); before != "" {
		t, err := time.Parse(time.RFC3339, before)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid created_before timestamp", err)
			return
		}
		opts.CreatedBefore = t
	}

	result, err := h.store.ListCaptures(r.Context(), owner, opts)
	if err != nil {
		respondStoreError(w, "failed to list captures", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// PostExtraction handles POST /api/captures/{id}/extraction, the push
// transport for an out-of-process extractor. The result is applied through
// the same idempotent path the worker pool uses, so repeated delivery of the
// same result creates no duplicate rows.
func (h *CaptureHandlers) PostExtraction(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == "" {
		return
	}

	id := extractID(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "capture ID is required", nil)
		return
	}

	var result types.ExtractionResult
	if err := json.NewDecoder(r.Body).Decode(&result); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse extraction result", err)
		return
	}

	if err := h.engine.ApplyExtraction(r.Context(), owner, id, &result); err != nil {
		respondStoreError(w, "failed to apply extraction", err)
		return
	}

	capture, err := h.store.GetCapture(r.Context(), owner, id)
	if err != nil {
		respondStoreError(w, "failed to get capture", err)
		return
	}

	respondJSON(w, http.StatusOK, capture)
}

// GetCaptureLinks handles GET /api/captures/{id}/links.
func (h *CaptureHandlers) GetCaptureLinks(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == "" {
		return
	}

	id := extractID(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "capture ID is required", nil)
		return
	}

	links, err := h.store.LinksForCapture(r.Context(), owner, id)
	if err != nil {
		respondStoreError(w, "failed to list links", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"capture_id": id,
		"links":      links,
	})
}
