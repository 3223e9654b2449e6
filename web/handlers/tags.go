package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/atticlabs/attic/internal/storage"
)

// TagHandlers contains HTTP handlers for the tag resource.
type TagHandlers struct {
	store storage.Store
}

// NewTagHandlers creates a new TagHandlers instance.
func NewTagHandlers(store storage.Store) *TagHandlers {
	return &TagHandlers{store: store}
}

// ListTags handles GET /api/tags.
func (h *TagHandlers) ListTags(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == "" {
		return
	}

	tags, err := h.store.ListTags(r.Context(), owner)
	if err != nil {
		respondStoreError(w, "failed to list tags", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tags": tags,
	})
}

// GetTagCaptures handles GET /api/tags/{id}/captures.
func (h *TagHandlers) GetTagCaptures(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == "" {
		return
	}

	id := extractID(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "tag ID is required", nil)
		return
	}

	captureIDs, err := h.store.CaptureIDsForTag(r.Context(), owner, id)
	if err != nil {
		respondStoreError(w, "failed to list tagged captures", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tag_id":      id,
		"capture_ids": captureIDs,
	})
}

// GetCaptureTags handles GET /api/captures/{id}/tags.
func (h *TagHandlers) GetCaptureTags(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == "" {
		return
	}

	id := extractID(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "capture ID is required", nil)
		return
	}

	tags, err := h.store.TagsForCapture(r.Context(), owner, id)
	if err != nil {
		respondStoreError(w, "failed to list capture tags", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"capture_id": id,
		"tags":       tags,
	})
}

// attachTagRequest is the body for POST /api/captures/{id}/tags. Either an
// existing tag ID or a name (created on first use) must be supplied.
type attachTagRequest struct {
	TagID string `json:"tag_id,omitempty"`
	Name  string `json:"name,omitempty"`
	Color string `json:"color,omitempty"`
}

// AttachTag handles POST /api/captures/{id}/tags. Attaching an already
// attached tag succeeds.
func (h *TagHandlers) AttachTag(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == "" {
		return
	}

	captureID := extractID(r, "id")
	if captureID == "" {
		respondError(w, http.StatusBadRequest, "capture ID is required", nil)
		return
	}

	var req attachTagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse request body", err)
		return
	}

	tagID := req.TagID
	if tagID == "" {
		if req.Name == "" {
			respondError(w, http.StatusBadRequest, "tag_id or name is required", nil)
			return
		}
		tag, err := h.store.GetOrCreateTag(r.Context(), owner, req.Name, req.Color)
		if err != nil {
			respondStoreError(w, "failed to resolve tag", err)
			return
		}
		tagID = tag.ID
	}

	if err := h.store.AttachTag(r.Context(), owner, captureID, tagID); err != nil {
		respondStoreError(w, "failed to attach tag", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status":     "attached",
		"capture_id": captureID,
		"tag_id":     tagID,
	})
}

// DetachTag handles DELETE /api/captures/{id}/tags/{tag_id}. Detaching an
// absent association succeeds.
func (h *TagHandlers) DetachTag(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == "" {
		return
	}

	captureID := extractID(r, "id")
	tagID := extractID(r, "tag_id")
	if captureID == "" || tagID == "" {
		respondError(w, http.StatusBadRequest, "capture ID and tag ID are required", nil)
		return
	}

	if err := h.store.DetachTag(r.Context(), owner, captureID, tagID); err != nil {
		respondStoreError(w, "failed to detach tag", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{
		"status":     "detached",
		"capture_id": captureID,
		"tag_id":     tagID,
	})
}
