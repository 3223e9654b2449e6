package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/atticlabs/attic/internal/storage"
)

// SearchHandler handles full-text and similarity search over captures.
type SearchHandler struct {
	store storage.Store
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(store storage.Store) *SearchHandler {
	return &SearchHandler{store: store}
}

// Search handles GET /api/search?q={query}. An empty query degrades to the
// owner's most recent captures.
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == "" {
		return
	}

	q := r.URL.Query()
	opts := storage.SearchOptions{
		Query:  q.Get("q"),
		Limit:  parseInt(q.Get("limit"), 10),
		Offset: parseInt(q.Get("offset"), 0),
	}

	result, err := h.store.SearchCaptures(r.Context(), owner, opts)
	if err != nil {
		respondStoreError(w, "search failed", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"query":   opts.Query,
		"results": result,
	})
}

// similarRequest is the body for POST /api/search/similar.
type similarRequest struct {
	Vector []float32 `json:"vector"`
	Limit  int       `json:"limit,omitempty"`
}

// Similar handles POST /api/search/similar, ranking the owner's captures by
// cosine similarity to the supplied embedding vector.
func (h *SearchHandler) Similar(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == "" {
		return
	}

	var req similarRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse request body", err)
		return
	}
	if len(req.Vector) == 0 {
		respondError(w, http.StatusBadRequest, "vector is required", nil)
		return
	}
	if req.Limit < 1 {
		req.Limit = 10
	}

	scored, err := h.store.SimilarCaptures(r.Context(), owner, req.Vector, req.Limit)
	if err != nil {
		respondStoreError(w, "similarity search failed", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"results": scored,
	})
}
