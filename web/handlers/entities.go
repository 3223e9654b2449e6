package handlers

import (
	"net/http"

	"github.com/atticlabs/attic/internal/storage"
	"github.com/atticlabs/attic/pkg/types"
)

// EntityHandlers contains HTTP handlers for the entity resource.
type EntityHandlers struct {
	store storage.Store
}

// NewEntityHandlers creates a new EntityHandlers instance.
func NewEntityHandlers(store storage.Store) *EntityHandlers {
	return &EntityHandlers{store: store}
}

// ListEntities handles GET /api/entities. With a kind filter it returns the
// owner's entities of that kind ordered by name; without one it returns a
// mention-count-ordered page.
func (h *EntityHandlers) ListEntities(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == "" {
		return
	}

	q := r.URL.Query()
	if kind := q.Get("kind"); kind != "" {
		entities, err := h.store.FindEntitiesByKind(r.Context(), owner, types.EntityKind(kind))
		if err != nil {
			respondStoreError(w, "failed to list entities", err)
			return
		}
		respondJSON(w, http.StatusOK, map[string]interface{}{
			"kind":     kind,
			"entities": entities,
		})
		return
	}

	opts := storage.ListOptions{
		Page:  parseInt(q.Get("page"), 1),
		Limit: parseInt(q.Get("limit"), 10),
	}
	result, err := h.store.ListEntities(r.Context(), owner, opts)
	if err != nil {
		respondStoreError(w, "failed to list entities", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetEntity handles GET /api/entities/{id}.
func (h *EntityHandlers) GetEntity(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == "" {
		return
	}

	id := extractID(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "entity ID is required", nil)
		return
	}

	entity, err := h.store.GetEntity(r.Context(), owner, id)
	if err != nil {
		respondStoreError(w, "failed to get entity", err)
		return
	}

	respondJSON(w, http.StatusOK, entity)
}

// GetEntityCaptures handles GET /api/entities/{id}/captures, everything
// known about the entity ordered by capture creation descending.
func (h *EntityHandlers) GetEntityCaptures(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == "" {
		return
	}

	id := extractID(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "entity ID is required", nil)
		return
	}

	links, err := h.store.LinksForEntity(r.Context(), owner, id)
	if err != nil {
		respondStoreError(w, "failed to list entity captures", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"entity_id": id,
		"captures":  links,
	})
}

// GetRelatedEntities handles GET /api/entities/{id}/related, co-occurring
// entities ranked by shared-capture count.
func (h *EntityHandlers) GetRelatedEntities(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == "" {
		return
	}

	id := extractID(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "entity ID is required", nil)
		return
	}

	limit := parseInt(r.URL.Query().Get("limit"), 10)
	related, err := h.store.RelatedEntities(r.Context(), owner, id, limit)
	if err != nil {
		respondStoreError(w, "failed to list related entities", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"entity_id": id,
		"related":   related,
	})
}

// GetTopEntities handles GET /api/entities/top, the owner's most-mentioned
// entities, optionally restricted to one kind.
func (h *EntityHandlers) GetTopEntities(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == "" {
		return
	}

	q := r.URL.Query()
	kind := types.EntityKind(q.Get("kind"))
	limit := parseInt(q.Get("limit"), 10)

	top, err := h.store.TopEntities(r.Context(), owner, kind, limit)
	if err != nil {
		respondStoreError(w, "failed to list top entities", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"entities": top,
	})
}
