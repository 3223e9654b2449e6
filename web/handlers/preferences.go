package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/atticlabs/attic/internal/services"
)

// PreferencesHandlers contains HTTP handlers for per-owner preferences.
type PreferencesHandlers struct {
	service *services.PreferencesService
}

// NewPreferencesHandlers creates a new PreferencesHandlers instance.
func NewPreferencesHandlers(service *services.PreferencesService) *PreferencesHandlers {
	return &PreferencesHandlers{service: service}
}

// GetPreferences handles GET /api/preferences. Owners that never saved
// preferences get the defaults.
func (h *PreferencesHandlers) GetPreferences(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == "" {
		return
	}

	prefs, err := h.service.Get(r.Context(), owner)
	if err != nil {
		respondStoreError(w, "failed to get preferences", err)
		return
	}

	respondJSON(w, http.StatusOK, prefs)
}

// PutPreferences handles PUT /api/preferences with a partial update body.
func (h *PreferencesHandlers) PutPreferences(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == "" {
		return
	}

	var update services.PreferencesUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse request body", err)
		return
	}

	prefs, err := h.service.Update(r.Context(), owner, update)
	if err != nil {
		respondStoreError(w, "failed to update preferences", err)
		return
	}

	respondJSON(w, http.StatusOK, prefs)
}
