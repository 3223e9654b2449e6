package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/atticlabs/attic/internal/storage"
	"github.com/atticlabs/attic/pkg/types"
)

// ReminderHandlers contains HTTP handlers for the reminder resource.
type ReminderHandlers struct {
	store storage.Store
}

// NewReminderHandlers creates a new ReminderHandlers instance.
func NewReminderHandlers(store storage.Store) *ReminderHandlers {
	return &ReminderHandlers{store: store}
}

// CreateReminderRequest represents the request body for creating a reminder.
// At least one of trigger_at / trigger_condition must be present.
type CreateReminderRequest struct {
	CaptureID        string     `json:"capture_id,omitempty"`
	Text             string     `json:"text"`
	TriggerAt        *time.Time `json:"trigger_at,omitempty"`
	TriggerCondition string     `json:"trigger_condition,omitempty"`
}

// CreateReminder handles POST /api/reminders.
func (h *ReminderHandlers) CreateReminder(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == "" {
		return
	}

	var req CreateReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse request body", err)
		return
	}

	reminder := &types.Reminder{
		OwnerID:          owner,
		CaptureID:        req.CaptureID,
		Text:             req.Text,
		TriggerAt:        req.TriggerAt,
		TriggerCondition: req.TriggerCondition,
		Status:           types.ReminderActive,
	}
	if err := h.store.CreateReminder(r.Context(), reminder); err != nil {
		respondStoreError(w, "failed to create reminder", err)
		return
	}

	respondJSON(w, http.StatusCreated, reminder)
}

// ListReminders handles GET /api/reminders with an optional status filter.
func (h *ReminderHandlers) ListReminders(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == "" {
		return
	}

	q := r.URL.Query()
	opts := storage.ListOptions{
		Page:  parseInt(q.Get("page"), 1),
		Limit: parseInt(q.Get("limit"), 10),
	}
	result, err := h.store.ListReminders(r.Context(), owner, types.ReminderStatus(q.Get("status")), opts)
	if err != nil {
		respondStoreError(w, "failed to list reminders", err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// GetDueReminders handles GET /api/reminders/due. Condition-only reminders
// never appear; their evaluator is external.
func (h *ReminderHandlers) GetDueReminders(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == "" {
		return
	}

	asOf := time.Now().UTC()
	if raw := r.URL.Query().Get("as_of"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid as_of timestamp", err)
			return
		}
		asOf = t
	}

	due, err := h.store.DueReminders(r.Context(), owner, asOf)
	if err != nil {
		respondStoreError(w, "failed to list due reminders", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"as_of":     asOf,
		"reminders": due,
	})
}

// GetReminder handles GET /api/reminders/{id}.
func (h *ReminderHandlers) GetReminder(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == "" {
		return
	}

	id := extractID(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "reminder ID is required", nil)
		return
	}

	reminder, err := h.store.GetReminder(r.Context(), owner, id)
	if err != nil {
		respondStoreError(w, "failed to get reminder", err)
		return
	}

	respondJSON(w, http.StatusOK, reminder)
}

// CompleteReminder handles POST /api/reminders/{id}/complete. Completing an
// already completed reminder succeeds; completing a cancelled one is a 409.
func (h *ReminderHandlers) CompleteReminder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.store.CompleteReminder)
}

// CancelReminder handles POST /api/reminders/{id}/cancel.
func (h *ReminderHandlers) CancelReminder(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.store.CancelReminder)
}

func (h *ReminderHandlers) transition(w http.ResponseWriter, r *http.Request, apply func(ctx context.Context, ownerID, id string) error) {
	owner := requireOwner(w, r)
	if owner == "" {
		return
	}

	id := extractID(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "reminder ID is required", nil)
		return
	}

	if err := apply(r.Context(), owner, id); err != nil {
		respondStoreError(w, "failed to transition reminder", err)
		return
	}

	reminder, err := h.store.GetReminder(r.Context(), owner, id)
	if err != nil {
		respondStoreError(w, "failed to get reminder", err)
		return
	}

	respondJSON(w, http.StatusOK, reminder)
}

// RescheduleReminderRequest is the body for PATCH /api/reminders/{id}.
type RescheduleReminderRequest struct {
	Text             string     `json:"text"`
	TriggerAt        *time.Time `json:"trigger_at,omitempty"`
	TriggerCondition string     `json:"trigger_condition,omitempty"`
}

// RescheduleReminder handles PATCH /api/reminders/{id}. Only legal while
// the reminder is active.
func (h *ReminderHandlers) RescheduleReminder(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == "" {
		return
	}

	id := extractID(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "reminder ID is required", nil)
		return
	}

	var req RescheduleReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "failed to parse request body", err)
		return
	}

	reminder, err := h.store.RescheduleReminder(r.Context(), owner, id, req.Text, req.TriggerAt, req.TriggerCondition)
	if err != nil {
		respondStoreError(w, "failed to reschedule reminder", err)
		return
	}

	respondJSON(w, http.StatusOK, reminder)
}

// PurgeReminder handles DELETE /api/reminders/{id}, the explicit hard
// delete. Purging an absent reminder succeeds.
func (h *ReminderHandlers) PurgeReminder(w http.ResponseWriter, r *http.Request) {
	owner := requireOwner(w, r)
	if owner == "" {
		return
	}

	id := extractID(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "reminder ID is required", nil)
		return
	}

	if err := h.store.PurgeReminder(r.Context(), owner, id); err != nil {
		respondStoreError(w, "failed to purge reminder", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]string{"status": "purged", "id": id})
}
