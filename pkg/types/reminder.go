package types

import "time"

// ReminderStatus tracks a reminder through its lifecycle.
type ReminderStatus string

const (
	// ReminderActive is the initial state; the reminder may still fire.
	ReminderActive ReminderStatus = "active"

	// ReminderCompleted is terminal; the reminder fired or was resolved.
	ReminderCompleted ReminderStatus = "completed"

	// ReminderCancelled is terminal; the reminder was withdrawn.
	ReminderCancelled ReminderStatus = "cancelled"
)

// ValidReminderStatuses contains all reminder lifecycle states.
var ValidReminderStatuses = []ReminderStatus{
	ReminderActive,
	ReminderCompleted,
	ReminderCancelled,
}

// IsValidReminderStatus checks if the given status is recognized.
func IsValidReminderStatus(status ReminderStatus) bool {
	for _, valid := range ValidReminderStatuses {
		if status == valid {
			return true
		}
	}
	return false
}

// IsTerminalReminderStatus reports whether status permits no further
// transitions.
func IsTerminalReminderStatus(status ReminderStatus) bool {
	return status == ReminderCompleted || status == ReminderCancelled
}

// IsValidReminderTransition validates reminder state transitions.
//
// Valid transitions:
//
//	active -> completed | cancelled
//	completed -> (terminal, no transitions out)
//	cancelled -> (terminal, no transitions out)
//
// Re-asserting the current terminal state is not a transition; callers treat
// it as an idempotent no-op before consulting this function.
func IsValidReminderTransition(current, next ReminderStatus) bool {
	switch current {
	case ReminderActive:
		return next == ReminderCompleted || next == ReminderCancelled

	case ReminderCompleted, ReminderCancelled:
		return false

	default:
		return false
	}
}

// Reminder is a scheduled or condition-triggered follow-up, optionally
// anchored to the capture it was extracted from. Absolute triggers are
// evaluated by the built-in scheduler; free-form conditions are evaluated by
// an external interpreter that calls back to transition status.
type Reminder struct {
	ID               string         `json:"id"`                          // Unique identifier (format: rem:uuid)
	OwnerID          string         `json:"owner_id"`                    // Owning user
	CaptureID        string         `json:"capture_id,omitempty"`        // Originating capture; cleared (not cascaded) when it is deleted
	Text             string         `json:"text"`                        // What to remind about, never empty
	TriggerAt        *time.Time     `json:"trigger_at,omitempty"`        // Absolute trigger instant
	TriggerCondition string         `json:"trigger_condition,omitempty"` // Free-form condition ("in 3000 km"), opaque to the store
	Status           ReminderStatus `json:"status"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// HasTrigger reports whether at least one trigger criterion is set. A
// reminder without any can never fire and is rejected at creation.
func (r *Reminder) HasTrigger() bool {
	return (r.TriggerAt != nil && !r.TriggerAt.IsZero()) || r.TriggerCondition != ""
}
