package types_test

import (
	"testing"
	"time"

	"github.com/atticlabs/attic/pkg/types"
)

func TestIsValidReminderTransition(t *testing.T) {
	tests := []struct {
		name    string
		current types.ReminderStatus
		next    types.ReminderStatus
		want    bool
	}{
		{"active to completed", types.ReminderActive, types.ReminderCompleted, true},
		{"active to cancelled", types.ReminderActive, types.ReminderCancelled, true},
		{"completed to cancelled", types.ReminderCompleted, types.ReminderCancelled, false},
		{"completed to active", types.ReminderCompleted, types.ReminderActive, false},
		{"cancelled to completed", types.ReminderCancelled, types.ReminderCompleted, false},
		{"cancelled to active", types.ReminderCancelled, types.ReminderActive, false},
		{"active to active", types.ReminderActive, types.ReminderActive, false},
		{"unknown current state", types.ReminderStatus("archived"), types.ReminderCompleted, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := types.IsValidReminderTransition(tt.current, tt.next); got != tt.want {
				t.Errorf("IsValidReminderTransition(%q, %q) = %v, want %v", tt.current, tt.next, got, tt.want)
			}
		})
	}
}

func TestIsTerminalReminderStatus(t *testing.T) {
	if types.IsTerminalReminderStatus(types.ReminderActive) {
		t.Error("active should not be terminal")
	}
	if !types.IsTerminalReminderStatus(types.ReminderCompleted) {
		t.Error("completed should be terminal")
	}
	if !types.IsTerminalReminderStatus(types.ReminderCancelled) {
		t.Error("cancelled should be terminal")
	}
}

func TestReminderHasTrigger(t *testing.T) {
	at := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		rem  types.Reminder
		want bool
	}{
		{"absolute trigger only", types.Reminder{TriggerAt: &at}, true},
		{"condition only", types.Reminder{TriggerCondition: "in 3000 km"}, true},
		{"both", types.Reminder{TriggerAt: &at, TriggerCondition: "tomorrow"}, true},
		{"neither", types.Reminder{}, false},
		{"zero trigger time", types.Reminder{TriggerAt: &time.Time{}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rem.HasTrigger(); got != tt.want {
				t.Errorf("HasTrigger() = %v, want %v", got, tt.want)
			}
		})
	}
}
