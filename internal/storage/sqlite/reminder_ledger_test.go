package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/atticlabs/attic/internal/storage"
	"github.com/atticlabs/attic/pkg/types"
)

func mustReminder(t *testing.T, store *Store, ownerID, text string, triggerAt *time.Time, condition string) *types.Reminder {
	t.Helper()
	r := &types.Reminder{
		OwnerID:          ownerID,
		Text:             text,
		TriggerAt:        triggerAt,
		TriggerCondition: condition,
	}
	if err := store.CreateReminder(context.Background(), r); err != nil {
		t.Fatalf("CreateReminder() failed: %v", err)
	}
	return r
}

func timePtr(t time.Time) *time.Time { return &t }

func TestCreateReminderRequiresTrigger(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.CreateReminder(ctx, &types.Reminder{OwnerID: "owner-1", Text: "call mum"})
	if !errors.Is(err, storage.ErrValidation) {
		t.Errorf("no trigger: got %v, want ErrValidation", err)
	}

	err = store.CreateReminder(ctx, &types.Reminder{OwnerID: "owner-1", TriggerCondition: "someday"})
	if !errors.Is(err, storage.ErrValidation) {
		t.Errorf("empty text: got %v, want ErrValidation", err)
	}

	// Either criterion alone is enough.
	r := mustReminder(t, store, "owner-1", "renew passport", nil, "in 3000 km")
	if r.Status != types.ReminderActive {
		t.Errorf("Status: got %q, want %q", r.Status, types.ReminderActive)
	}
}

func TestReminderStateMachine(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	r := mustReminder(t, store, "owner-1", "water plants", timePtr(time.Now().Add(time.Hour)), "")

	if err := store.CompleteReminder(ctx, "owner-1", r.ID); err != nil {
		t.Fatalf("CompleteReminder() failed: %v", err)
	}

	// Completing again is an idempotent no-op.
	if err := store.CompleteReminder(ctx, "owner-1", r.ID); err != nil {
		t.Errorf("repeat complete: got %v, want nil", err)
	}

	// Crossing terminal states is rejected.
	if err := store.CancelReminder(ctx, "owner-1", r.ID); !errors.Is(err, storage.ErrInvalidState) {
		t.Errorf("cancel after complete: got %v, want ErrInvalidState", err)
	}

	got, err := store.GetReminder(ctx, "owner-1", r.ID)
	if err != nil {
		t.Fatalf("GetReminder() failed: %v", err)
	}
	if got.Status != types.ReminderCompleted {
		t.Errorf("Status: got %q, want %q", got.Status, types.ReminderCompleted)
	}

	if err := store.CompleteReminder(ctx, "owner-1", "rem:missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("missing reminder: got %v, want ErrNotFound", err)
	}
	if err := store.CompleteReminder(ctx, "owner-2", r.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("cross-owner transition: got %v, want ErrNotFound", err)
	}
}

func TestDueReminders(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	past := mustReminder(t, store, "owner-1", "overdue", timePtr(now.Add(-time.Hour)), "")
	mustReminder(t, store, "owner-1", "future", timePtr(now.Add(time.Hour)), "")
	mustReminder(t, store, "owner-1", "condition only", nil, "when it rains")

	cancelled := mustReminder(t, store, "owner-1", "cancelled", timePtr(now.Add(-2*time.Hour)), "")
	if err := store.CancelReminder(ctx, "owner-1", cancelled.ID); err != nil {
		t.Fatalf("CancelReminder() failed: %v", err)
	}

	due, err := store.DueReminders(ctx, "owner-1", now)
	if err != nil {
		t.Fatalf("DueReminders() failed: %v", err)
	}
	if len(due) != 1 || due[0].ID != past.ID {
		t.Errorf("DueReminders: got %d results, want just %s", len(due), past.ID)
	}

	// The cross-owner scan sees the same row.
	scanned, err := store.ScanDueReminders(ctx, now, 10)
	if err != nil {
		t.Fatalf("ScanDueReminders() failed: %v", err)
	}
	if len(scanned) != 1 || scanned[0].ID != past.ID {
		t.Errorf("ScanDueReminders: got %d results", len(scanned))
	}
}

func TestRescheduleReminder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	c := mustCapture(t, store, "owner-1", "dentist soon")
	r := &types.Reminder{
		OwnerID:          "owner-1",
		CaptureID:        c.ID,
		Text:             "book dentist",
		TriggerCondition: "next week",
	}
	if err := store.CreateReminder(ctx, r); err != nil {
		t.Fatalf("CreateReminder() failed: %v", err)
	}

	// Re-extraction finds the active reminder by capture.
	found, err := store.ReminderForCapture(ctx, "owner-1", c.ID)
	if err != nil {
		t.Fatalf("ReminderForCapture() failed: %v", err)
	}
	if found.ID != r.ID {
		t.Errorf("ReminderForCapture: got %s, want %s", found.ID, r.ID)
	}

	when := time.Date(2026, 9, 3, 10, 0, 0, 0, time.UTC)
	updated, err := store.RescheduleReminder(ctx, "owner-1", r.ID, "dentist appointment", &when, "")
	if err != nil {
		t.Fatalf("RescheduleReminder() failed: %v", err)
	}
	if updated.Text != "dentist appointment" {
		t.Errorf("Text: got %q", updated.Text)
	}
	if updated.TriggerAt == nil || !updated.TriggerAt.Equal(when) {
		t.Errorf("TriggerAt: got %v, want %v", updated.TriggerAt, when)
	}
	if updated.TriggerCondition != "" {
		t.Errorf("TriggerCondition not cleared: got %q", updated.TriggerCondition)
	}

	// Terminal reminders cannot be rescheduled.
	if err := store.CompleteReminder(ctx, "owner-1", r.ID); err != nil {
		t.Fatalf("CompleteReminder() failed: %v", err)
	}
	if _, err := store.RescheduleReminder(ctx, "owner-1", r.ID, "again", &when, ""); !errors.Is(err, storage.ErrInvalidState) {
		t.Errorf("reschedule terminal: got %v, want ErrInvalidState", err)
	}

	// Once terminal, the capture lookup finds nothing to reuse.
	if _, err := store.ReminderForCapture(ctx, "owner-1", c.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("ReminderForCapture after complete: got %v, want ErrNotFound", err)
	}
}

func TestListAndPurgeReminders(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	a := mustReminder(t, store, "owner-1", "a", nil, "cond")
	mustReminder(t, store, "owner-1", "b", nil, "cond")
	if err := store.CancelReminder(ctx, "owner-1", a.ID); err != nil {
		t.Fatalf("CancelReminder() failed: %v", err)
	}

	active, err := store.ListReminders(ctx, "owner-1", types.ReminderActive, storage.ListOptions{})
	if err != nil {
		t.Fatalf("ListReminders() failed: %v", err)
	}
	if active.Total != 1 {
		t.Errorf("active reminders: got %d, want 1", active.Total)
	}

	all, err := store.ListReminders(ctx, "owner-1", "", storage.ListOptions{})
	if err != nil {
		t.Fatalf("ListReminders() all failed: %v", err)
	}
	if all.Total != 2 {
		t.Errorf("all reminders: got %d, want 2", all.Total)
	}

	if err := store.PurgeReminder(ctx, "owner-1", a.ID); err != nil {
		t.Fatalf("PurgeReminder() failed: %v", err)
	}
	if _, err := store.GetReminder(ctx, "owner-1", a.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("purged reminder still readable: %v", err)
	}
	// Purging again is a no-op; absence is the goal state.
	if err := store.PurgeReminder(ctx, "owner-1", a.ID); err != nil {
		t.Errorf("second purge: got %v, want nil", err)
	}
	if err := store.PurgeReminder(ctx, "owner-1", "rem:never-existed"); err != nil {
		t.Errorf("purge of absent reminder: got %v, want nil", err)
	}
}
