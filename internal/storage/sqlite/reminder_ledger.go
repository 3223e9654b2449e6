package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/atticlabs/attic/internal/storage"
	"github.com/atticlabs/attic/pkg/types"
)

const reminderColumns = `id, owner_id, capture_id, text, trigger_at, trigger_condition, status, created_at, updated_at`

// CreateReminder validates and inserts a reminder in the active state.
// At least one trigger criterion must be set; a reminder that can never
// fire is rejected.
func (s *Store) CreateReminder(ctx context.Context, reminder *types.Reminder) error {
	if reminder == nil {
		return storage.ErrValidation
	}
	if reminder.OwnerID == "" {
		return fmt.Errorf("%w: owner ID is required", storage.ErrValidation)
	}
	if strings.TrimSpace(reminder.Text) == "" {
		return fmt.Errorf("%w: reminder text is required", storage.ErrValidation)
	}
	if !reminder.HasTrigger() {
		return fmt.Errorf("%w: reminder needs a trigger time or condition", storage.ErrValidation)
	}

	if reminder.ID == "" {
		reminder.ID = newID("rem")
	}
	reminder.Status = types.ReminderActive

	now := time.Now().UTC()
	if reminder.CreatedAt.IsZero() {
		reminder.CreatedAt = now
	}
	reminder.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO reminders (id, owner_id, capture_id, text, trigger_at, trigger_condition, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		reminder.ID, reminder.OwnerID, nullStr(reminder.CaptureID), reminder.Text,
		nullTime(reminder.TriggerAt), nullStr(reminder.TriggerCondition),
		string(reminder.Status), fmtTime(reminder.CreatedAt), fmtTime(reminder.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: reminder %s", storage.ErrIntegrity, reminder.ID)
		}
		return fmt.Errorf("sqlite: failed to insert reminder: %w", err)
	}

	return nil
}

// GetReminder fetches a reminder by ID, scoped to the owner.
func (s *Store) GetReminder(ctx context.Context, ownerID, id string) (*types.Reminder, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE id = ? AND owner_id = ?`, id, ownerID)

	reminder, err := scanReminder(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get reminder: %w", err)
	}
	return reminder, nil
}

// CompleteReminder transitions an active reminder to completed. Completing an
// already completed reminder is a no-op; completing a cancelled one is
// ErrInvalidState.
func (s *Store) CompleteReminder(ctx context.Context, ownerID, id string) error {
	return s.transitionReminder(ctx, ownerID, id, types.ReminderCompleted)
}

// CancelReminder transitions an active reminder to cancelled. Cancelling an
// already cancelled reminder is a no-op; cancelling a completed one is
// ErrInvalidState.
func (s *Store) CancelReminder(ctx context.Context, ownerID, id string) error {
	return s.transitionReminder(ctx, ownerID, id, types.ReminderCancelled)
}

// transitionReminder applies the reminder state machine. The conditional
// UPDATE only fires from active; when it misses, the current row decides
// between not-found, idempotent no-op, and an illegal transition.
func (s *Store) transitionReminder(ctx context.Context, ownerID, id string, next types.ReminderStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE reminders SET status = ?, updated_at = ?
		WHERE id = ? AND owner_id = ? AND status = ?`,
		string(next), fmtTime(time.Now()), id, ownerID, string(types.ReminderActive))
	if err != nil {
		return fmt.Errorf("sqlite: failed to transition reminder: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: failed to check transition result: %w", err)
	}
	if n > 0 {
		return nil
	}

	reminder, err := s.GetReminder(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if reminder.Status == next {
		// Retried delivery of the same transition.
		return nil
	}
	return fmt.Errorf("%w: reminder %s is %s", storage.ErrInvalidState, id, reminder.Status)
}

// DueReminders returns the owner's active reminders whose trigger time is at
// or before asOf, soonest first. Condition-only reminders never appear here.
func (s *Store) DueReminders(ctx context.Context, ownerID string, asOf time.Time) ([]types.Reminder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+reminderColumns+` FROM reminders
		WHERE owner_id = ? AND status = ? AND trigger_at IS NOT NULL AND trigger_at <= ?
		ORDER BY trigger_at ASC`,
		ownerID, string(types.ReminderActive), fmtTime(asOf))
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list due reminders: %w", err)
	}
	defer rows.Close()

	return collectReminders(rows)
}

// ScanDueReminders returns due active reminders across all owners, soonest
// first, capped at limit. The scheduler polls this.
func (s *Store) ScanDueReminders(ctx context.Context, asOf time.Time, limit int) ([]types.Reminder, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+reminderColumns+` FROM reminders
		WHERE status = ? AND trigger_at IS NOT NULL AND trigger_at <= ?
		ORDER BY trigger_at ASC
		LIMIT ?`,
		string(types.ReminderActive), fmtTime(asOf), limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to scan due reminders: %w", err)
	}
	defer rows.Close()

	return collectReminders(rows)
}

// ListReminders returns a page of the owner's reminders, optionally filtered
// by status.
func (s *Store) ListReminders(ctx context.Context, ownerID string, status types.ReminderStatus, opts storage.ListOptions) (*storage.PaginatedResult[types.Reminder], error) {
	if status != "" && !types.IsValidReminderStatus(status) {
		return nil, fmt.Errorf("%w: unrecognized reminder status %q", storage.ErrValidation, status)
	}

	opts.Normalize()

	where := "owner_id = ?"
	args := []interface{}{ownerID}
	if status != "" {
		where += " AND status = ?"
		args = append(args, string(status))
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reminders WHERE `+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("sqlite: failed to count reminders: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM reminders WHERE %s ORDER BY %s %s LIMIT ? OFFSET ?`,
		reminderColumns, where, opts.SortBy, strings.ToUpper(opts.SortOrder))

	rows, err := s.db.QueryContext(ctx, query, append(args, opts.Limit, opts.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list reminders: %w", err)
	}
	defer rows.Close()

	reminders, err := collectReminders(rows)
	if err != nil {
		return nil, err
	}

	return &storage.PaginatedResult[types.Reminder]{
		Items:    reminders,
		Total:    total,
		Page:     opts.Page,
		PageSize: opts.Limit,
		HasMore:  opts.Offset()+len(reminders) < total,
	}, nil
}

// ReminderForCapture returns the owner's active reminder anchored to the
// capture, or ErrNotFound when there is none. Re-extraction uses this to
// reschedule instead of duplicating.
func (s *Store) ReminderForCapture(ctx context.Context, ownerID, captureID string) (*types.Reminder, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+reminderColumns+` FROM reminders
		WHERE owner_id = ? AND capture_id = ? AND status = ?
		ORDER BY created_at DESC
		LIMIT 1`,
		ownerID, captureID, string(types.ReminderActive))

	reminder, err := scanReminder(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get capture reminder: %w", err)
	}
	return reminder, nil
}

// RescheduleReminder rewrites the text and trigger of an active reminder.
// Terminal reminders cannot be rescheduled.
func (s *Store) RescheduleReminder(ctx context.Context, ownerID, id, text string, triggerAt *time.Time, triggerCondition string) (*types.Reminder, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: reminder text is required", storage.ErrValidation)
	}
	probe := types.Reminder{TriggerAt: triggerAt, TriggerCondition: triggerCondition}
	if !probe.HasTrigger() {
		return nil, fmt.Errorf("%w: reminder needs a trigger time or condition", storage.ErrValidation)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE reminders SET text = ?, trigger_at = ?, trigger_condition = ?, updated_at = ?
		WHERE id = ? AND owner_id = ? AND status = ?`,
		text, nullTime(triggerAt), nullStr(triggerCondition), fmtTime(time.Now()),
		id, ownerID, string(types.ReminderActive))
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to reschedule reminder: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to check reschedule result: %w", err)
	}
	if n == 0 {
		reminder, err := s.GetReminder(ctx, ownerID, id)
		if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w: reminder %s is %s", storage.ErrInvalidState, id, reminder.Status)
	}

	return s.GetReminder(ctx, ownerID, id)
}

// PurgeReminder hard-deletes a reminder regardless of state. Purging an
// absent reminder succeeds; absence is the goal state.
func (s *Store) PurgeReminder(ctx context.Context, ownerID, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM reminders WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("sqlite: failed to purge reminder: %w", err)
	}
	return nil
}

func scanReminder(row rowScanner) (*types.Reminder, error) {
	var (
		r                               types.Reminder
		captureID, triggerAt, condition sql.NullString
		status, createdAt, updatedAt    string
	)

	err := row.Scan(&r.ID, &r.OwnerID, &captureID, &r.Text, &triggerAt, &condition,
		&status, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	r.CaptureID = captureID.String
	r.TriggerCondition = condition.String
	r.Status = types.ReminderStatus(status)

	if triggerAt.Valid {
		t, err := parseTime(triggerAt.String)
		if err != nil {
			return nil, err
		}
		r.TriggerAt = &t
	}
	if r.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if r.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return &r, nil
}

func collectReminders(rows *sql.Rows) ([]types.Reminder, error) {
	reminders := []types.Reminder{}
	for rows.Next() {
		reminder, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan reminder: %w", err)
		}
		reminders = append(reminders, *reminder)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: reminder rows: %w", err)
	}
	return reminders, nil
}
