package postgres

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
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		reminder.ID, reminder.OwnerID, nullStr(reminder.CaptureID), reminder.Text,
		nullTimePtr(reminder.TriggerAt), nullStr(reminder.TriggerCondition),
		string(reminder.Status), reminder.CreatedAt, reminder.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: reminder %s", storage.ErrIntegrity, reminder.ID)
		}
		return fmt.Errorf("postgres: failed to insert reminder: %w", err)
	}
	return nil
}

func (s *Store) GetReminder(ctx context.Context, ownerID, id string) (*types.Reminder, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE id = $1 AND owner_id = $2`, id, ownerID)

	reminder, err := scanReminder(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to get reminder: %w", err)
	}
	return reminder, nil
}

func (s *Store) CompleteReminder(ctx context.Context, ownerID, id string) error {
	return s.transitionReminder(ctx, ownerID, id, types.ReminderCompleted)
}

func (s *Store) CancelReminder(ctx context.Context, ownerID, id string) error {
	return s.transitionReminder(ctx, ownerID, id, types.ReminderCancelled)
}

// transitionReminder applies the reminder state machine. The conditional
// UPDATE only fires from active; when it misses, the current row decides
// between not-found, idempotent no-op, and an illegal transition.
func (s *Store) transitionReminder(ctx context.Context, ownerID, id string, next types.ReminderStatus) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE reminders SET status = $1, updated_at = NOW()
		WHERE id = $2 AND owner_id = $3 AND status = $4`,
		string(next), id, ownerID, string(types.ReminderActive))
	if err != nil {
		return fmt.Errorf("postgres: failed to transition reminder: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: failed to check transition result: %w", err)
	}
	if n > 0 {
		return nil
	}

	reminder, err := s.GetReminder(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if reminder.Status == next {
		return nil
	}
	return fmt.Errorf("%w: reminder %s is %s", storage.ErrInvalidState, id, reminder.Status)
}

func (s *Store) DueReminders(ctx context.Context, ownerID string, asOf time.Time) ([]types.Reminder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+reminderColumns+` FROM reminders
		WHERE owner_id = $1 AND status = $2 AND trigger_at IS NOT NULL AND trigger_at <= $3
		ORDER BY trigger_at ASC`,
		ownerID, string(types.ReminderActive), asOf.UTC())
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list due reminders: %w", err)
	}
	defer rows.Close()

	return collectReminders(rows)
}

func (s *Store) ScanDueReminders(ctx context.Context, asOf time.Time, limit int) ([]types.Reminder, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+reminderColumns+` FROM reminders
		WHERE status = $1 AND trigger_at IS NOT NULL AND trigger_at <= $2
		ORDER BY trigger_at ASC
		LIMIT $3`,
		string(types.ReminderActive), asOf.UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to scan due reminders: %w", err)
	}
	defer rows.Close()

	return collectReminders(rows)
}

func (s *Store) ListReminders(ctx context.Context, ownerID string, status types.ReminderStatus, opts storage.ListOptions) (*storage.PaginatedResult[types.Reminder], error) {
	if status != "" && !types.IsValidReminderStatus(status) {
		return nil, fmt.Errorf("%w: unrecognized reminder status %q", storage.ErrValidation, status)
	}

	opts.Normalize()

	where := "owner_id = $1"
	args := []interface{}{ownerID}
	if status != "" {
		args = append(args, string(status))
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM reminders WHERE `+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("postgres: failed to count reminders: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM reminders WHERE %s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		reminderColumns, where, opts.SortBy, strings.ToUpper(opts.SortOrder), len(args)+1, len(args)+2)

	rows, err := s.db.QueryContext(ctx, query, append(args, opts.Limit, opts.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list reminders: %w", err)
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

func (s *Store) ReminderForCapture(ctx context.Context, ownerID, captureID string) (*types.Reminder, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+reminderColumns+` FROM reminders
		WHERE owner_id = $1 AND capture_id = $2 AND status = $3
		ORDER BY created_at DESC
		LIMIT 1`,
		ownerID, captureID, string(types.ReminderActive))

	reminder, err := scanReminder(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to get capture reminder: %w", err)
	}
	return reminder, nil
}

func (s *Store) RescheduleReminder(ctx context.Context, ownerID, id, text string, triggerAt *time.Time, triggerCondition string) (*types.Reminder, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: reminder text is required", storage.ErrValidation)
	}
	probe := types.Reminder{TriggerAt: triggerAt, TriggerCondition: triggerCondition}
	if !probe.HasTrigger() {
		return nil, fmt.Errorf("%w: reminder needs a trigger time or condition", storage.ErrValidation)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE reminders SET text = $1, trigger_at = $2, trigger_condition = $3, updated_at = NOW()
		WHERE id = $4 AND owner_id = $5 AND status = $6`,
		text, nullTimePtr(triggerAt), nullStr(triggerCondition),
		id, ownerID, string(types.ReminderActive))
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to reschedule reminder: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to check reschedule result: %w", err)
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

func (s *Store) PurgeReminder(ctx context.Context, ownerID, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM reminders WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("postgres: failed to purge reminder: %w", err)
	}
	return nil
}

func scanReminder(row rowScanner) (*types.Reminder, error) {
	var (
		r                    types.Reminder
		captureID, condition sql.NullString
		triggerAt            sql.NullTime
		status               string
	)

	err := row.Scan(&r.ID, &r.OwnerID, &captureID, &r.Text, &triggerAt, &condition,
		&status, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}

	r.CaptureID = captureID.String
	r.TriggerCondition = condition.String
	r.Status = types.ReminderStatus(status)
	if triggerAt.Valid {
		t := triggerAt.Time
		r.TriggerAt = &t
	}
	return &r, nil
}

func collectReminders(rows *sql.Rows) ([]types.Reminder, error) {
	reminders := []types.Reminder{}
	for rows.Next() {
		reminder, err := scanReminder(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan reminder: %w", err)
		}
		reminders = append(reminders, *reminder)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: reminder rows: %w", err)
	}
	return reminders, nil
}
