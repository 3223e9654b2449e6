package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/atticlabs/attic/internal/storage"
	"github.com/atticlabs/attic/pkg/types"
)

// GetPreferences fetches the owner's preferences, or ErrNotFound when none
// were ever saved.
func (s *Store) GetPreferences(ctx context.Context, ownerID string) (*types.OwnerPreferences, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, owner_id, timezone, webhook_url, digest_hour, display_name, created_at, updated_at
		FROM owner_settings WHERE owner_id = ?`, ownerID)

	var (
		p                             types.OwnerPreferences
		timezone, webhookURL, display sql.NullString
		createdAt, updatedAt          string
	)
	err := row.Scan(&p.ID, &p.OwnerID, &timezone, &webhookURL, &p.DigestHour, &display, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get preferences: %w", err)
	}

	p.Timezone = timezone.String
	p.WebhookURL = webhookURL.String
	p.DisplayName = display.String
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return &p, nil
}

// SavePreferences upserts the owner's preferences. One row per owner.
func (s *Store) SavePreferences(ctx context.Context, prefs *types.OwnerPreferences) error {
	if prefs == nil || prefs.OwnerID == "" {
		return fmt.Errorf("%w: owner ID is required", storage.ErrValidation)
	}
	if prefs.DigestHour < 0 || prefs.DigestHour > 23 {
		return fmt.Errorf("%w: digest hour %d out of range [0, 23]", storage.ErrValidation, prefs.DigestHour)
	}
	if prefs.Timezone != "" {
		if _, err := time.LoadLocation(prefs.Timezone); err != nil {
			return fmt.Errorf("%w: unknown timezone %q", storage.ErrValidation, prefs.Timezone)
		}
	}

	if prefs.ID == "" {
		prefs.ID = newID("own")
	}
	now := time.Now().UTC()
	if prefs.CreatedAt.IsZero() {
		prefs.CreatedAt = now
	}
	prefs.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO owner_settings (id, owner_id, timezone, webhook_url, digest_hour, display_name, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id) DO UPDATE SET
			timezone = excluded.timezone,
			webhook_url = excluded.webhook_url,
			digest_hour = excluded.digest_hour,
			display_name = excluded.display_name,
			updated_at = excluded.updated_at`,
		prefs.ID, prefs.OwnerID, nullStr(prefs.Timezone), nullStr(prefs.WebhookURL),
		prefs.DigestHour, nullStr(prefs.DisplayName), fmtTime(prefs.CreatedAt), fmtTime(prefs.UpdatedAt))
	if err != nil {
		return fmt.Errorf("sqlite: failed to save preferences: %w", err)
	}

	return nil
}
