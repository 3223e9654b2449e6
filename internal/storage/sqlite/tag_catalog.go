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

const tagColumns = `id, owner_id, name, color, created_at`

// GetOrCreateTag returns the tag named name for the owner, creating it when
// absent. The color set at creation sticks; a different color on a later call
// does not repaint the tag.
func (s *Store) GetOrCreateTag(ctx context.Context, ownerID, name, color string) (*types.Tag, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner ID is required", storage.ErrValidation)
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: tag name is required", storage.ErrValidation)
	}
	if color != "" && !types.IsValidTagColor(color) {
		return nil, fmt.Errorf("%w: invalid tag color %q", storage.ErrValidation, color)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tags (id, owner_id, name, color, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, name) DO NOTHING`,
		newID("tag"), ownerID, name, types.NormalizeTagColor(color), fmtTime(time.Now()))
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to upsert tag: %w", err)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE owner_id = ? AND name = ?`, ownerID, name)

	tag, err := scanTag(row)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to read tag after upsert: %w", err)
	}
	return tag, nil
}

// AttachTag associates a tag with a capture. Attaching an already attached
// tag is a no-op. Both rows must belong to ownerID.
func (s *Store) AttachTag(ctx context.Context, ownerID, captureID, tagID string) error {
	if err := s.checkTagPair(ctx, ownerID, captureID, tagID); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO capture_tags (capture_id, tag_id)
		VALUES (?, ?)
		ON CONFLICT(capture_id, tag_id) DO NOTHING`, captureID, tagID)
	if err != nil {
		return fmt.Errorf("sqlite: failed to attach tag: %w", err)
	}
	return nil
}

// DetachTag removes a tag association. Detaching a tag that is not attached
// is a no-op as long as both rows exist and belong to ownerID.
func (s *Store) DetachTag(ctx context.Context, ownerID, captureID, tagID string) error {
	if err := s.checkTagPair(ctx, ownerID, captureID, tagID); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM capture_tags WHERE capture_id = ? AND tag_id = ?`, captureID, tagID)
	if err != nil {
		return fmt.Errorf("sqlite: failed to detach tag: %w", err)
	}
	return nil
}

// checkTagPair verifies that the capture and the tag both exist and belong
// to the same owner.
func (s *Store) checkTagPair(ctx context.Context, ownerID, captureID, tagID string) error {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM captures WHERE id = ? AND owner_id = ?`,
		captureID, ownerID).Scan(&n); err != nil {
		return fmt.Errorf("sqlite: failed to verify capture: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: capture %s", storage.ErrNotFound, captureID)
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tags WHERE id = ? AND owner_id = ?`,
		tagID, ownerID).Scan(&n); err != nil {
		return fmt.Errorf("sqlite: failed to verify tag: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: tag %s", storage.ErrNotFound, tagID)
	}
	return nil
}

// CaptureIDsForTag returns the IDs of the owner's captures carrying the tag,
// newest first.
func (s *Store) CaptureIDsForTag(ctx context.Context, ownerID, tagID string) ([]string, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tags WHERE id = ? AND owner_id = ?`,
		tagID, ownerID).Scan(&n); err != nil {
		return nil, fmt.Errorf("sqlite: failed to verify tag: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: tag %s", storage.ErrNotFound, tagID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id
		FROM capture_tags ct
		JOIN captures c ON c.id = ct.capture_id
		WHERE ct.tag_id = ?
		ORDER BY c.created_at DESC`, tagID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list tagged captures: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan capture ID: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: tagged capture rows: %w", err)
	}
	return ids, nil
}

// TagsForCapture returns all tags attached to the capture, sorted by name.
func (s *Store) TagsForCapture(ctx context.Context, ownerID, captureID string) ([]types.Tag, error) {
	if _, err := s.GetCapture(ctx, ownerID, captureID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.owner_id, t.name, t.color, t.created_at
		FROM capture_tags ct
		JOIN tags t ON t.id = ct.tag_id
		WHERE ct.capture_id = ?
		ORDER BY t.name ASC`, captureID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list capture tags: %w", err)
	}
	defer rows.Close()

	return collectTags(rows)
}

// ListTags returns all of the owner's tags, sorted by name.
func (s *Store) ListTags(ctx context.Context, ownerID string) ([]types.Tag, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE owner_id = ? ORDER BY name ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list tags: %w", err)
	}
	defer rows.Close()

	return collectTags(rows)
}

func scanTag(row rowScanner) (*types.Tag, error) {
	var (
		t         types.Tag
		color     string
		createdAt string
	)
	if err := row.Scan(&t.ID, &t.OwnerID, &t.Name, &color, &createdAt); err != nil {
		return nil, err
	}
	t.Color = color

	var err error
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func collectTags(rows *sql.Rows) ([]types.Tag, error) {
	tags := []types.Tag{}
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan tag: %w", err)
		}
		tags = append(tags, *tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: tag rows: %w", err)
	}
	return tags, nil
}
