package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/atticlabs/attic/internal/storage"
	"github.com/atticlabs/attic/pkg/types"
)

const tagColumns = `id, owner_id, name, color, created_at`

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
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT(owner_id, name) DO NOTHING`,
		newID("tag"), ownerID, name, types.NormalizeTagColor(color))
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to upsert tag: %w", err)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE owner_id = $1 AND name = $2`, ownerID, name)

	tag, err := scanTag(row)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to read tag after upsert: %w", err)
	}
	return tag, nil
}

func (s *Store) AttachTag(ctx context.Context, ownerID, captureID, tagID string) error {
	if err := s.checkTagPair(ctx, ownerID, captureID, tagID); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO capture_tags (capture_id, tag_id)
		VALUES ($1, $2)
		ON CONFLICT(capture_id, tag_id) DO NOTHING`, captureID, tagID)
	if err != nil {
		return fmt.Errorf("postgres: failed to attach tag: %w", err)
	}
	return nil
}

func (s *Store) DetachTag(ctx context.Context, ownerID, captureID, tagID string) error {
	if err := s.checkTagPair(ctx, ownerID, captureID, tagID); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM capture_tags WHERE capture_id = $1 AND tag_id = $2`, captureID, tagID)
	if err != nil {
		return fmt.Errorf("postgres: failed to detach tag: %w", err)
	}
	return nil
}

func (s *Store) checkTagPair(ctx context.Context, ownerID, captureID, tagID string) error {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM captures WHERE id = $1 AND owner_id = $2`,
		captureID, ownerID).Scan(&n); err != nil {
		return fmt.Errorf("postgres: failed to verify capture: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: capture %s", storage.ErrNotFound, captureID)
	}

	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tags WHERE id = $1 AND owner_id = $2`,
		tagID, ownerID).Scan(&n); err != nil {
		return fmt.Errorf("postgres: failed to verify tag: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: tag %s", storage.ErrNotFound, tagID)
	}
	return nil
}

func (s *Store) CaptureIDsForTag(ctx context.Context, ownerID, tagID string) ([]string, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tags WHERE id = $1 AND owner_id = $2`,
		tagID, ownerID).Scan(&n); err != nil {
		return nil, fmt.Errorf("postgres: failed to verify tag: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: tag %s", storage.ErrNotFound, tagID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id
		FROM capture_tags ct
		JOIN captures c ON c.id = ct.capture_id
		WHERE ct.tag_id = $1
		ORDER BY c.created_at DESC`, tagID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list tagged captures: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan capture ID: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: tagged capture rows: %w", err)
	}
	return ids, nil
}

func (s *Store) TagsForCapture(ctx context.Context, ownerID, captureID string) ([]types.Tag, error) {
	if _, err := s.GetCapture(ctx, ownerID, captureID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT t.id, t.owner_id, t.name, t.color, t.created_at
		FROM capture_tags ct
		JOIN tags t ON t.id = ct.tag_id
		WHERE ct.capture_id = $1
		ORDER BY t.name ASC`, captureID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list capture tags: %w", err)
	}
	defer rows.Close()

	return collectTags(rows)
}

func (s *Store) ListTags(ctx context.Context, ownerID string) ([]types.Tag, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+tagColumns+` FROM tags WHERE owner_id = $1 ORDER BY name ASC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list tags: %w", err)
	}
	defer rows.Close()

	return collectTags(rows)
}

func scanTag(row rowScanner) (*types.Tag, error) {
	var t types.Tag
	if err := row.Scan(&t.ID, &t.OwnerID, &t.Name, &t.Color, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func collectTags(rows *sql.Rows) ([]types.Tag, error) {
	tags := []types.Tag{}
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan tag: %w", err)
		}
		tags = append(tags, *tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: tag rows: %w", err)
	}
	return tags, nil
}
