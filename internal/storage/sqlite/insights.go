package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/atticlabs/attic/internal/storage"
	"github.com/atticlabs/attic/pkg/types"
)

// OwnerStats summarizes everything stored for one owner. An owner with no
// data gets all zeroes, not an error.
func (s *Store) OwnerStats(ctx context.Context, ownerID string) (*types.OwnerStats, error) {
	stats := &types.OwnerStats{}

	row := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM captures WHERE owner_id = ?),
			(SELECT COUNT(*) FROM entities WHERE owner_id = ?),
			(SELECT COUNT(*) FROM linkages l JOIN captures c ON c.id = l.capture_id WHERE c.owner_id = ?),
			(SELECT COUNT(*) FROM tags WHERE owner_id = ?),
			(SELECT COUNT(*) FROM reminders WHERE owner_id = ? AND status = ?)`,
		ownerID, ownerID, ownerID, ownerID, ownerID, string(types.ReminderActive))

	if err := row.Scan(&stats.Captures, &stats.Entities, &stats.Linkages, &stats.Tags, &stats.ActiveReminders); err != nil {
		return nil, fmt.Errorf("sqlite: failed to compute owner stats: %w", err)
	}

	return stats, nil
}

// RelatedEntities returns entities that co-occur with the given one, ranked
// by the number of captures they share. The queried entity must belong to
// ownerID.
func (s *Store) RelatedEntities(ctx context.Context, ownerID, entityID string, limit int) ([]types.RelatedEntity, error) {
	if _, err := s.GetEntity(ctx, ownerID, entityID); err != nil {
		return nil, err
	}
	if limit < 1 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.owner_id, e.name, e.kind, e.attributes, e.created_at, e.updated_at,
		       COUNT(DISTINCT l1.capture_id) AS shared
		FROM linkages l1
		JOIN linkages l2 ON l2.capture_id = l1.capture_id AND l2.entity_id != l1.entity_id
		JOIN entities e ON e.id = l2.entity_id
		WHERE l1.entity_id = ?
		GROUP BY e.id
		ORDER BY shared DESC, e.name ASC
		LIMIT ?`, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list related entities: %w", err)
	}
	defer rows.Close()

	related := []types.RelatedEntity{}
	for rows.Next() {
		var (
			e                    types.Entity
			kind                 string
			attrsJSON            sql.NullString
			createdAt, updatedAt string
			shared               int
		)
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.Name, &kind, &attrsJSON, &createdAt, &updatedAt, &shared); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan related entity: %w", err)
		}
		e.Kind = types.EntityKind(kind)
		if attrsJSON.Valid && attrsJSON.String != "" {
			if err := json.Unmarshal([]byte(attrsJSON.String), &e.Attributes); err != nil {
				return nil, fmt.Errorf("sqlite: failed to unmarshal attributes: %w", err)
			}
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		related = append(related, types.RelatedEntity{Entity: e, SharedCaptures: shared})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: related entity rows: %w", err)
	}

	return related, nil
}

// TopEntities returns the owner's most mentioned entities, optionally
// filtered by kind.
func (s *Store) TopEntities(ctx context.Context, ownerID string, kind types.EntityKind, limit int) ([]types.EntityMentions, error) {
	if kind != "" && !types.IsValidEntityKind(kind) {
		return nil, fmt.Errorf("%w: unrecognized entity kind %q", storage.ErrValidation, kind)
	}
	if limit < 1 {
		limit = 10
	}

	where := "e.owner_id = ?"
	args := []interface{}{ownerID}
	if kind != "" {
		where += " AND e.kind = ?"
		args = append(args, string(kind))
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.owner_id, e.name, e.kind, e.attributes, e.created_at, e.updated_at,
		       COUNT(l.id) AS mentions
		FROM entities e
		LEFT JOIN linkages l ON l.entity_id = e.id
		WHERE `+where+`
		GROUP BY e.id
		ORDER BY mentions DESC, e.name ASC
		LIMIT ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list top entities: %w", err)
	}
	defer rows.Close()

	items := []types.EntityMentions{}
	for rows.Next() {
		var (
			e                    types.Entity
			kindCol              string
			attrsJSON            sql.NullString
			createdAt, updatedAt string
			mentions             int
		)
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.Name, &kindCol, &attrsJSON, &createdAt, &updatedAt, &mentions); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan top entity: %w", err)
		}
		e.Kind = types.EntityKind(kindCol)
		if attrsJSON.Valid && attrsJSON.String != "" {
			if err := json.Unmarshal([]byte(attrsJSON.String), &e.Attributes); err != nil {
				return nil, fmt.Errorf("sqlite: failed to unmarshal attributes: %w", err)
			}
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
			return nil, err
		}
		items = append(items, types.EntityMentions{Entity: e, MentionCount: mentions})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: top entity rows: %w", err)
	}

	return items, nil
}
