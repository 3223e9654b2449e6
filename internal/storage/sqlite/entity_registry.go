package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/atticlabs/attic/internal/storage"
	"github.com/atticlabs/attic/pkg/types"
)

const entityColumns = `id, owner_id, name, kind, attributes, created_at, updated_at`

// ResolveOrCreateEntity returns the entity identified by (ownerID, name, kind),
// creating it when absent. Attributes merge field-wise with last write wins;
// a merge that changes nothing still bumps updated_at.
//
// The insert-then-merge runs in one transaction on the single writer
// connection, so concurrent resolves of the same key converge on one row.
func (s *Store) ResolveOrCreateEntity(ctx context.Context, ownerID, name string, kind types.EntityKind, attributes map[string]interface{}) (*types.Entity, error) {
	if ownerID == "" {
		return nil, fmt.Errorf("%w: owner ID is required", storage.ErrValidation)
	}
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: entity name is required", storage.ErrValidation)
	}
	if !types.IsValidEntityKind(kind) {
		return nil, fmt.Errorf("%w: unrecognized entity kind %q", storage.ErrValidation, kind)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to begin entity transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	attrsJSON, err := marshalJSONMap(attributes)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to marshal entity attributes: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entities (id, owner_id, name, kind, attributes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(owner_id, name, kind) DO NOTHING`,
		newID("ent"), ownerID, name, string(kind), attrsJSON, fmtTime(now), fmtTime(now))
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to insert entity: %w", err)
	}

	row := tx.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE owner_id = ? AND name = ? AND kind = ?`,
		ownerID, name, string(kind))

	entity, err := scanEntity(row)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to read entity after upsert: %w", err)
	}

	// Merge new attributes over the stored ones, one level deep.
	if len(attributes) > 0 {
		if entity.Attributes == nil {
			entity.Attributes = make(map[string]interface{}, len(attributes))
		}
		for k, v := range attributes {
			entity.Attributes[k] = v
		}
	}
	entity.UpdatedAt = now

	mergedJSON, err := marshalJSONMap(entity.Attributes)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to marshal merged attributes: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE entities SET attributes = ?, updated_at = ? WHERE id = ?`,
		mergedJSON, fmtTime(now), entity.ID); err != nil {
		return nil, fmt.Errorf("sqlite: failed to merge entity attributes: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: failed to commit entity upsert: %w", err)
	}

	return entity, nil
}

// GetEntity fetches an entity by ID, scoped to the owner.
func (s *Store) GetEntity(ctx context.Context, ownerID, id string) (*types.Entity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE id = ? AND owner_id = ?`, id, ownerID)

	entity, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get entity: %w", err)
	}
	return entity, nil
}

// FindEntitiesByKind returns the owner's entities of one kind, sorted by name.
func (s *Store) FindEntitiesByKind(ctx context.Context, ownerID string, kind types.EntityKind) ([]types.Entity, error) {
	if !types.IsValidEntityKind(kind) {
		return nil, fmt.Errorf("%w: unrecognized entity kind %q", storage.ErrValidation, kind)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE owner_id = ? AND kind = ? ORDER BY name ASC`,
		ownerID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to find entities: %w", err)
	}
	defer rows.Close()

	return collectEntities(rows)
}

// ListEntities returns a page of the owner's entities with per-entity mention
// counts, most recently updated first.
func (s *Store) ListEntities(ctx context.Context, ownerID string, opts storage.ListOptions) (*storage.PaginatedResult[types.EntityMentions], error) {
	opts.Normalize()

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entities WHERE owner_id = ?`, ownerID).Scan(&total); err != nil {
		return nil, fmt.Errorf("sqlite: failed to count entities: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT e.id, e.owner_id, e.name, e.kind, e.attributes, e.created_at, e.updated_at,
		       COUNT(l.id) AS mentions
		FROM entities e
		LEFT JOIN linkages l ON l.entity_id = e.id
		WHERE e.owner_id = ?
		GROUP BY e.id
		ORDER BY e.%s %s
		LIMIT ? OFFSET ?`, opts.SortBy, strings.ToUpper(opts.SortOrder))

	rows, err := s.db.QueryContext(ctx, query, ownerID, opts.Limit, opts.Offset())
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list entities: %w", err)
	}
	defer rows.Close()

	items := []types.EntityMentions{}
	for rows.Next() {
		var (
			e                    types.Entity
			attrsJSON            sql.NullString
			kind                 string
			createdAt, updatedAt string
			mentions             int
		)
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.Name, &kind, &attrsJSON, &createdAt, &updatedAt, &mentions); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan entity: %w", err)
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
		items = append(items, types.EntityMentions{Entity: e, MentionCount: mentions})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: entity rows: %w", err)
	}

	return &storage.PaginatedResult[types.EntityMentions]{
		Items:    items,
		Total:    total,
		Page:     opts.Page,
		PageSize: opts.Limit,
		HasMore:  opts.Offset()+len(items) < total,
	}, nil
}

func scanEntity(row rowScanner) (*types.Entity, error) {
	var (
		e                    types.Entity
		kind                 string
		attrsJSON            sql.NullString
		createdAt, updatedAt string
	)

	err := row.Scan(&e.ID, &e.OwnerID, &e.Name, &kind, &attrsJSON, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	e.Kind = types.EntityKind(kind)
	if attrsJSON.Valid && attrsJSON.String != "" {
		if err := json.Unmarshal([]byte(attrsJSON.String), &e.Attributes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attributes: %w", err)
		}
	}
	if e.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return &e, nil
}

func collectEntities(rows *sql.Rows) ([]types.Entity, error) {
	entities := []types.Entity{}
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan entity: %w", err)
		}
		entities = append(entities, *entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: entity rows: %w", err)
	}
	return entities, nil
}
