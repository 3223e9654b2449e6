package postgres

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

// ResolveOrCreateEntity upserts on the (owner, name, kind) key and merges
// attributes with last write wins. The row is locked FOR UPDATE for the
// merge so concurrent resolves serialize instead of losing writes.
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
		return nil, fmt.Errorf("postgres: failed to begin entity transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()

	attrsJSON, err := marshalJSONMap(attributes)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to marshal entity attributes: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO entities (id, owner_id, name, kind, attributes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT(owner_id, name, kind) DO NOTHING`,
		newID("ent"), ownerID, name, string(kind), attrsJSON, now)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to insert entity: %w", err)
	}

	row := tx.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE owner_id = $1 AND name = $2 AND kind = $3 FOR UPDATE`,
		ownerID, name, string(kind))

	entity, err := scanEntity(row)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to read entity after upsert: %w", err)
	}

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
		return nil, fmt.Errorf("postgres: failed to marshal merged attributes: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE entities SET attributes = $1, updated_at = $2 WHERE id = $3`,
		mergedJSON, now, entity.ID); err != nil {
		return nil, fmt.Errorf("postgres: failed to merge entity attributes: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("postgres: failed to commit entity upsert: %w", err)
	}

	return entity, nil
}

func (s *Store) GetEntity(ctx context.Context, ownerID, id string) (*types.Entity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE id = $1 AND owner_id = $2`, id, ownerID)

	entity, err := scanEntity(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to get entity: %w", err)
	}
	return entity, nil
}

func (s *Store) FindEntitiesByKind(ctx context.Context, ownerID string, kind types.EntityKind) ([]types.Entity, error) {
	if !types.IsValidEntityKind(kind) {
		return nil, fmt.Errorf("%w: unrecognized entity kind %q", storage.ErrValidation, kind)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE owner_id = $1 AND kind = $2 ORDER BY name ASC`,
		ownerID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to find entities: %w", err)
	}
	defer rows.Close()

	entities := []types.Entity{}
	for rows.Next() {
		entity, err := scanEntity(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan entity: %w", err)
		}
		entities = append(entities, *entity)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: entity rows: %w", err)
	}
	return entities, nil
}

func (s *Store) ListEntities(ctx context.Context, ownerID string, opts storage.ListOptions) (*storage.PaginatedResult[types.EntityMentions], error) {
	opts.Normalize()

	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entities WHERE owner_id = $1`, ownerID).Scan(&total); err != nil {
		return nil, fmt.Errorf("postgres: failed to count entities: %w", err)
	}

	query := fmt.Sprintf(`
		SELECT e.id, e.owner_id, e.name, e.kind, e.attributes, e.created_at, e.updated_at,
		       COUNT(l.id) AS mentions
		FROM entities e
		LEFT JOIN linkages l ON l.entity_id = e.id
		WHERE e.owner_id = $1
		GROUP BY e.id
		ORDER BY e.%s %s
		LIMIT $2 OFFSET $3`, opts.SortBy, strings.ToUpper(opts.SortOrder))

	rows, err := s.db.QueryContext(ctx, query, ownerID, opts.Limit, opts.Offset())
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list entities: %w", err)
	}
	defer rows.Close()

	items := []types.EntityMentions{}
	for rows.Next() {
		var (
			e         types.Entity
			kind      string
			attrsJSON []byte
			mentions  int
		)
		if err := rows.Scan(&e.ID, &e.OwnerID, &e.Name, &kind, &attrsJSON, &e.CreatedAt, &e.UpdatedAt, &mentions); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan entity: %w", err)
		}
		e.Kind = types.EntityKind(kind)
		if len(attrsJSON) > 0 {
			if err := json.Unmarshal(attrsJSON, &e.Attributes); err != nil {
				return nil, fmt.Errorf("postgres: failed to unmarshal attributes: %w", err)
			}
		}
		items = append(items, types.EntityMentions{Entity: e, MentionCount: mentions})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: entity rows: %w", err)
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
		e         types.Entity
		kind      string
		attrsJSON []byte
	)

	err := row.Scan(&e.ID, &e.OwnerID, &e.Name, &kind, &attrsJSON, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}

	e.Kind = types.EntityKind(kind)
	if len(attrsJSON) > 0 {
		if err := json.Unmarshal(attrsJSON, &e.Attributes); err != nil {
			return nil, fmt.Errorf("failed to unmarshal attributes: %w", err)
		}
	}
	return &e, nil
}
