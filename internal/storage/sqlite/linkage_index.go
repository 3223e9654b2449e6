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

// Link records a relation-typed edge between a capture and an entity. The
// (capture, entity, relation) triple is unique; re-linking overwrites the
// confidence. Both endpoints must exist and belong to ownerID, verified
// inside the same transaction as the write.
func (s *Store) Link(ctx context.Context, ownerID, captureID, entityID, relationKind string, confidence float64) (*types.Linkage, error) {
	if strings.TrimSpace(relationKind) == "" {
		return nil, fmt.Errorf("%w: relation kind is required", storage.ErrValidation)
	}
	if confidence < 0.0 || confidence > 1.0 {
		return nil, fmt.Errorf("%w: confidence %v out of range [0, 1]", storage.ErrValidation, confidence)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to begin linkage transaction: %w", err)
	}
	defer tx.Rollback()

	// Linkages carry no owner column; ownership is established through the
	// endpoints, so both are checked here.
	var n int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM captures WHERE id = ? AND owner_id = ?`,
		captureID, ownerID).Scan(&n); err != nil {
		return nil, fmt.Errorf("sqlite: failed to verify capture endpoint: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: capture %s", storage.ErrNotFound, captureID)
	}

	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entities WHERE id = ? AND owner_id = ?`,
		entityID, ownerID).Scan(&n); err != nil {
		return nil, fmt.Errorf("sqlite: failed to verify entity endpoint: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: entity %s", storage.ErrNotFound, entityID)
	}

	now := time.Now().UTC()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO linkages (id, capture_id, entity_id, relation_kind, confidence, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(capture_id, entity_id, relation_kind)
		DO UPDATE SET confidence = excluded.confidence`,
		newID("lnk"), captureID, entityID, relationKind, confidence, fmtTime(now))
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to upsert linkage: %w", err)
	}

	row := tx.QueryRowContext(ctx, `
		SELECT id, capture_id, entity_id, relation_kind, confidence, created_at
		FROM linkages WHERE capture_id = ? AND entity_id = ? AND relation_kind = ?`,
		captureID, entityID, relationKind)

	var (
		l         types.Linkage
		createdAt string
	)
	if err := row.Scan(&l.ID, &l.CaptureID, &l.EntityID, &l.RelationKind, &l.Confidence, &createdAt); err != nil {
		return nil, fmt.Errorf("sqlite: failed to read linkage after upsert: %w", err)
	}
	if l.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("sqlite: failed to commit linkage: %w", err)
	}

	return &l, nil
}

// LinksForCapture returns all linkages from the capture joined with their
// entity endpoints. The capture must belong to ownerID.
func (s *Store) LinksForCapture(ctx context.Context, ownerID, captureID string) ([]types.EntityLink, error) {
	if _, err := s.GetCapture(ctx, ownerID, captureID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT l.id, l.capture_id, l.entity_id, l.relation_kind, l.confidence, l.created_at,
		       e.id, e.owner_id, e.name, e.kind, e.attributes, e.created_at, e.updated_at
		FROM linkages l
		JOIN entities e ON e.id = l.entity_id
		WHERE l.capture_id = ?
		ORDER BY l.created_at ASC`, captureID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list capture links: %w", err)
	}
	defer rows.Close()

	links := []types.EntityLink{}
	for rows.Next() {
		var (
			link      types.EntityLink
			lCreated  string
			kind      string
			attrsJSON []byte
			eCreated  string
			eUpdated  string
		)
		if err := rows.Scan(
			&link.Linkage.ID, &link.Linkage.CaptureID, &link.Linkage.EntityID,
			&link.Linkage.RelationKind, &link.Linkage.Confidence, &lCreated,
			&link.Entity.ID, &link.Entity.OwnerID, &link.Entity.Name, &kind,
			&attrsJSON, &eCreated, &eUpdated); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan capture link: %w", err)
		}

		link.Entity.Kind = types.EntityKind(kind)
		if err := unmarshalAttrs(attrsJSON, &link.Entity.Attributes); err != nil {
			return nil, err
		}
		if link.Linkage.CreatedAt, err = parseTime(lCreated); err != nil {
			return nil, err
		}
		if link.Entity.CreatedAt, err = parseTime(eCreated); err != nil {
			return nil, err
		}
		if link.Entity.UpdatedAt, err = parseTime(eUpdated); err != nil {
			return nil, err
		}

		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: capture link rows: %w", err)
	}

	return links, nil
}

// LinksForEntity returns all linkages to the entity joined with their capture
// endpoints, newest capture first. The entity must belong to ownerID.
func (s *Store) LinksForEntity(ctx context.Context, ownerID, entityID string) ([]types.CaptureLink, error) {
	if _, err := s.GetEntity(ctx, ownerID, entityID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT l.id, l.capture_id, l.entity_id, l.relation_kind, l.confidence, l.created_at,
		       c.id, c.owner_id, c.original_text, c.processed_text, c.source_kind,
		       c.audio_path, c.status, c.created_by, c.metadata, c.created_at, c.updated_at
		FROM linkages l
		JOIN captures c ON c.id = l.capture_id
		WHERE l.entity_id = ?
		ORDER BY c.created_at DESC`, entityID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list entity links: %w", err)
	}
	defer rows.Close()

	links := []types.CaptureLink{}
	for rows.Next() {
		var (
			link                                types.CaptureLink
			lCreated                            string
			processedText, audioPath, createdBy sql.NullString
			sourceKind, status, metadataJSON    sql.NullString
			cCreated, cUpdated                  string
		)

		c := &link.Capture
		if err := rows.Scan(
			&link.Linkage.ID, &link.Linkage.CaptureID, &link.Linkage.EntityID,
			&link.Linkage.RelationKind, &link.Linkage.Confidence, &lCreated,
			&c.ID, &c.OwnerID, &c.OriginalText, &processedText, &sourceKind,
			&audioPath, &status, &createdBy, &metadataJSON, &cCreated, &cUpdated); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan entity link: %w", err)
		}

		c.ProcessedText = processedText.String
		c.AudioPath = audioPath.String
		c.CreatedBy = createdBy.String
		c.SourceKind = types.SourceKind(sourceKind.String)
		c.Status = types.CaptureStatus(status.String)
		if metadataJSON.Valid && metadataJSON.String != "" {
			if err := json.Unmarshal([]byte(metadataJSON.String), &c.Metadata); err != nil {
				return nil, fmt.Errorf("sqlite: failed to unmarshal metadata: %w", err)
			}
		}
		if link.Linkage.CreatedAt, err = parseTime(lCreated); err != nil {
			return nil, err
		}
		if c.CreatedAt, err = parseTime(cCreated); err != nil {
			return nil, err
		}
		if c.UpdatedAt, err = parseTime(cUpdated); err != nil {
			return nil, err
		}

		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: entity link rows: %w", err)
	}

	return links, nil
}

// unmarshalAttrs decodes a JSON attributes column, treating NULL and empty
// as no attributes.
func unmarshalAttrs(raw []byte, dst *map[string]interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("sqlite: failed to unmarshal attributes: %w", err)
	}
	return nil
}
