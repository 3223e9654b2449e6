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

func (s *Store) Link(ctx context.Context, ownerID, captureID, entityID, relationKind string, confidence float64) (*types.Linkage, error) {
	if strings.TrimSpace(relationKind) == "" {
		return nil, fmt.Errorf("%w: relation kind is required", storage.ErrValidation)
	}
	if confidence < 0.0 || confidence > 1.0 {
		return nil, fmt.Errorf("%w: confidence %v out of range [0, 1]", storage.ErrValidation, confidence)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to begin linkage transaction: %w", err)
	}
	defer tx.Rollback()

	// Ownership is established through the endpoints.
	var n int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM captures WHERE id = $1 AND owner_id = $2`,
		captureID, ownerID).Scan(&n); err != nil {
		return nil, fmt.Errorf("postgres: failed to verify capture endpoint: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: capture %s", storage.ErrNotFound, captureID)
	}

	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM entities WHERE id = $1 AND owner_id = $2`,
		entityID, ownerID).Scan(&n); err != nil {
		return nil, fmt.Errorf("postgres: failed to verify entity endpoint: %w", err)
	}
	if n == 0 {
		return nil, fmt.Errorf("%w: entity %s", storage.ErrNotFound, entityID)
	}

	var (
		l         types.Linkage
		createdAt time.Time
	)
	err = tx.QueryRowContext(ctx, `
		INSERT INTO linkages (id, capture_id, entity_id, relation_kind, confidence, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT(capture_id, entity_id, relation_kind)
		DO UPDATE SET confidence = excluded.confidence
		RETURNING id, capture_id, entity_id, relation_kind, confidence, created_at`,
		newID("lnk"), captureID, entityID, relationKind, confidence).
		Scan(&l.ID, &l.CaptureID, &l.EntityID, &l.RelationKind, &l.Confidence, &createdAt)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to upsert linkage: %w", err)
	}
	l.CreatedAt = createdAt

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("postgres: failed to commit linkage: %w", err)
	}
	return &l, nil
}

func (s *Store) LinksForCapture(ctx context.Context, ownerID, captureID string) ([]types.EntityLink, error) {
	if _, err := s.GetCapture(ctx, ownerID, captureID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT l.id, l.capture_id, l.entity_id, l.relation_kind, l.confidence, l.created_at,
		       e.id, e.owner_id, e.name, e.kind, e.attributes, e.created_at, e.updated_at
		FROM linkages l
		JOIN entities e ON e.id = l.entity_id
		WHERE l.capture_id = $1
		ORDER BY l.created_at ASC`, captureID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list capture links: %w", err)
	}
	defer rows.Close()

	links := []types.EntityLink{}
	for rows.Next() {
		var (
			link      types.EntityLink
			kind      string
			attrsJSON []byte
		)
		if err := rows.Scan(
			&link.Linkage.ID, &link.Linkage.CaptureID, &link.Linkage.EntityID,
			&link.Linkage.RelationKind, &link.Linkage.Confidence, &link.Linkage.CreatedAt,
			&link.Entity.ID, &link.Entity.OwnerID, &link.Entity.Name, &kind,
			&attrsJSON, &link.Entity.CreatedAt, &link.Entity.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan capture link: %w", err)
		}
		link.Entity.Kind = types.EntityKind(kind)
		if len(attrsJSON) > 0 {
			if err := json.Unmarshal(attrsJSON, &link.Entity.Attributes); err != nil {
				return nil, fmt.Errorf("postgres: failed to unmarshal attributes: %w", err)
			}
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: capture link rows: %w", err)
	}
	return links, nil
}

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
		WHERE l.entity_id = $1
		ORDER BY c.created_at DESC`, entityID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list entity links: %w", err)
	}
	defer rows.Close()

	links := []types.CaptureLink{}
	for rows.Next() {
		var (
			link                                types.CaptureLink
			processedText, audioPath, createdBy sql.NullString
			sourceKind, status                  string
			metadataJSON                        []byte
		)
		c := &link.Capture
		if err := rows.Scan(
			&link.Linkage.ID, &link.Linkage.CaptureID, &link.Linkage.EntityID,
			&link.Linkage.RelationKind, &link.Linkage.Confidence, &link.Linkage.CreatedAt,
			&c.ID, &c.OwnerID, &c.OriginalText, &processedText, &sourceKind,
			&audioPath, &status, &createdBy, &metadataJSON, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan entity link: %w", err)
		}
		c.ProcessedText = processedText.String
		c.AudioPath = audioPath.String
		c.CreatedBy = createdBy.String
		c.SourceKind = types.SourceKind(sourceKind)
		c.Status = types.CaptureStatus(status)
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &c.Metadata); err != nil {
				return nil, fmt.Errorf("postgres: failed to unmarshal metadata: %w", err)
			}
		}
		links = append(links, link)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: entity link rows: %w", err)
	}
	return links, nil
}
