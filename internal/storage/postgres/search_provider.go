package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/atticlabs/attic/internal/storage"
	"github.com/atticlabs/attic/pkg/types"
)

// SearchCaptures performs tsvector-backed full-text search over the owner's
// captures. The text_tsv column is maintained by MigrationFTS triggers over
// both original and processed text.
//
// When opts.Query is empty the method falls back to a plain list ordered by
// created_at DESC.
func (s *Store) SearchCaptures(ctx context.Context, ownerID string, opts storage.SearchOptions) (*storage.PaginatedResult[types.Capture], error) {
	opts.Normalize()

	if strings.TrimSpace(opts.Query) == "" {
		page := 1
		if opts.Limit > 0 {
			page = (opts.Offset / opts.Limit) + 1
		}
		return s.ListCaptures(ctx, ownerID, storage.ListOptions{
			Page:      page,
			Limit:     opts.Limit,
			SortBy:    "created_at",
			SortOrder: "desc",
		})
	}

	// plainto_tsquery treats the input as plain text, so no query-syntax
	// sanitisation is needed.
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+captureColumns+`
		FROM captures
		WHERE owner_id = $1 AND text_tsv @@ plainto_tsquery('english', $2)
		ORDER BY ts_rank(text_tsv, plainto_tsquery('english', $2)) DESC
		LIMIT $3 OFFSET $4`,
		ownerID, opts.Query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: search %q: %w", opts.Query, err)
	}
	defer rows.Close()

	captures := []types.Capture{}
	for rows.Next() {
		capture, err := scanCapture(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: search scan: %w", err)
		}
		captures = append(captures, *capture)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: search rows: %w", err)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM captures
		WHERE owner_id = $1 AND text_tsv @@ plainto_tsquery('english', $2)`,
		ownerID, opts.Query).Scan(&total); err != nil {
		return nil, fmt.Errorf("postgres: search count: %w", err)
	}

	page := 1
	if opts.Limit > 0 {
		page = (opts.Offset / opts.Limit) + 1
	}

	return &storage.PaginatedResult[types.Capture]{
		Items:    captures,
		Total:    total,
		Page:     page,
		PageSize: opts.Limit,
		HasMore:  opts.Offset+len(captures) < total,
	}, nil
}
