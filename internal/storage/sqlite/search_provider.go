package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/atticlabs/attic/internal/storage"
	"github.com/atticlabs/attic/pkg/types"
)

// SearchCaptures performs FTS5-backed full-text search over the owner's
// captures, matching original and processed text.
//
// The FTS5 virtual table (captures_fts) is kept in sync with the captures
// table via INSERT/UPDATE/DELETE triggers defined in schema.go.
//
// When opts.Query is empty the method falls back to a plain list ordered by
// created_at DESC so the caller still receives a useful result set.
//
// FTS5 rank values are negative (more negative == better match), so ordering
// by rank ASC gives the best results first.
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

	// Sanitise the raw query string so it is safe to pass to FTS5's MATCH
	// operator. FTS5 syntax is fragile: an unbalanced quote or stray operator
	// keyword makes SQLite return "fts5: syntax error". Free-form input is
	// converted into a prefix query matching each word individually.
	ftsQuery := sanitiseFTSQuery(opts.Query)

	querySQL := `
		SELECT c.id, c.owner_id, c.original_text, c.processed_text, c.source_kind,
		       c.audio_path, c.status, c.created_by, c.metadata, c.created_at, c.updated_at
		FROM captures_fts fts
		JOIN captures c ON c.rowid = fts.rowid
		WHERE captures_fts MATCH ? AND c.owner_id = ?
		ORDER BY rank
		LIMIT ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, querySQL, ftsQuery, ownerID, opts.Limit, opts.Offset)
	if err != nil {
		// FTS5 can still error on malformed input that slipped past sanitisation.
		return nil, fmt.Errorf("sqlite: search MATCH %q: %w", opts.Query, err)
	}
	defer rows.Close()

	captures := []types.Capture{}
	for rows.Next() {
		capture, err := scanCapture(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: search scan: %w", err)
		}
		captures = append(captures, *capture)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: search rows: %w", err)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM captures_fts fts
		JOIN captures c ON c.rowid = fts.rowid
		WHERE captures_fts MATCH ? AND c.owner_id = ?`, ftsQuery, ownerID).Scan(&total); err != nil {
		return nil, fmt.Errorf("sqlite: search count: %w", err)
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

// sanitiseFTSQuery converts a free-form user query into a safe FTS5 MATCH
// expression. It strips FTS5-special characters, removes common stop words,
// and uses prefix matching (term*) for better recall.
//
// Example: "What did Anna say?" → "anna* OR say*"
func sanitiseFTSQuery(query string) string {
	replacer := strings.NewReplacer(
		`"`, ` `,
		`'`, ` `,
		`(`, ` `,
		`)`, ` `,
		`*`, ` `,
		`-`, ` `,
		`^`, ` `,
		`?`, ` `,
		`:`, ` `,
	)
	cleaned := replacer.Replace(query)

	words := strings.Fields(strings.ToLower(cleaned))

	// Stop words carry no discriminative value in a personal note corpus.
	stopWords := map[string]bool{
		"a": true, "an": true, "the": true,
		"is": true, "are": true, "was": true, "were": true, "be": true, "been": true,
		"have": true, "has": true, "had": true,
		"do": true, "does": true, "did": true,
		"will": true, "would": true, "could": true, "should": true,
		"to": true, "of": true, "in": true, "on": true, "at": true,
		"by": true, "for": true, "with": true, "from": true, "as": true,
		"about": true, "into": true, "before": true, "after": true,
		"what": true, "how": true, "when": true, "where": true, "why": true,
		"who": true, "which": true,
		"this": true, "that": true, "these": true, "those": true,
		"i": true, "you": true, "he": true, "she": true, "it": true, "we": true, "they": true,
		"and": true, "or": true, "but": true, "if": true, "not": true,
		"s": true, "t": true, // post-apostrophe fragments e.g. "Anna's" → "Anna" + "s"
	}

	var terms []string
	for _, w := range words {
		if !stopWords[w] && len(w) >= 2 {
			terms = append(terms, w+"*")
		}
	}

	if len(terms) == 0 {
		// All words were stop words. Fall back to lowercased cleaned text so
		// FTS5 does not interpret uppercase AND/OR/NOT as operators.
		return strings.ToLower(strings.TrimSpace(cleaned))
	}

	return strings.Join(terms, " OR ")
}
