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

const captureColumns = `id, owner_id, original_text, processed_text, source_kind, audio_path, status, created_by, metadata, created_at, updated_at`

// CreateCapture validates and inserts a capture. An empty ID is assigned,
// an empty status defaults to pending.
func (s *Store) CreateCapture(ctx context.Context, capture *types.Capture) error {
	if capture == nil {
		return storage.ErrValidation
	}
	if capture.OwnerID == "" {
		return fmt.Errorf("%w: owner ID is required", storage.ErrValidation)
	}
	if strings.TrimSpace(capture.OriginalText) == "" {
		return fmt.Errorf("%w: original text is required", storage.ErrValidation)
	}
	if !types.IsValidSourceKind(capture.SourceKind) {
		return fmt.Errorf("%w: unrecognized source kind %q", storage.ErrValidation, capture.SourceKind)
	}

	if capture.ID == "" {
		capture.ID = newID("cap")
	}
	if capture.Status == "" {
		capture.Status = types.CapturePending
	}
	if !types.IsValidCaptureStatus(capture.Status) {
		return fmt.Errorf("%w: unrecognized status %q", storage.ErrValidation, capture.Status)
	}

	now := time.Now().UTC()
	if capture.CreatedAt.IsZero() {
		capture.CreatedAt = now
	}
	capture.UpdatedAt = now

	metadataJSON, err := marshalJSONMap(capture.Metadata)
	if err != nil {
		return fmt.Errorf("sqlite: failed to marshal capture metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO captures (id, owner_id, original_text, processed_text, source_kind, audio_path, status, created_by, metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		capture.ID, capture.OwnerID, capture.OriginalText, nullStr(capture.ProcessedText),
		string(capture.SourceKind), nullStr(capture.AudioPath), string(capture.Status),
		nullStr(capture.CreatedBy), metadataJSON, fmtTime(capture.CreatedAt), fmtTime(capture.UpdatedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: capture %s already exists", storage.ErrIntegrity, capture.ID)
		}
		return fmt.Errorf("sqlite: failed to insert capture: %w", err)
	}

	return nil
}

// GetCapture fetches a capture by ID, scoped to the owner.
func (s *Store) GetCapture(ctx context.Context, ownerID, id string) (*types.Capture, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+captureColumns+` FROM captures WHERE id = ? AND owner_id = ?`, id, ownerID)

	capture, err := scanCapture(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get capture: %w", err)
	}
	return capture, nil
}

// UpdateProcessed writes the extraction output onto a capture. The original
// text is never touched; only processed text and metadata change.
func (s *Store) UpdateProcessed(ctx context.Context, ownerID, id, processedText string, metadata map[string]interface{}) (*types.Capture, error) {
	metadataJSON, err := marshalJSONMap(metadata)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to marshal capture metadata: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE captures
		SET processed_text = ?, metadata = COALESCE(?, metadata), updated_at = ?
		WHERE id = ? AND owner_id = ?`,
		nullStr(processedText), metadataJSON, fmtTime(time.Now()), id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to update processed text: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to check update result: %w", err)
	}
	if n == 0 {
		return nil, storage.ErrNotFound
	}

	return s.GetCapture(ctx, ownerID, id)
}

// UpdateCaptureStatus moves a capture through the extraction pipeline.
// Not owner scoped: only the ingestion engine calls it, with IDs it read
// from the store itself.
func (s *Store) UpdateCaptureStatus(ctx context.Context, id string, status types.CaptureStatus) error {
	if !types.IsValidCaptureStatus(status) {
		return fmt.Errorf("%w: unrecognized status %q", storage.ErrValidation, status)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE captures SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), fmtTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("sqlite: failed to update capture status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: failed to check status update result: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}

	return nil
}

// DeleteCapture removes a capture. Foreign key actions cascade to linkages,
// tag associations, and embeddings, and clear the capture reference on
// reminders, so the whole teardown is this one statement. Deleting an absent
// capture succeeds; absence is the goal state.
func (s *Store) DeleteCapture(ctx context.Context, ownerID, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM captures WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("sqlite: failed to delete capture: %w", err)
	}

	return nil
}

// ListCaptures returns a page of the owner's captures, newest first by
// default, with optional filters.
func (s *Store) ListCaptures(ctx context.Context, ownerID string, opts storage.ListOptions) (*storage.PaginatedResult[types.Capture], error) {
	opts.Normalize()

	where := []string{"owner_id = ?"}
	args := []interface{}{ownerID}

	if opts.SourceKind != "" {
		where = append(where, "source_kind = ?")
		args = append(args, string(opts.SourceKind))
	}
	if opts.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(opts.Status))
	}
	if opts.CreatedBy != "" {
		where = append(where, "created_by = ?")
		args = append(args, opts.CreatedBy)
	}
	if !opts.CreatedAfter.IsZero() {
		// Fixed-width timestamps compare correctly as strings.
		where = append(where, "created_at > ?")
		args = append(args, fmtTime(opts.CreatedAfter))
	}
	if !opts.CreatedBefore.IsZero() {
		where = append(where, "created_at < ?")
		args = append(args, fmtTime(opts.CreatedBefore))
	}
	if opts.TextContains != "" {
		where = append(where, "(original_text LIKE ? OR processed_text LIKE ?)")
		pattern := "%" + opts.TextContains + "%"
		args = append(args, pattern, pattern)
	}

	return s.pageCaptures(ctx, strings.Join(where, " AND "), args, opts)
}

// ListCapturesByStatus returns captures in the given pipeline status across
// all owners, oldest first. The engine's boot recovery uses this to re-enqueue
// work that was in flight at crash time.
func (s *Store) ListCapturesByStatus(ctx context.Context, status types.CaptureStatus, opts storage.ListOptions) (*storage.PaginatedResult[types.Capture], error) {
	if !types.IsValidCaptureStatus(status) {
		return nil, fmt.Errorf("%w: unrecognized status %q", storage.ErrValidation, status)
	}

	opts.Normalize()
	opts.SortOrder = "asc"

	return s.pageCaptures(ctx, "status = ?", []interface{}{string(status)}, opts)
}

// pageCaptures runs the shared count-then-page query pair for capture lists.
func (s *Store) pageCaptures(ctx context.Context, where string, args []interface{}, opts storage.ListOptions) (*storage.PaginatedResult[types.Capture], error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM captures WHERE `+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("sqlite: failed to count captures: %w", err)
	}

	// SortBy and SortOrder were whitelist validated by Normalize.
	query := fmt.Sprintf(`SELECT %s FROM captures WHERE %s ORDER BY %s %s LIMIT ? OFFSET ?`,
		captureColumns, where, opts.SortBy, strings.ToUpper(opts.SortOrder))

	rows, err := s.db.QueryContext(ctx, query, append(args, opts.Limit, opts.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to list captures: %w", err)
	}
	defer rows.Close()

	captures := []types.Capture{}
	for rows.Next() {
		capture, err := scanCapture(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan capture: %w", err)
		}
		captures = append(captures, *capture)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: capture rows: %w", err)
	}

	return &storage.PaginatedResult[types.Capture]{
		Items:    captures,
		Total:    total,
		Page:     opts.Page,
		PageSize: opts.Limit,
		HasMore:  opts.Offset()+len(captures) < total,
	}, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCapture(row rowScanner) (*types.Capture, error) {
	var (
		c                                   types.Capture
		processedText, audioPath, createdBy sql.NullString
		sourceKind, status, metadataJSON    sql.NullString
		createdAt, updatedAt                string
	)

	err := row.Scan(&c.ID, &c.OwnerID, &c.OriginalText, &processedText, &sourceKind,
		&audioPath, &status, &createdBy, &metadataJSON, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	c.ProcessedText = processedText.String
	c.AudioPath = audioPath.String
	c.CreatedBy = createdBy.String
	c.SourceKind = types.SourceKind(sourceKind.String)
	c.Status = types.CaptureStatus(status.String)

	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &c.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return &c, nil
}

// marshalJSONMap serialises a metadata map, mapping nil to NULL.
func marshalJSONMap(m map[string]interface{}) (interface{}, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// isUniqueViolation reports whether err is a SQLite uniqueness or foreign key
// constraint failure.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed")
}
