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

const captureColumns = `id, owner_id, original_text, processed_text, source_kind, audio_path, status, created_by, metadata, created_at, updated_at`

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
		return fmt.Errorf("postgres: failed to marshal capture metadata: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO captures (id, owner_id, original_text, processed_text, source_kind, audio_path, status, created_by, metadata, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		capture.ID, capture.OwnerID, capture.OriginalText, nullStr(capture.ProcessedText),
		string(capture.SourceKind), nullStr(capture.AudioPath), string(capture.Status),
		nullStr(capture.CreatedBy), metadataJSON, capture.CreatedAt, capture.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: capture %s already exists", storage.ErrIntegrity, capture.ID)
		}
		return fmt.Errorf("postgres: failed to insert capture: %w", err)
	}

	return nil
}

func (s *Store) GetCapture(ctx context.Context, ownerID, id string) (*types.Capture, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+captureColumns+` FROM captures WHERE id = $1 AND owner_id = $2`, id, ownerID)

	capture, err := scanCapture(row)
	if err == sql.ErrNoRows {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to get capture: %w", err)
	}
	return capture, nil
}

func (s *Store) UpdateProcessed(ctx context.Context, ownerID, id, processedText string, metadata map[string]interface{}) (*types.Capture, error) {
	metadataJSON, err := marshalJSONMap(metadata)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to marshal capture metadata: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE captures
		SET processed_text = $1, metadata = COALESCE($2, metadata), updated_at = NOW()
		WHERE id = $3 AND owner_id = $4`,
		nullStr(processedText), metadataJSON, id, ownerID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to update processed text: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to check update result: %w", err)
	}
	if n == 0 {
		return nil, storage.ErrNotFound
	}

	return s.GetCapture(ctx, ownerID, id)
}

func (s *Store) UpdateCaptureStatus(ctx context.Context, id string, status types.CaptureStatus) error {
	if !types.IsValidCaptureStatus(status) {
		return fmt.Errorf("%w: unrecognized status %q", storage.ErrValidation, status)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE captures SET status = $1, updated_at = NOW() WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("postgres: failed to update capture status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: failed to check status update result: %w", err)
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Store) DeleteCapture(ctx context.Context, ownerID, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM captures WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("postgres: failed to delete capture: %w", err)
	}
	return nil
}

func (s *Store) ListCaptures(ctx context.Context, ownerID string, opts storage.ListOptions) (*storage.PaginatedResult[types.Capture], error) {
	opts.Normalize()

	where := []string{"owner_id = $1"}
	args := []interface{}{ownerID}

	add := func(clause string, value interface{}) {
		args = append(args, value)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}

	if opts.SourceKind != "" {
		add("source_kind = $%d", string(opts.SourceKind))
	}
	if opts.Status != "" {
		add("status = $%d", string(opts.Status))
	}
	if opts.CreatedBy != "" {
		add("created_by = $%d", opts.CreatedBy)
	}
	if !opts.CreatedAfter.IsZero() {
		add("created_at > $%d", opts.CreatedAfter.UTC())
	}
	if !opts.CreatedBefore.IsZero() {
		add("created_at < $%d", opts.CreatedBefore.UTC())
	}
	if opts.TextContains != "" {
		pattern := "%" + opts.TextContains + "%"
		args = append(args, pattern)
		where = append(where, fmt.Sprintf("(original_text LIKE $%d OR processed_text LIKE $%d)", len(args), len(args)))
	}

	return s.pageCaptures(ctx, strings.Join(where, " AND "), args, opts)
}

func (s *Store) ListCapturesByStatus(ctx context.Context, status types.CaptureStatus, opts storage.ListOptions) (*storage.PaginatedResult[types.Capture], error) {
	if !types.IsValidCaptureStatus(status) {
		return nil, fmt.Errorf("%w: unrecognized status %q", storage.ErrValidation, status)
	}

	opts.Normalize()
	opts.SortOrder = "asc"

	return s.pageCaptures(ctx, "status = $1", []interface{}{string(status)}, opts)
}

func (s *Store) pageCaptures(ctx context.Context, where string, args []interface{}, opts storage.ListOptions) (*storage.PaginatedResult[types.Capture], error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM captures WHERE `+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("postgres: failed to count captures: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM captures WHERE %s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		captureColumns, where, opts.SortBy, strings.ToUpper(opts.SortOrder), len(args)+1, len(args)+2)

	rows, err := s.db.QueryContext(ctx, query, append(args, opts.Limit, opts.Offset())...)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to list captures: %w", err)
	}
	defer rows.Close()

	captures := []types.Capture{}
	for rows.Next() {
		capture, err := scanCapture(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan capture: %w", err)
		}
		captures = append(captures, *capture)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: capture rows: %w", err)
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
		sourceKind, status                  string
		metadataJSON                        []byte
	)

	err := row.Scan(&c.ID, &c.OwnerID, &c.OriginalText, &processedText, &sourceKind,
		&audioPath, &status, &createdBy, &metadataJSON, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}

	c.ProcessedText = processedText.String
	c.AudioPath = audioPath.String
	c.CreatedBy = createdBy.String
	c.SourceKind = types.SourceKind(sourceKind)
	c.Status = types.CaptureStatus(status)

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &c.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &c, nil
}

func marshalJSONMap(m map[string]interface{}) (interface{}, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	return b, nil
}
