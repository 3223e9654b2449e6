package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/atticlabs/attic/internal/storage"
	"github.com/atticlabs/attic/pkg/types"
)

// similarityMaxCandidates caps the number of embeddings loaded into memory
// during a similarity query. Candidates are selected newest first, so the
// most recent captures are always considered. Personal corpora stay well
// under this; larger deployments should use the Postgres backend, which
// ranks with pgvector inside the database.
const similarityMaxCandidates = 10_000

// StoreCaptureEmbedding stores or replaces the embedding vector for a
// capture. Vectors are stored as JSON float arrays.
func (s *Store) StoreCaptureEmbedding(ctx context.Context, captureID string, vector []float32) error {
	if len(vector) == 0 {
		return fmt.Errorf("%w: empty embedding vector", storage.ErrValidation)
	}

	blob, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("sqlite: failed to marshal embedding: %w", err)
	}

	now := fmtTime(time.Now())
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO capture_embeddings (capture_id, vector, dimension, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(capture_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			updated_at = excluded.updated_at`,
		captureID, string(blob), len(vector), now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: capture %s", storage.ErrNotFound, captureID)
		}
		return fmt.Errorf("sqlite: failed to store embedding: %w", err)
	}

	return nil
}

// SimilarCaptures ranks the owner's captures by cosine similarity against the
// query vector. Embeddings are loaded into Go memory and ranked in process.
func (s *Store) SimilarCaptures(ctx context.Context, ownerID string, vector []float32, limit int) ([]types.ScoredCapture, error) {
	if len(vector) == 0 {
		return []types.ScoredCapture{}, nil
	}
	if limit < 1 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT e.capture_id, e.vector
		FROM capture_embeddings e
		JOIN captures c ON c.id = e.capture_id
		WHERE c.owner_id = ?
		ORDER BY c.created_at DESC
		LIMIT ?`, ownerID, similarityMaxCandidates)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to load embeddings: %w", err)
	}
	defer rows.Close()

	type scored struct {
		captureID string
		score     float64
	}
	var candidates []scored

	for rows.Next() {
		var (
			captureID string
			blob      string
		)
		if err := rows.Scan(&captureID, &blob); err != nil {
			continue
		}
		var stored []float32
		if err := json.Unmarshal([]byte(blob), &stored); err != nil {
			continue
		}
		candidates = append(candidates, scored{captureID, cosineSimilarity(vector, stored)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: embedding rows: %w", err)
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	results := []types.ScoredCapture{}
	for _, c := range candidates {
		capture, err := s.GetCapture(ctx, ownerID, c.captureID)
		if err != nil {
			continue
		}
		results = append(results, types.ScoredCapture{Capture: *capture, Score: c.score})
	}

	return results, nil
}

// cosineSimilarity computes cosine similarity between two equal-length
// vectors. Returns 0 if either vector has zero magnitude or lengths differ.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
