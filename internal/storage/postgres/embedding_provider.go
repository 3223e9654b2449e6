package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"sort"

	pgvector "github.com/pgvector/pgvector-go"

	"github.com/atticlabs/attic/internal/storage"
	"github.com/atticlabs/attic/pkg/types"
)

// StoreCaptureEmbedding stores or replaces the embedding vector for a
// capture. The vector is always stored as JSONB; when pgvector is available
// it is also written to the native vector column for indexed cosine queries.
func (s *Store) StoreCaptureEmbedding(ctx context.Context, captureID string, vector []float32) error {
	if len(vector) == 0 {
		return fmt.Errorf("%w: empty embedding vector", storage.ErrValidation)
	}

	blob, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("postgres: failed to marshal embedding: %w", err)
	}

	if s.pgvectorAvailable {
		_, err = s.db.ExecContext(ctx, `
			INSERT INTO capture_embeddings (capture_id, vector, dimension, vec, created_at, updated_at)
			VALUES ($1, $2, $3, $4, NOW(), NOW())
			ON CONFLICT(capture_id) DO UPDATE SET
				vector = excluded.vector,
				dimension = excluded.dimension,
				vec = excluded.vec,
				updated_at = NOW()`,
			captureID, blob, len(vector), pgvector.NewVector(vector))
		if err == nil {
			return nil
		}
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: capture %s", storage.ErrNotFound, captureID)
		}
		// Native column write failed, fall back to JSONB only.
		log.Printf("postgres: failed to store native vector (falling back to JSONB only): %v", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO capture_embeddings (capture_id, vector, dimension, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT(capture_id) DO UPDATE SET
			vector = excluded.vector,
			dimension = excluded.dimension,
			updated_at = NOW()`,
		captureID, blob, len(vector))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: capture %s", storage.ErrNotFound, captureID)
		}
		return fmt.Errorf("postgres: failed to store embedding: %w", err)
	}
	return nil
}

// SimilarCaptures ranks the owner's captures by cosine similarity. With
// pgvector the ranking happens inside the database; without it the JSONB
// vectors are ranked in process.
func (s *Store) SimilarCaptures(ctx context.Context, ownerID string, vector []float32, limit int) ([]types.ScoredCapture, error) {
	if len(vector) == 0 {
		return []types.ScoredCapture{}, nil
	}
	if limit < 1 {
		limit = 10
	}

	if s.pgvectorAvailable {
		results, err := s.similarCapturesNative(ctx, ownerID, vector, limit)
		if err == nil {
			return results, nil
		}
		log.Printf("postgres: native similarity query failed (falling back to in-process): %v", err)
	}

	return s.similarCapturesInProcess(ctx, ownerID, vector, limit)
}

func (s *Store) similarCapturesNative(ctx context.Context, ownerID string, vector []float32, limit int) ([]types.ScoredCapture, error) {
	// <=> is cosine distance; similarity = 1 - distance.
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.capture_id, 1 - (e.vec <=> $1) AS score
		FROM capture_embeddings e
		JOIN captures c ON c.id = e.capture_id
		WHERE c.owner_id = $2 AND e.vec IS NOT NULL
		ORDER BY e.vec <=> $1
		LIMIT $3`, pgvector.NewVector(vector), ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := []types.ScoredCapture{}
	for rows.Next() {
		var (
			captureID string
			score     float64
		)
		if err := rows.Scan(&captureID, &score); err != nil {
			return nil, err
		}
		capture, err := s.GetCapture(ctx, ownerID, captureID)
		if err != nil {
			continue
		}
		results = append(results, types.ScoredCapture{Capture: *capture, Score: score})
	}
	return results, rows.Err()
}

func (s *Store) similarCapturesInProcess(ctx context.Context, ownerID string, vector []float32, limit int) ([]types.ScoredCapture, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.capture_id, e.vector
		FROM capture_embeddings e
		JOIN captures c ON c.id = e.capture_id
		WHERE c.owner_id = $1
		ORDER BY c.created_at DESC
		LIMIT 10000`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to load embeddings: %w", err)
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
			blob      []byte
		)
		if err := rows.Scan(&captureID, &blob); err != nil {
			continue
		}
		var stored []float32
		if err := json.Unmarshal(blob, &stored); err != nil {
			continue
		}
		candidates = append(candidates, scored{captureID, cosineSimilarity(vector, stored)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: embedding rows: %w", err)
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
