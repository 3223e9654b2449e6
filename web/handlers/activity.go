package handlers

import (
	"database/sql"
	"net/http"
	"time"

	"github.com/atticlabs/attic/internal/storage"
)

// dbGetter matches stores that expose their database handle.
type dbGetter interface {
	GetDB() *sql.DB
}

// ActivityHandler handles the /api/activity endpoint.
type ActivityHandler struct {
	store storage.Store
}

// NewActivityHandler creates a new ActivityHandler.
func NewActivityHandler(store storage.Store) *ActivityHandler {
	return &ActivityHandler{store: store}
}

// ActivityPoint represents a single data point in the activity time series.
type ActivityPoint struct {
	Time  string `json:"time"`  // ISO-8601 timestamp (bucket start)
	Count int    `json:"count"` // Number of captures created in this bucket
}

// ActivityResponse is the JSON response for GET /api/activity.
type ActivityResponse struct {
	Points    []ActivityPoint `json:"points"`
	Range     string          `json:"range"`
	BucketSec int             `json:"bucket_sec"`
}

// GetActivity handles GET /api/activity?range={5min|1hour|24hour|week}.
// It returns a time series of capture creation counts bucketed by an
// appropriate interval for the requested range.
func (h *ActivityHandler) GetActivity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	owner := requireOwner(w, r)
	if owner == "" {
		return
	}

	// Bucketed counting needs direct SQL; only the SQLite backend exposes
	// its handle. Other backends get an empty series.
	sqliteStore, ok := h.store.(dbGetter)
	if !ok {
		respondJSON(w, http.StatusOK, ActivityResponse{
			Points:    []ActivityPoint{},
			Range:     r.URL.Query().Get("range"),
			BucketSec: 60,
		})
		return
	}

	rangeParam := r.URL.Query().Get("range")

	var windowDur time.Duration
	var bucketSec int
	switch rangeParam {
	case "5min":
		windowDur = 5 * time.Minute
		bucketSec = 10 // 10-second buckets
	case "1hour":
		windowDur = time.Hour
		bucketSec = 120 // 2-minute buckets
	case "week":
		windowDur = 7 * 24 * time.Hour
		bucketSec = 4 * 3600 // 4-hour buckets
	default: // "24hour"
		rangeParam = "24hour"
		windowDur = 24 * time.Hour
		bucketSec = 3600 // 1-hour buckets
	}

	now := time.Now().UTC()
	since := now.Add(-windowDur)

	db := sqliteStore.GetDB()

	// Count captures grouped into fixed-width buckets using SQLite's
	// integer division trick: bucket = (epoch_seconds / bucketSec) * bucketSec.
	// substr(created_at, 1, 19) trims the stored fixed-width RFC3339 value to
	// "YYYY-MM-DDTHH:MM:SS", which SQLite's strftime parses directly.
	const query = `
SELECT
  datetime((CAST(strftime('%s', substr(created_at, 1, 19)) AS INTEGER) / ?) * ?, 'unixepoch') AS bucket,
  COUNT(*) AS cnt
FROM captures
WHERE owner_id = ? AND substr(created_at, 1, 19) >= ?
GROUP BY bucket
ORDER BY bucket ASC
`
	rows, err := db.QueryContext(ctx, query, bucketSec, bucketSec, owner, since.Format("2006-01-02T15:04:05"))
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to query activity", err)
		return
	}
	defer rows.Close()

	bucketCounts := make(map[string]int)
	for rows.Next() {
		var bucket string
		var cnt int
		if err := rows.Scan(&bucket, &cnt); err != nil {
			continue
		}
		bucketCounts[bucket] = cnt
	}
	if err := rows.Err(); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to read activity rows", err)
		return
	}

	// Generate all expected bucket timestamps so zero-count periods are visible.
	points := generateBuckets(since, now, bucketSec, bucketCounts)

	respondJSON(w, http.StatusOK, ActivityResponse{
		Points:    points,
		Range:     rangeParam,
		BucketSec: bucketSec,
	})
}

// generateBuckets creates a complete slice of ActivityPoints for every bucket
// between since and now, filling in zero counts for buckets with no data.
func generateBuckets(since, now time.Time, bucketSec int, counts map[string]int) []ActivityPoint {
	sinceEpoch := since.Unix()
	startEpoch := (sinceEpoch / int64(bucketSec)) * int64(bucketSec)

	var points []ActivityPoint
	for t := startEpoch; t <= now.Unix(); t += int64(bucketSec) {
		bucket := time.Unix(t, 0).UTC()
		// SQLite returns "YYYY-MM-DD HH:MM:SS" from datetime().
		key := bucket.Format("2006-01-02 15:04:05")
		cnt := counts[key]
		points = append(points, ActivityPoint{
			Time:  bucket.Format(time.RFC3339),
			Count: cnt,
		})
	}
	return points
}
