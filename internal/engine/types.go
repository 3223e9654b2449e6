// Package engine provides the capture ingestion engine with an async
// extraction pipeline. The engine orchestrates non-blocking capture intake
// with background extraction using a worker pool and job queue.
package engine

import (
	"fmt"
	"time"

	"github.com/atticlabs/attic/pkg/types"
)

// ExtractionJob represents a job for async capture extraction.
// Jobs are queued when captures are ingested and processed by worker
// goroutines.
type ExtractionJob struct {
	// CaptureID is the unique identifier of the capture to extract.
	CaptureID string

	// OwnerID is the owner of the capture.
	OwnerID string

	// Timestamp is when the job was queued.
	Timestamp time.Time

	// Attempt tracks retry attempts for this job.
	Attempt int
}

// Submission is a capture intake request as received from the API, the CLI,
// the inbox watcher, or the importer.
type Submission struct {
	OwnerID    string                 `json:"owner_id"`
	Text       string                 `json:"text"`
	SourceKind types.SourceKind       `json:"source_kind"`
	AudioPath  string                 `json:"audio_path,omitempty"`
	CreatedBy  string                 `json:"created_by,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
}

// Config holds configuration for the ingestion engine.
type Config struct {
	// NumWorkers is the number of extraction worker goroutines (default: 4).
	NumWorkers int

	// QueueSize is the size of the extraction job queue buffer (default: 1000).
	QueueSize int

	// ShutdownTimeout is the maximum time to wait for workers to drain on shutdown (default: 30s).
	ShutdownTimeout time.Duration

	// MaxRetries is the maximum number of extraction retry attempts (default: 3).
	MaxRetries int

	// RecoveryBatchSize is the number of pending captures to recover per batch (default: 1000).
	RecoveryBatchSize int
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		NumWorkers:        4,
		QueueSize:         1000,
		ShutdownTimeout:   30 * time.Second,
		MaxRetries:        3,
		RecoveryBatchSize: 1000,
	}
}

// Validate checks if the config is valid.
func (c *Config) Validate() error {
	if c.NumWorkers < 1 {
		return fmt.Errorf("NumWorkers must be >= 1, got %d", c.NumWorkers)
	}

	if c.QueueSize < 1 {
		return fmt.Errorf("QueueSize must be >= 1, got %d", c.QueueSize)
	}

	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("ShutdownTimeout must be >= 0, got %v", c.ShutdownTimeout)
	}

	if c.MaxRetries < 0 {
		return fmt.Errorf("MaxRetries must be >= 0, got %d", c.MaxRetries)
	}

	if c.RecoveryBatchSize < 1 {
		return fmt.Errorf("RecoveryBatchSize must be >= 1, got %d", c.RecoveryBatchSize)
	}

	return nil
}
