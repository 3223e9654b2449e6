package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/atticlabs/attic/internal/storage"
	"github.com/atticlabs/attic/pkg/types"
	"github.com/google/uuid"
)

// Extractor turns a raw capture into structured facts. Implementations call
// out to an external collaborator (LLM, rule engine, remote service); the
// engine treats the interface as opaque.
type Extractor interface {
	Extract(ctx context.Context, capture *types.Capture) (*types.ExtractionResult, error)
}

// Engine is the capture ingestion orchestrator. It provides non-blocking
// Ingest operations with async extraction via a worker pool and job queue.
// When no Extractor is configured, captures stay pending until an
// out-of-process extractor pushes results through ApplyExtraction.
type Engine struct {
	config Config

	store     storage.Store
	extractor Extractor

	extractionQueue chan *ExtractionJob
	workerWaitGroup sync.WaitGroup
	workerCtx       context.Context
	workerCancel    context.CancelFunc

	started      bool
	shuttingDown bool
	mu           sync.RWMutex

	onCaptureCreated    func(ownerID, captureID string)
	onExtractionApplied func(ownerID, captureID string)
}

// NewEngine creates a new ingestion engine. The store parameter provides the
// storage backend. extractor may be nil; captures are then stored pending and
// extraction is expected to arrive through the API. Use DefaultConfig() for
// sensible defaults.
func NewEngine(store storage.Store, extractor Extractor, engineConfig Config) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}

	if err := engineConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Engine{
		config:          engineConfig,
		store:           store,
		extractor:       extractor,
		extractionQueue: make(chan *ExtractionJob, engineConfig.QueueSize),
	}, nil
}

// SetOnCaptureCreated sets a callback fired when a new capture is stored
// (before extraction).
func (e *Engine) SetOnCaptureCreated(callback func(ownerID, captureID string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onCaptureCreated = callback
}

// SetOnExtractionApplied sets a callback fired when an extraction result has
// been applied to a capture. Useful for triggering UI updates via WebSocket.
func (e *Engine) SetOnExtractionApplied(callback func(ownerID, captureID string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onExtractionApplied = callback
}

// Start starts the engine and its worker pool. It also initiates recovery of
// unfinished captures from previous runs. This must be called before using
// Ingest().
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return fmt.Errorf("engine already started")
	}

	log.Println("Starting ingestion engine...")

	e.workerCtx, e.workerCancel = context.WithCancel(ctx)

	e.startWorkerPool(e.workerCtx)

	// Recover unfinished captures in background so Start() returns quickly.
	go func() {
		if err := e.RecoverUnfinishedCaptures(ctx); err != nil {
			log.Printf("ERROR: Capture recovery failed: %v", err)
		}
	}()

	e.started = true
	log.Println("Ingestion engine started successfully")

	return nil
}

// Ingest stores a new capture with non-blocking extraction. It synchronously
// writes the capture to storage and queues it for async extraction, then
// returns immediately.
//
// The capture is initially stored with CapturePending. Worker goroutines
// apply the extraction asynchronously and update the status.
func (e *Engine) Ingest(ctx context.Context, sub Submission) (*types.Capture, error) {
	e.mu.RLock()
	if !e.started {
		e.mu.RUnlock()
		return nil, fmt.Errorf("engine not started")
	}
	e.mu.RUnlock()

	now := time.Now().UTC()
	capture := &types.Capture{
		ID:           "cap:" + uuid.NewString(),
		OwnerID:      sub.OwnerID,
		OriginalText: sub.Text,
		SourceKind:   sub.SourceKind,
		AudioPath:    sub.AudioPath,
		Status:       types.CapturePending,
		CreatedBy:    sub.CreatedBy,
		Metadata:     sub.Metadata,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := e.store.CreateCapture(ctx, capture); err != nil {
		return nil, fmt.Errorf("failed to store capture: %w", err)
	}

	e.mu.RLock()
	created := e.onCaptureCreated
	e.mu.RUnlock()
	if created != nil {
		created(capture.OwnerID, capture.ID)
	}

	// No in-process extractor: leave the capture pending for the push API.
	if e.extractor == nil {
		return capture, nil
	}

	job := e.createExtractionJob(capture.ID, capture.OwnerID, 0)

	if !e.queueExtractionJob(job) {
		// Queue is full, mark as failed for manual retry.
		if err := e.store.UpdateCaptureStatus(ctx, capture.ID, types.CaptureFailed); err != nil {
			log.Printf("ERROR: Failed to mark capture %s as failed: %v", capture.ID, err)
		}
		return capture, fmt.Errorf("extraction queue full, capture stored but not queued")
	}

	return capture, nil
}

// QueueExtraction re-queues an existing capture for extraction. Returns true
// if the job was queued, false if the queue is full, the engine is not
// started, or no extractor is configured.
func (e *Engine) QueueExtraction(captureID, ownerID string) bool {
	e.mu.RLock()
	canQueue := e.started && !e.shuttingDown && e.extractor != nil
	e.mu.RUnlock()
	if !canQueue {
		return false
	}
	return e.queueExtractionJob(e.createExtractionJob(captureID, ownerID, 0))
}

// Shutdown gracefully shuts down the engine. It closes the extraction queue
// and waits for workers to drain (with timeout). Any pending jobs in the
// queue will be processed before shutdown completes.
func (e *Engine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started {
		return fmt.Errorf("engine not started")
	}

	log.Println("Shutting down ingestion engine...")

	// Prevents requeueing while workers drain.
	e.shuttingDown = true

	if e.workerCancel != nil {
		e.workerCancel()
	}

	if err := e.stopWorkerPool(ctx); err != nil {
		log.Printf("WARNING: Worker pool shutdown had errors: %v", err)
	}

	e.started = false
	e.shuttingDown = false
	log.Println("Ingestion engine shut down successfully")

	return nil
}

// GetQueueSize returns the current number of jobs in the extraction queue.
func (e *Engine) GetQueueSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.extractionQueue)
}
