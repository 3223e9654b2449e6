package engine

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/atticlabs/attic/internal/storage"
	"github.com/atticlabs/attic/pkg/types"
)

// extractionWorker is a worker goroutine that processes extraction jobs.
// It runs continuously until the extraction queue is closed.
func (e *Engine) extractionWorker(ctx context.Context, workerID int) {
	defer e.workerWaitGroup.Done()

	log.Printf("Extraction worker %d started", workerID)

	for job := range e.extractionQueue {
		e.processExtractionJob(ctx, workerID, job)
	}

	log.Printf("Extraction worker %d stopped", workerID)
}

// processExtractionJob runs a single capture through the extractor and
// applies the result. Failed extractions are requeued with exponential
// backoff up to MaxRetries, then marked failed.
func (e *Engine) processExtractionJob(ctx context.Context, workerID int, job *ExtractionJob) {
	log.Printf("Worker %d processing capture %s (attempt %d)", workerID, job.CaptureID, job.Attempt)

	// Background context for database writes so shutdown cancellation does
	// not strand a capture mid-transition.
	dbCtx := context.Background()

	// Exponential backoff on retries reduces database lock contention.
	if job.Attempt > 0 {
		backoffDuration := time.Duration(job.Attempt*job.Attempt) * 100 * time.Millisecond // 100ms, 400ms, 900ms...
		log.Printf("Worker %d: Waiting %v before retry (attempt %d)", workerID, backoffDuration, job.Attempt)
		time.Sleep(backoffDuration)
	}

	capture, err := e.store.GetCapture(dbCtx, job.OwnerID, job.CaptureID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Deleted while queued, nothing to do.
			log.Printf("Worker %d: capture %s no longer exists, dropping job", workerID, job.CaptureID)
			return
		}
		log.Printf("ERROR: Worker %d failed to load capture %s: %v", workerID, job.CaptureID, err)
		if !e.requeueExtractionJob(job) {
			e.markFailed(dbCtx, job.CaptureID)
		}
		return
	}

	if err := e.store.UpdateCaptureStatus(dbCtx, job.CaptureID, types.CaptureProcessing); err != nil {
		log.Printf("ERROR: Worker %d failed to update status to processing for %s: %v",
			workerID, job.CaptureID, err)
		if !e.requeueExtractionJob(job) {
			e.markFailed(dbCtx, job.CaptureID)
		}
		return
	}

	result, err := e.extractor.Extract(ctx, capture)
	if err != nil {
		log.Printf("ERROR: Worker %d extraction failed for %s: %v", workerID, job.CaptureID, err)
		if !e.requeueExtractionJob(job) {
			e.markFailed(dbCtx, job.CaptureID)
		}
		return
	}

	if err := e.ApplyExtraction(dbCtx, job.OwnerID, job.CaptureID, result); err != nil {
		log.Printf("ERROR: Worker %d failed to apply extraction for %s: %v", workerID, job.CaptureID, err)
		if !e.requeueExtractionJob(job) {
			e.markFailed(dbCtx, job.CaptureID)
		}
		return
	}

	log.Printf("Worker %d completed extraction for capture %s", workerID, job.CaptureID)
}

// markFailed records terminal extraction failure for a capture.
func (e *Engine) markFailed(ctx context.Context, captureID string) {
	if err := e.store.UpdateCaptureStatus(ctx, captureID, types.CaptureFailed); err != nil {
		log.Printf("ERROR: Failed to mark capture %s as failed: %v", captureID, err)
	}
}

// startWorkerPool starts the worker goroutines.
func (e *Engine) startWorkerPool(ctx context.Context) {
	for i := 0; i < e.config.NumWorkers; i++ {
		e.workerWaitGroup.Add(1)
		go e.extractionWorker(ctx, i)
	}

	log.Printf("Started %d extraction workers", e.config.NumWorkers)
}

// stopWorkerPool stops the worker goroutines gracefully.
func (e *Engine) stopWorkerPool(ctx context.Context) error {
	// No more jobs
	close(e.extractionQueue)

	done := make(chan struct{})
	go func() {
		e.workerWaitGroup.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("All extraction workers finished gracefully")
		return nil
	case <-time.After(e.config.ShutdownTimeout):
		remaining := e.getQueueLength()
		log.Printf("WARNING: Shutdown timeout reached, %d extraction jobs may be dropped", remaining)
		return nil
	case <-ctx.Done():
		remaining := e.getQueueLength()
		log.Printf("WARNING: Context cancelled, %d extraction jobs may be dropped", remaining)
		return ctx.Err()
	}
}
