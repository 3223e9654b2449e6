package engine

import (
	"log"
	"time"
)

// queueExtractionJob attempts to queue an extraction job.
// Returns true if the job was queued successfully, false if the queue is full
// or closed.
func (e *Engine) queueExtractionJob(job *ExtractionJob) bool {
	// Shutdown in progress
	if e.workerCtx != nil && e.workerCtx.Err() != nil {
		return false
	}

	select {
	case e.extractionQueue <- job:
		return true
	default:
		log.Printf("WARNING: Extraction queue full (size=%d), dropping job for capture %s",
			e.config.QueueSize, job.CaptureID)
		return false
	}
}

// createExtractionJob creates a new extraction job for a capture.
func (e *Engine) createExtractionJob(captureID, ownerID string, attempt int) *ExtractionJob {
	return &ExtractionJob{
		CaptureID: captureID,
		OwnerID:   ownerID,
		Timestamp: time.Now(),
		Attempt:   attempt,
	}
}

// requeueExtractionJob attempts to requeue a failed extraction job.
// Returns true if the job was requeued, false if max retries exceeded or the
// queue is full.
func (e *Engine) requeueExtractionJob(job *ExtractionJob) bool {
	if e.workerCtx != nil && e.workerCtx.Err() != nil {
		log.Printf("WARNING: Failed to requeue job for capture %s, shutdown in progress", job.CaptureID)
		return false
	}

	if job.Attempt >= e.config.MaxRetries {
		log.Printf("Max retries (%d) exceeded for capture %s, giving up",
			e.config.MaxRetries, job.CaptureID)
		return false
	}

	job.Attempt++

	// Non-blocking with a short grace period to avoid panicking on a closed
	// channel during shutdown.
	select {
	case e.extractionQueue <- job:
		log.Printf("Requeued extraction job for capture %s (attempt %d/%d)",
			job.CaptureID, job.Attempt, e.config.MaxRetries)
		return true
	case <-time.After(10 * time.Millisecond):
		log.Printf("WARNING: Failed to requeue job for capture %s, queue timeout",
			job.CaptureID)
		return false
	}
}

// getQueueLength returns the current number of jobs in the queue.
func (e *Engine) getQueueLength() int {
	return len(e.extractionQueue)
}
