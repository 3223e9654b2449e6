package engine

import (
	"context"
	"log"

	"github.com/atticlabs/attic/internal/storage"
	"github.com/atticlabs/attic/pkg/types"
)

// RecoverUnfinishedCaptures re-queues captures left pending or processing by
// a previous run. Processing captures were mid-extraction when the process
// died; apply is idempotent, so re-running them is safe. Called automatically
// during Start().
func (e *Engine) RecoverUnfinishedCaptures(ctx context.Context) error {
	if e.extractor == nil {
		log.Println("No extractor configured, skipping capture recovery")
		return nil
	}

	log.Println("Starting capture recovery...")

	totalQueued := 0

	for _, status := range []types.CaptureStatus{types.CapturePending, types.CaptureProcessing} {
		queued, err := e.recoverByStatus(ctx, status)
		if err != nil {
			return err
		}
		totalQueued += queued
	}

	log.Printf("Recovery complete: queued %d unfinished captures", totalQueued)
	return nil
}

// recoverByStatus pages through captures in one pipeline status, oldest
// first, queueing each for extraction.
func (e *Engine) recoverByStatus(ctx context.Context, status types.CaptureStatus) (int, error) {
	queued := 0

	for page := 1; ; page++ {
		opts := storage.ListOptions{
			Page:  page,
			Limit: e.config.RecoveryBatchSize,
		}

		result, err := e.store.ListCapturesByStatus(ctx, status, opts)
		if err != nil {
			log.Printf("ERROR: Failed to list %s captures for recovery: %v", status, err)
			return queued, err
		}

		if len(result.Items) == 0 {
			return queued, nil
		}

		for _, capture := range result.Items {
			job := e.createExtractionJob(capture.ID, capture.OwnerID, 0)

			if e.queueExtractionJob(job) {
				queued++
			} else {
				// Queue is full, mark as failed for manual retry.
				if err := e.store.UpdateCaptureStatus(ctx, capture.ID, types.CaptureFailed); err != nil {
					log.Printf("ERROR: Failed to mark capture %s as failed: %v", capture.ID, err)
				}
			}
		}

		if !result.HasMore {
			return queued, nil
		}

		log.Printf("More %s captures found (%d total), processing next batch...", status, result.Total)
	}
}
