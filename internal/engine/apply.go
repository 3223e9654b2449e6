package engine

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/atticlabs/attic/internal/storage"
	"github.com/atticlabs/attic/pkg/types"
)

// ApplyExtraction applies an extraction result to a capture in deterministic
// order: processed text, entities, linkages, tags, reminder, embedding. Every
// step is an idempotent upsert, so re-applying the same result creates no
// duplicate rows. On success the capture is marked extracted and the
// extraction-applied callback fires.
//
// This is also the entry point for the out-of-process extraction push API.
func (e *Engine) ApplyExtraction(ctx context.Context, ownerID, captureID string, result *types.ExtractionResult) error {
	if result == nil {
		return fmt.Errorf("extraction result is required")
	}

	if _, err := e.store.UpdateProcessed(ctx, ownerID, captureID, result.ProcessedText, result.Metadata); err != nil {
		return fmt.Errorf("failed to store processed text: %w", err)
	}

	// Entities resolve first so relations can reference them by (name, kind).
	entityIDs := make(map[types.EntityRef]string, len(result.Entities))
	for _, extracted := range result.Entities {
		entity, err := e.store.ResolveOrCreateEntity(ctx, ownerID, extracted.Name, extracted.Kind, extracted.Attributes)
		if err != nil {
			return fmt.Errorf("failed to resolve entity %q: %w", extracted.Name, err)
		}
		entityIDs[types.EntityRef{Name: extracted.Name, Kind: extracted.Kind}] = entity.ID
	}

	for _, relation := range result.Relations {
		entityID, ok := entityIDs[relation.EntityRef]
		if !ok {
			// Relation names an entity absent from the same result. Resolve
			// it anyway rather than dropping the edge.
			entity, err := e.store.ResolveOrCreateEntity(ctx, ownerID, relation.EntityRef.Name, relation.EntityRef.Kind, nil)
			if err != nil {
				return fmt.Errorf("failed to resolve relation entity %q: %w", relation.EntityRef.Name, err)
			}
			entityID = entity.ID
			entityIDs[relation.EntityRef] = entityID
		}

		if _, err := e.store.Link(ctx, ownerID, captureID, entityID, relation.RelationKind, relation.Confidence); err != nil {
			return fmt.Errorf("failed to link entity %q: %w", relation.EntityRef.Name, err)
		}
	}

	for _, extracted := range result.Tags {
		tag, err := e.store.GetOrCreateTag(ctx, ownerID, extracted.Name, extracted.Color)
		if err != nil {
			return fmt.Errorf("failed to resolve tag %q: %w", extracted.Name, err)
		}
		if err := e.store.AttachTag(ctx, ownerID, captureID, tag.ID); err != nil {
			return fmt.Errorf("failed to attach tag %q: %w", extracted.Name, err)
		}
	}

	if result.Reminder != nil {
		if err := e.applyReminder(ctx, ownerID, captureID, result.Reminder); err != nil {
			return err
		}
	}

	if len(result.Embedding) > 0 {
		if err := e.store.StoreCaptureEmbedding(ctx, captureID, result.Embedding); err != nil {
			// Similarity recall is best-effort; the rest of the result stands.
			log.Printf("WARNING: Failed to store embedding for capture %s: %v", captureID, err)
		}
	}

	if err := e.store.UpdateCaptureStatus(ctx, captureID, types.CaptureExtracted); err != nil {
		return fmt.Errorf("failed to mark capture extracted: %w", err)
	}

	e.mu.RLock()
	applied := e.onExtractionApplied
	e.mu.RUnlock()
	if applied != nil {
		applied(ownerID, captureID)
	}

	return nil
}

// applyReminder creates or reschedules the capture's reminder. At-least-once
// extraction delivery must not mint duplicate reminders, so an existing
// active reminder for the capture is rescheduled in place.
func (e *Engine) applyReminder(ctx context.Context, ownerID, captureID string, extracted *types.ExtractedReminder) error {
	existing, err := e.store.ReminderForCapture(ctx, ownerID, captureID)
	switch {
	case err == nil:
		if _, err := e.store.RescheduleReminder(ctx, ownerID, existing.ID, extracted.Text, extracted.TriggerAt, extracted.TriggerCondition); err != nil {
			return fmt.Errorf("failed to reschedule reminder for capture %s: %w", captureID, err)
		}
		return nil
	case errors.Is(err, storage.ErrNotFound):
		reminder := &types.Reminder{
			OwnerID:          ownerID,
			CaptureID:        captureID,
			Text:             extracted.Text,
			TriggerAt:        extracted.TriggerAt,
			TriggerCondition: extracted.TriggerCondition,
			Status:           types.ReminderActive,
		}
		if err := e.store.CreateReminder(ctx, reminder); err != nil {
			return fmt.Errorf("failed to create reminder for capture %s: %w", captureID, err)
		}
		return nil
	default:
		return fmt.Errorf("failed to look up reminder for capture %s: %w", captureID, err)
	}
}
