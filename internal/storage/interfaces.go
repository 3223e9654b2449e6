// Package storage provides composable storage interfaces for the Attic store.
//
// The storage layer is split into small, focused interfaces — one per
// component of the data model — that backends implement together. Every
// operation is scoped by owner: a row belonging to another owner is
// indistinguishable from a missing row.
package storage

import (
	"context"
	"time"

	"github.com/atticlabs/attic/pkg/types"
)

// CaptureStore persists raw and processed captures.
type CaptureStore interface {
	// CreateCapture validates and stores a new capture. The implementation
	// assigns the ID when empty and sets equal create/update timestamps.
	// Returns ErrValidation on empty owner, empty original text, or an
	// unrecognized source kind.
	CreateCapture(ctx context.Context, capture *types.Capture) error

	// GetCapture retrieves a capture by ID within the owner's scope.
	// Returns ErrNotFound if absent or owned by someone else.
	GetCapture(ctx context.Context, ownerID, id string) (*types.Capture, error)

	// UpdateProcessed overwrites the processed text and metadata produced by
	// extraction and bumps updated_at. Idempotent: re-running extraction
	// overwrites, it never duplicates. Returns ErrNotFound if absent.
	UpdateProcessed(ctx context.Context, ownerID, id, processedText string, metadata map[string]interface{}) (*types.Capture, error)

	// UpdateCaptureStatus moves a capture through the extraction pipeline.
	// Not owner-scoped: only the engine calls it.
	UpdateCaptureStatus(ctx context.Context, id string, status types.CaptureStatus) error

	// DeleteCapture removes a capture and, in the same atomic unit, its
	// linkage rows and tag associations, and clears the capture reference on
	// any reminder that pointed at it. Deleting an absent capture is a no-op.
	DeleteCapture(ctx context.Context, ownerID, id string) error

	// ListCaptures retrieves the owner's captures with pagination and
	// filtering (source kind, date range, text-contains), ordered by
	// creation time descending by default.
	ListCaptures(ctx context.Context, ownerID string, opts ListOptions) (*PaginatedResult[types.Capture], error)

	// ListCapturesByStatus retrieves captures in a pipeline status across
	// all owners. Used by engine recovery at boot, never exposed to callers.
	ListCapturesByStatus(ctx context.Context, status types.CaptureStatus, opts ListOptions) (*PaginatedResult[types.Capture], error)
}

// EntityRegistry deduplicates named things per owner.
type EntityRegistry interface {
	// ResolveOrCreateEntity is the only entity-creation path. It upserts on
	// (owner, name, kind): when the row exists, the supplied attributes are
	// merged field-level last-write-wins and the existing row is returned.
	// The check-and-write is atomic, so two concurrent calls for the same
	// new name yield exactly one row.
	ResolveOrCreateEntity(ctx context.Context, ownerID, name string, kind types.EntityKind, attributes map[string]interface{}) (*types.Entity, error)

	// GetEntity retrieves an entity by ID within the owner's scope.
	GetEntity(ctx context.Context, ownerID, id string) (*types.Entity, error)

	// FindEntitiesByKind returns the owner's entities of one kind, ordered
	// by name.
	FindEntitiesByKind(ctx context.Context, ownerID string, kind types.EntityKind) ([]types.Entity, error)

	// ListEntities returns the owner's entities with mention counts,
	// most-mentioned first.
	ListEntities(ctx context.Context, ownerID string, opts ListOptions) (*PaginatedResult[types.EntityMentions], error)
}

// LinkageIndex maintains confidence-weighted edges between captures and
// entities.
type LinkageIndex interface {
	// Link upserts an edge on (capture, entity, relation kind), overwriting
	// the confidence when the edge already exists. Both endpoints are
	// verified to belong to the owner inside the same transaction, which
	// makes cross-owner edges unrepresentable. Returns ErrValidation when
	// confidence is outside [0,1] or the relation kind is empty, and
	// ErrNotFound when either endpoint is absent.
	Link(ctx context.Context, ownerID, captureID, entityID, relationKind string, confidence float64) (*types.Linkage, error)

	// LinksForCapture returns everything the capture refers to.
	LinksForCapture(ctx context.Context, ownerID, captureID string) ([]types.EntityLink, error)

	// LinksForEntity returns everything known about the entity, ordered by
	// capture creation time descending. This is the primary path for
	// "show me everything about X".
	LinksForEntity(ctx context.Context, ownerID, entityID string) ([]types.CaptureLink, error)
}

// TagCatalog manages per-owner labels and their capture associations.
type TagCatalog interface {
	// GetOrCreateTag upserts on (owner, name). The color stored at creation
	// sticks: later calls with a different color do not repaint. Returns
	// ErrValidation on empty name or a malformed color.
	GetOrCreateTag(ctx context.Context, ownerID, name, color string) (*types.Tag, error)

	// AttachTag associates a tag with a capture. Attaching an already
	// attached tag is a no-op.
	AttachTag(ctx context.Context, ownerID, captureID, tagID string) error

	// DetachTag removes the association. Detaching an absent association is
	// a no-op.
	DetachTag(ctx context.Context, ownerID, captureID, tagID string) error

	// CaptureIDsForTag returns the IDs of captures carrying the tag.
	CaptureIDsForTag(ctx context.Context, ownerID, tagID string) ([]string, error)

	// TagsForCapture returns the tags attached to a capture.
	TagsForCapture(ctx context.Context, ownerID, captureID string) ([]types.Tag, error)

	// ListTags returns all of the owner's tags, ordered by name.
	ListTags(ctx context.Context, ownerID string) ([]types.Tag, error)
}

// ReminderLedger tracks scheduled and condition-triggered follow-ups.
type ReminderLedger interface {
	// CreateReminder validates and stores a new reminder in the active
	// state. Returns ErrValidation when the text is empty or neither
	// trigger timestamp nor trigger condition is set.
	CreateReminder(ctx context.Context, reminder *types.Reminder) error

	// GetReminder retrieves a reminder by ID within the owner's scope.
	GetReminder(ctx context.Context, ownerID, id string) (*types.Reminder, error)

	// CompleteReminder transitions active → completed. Completing an
	// already completed reminder is a no-op; completing a cancelled one
	// returns ErrInvalidState.
	CompleteReminder(ctx context.Context, ownerID, id string) error

	// CancelReminder transitions active → cancelled, with the mirror-image
	// idempotency rules of CompleteReminder.
	CancelReminder(ctx context.Context, ownerID, id string) error

	// DueReminders returns the owner's active reminders whose trigger
	// timestamp is at or before asOf, soonest first. Condition-only
	// reminders never appear here; their evaluator is external.
	DueReminders(ctx context.Context, ownerID string, asOf time.Time) ([]types.Reminder, error)

	// ScanDueReminders returns due reminders across all owners, up to
	// limit. Used by the delivery scheduler, never exposed to callers.
	ScanDueReminders(ctx context.Context, asOf time.Time, limit int) ([]types.Reminder, error)

	// ListReminders returns the owner's reminders, optionally filtered by
	// status, newest first.
	ListReminders(ctx context.Context, ownerID string, status types.ReminderStatus, opts ListOptions) (*PaginatedResult[types.Reminder], error)

	// ReminderForCapture returns the reminder extracted from a capture, or
	// ErrNotFound when the capture spawned none. Keeps at-least-once
	// extraction delivery from minting duplicate reminders.
	ReminderForCapture(ctx context.Context, ownerID, captureID string) (*types.Reminder, error)

	// RescheduleReminder overwrites text and trigger criteria on an active
	// reminder. Returns ErrInvalidState when the reminder is terminal and
	// ErrValidation when the result would have no trigger.
	RescheduleReminder(ctx context.Context, ownerID, id, text string, triggerAt *time.Time, triggerCondition string) (*types.Reminder, error)

	// PurgeReminder hard-deletes a reminder. This is the explicit purge; it
	// is idempotent like all deletes.
	PurgeReminder(ctx context.Context, ownerID, id string) error
}

// SearchProvider provides full-text capture search.
type SearchProvider interface {
	// SearchCaptures performs full-text search over original and processed
	// text within the owner's scope. An empty query degrades to the most
	// recent captures.
	SearchCaptures(ctx context.Context, ownerID string, opts SearchOptions) (*PaginatedResult[types.Capture], error)
}

// InsightProvider answers aggregate questions about an owner's knowledge.
type InsightProvider interface {
	// OwnerStats counts the owner's captures, entities, linkages, tags, and
	// active reminders.
	OwnerStats(ctx context.Context, ownerID string) (*types.OwnerStats, error)

	// RelatedEntities finds entities that co-occur with the given one,
	// ranked by how many captures they share.
	RelatedEntities(ctx context.Context, ownerID, entityID string, limit int) ([]types.RelatedEntity, error)

	// TopEntities returns the owner's most-mentioned entities, optionally
	// restricted to one kind.
	TopEntities(ctx context.Context, ownerID string, kind types.EntityKind, limit int) ([]types.EntityMentions, error)
}

// EmbeddingProvider stores capture vectors for similar-capture recall.
type EmbeddingProvider interface {
	// StoreCaptureEmbedding upserts the vector for a capture.
	StoreCaptureEmbedding(ctx context.Context, captureID string, vector []float32) error

	// SimilarCaptures ranks the owner's captures by cosine similarity to
	// the query vector.
	SimilarCaptures(ctx context.Context, ownerID string, vector []float32, limit int) ([]types.ScoredCapture, error)
}

// PreferencesStore persists per-owner settings.
type PreferencesStore interface {
	// GetPreferences returns the owner's preferences, or ErrNotFound when
	// none were ever saved.
	GetPreferences(ctx context.Context, ownerID string) (*types.OwnerPreferences, error)

	// SavePreferences upserts the owner's preferences.
	SavePreferences(ctx context.Context, prefs *types.OwnerPreferences) error
}

// Store is the full surface a backend provides.
type Store interface {
	CaptureStore
	EntityRegistry
	LinkageIndex
	TagCatalog
	ReminderLedger
	SearchProvider
	InsightProvider
	EmbeddingProvider
	PreferencesStore

	// Close releases any resources held by the store.
	Close() error
}
