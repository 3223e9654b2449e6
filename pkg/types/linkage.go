package types

import "time"

// Common relation kinds. The vocabulary is open: extraction may supply any
// non-empty relation kind, these are just the ones the original pipeline
// produces.
const (
	RelationMentioned = "mentioned" // Capture mentions the entity
	RelationAction    = "action"    // Capture records an action on the entity
	RelationReminder  = "reminder"  // Capture spawned a reminder about the entity
)

// Linkage is a confidence-weighted, relation-typed edge between a capture and
// an entity. (CaptureID, EntityID, RelationKind) is unique; re-linking the
// same triple overwrites the confidence instead of duplicating the edge.
type Linkage struct {
	ID           string    `json:"id"`            // Unique identifier (format: lnk:uuid)
	CaptureID    string    `json:"capture_id"`    // Edge source
	EntityID     string    `json:"entity_id"`     // Edge target
	RelationKind string    `json:"relation_kind"` // Free-form relation (mentioned, action, reminder, ...)
	Confidence   float64   `json:"confidence"`    // Extraction confidence in [0.0, 1.0]
	CreatedAt    time.Time `json:"created_at"`
}

// EntityLink is a linkage joined with its entity endpoint, the shape returned
// when listing everything a capture refers to.
type EntityLink struct {
	Linkage Linkage `json:"linkage"`
	Entity  Entity  `json:"entity"`
}

// CaptureLink is a linkage joined with its capture endpoint, the shape
// returned when listing everything known about an entity.
type CaptureLink struct {
	Linkage Linkage `json:"linkage"`
	Capture Capture `json:"capture"`
}
