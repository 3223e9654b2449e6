package types

import "time"

// ExtractionResult is what the extraction collaborator pushes back for a
// capture: the processed text plus candidate entities, relations, tags, and
// an optional reminder. Delivery is at-least-once; applying the same result
// twice must not create duplicate rows.
type ExtractionResult struct {
	ProcessedText string                 `json:"processed_text"`
	Metadata      map[string]interface{} `json:"metadata,omitempty"`
	Entities      []ExtractedEntity      `json:"entities,omitempty"`
	Relations     []ExtractedRelation    `json:"relations,omitempty"`
	Tags          []ExtractedTag         `json:"tags,omitempty"`
	Reminder      *ExtractedReminder     `json:"reminder,omitempty"`

	// Embedding is an optional vector for the processed capture, stored for
	// similar-capture recall when present.
	Embedding []float32 `json:"embedding,omitempty"`
}

// ExtractedEntity is a candidate entity named by extraction. It is resolved
// against the registry, never inserted blindly.
type ExtractedEntity struct {
	Name       string                 `json:"name"`
	Kind       EntityKind             `json:"kind"`
	Attributes map[string]interface{} `json:"attributes,omitempty"`
}

// ExtractedRelation is a candidate capture-entity edge. EntityRef addresses
// an entity from the same result by name and kind.
type ExtractedRelation struct {
	EntityRef    EntityRef `json:"entity_ref"`
	RelationKind string    `json:"relation_kind"`
	Confidence   float64   `json:"confidence"`
}

// EntityRef identifies an entity within an extraction result.
type EntityRef struct {
	Name string     `json:"name"`
	Kind EntityKind `json:"kind"`
}

// ExtractedTag is a candidate tag.
type ExtractedTag struct {
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// ExtractedReminder is a follow-up derived from the capture. At least one of
// TriggerAt and TriggerCondition must be set.
type ExtractedReminder struct {
	Text             string     `json:"text"`
	TriggerAt        *time.Time `json:"trigger_at,omitempty"`
	TriggerCondition string     `json:"trigger_condition,omitempty"`
}
