package types

import "time"

// EntityKind classifies a named thing in the registry.
type EntityKind string

// Recognized entity kinds.
const (
	EntityPerson   EntityKind = "person"
	EntityPlace    EntityKind = "place"
	EntityEvent    EntityKind = "event"
	EntityObject   EntityKind = "object"
	EntityTask     EntityKind = "task"
	EntityReminder EntityKind = "reminder"
)

// ValidEntityKinds contains all recognized entity kinds.
var ValidEntityKinds = []EntityKind{
	EntityPerson,
	EntityPlace,
	EntityEvent,
	EntityObject,
	EntityTask,
	EntityReminder,
}

// IsValidEntityKind checks if the given entity kind is recognized.
func IsValidEntityKind(kind EntityKind) bool {
	for _, valid := range ValidEntityKinds {
		if kind == valid {
			return true
		}
	}
	return false
}

// Entity is a deduplicated named thing referenced by one or more captures.
// (OwnerID, Name, Kind) is unique; the only creation path is the registry's
// resolve-or-create operation. Case sensitivity of names is the extraction
// layer's concern, not enforced here.
type Entity struct {
	ID         string                 `json:"id"`                   // Unique identifier (format: ent:uuid)
	OwnerID    string                 `json:"owner_id"`             // Owning user
	Name       string                 `json:"name"`                 // Display name, part of the uniqueness key
	Kind       EntityKind             `json:"kind"`                 // person, place, event, object, task, reminder
	Attributes map[string]interface{} `json:"attributes,omitempty"` // Merged field-level last-write-wins on re-extraction
	CreatedAt  time.Time              `json:"created_at"`
	UpdatedAt  time.Time              `json:"updated_at"`
}

// EntityMentions pairs an entity with the number of captures linking to it.
type EntityMentions struct {
	Entity       Entity `json:"entity"`
	MentionCount int    `json:"mention_count"`
}

// RelatedEntity is a co-occurrence result: an entity that shares captures
// with the queried one, ranked by how many captures they share.
type RelatedEntity struct {
	Entity         Entity `json:"entity"`
	SharedCaptures int    `json:"shared_captures"`
}
