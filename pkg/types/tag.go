package types

import "time"

// DefaultTagColor is assigned when a tag is created without a color.
const DefaultTagColor = "#3B82F6"

// Tag is a per-owner categorical label attached to captures via a pure join.
// (OwnerID, Name) is unique. The color set at creation sticks; later
// get-or-create calls do not repaint it.
type Tag struct {
	ID        string    `json:"id"`       // Unique identifier (format: tag:uuid)
	OwnerID   string    `json:"owner_id"` // Owning user
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"` // Display color, #RRGGBB
	CreatedAt time.Time `json:"created_at"`
}

// IsValidTagColor reports whether color is a 6-hex-digit RGB value, with or
// without a leading '#'.
func IsValidTagColor(color string) bool {
	if len(color) > 0 && color[0] == '#' {
		color = color[1:]
	}
	if len(color) != 6 {
		return false
	}
	for i := 0; i < len(color); i++ {
		c := color[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

// NormalizeTagColor returns the canonical "#RRGGBB" form of a valid color,
// or the default color when the input is empty.
func NormalizeTagColor(color string) string {
	if color == "" {
		return DefaultTagColor
	}
	if color[0] != '#' {
		return "#" + color
	}
	return color
}
