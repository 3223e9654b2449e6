package types

import "time"

// OwnerPreferences holds per-owner settings consulted by the scheduler and
// the digest surfaces. Absent preferences fall back to configured defaults.
type OwnerPreferences struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Timezone    string    `json:"timezone,omitempty"`     // IANA name, e.g. "Europe/Berlin"
	WebhookURL  string    `json:"webhook_url,omitempty"`  // Reminder delivery endpoint for this owner
	DigestHour  int       `json:"digest_hour"`            // Local hour for daily digests, 0-23
	DisplayName string    `json:"display_name,omitempty"` // How the bot addresses the owner
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
