package types

// OwnerStats summarizes one owner's stored knowledge, the numbers behind the
// bot's "stats" command.
type OwnerStats struct {
	Captures        int `json:"captures"`
	Entities        int `json:"entities"`
	Linkages        int `json:"linkages"`
	Tags            int `json:"tags"`
	ActiveReminders int `json:"active_reminders"`
}

// ScoredCapture is a capture with a similarity score from vector recall.
type ScoredCapture struct {
	Capture Capture `json:"capture"`
	Score   float64 `json:"score"`
}
