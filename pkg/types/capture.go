// Package types defines the core data structures for the Attic second-brain
// store: captures, entities, linkages, tags, and reminders, plus the enums
// and state machine that govern their lifecycles.
package types

import "time"

// SourceKind identifies how a capture entered the system.
type SourceKind string

// Recognized capture sources.
const (
	// SourceText is a typed message.
	SourceText SourceKind = "text"

	// SourceVoice is a transcribed voice note.
	SourceVoice SourceKind = "voice"

	// SourceAudioFile is a transcribed audio file attachment.
	SourceAudioFile SourceKind = "audio_file"
)

// ValidSourceKinds contains all recognized capture sources.
var ValidSourceKinds = []SourceKind{
	SourceText,
	SourceVoice,
	SourceAudioFile,
}

// IsValidSourceKind checks if the given source kind is recognized.
func IsValidSourceKind(kind SourceKind) bool {
	for _, valid := range ValidSourceKinds {
		if kind == valid {
			return true
		}
	}
	return false
}

// CaptureStatus tracks a capture through the async extraction pipeline.
type CaptureStatus string

const (
	// CapturePending indicates the capture is stored but not yet extracted.
	CapturePending CaptureStatus = "pending"

	// CaptureProcessing indicates a worker is applying extraction.
	CaptureProcessing CaptureStatus = "processing"

	// CaptureExtracted indicates extraction results have been applied.
	CaptureExtracted CaptureStatus = "extracted"

	// CaptureFailed indicates extraction failed after retries.
	CaptureFailed CaptureStatus = "failed"
)

// ValidCaptureStatuses contains all pipeline statuses.
var ValidCaptureStatuses = []CaptureStatus{
	CapturePending,
	CaptureProcessing,
	CaptureExtracted,
	CaptureFailed,
}

// IsValidCaptureStatus checks if the given status is recognized.
func IsValidCaptureStatus(status CaptureStatus) bool {
	for _, valid := range ValidCaptureStatuses {
		if status == valid {
			return true
		}
	}
	return false
}

// Capture is one persisted user observation. The original text is immutable
// once stored; the processed text is written (and may be overwritten) by the
// extraction collaborator.
type Capture struct {
	ID            string                 `json:"id"`                       // Unique identifier (format: cap:uuid)
	OwnerID       string                 `json:"owner_id"`                 // Owning user; every query is scoped by this
	OriginalText  string                 `json:"original_text"`            // Raw capture text, never empty, never mutated
	ProcessedText string                 `json:"processed_text,omitempty"` // Extraction output, empty until processed
	SourceKind    SourceKind             `json:"source_kind"`              // How the capture arrived (text, voice, audio_file)
	AudioPath     string                 `json:"audio_path,omitempty"`     // Path to the source audio, when any
	Status        CaptureStatus          `json:"status"`                   // Pipeline status (pending, processing, extracted, failed)
	CreatedBy     string                 `json:"created_by,omitempty"`     // Client that produced the capture (api, cli, watcher, importer)
	Metadata      map[string]interface{} `json:"metadata,omitempty"`       // Opaque structured data (language, duration, confidence)
	CreatedAt     time.Time              `json:"created_at"`               // Set once at creation
	UpdatedAt     time.Time              `json:"updated_at"`               // Bumped on any mutation
}
