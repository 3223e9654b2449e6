// Package notify bridges the out-of-process voice transcriber and the
// ingestion engine through submission files in a shared inbox directory.
package notify

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/atticlabs/attic/internal/engine"
)

// SubmissionWriter writes capture submission files to the inbox directory.
type SubmissionWriter struct {
	dir string
}

// NewSubmissionWriter creates a writer that drops submissions into
// {dataPath}/inbox/.
func NewSubmissionWriter(dataPath string) *SubmissionWriter {
	return &SubmissionWriter{dir: filepath.Join(dataPath, "inbox")}
}

// Write persists a submission file for the watcher to pick up.
// Safe to call concurrently. The file is written under a temporary name and
// renamed into place, so the watcher never observes a partial submission.
func (w *SubmissionWriter) Write(sub engine.Submission) error {
	if err := os.MkdirAll(w.dir, 0o700); err != nil {
		return fmt.Errorf("notify: mkdir %s: %w", w.dir, err)
	}
	data, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("notify: encode submission: %w", err)
	}
	filename := fmt.Sprintf("%d-%s.json", time.Now().UnixNano(), sanitizeID(sub.OwnerID))
	path := filepath.Join(w.dir, filename)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("notify: write submission: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("notify: commit submission: %w", err)
	}
	return nil
}

// sanitizeID replaces characters unsafe for filenames.
func sanitizeID(id string) string {
	out := make([]byte, len(id))
	for i := 0; i < len(id); i++ {
		if id[i] == '/' || id[i] == ':' {
			out[i] = '_'
		} else {
			out[i] = id[i]
		}
	}
	return string(out)
}
