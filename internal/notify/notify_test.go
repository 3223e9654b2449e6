package notify

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/atticlabs/attic/internal/engine"
	"github.com/atticlabs/attic/pkg/types"
)

// recordingIngester captures submissions handed to Ingest.
type recordingIngester struct {
	mu   sync.Mutex
	subs []engine.Submission
}

func (r *recordingIngester) Ingest(ctx context.Context, sub engine.Submission) (*types.Capture, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = append(r.subs, sub)
	return &types.Capture{ID: "cap:test", OwnerID: sub.OwnerID}, nil
}

func (r *recordingIngester) received() []engine.Submission {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]engine.Submission, len(r.subs))
	copy(out, r.subs)
	return out
}

func TestSubmissionWriterCreatesFile(t *testing.T) {
	dir := t.TempDir()
	w := NewSubmissionWriter(dir)

	err := w.Write(engine.Submission{
		OwnerID:    "own:alice",
		Text:       "remember to call mum",
		SourceKind: types.SourceVoice,
	})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "inbox"))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 submission file, got %d", len(entries))
	}
	if filepath.Ext(entries[0].Name()) != ".json" {
		t.Errorf("expected .json extension, got %s", entries[0].Name())
	}
}

func TestSubmissionWriterLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	w := NewSubmissionWriter(dir)

	for i := 0; i < 3; i++ {
		if err := w.Write(engine.Submission{OwnerID: "own:alice", Text: "note"}); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}

	entries, err := os.ReadDir(filepath.Join(dir, "inbox"))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) != ".json" {
			t.Errorf("uncommitted file left in inbox: %s", entry.Name())
		}
	}
}

func TestInboxWatcherIngestsSubmission(t *testing.T) {
	dir := t.TempDir()
	ingester := &recordingIngester{}

	watcher := NewInboxWatcher(dir, ingester)
	if err := watcher.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer watcher.Stop()

	// Give fsnotify a moment to register
	time.Sleep(50 * time.Millisecond)

	writer := NewSubmissionWriter(dir)
	err := writer.Write(engine.Submission{
		OwnerID:    "own:alice",
		Text:       "transcribed note",
		SourceKind: types.SourceVoice,
		AudioPath:  "/audio/note.wav",
	})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for {
		if subs := ingester.received(); len(subs) == 1 {
			if subs[0].OwnerID != "own:alice" {
				t.Errorf("expected own:alice, got %s", subs[0].OwnerID)
			}
			if subs[0].Text != "transcribed note" {
				t.Errorf("expected transcribed note, got %s", subs[0].Text)
			}
			if subs[0].AudioPath != "/audio/note.wav" {
				t.Errorf("expected audio path to survive, got %s", subs[0].AudioPath)
			}
			break
		}
		select {
		case <-deadline:
			t.Fatal("timeout waiting for submission")
		case <-time.After(10 * time.Millisecond):
		}
	}

	// The consumed file must be gone.
	entries, err := os.ReadDir(filepath.Join(dir, "inbox"))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected inbox to be empty after ingestion, found %d files", len(entries))
	}
}

func TestInboxWatcherDrainsExisting(t *testing.T) {
	dir := t.TempDir()

	// Write submissions BEFORE starting the watcher
	writer := NewSubmissionWriter(dir)
	_ = writer.Write(engine.Submission{OwnerID: "own:alice", Text: "first"})
	_ = writer.Write(engine.Submission{OwnerID: "own:alice", Text: "second"})

	ingester := &recordingIngester{}
	watcher := NewInboxWatcher(dir, ingester)
	if err := watcher.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer watcher.Stop()

	// Drain runs synchronously during Start
	time.Sleep(100 * time.Millisecond)

	if got := len(ingester.received()); got != 2 {
		t.Fatalf("expected 2 drained submissions, got %d", got)
	}
}

func TestInboxWatcherDefaultsSourceAndAttribution(t *testing.T) {
	dir := t.TempDir()
	ingester := &recordingIngester{}

	watcher := NewInboxWatcher(dir, ingester)
	if err := watcher.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer watcher.Stop()

	time.Sleep(50 * time.Millisecond)

	writer := NewSubmissionWriter(dir)
	_ = writer.Write(engine.Submission{OwnerID: "own:alice", Text: "bare submission"})

	deadline := time.After(3 * time.Second)
	for {
		if subs := ingester.received(); len(subs) == 1 {
			if subs[0].SourceKind != types.SourceVoice {
				t.Errorf("expected voice default, got %s", subs[0].SourceKind)
			}
			if subs[0].CreatedBy != "watcher" {
				t.Errorf("expected watcher attribution, got %s", subs[0].CreatedBy)
			}
			return
		}
		select {
		case <-deadline:
			t.Fatal("timeout waiting for submission")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestInboxWatcherSkipsMalformedFile(t *testing.T) {
	dir := t.TempDir()
	inbox := filepath.Join(dir, "inbox")
	if err := os.MkdirAll(inbox, 0o700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(inbox, "bad.json"), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	ingester := &recordingIngester{}
	watcher := NewInboxWatcher(dir, ingester)
	if err := watcher.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer watcher.Stop()

	time.Sleep(100 * time.Millisecond)

	if got := len(ingester.received()); got != 0 {
		t.Fatalf("expected no ingestions from malformed file, got %d", got)
	}

	// The malformed file is set aside, never deleted.
	if _, err := os.Stat(filepath.Join(inbox, "bad.json.rejected")); err != nil {
		t.Errorf("expected malformed file to be kept as .rejected: %v", err)
	}
	if _, err := os.Stat(filepath.Join(inbox, "bad.json")); !os.IsNotExist(err) {
		t.Errorf("expected original malformed file to be moved, stat err %v", err)
	}
}

// failingIngester rejects every submission.
type failingIngester struct{}

func (failingIngester) Ingest(ctx context.Context, sub engine.Submission) (*types.Capture, error) {
	return nil, errors.New("store unavailable")
}

func TestInboxWatcherKeepsFileWhenIngestFails(t *testing.T) {
	dir := t.TempDir()

	writer := NewSubmissionWriter(dir)
	if err := writer.Write(engine.Submission{OwnerID: "own:alice", Text: "keep me"}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	watcher := NewInboxWatcher(dir, failingIngester{})
	if err := watcher.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer watcher.Stop()

	time.Sleep(100 * time.Millisecond)

	// The submission survives for the next startup drain.
	entries, err := os.ReadDir(filepath.Join(dir, "inbox"))
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected the submission file to survive a failed ingest, found %d files", len(entries))
	}
}

func TestSanitizeID(t *testing.T) {
	got := sanitizeID("own:alice/pad")
	if got != "own_alice_pad" {
		t.Errorf("expected own_alice_pad, got %s", got)
	}
}
