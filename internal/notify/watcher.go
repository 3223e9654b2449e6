package notify

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/atticlabs/attic/internal/engine"
	"github.com/atticlabs/attic/pkg/types"
)

// Ingester accepts capture submissions. The ingestion engine satisfies this.
type Ingester interface {
	Ingest(ctx context.Context, sub engine.Submission) (*types.Capture, error)
}

// InboxWatcher watches the inbox directory and ingests submission files
// dropped by the voice transcriber.
type InboxWatcher struct {
	dir      string
	ingester Ingester
	watcher  *fsnotify.Watcher
	done     chan struct{}
}

// NewInboxWatcher creates a watcher for {dataPath}/inbox/.
func NewInboxWatcher(dataPath string, ingester Ingester) *InboxWatcher {
	return &InboxWatcher{
		dir:      filepath.Join(dataPath, "inbox"),
		ingester: ingester,
		done:     make(chan struct{}),
	}
}

// Start begins watching. It drains any existing submission files first,
// then watches for new ones. Call Stop() to clean up.
func (iw *InboxWatcher) Start() error {
	if err := os.MkdirAll(iw.dir, 0o700); err != nil {
		return err
	}

	iw.drainExisting()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(iw.dir); err != nil {
		_ = w.Close()
		return err
	}
	iw.watcher = w

	go iw.loop()
	log.Printf("notify: watching %s for transcript submissions", iw.dir)
	return nil
}

// Stop shuts down the watcher.
func (iw *InboxWatcher) Stop() {
	if iw.watcher != nil {
		_ = iw.watcher.Close()
	}
	<-iw.done
}

func (iw *InboxWatcher) loop() {
	defer close(iw.done)
	for {
		select {
		case evt, ok := <-iw.watcher.Events:
			if !ok {
				return
			}
			if evt.Op&fsnotify.Create != 0 && strings.HasSuffix(evt.Name, ".json") {
				iw.processFile(evt.Name)
			}
		case err, ok := <-iw.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("notify: watcher error: %v", err)
		}
	}
}

func (iw *InboxWatcher) drainExisting() {
	entries, err := os.ReadDir(iw.dir)
	if err != nil {
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			iw.processFile(filepath.Join(iw.dir, entry.Name()))
		}
	}
}

// processFile ingests one submission file. The file is removed only after a
// successful ingest; a file that fails to parse is set aside rather than
// deleted, so a transcript is never lost.
func (iw *InboxWatcher) processFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return // file already consumed by another process
	}

	var sub engine.Submission
	if err := json.Unmarshal(data, &sub); err != nil {
		log.Printf("notify: invalid submission file %s: %v", filepath.Base(path), err)
		_ = os.Rename(path, path+".rejected")
		return
	}

	if sub.SourceKind == "" {
		sub.SourceKind = types.SourceVoice
	}
	if sub.CreatedBy == "" {
		sub.CreatedBy = "watcher"
	}

	if _, err := iw.ingester.Ingest(context.Background(), sub); err != nil {
		// Left in place; the startup drain retries it on the next boot.
		log.Printf("notify: failed to ingest submission %s: %v", filepath.Base(path), err)
		return
	}

	_ = os.Remove(path)
}
