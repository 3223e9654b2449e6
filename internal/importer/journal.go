package importer

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/atticlabs/attic/internal/storage"
	"github.com/atticlabs/attic/pkg/types"
)

// CreatedBy is the client attribution stamped on imported captures.
const CreatedBy = "importer"

// ImportResult is the final summary produced by a completed import job.
type ImportResult struct {
	JobID           string        `json:"job_id"`
	FilesFound      int           `json:"files_found"`
	FilesProcessed  int           `json:"files_processed"`
	FilesSkipped    int           `json:"files_skipped"`
	FilesFailed     int           `json:"files_failed"`
	CapturesCreated int           `json:"captures_created"`
	LinkagesCreated int           `json:"linkages_created"`
	TagsAttached    int           `json:"tags_attached"`
	Errors          []string      `json:"errors,omitempty"`
	Duration        time.Duration `json:"duration_ms"`
}

// ImportProgress carries live progress data for a running job.
type ImportProgress struct {
	JobID          string `json:"job_id"`
	Status         string `json:"status"` // "running" | "complete" | "failed"
	FilesFound     int    `json:"files_found"`
	FilesProcessed int    `json:"files_processed"`
	FilesTotal     int    `json:"files_total"`
	CurrentFile    string `json:"current_file,omitempty"`
	Message        string `json:"message,omitempty"`
}

// ImportJob tracks the state of an async import operation.
type ImportJob struct {
	mu       sync.RWMutex
	Progress ImportProgress
	Result   *ImportResult
	Done     chan struct{}
}

func newImportJob(jobID string) *ImportJob {
	return &ImportJob{
		Progress: ImportProgress{
			JobID:  jobID,
			Status: "running",
		},
		Done: make(chan struct{}),
	}
}

// GetProgress returns a snapshot of the current import progress.
func (j *ImportJob) GetProgress() ImportProgress {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.Progress
}

// JournalImporter walks a markdown journal directory and creates captures
// with tags and entity linkages from the entries it finds.
type JournalImporter struct {
	store storage.Store

	// mu protects jobs.
	mu   sync.RWMutex
	jobs map[string]*ImportJob
}

// NewJournalImporter creates an importer that writes to the given store.
func NewJournalImporter(store storage.Store) *JournalImporter {
	return &JournalImporter{
		store: store,
		jobs:  make(map[string]*ImportJob),
	}
}

// StartImport begins an asynchronous import of the directory at dirPath for
// one owner. It returns a job ID usable with GetJobProgress / GetJobResult.
func (imp *JournalImporter) StartImport(ctx context.Context, ownerID, dirPath string) (string, error) {
	info, err := os.Stat(dirPath)
	if err != nil {
		return "", fmt.Errorf("cannot access directory %q: %w", dirPath, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%q is not a directory", dirPath)
	}

	jobID := uuid.New().String()
	job := newImportJob(jobID)

	imp.mu.Lock()
	imp.jobs[jobID] = job
	imp.mu.Unlock()

	go func() {
		result := imp.runImport(ctx, job, ownerID, dirPath)
		job.mu.Lock()
		job.Result = result
		if len(result.Errors) > 0 && result.FilesProcessed == 0 {
			job.Progress.Status = "failed"
			job.Progress.Message = "Import failed"
		} else {
			job.Progress.Status = "complete"
			job.Progress.Message = fmt.Sprintf("Imported %d captures from %d files",
				result.CapturesCreated, result.FilesProcessed)
		}
		job.mu.Unlock()
		close(job.Done)
	}()

	return jobID, nil
}

// ImportDirectory imports synchronously and returns the result. Used by the
// CLI, which has no reason to poll.
func (imp *JournalImporter) ImportDirectory(ctx context.Context, ownerID, dirPath string) (*ImportResult, error) {
	info, err := os.Stat(dirPath)
	if err != nil {
		return nil, fmt.Errorf("cannot access directory %q: %w", dirPath, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%q is not a directory", dirPath)
	}

	job := newImportJob(uuid.New().String())
	return imp.runImport(ctx, job, ownerID, dirPath), nil
}

// GetJobProgress returns the live progress for a job, or false if unknown.
func (imp *JournalImporter) GetJobProgress(jobID string) (ImportProgress, bool) {
	imp.mu.RLock()
	job, ok := imp.jobs[jobID]
	imp.mu.RUnlock()
	if !ok {
		return ImportProgress{}, false
	}
	return job.GetProgress(), true
}

// GetJobResult returns the final result for a completed job.
// Returns nil if the job is still running or not found.
func (imp *JournalImporter) GetJobResult(jobID string) *ImportResult {
	imp.mu.RLock()
	job, ok := imp.jobs[jobID]
	imp.mu.RUnlock()
	if !ok {
		return nil
	}
	job.mu.RLock()
	defer job.mu.RUnlock()
	return job.Result
}

// runImport is the synchronous import logic.
func (imp *JournalImporter) runImport(ctx context.Context, job *ImportJob, ownerID, dirPath string) *ImportResult {
	start := time.Now()
	result := &ImportResult{JobID: job.Progress.JobID}

	files, err := collectMarkdownFiles(dirPath)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("walk error: %v", err))
		return result
	}

	result.FilesFound = len(files)
	job.mu.Lock()
	job.Progress.FilesFound = len(files)
	job.Progress.FilesTotal = len(files)
	job.mu.Unlock()

	if len(files) == 0 {
		result.Duration = time.Since(start)
		return result
	}

	for i, absPath := range files {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, "context cancelled")
			break
		}

		rel, _ := filepath.Rel(dirPath, absPath)

		job.mu.Lock()
		job.Progress.FilesProcessed = i
		job.Progress.CurrentFile = rel
		job.mu.Unlock()

		data, err := os.ReadFile(absPath)
		if err != nil {
			log.Printf("import: skip %s: read error: %v", rel, err)
			result.FilesSkipped++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: read error: %v", rel, err))
			continue
		}

		if len(strings.TrimSpace(string(data))) == 0 {
			result.FilesSkipped++
			continue
		}

		parsed, err := ParseJournalFile(data, absPath, rel)
		if err != nil {
			log.Printf("import: skip %s: parse error: %v", rel, err)
			result.FilesFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: parse error: %v", rel, err))
			continue
		}

		if err := imp.storeEntry(ctx, ownerID, parsed, result); err != nil {
			log.Printf("import: failed to store %s: %v", rel, err)
			result.FilesFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: store error: %v", rel, err))
			continue
		}

		result.FilesProcessed++
	}

	result.Duration = time.Since(start)
	return result
}

// storeEntry converts a ParsedEntry into a capture with its tags and entity
// linkages. A file whose content was already imported for this owner is
// skipped, so re-importing a journal does not duplicate rows.
func (imp *JournalImporter) storeEntry(ctx context.Context, ownerID string, entry *ParsedEntry, result *ImportResult) error {
	already, err := imp.alreadyImported(ctx, ownerID, entry.Content)
	if err != nil {
		return err
	}
	if already {
		result.FilesSkipped++
		return imp.linkAndTagExisting(ctx, ownerID, entry)
	}

	meta := map[string]interface{}{
		"import_path": entry.RelativePath,
	}
	if !entry.Timestamp.IsZero() {
		meta["journal_date"] = entry.Timestamp.Format(time.RFC3339)
	}
	for k, v := range entry.Frontmatter {
		switch k {
		case "tags", "date", "created", "created_at", "updated_at", "title":
			// Already handled.
		default:
			meta[fmt.Sprintf("fm_%s", k)] = v
		}
	}

	capture := &types.Capture{
		OwnerID:      ownerID,
		OriginalText: entry.Content,
		SourceKind:   types.SourceText,
		CreatedBy:    CreatedBy,
		Metadata:     meta,
	}

	if err := imp.store.CreateCapture(ctx, capture); err != nil {
		return err
	}
	result.CapturesCreated++

	if err := imp.applyTags(ctx, ownerID, capture.ID, entry.Tags, result); err != nil {
		return err
	}
	if err := imp.applyWikiLinks(ctx, ownerID, capture.ID, entry.WikiLinks, result); err != nil {
		return err
	}

	// Imported entries carry their structure already; no extraction needed.
	return imp.store.UpdateCaptureStatus(ctx, capture.ID, types.CaptureExtracted)
}

// alreadyImported reports whether a capture with identical imported content
// exists for the owner.
func (imp *JournalImporter) alreadyImported(ctx context.Context, ownerID, content string) (bool, error) {
	existing, err := imp.store.ListCaptures(ctx, ownerID, storage.ListOptions{
		CreatedBy:    CreatedBy,
		TextContains: content,
		Limit:        10,
	})
	if err != nil {
		return false, err
	}
	for _, capture := range existing.Items {
		if capture.OriginalText == content {
			return true, nil
		}
	}
	return false, nil
}

// linkAndTagExisting re-resolves tags and entities for an entry whose capture
// already exists. Resolve-or-create and attach are idempotent, so this only
// fills in anything a previous partial import missed.
func (imp *JournalImporter) linkAndTagExisting(ctx context.Context, ownerID string, entry *ParsedEntry) error {
	for _, name := range entry.Tags {
		if _, err := imp.store.GetOrCreateTag(ctx, ownerID, name, ""); err != nil {
			return err
		}
	}
	for _, wl := range entry.WikiLinks {
		if _, err := imp.store.ResolveOrCreateEntity(ctx, ownerID, wl.Target, wl.Kind, nil); err != nil {
			return err
		}
	}
	return nil
}

func (imp *JournalImporter) applyTags(ctx context.Context, ownerID, captureID string, names []string, result *ImportResult) error {
	for _, name := range names {
		tag, err := imp.store.GetOrCreateTag(ctx, ownerID, name, "")
		if err != nil {
			return err
		}
		if err := imp.store.AttachTag(ctx, ownerID, captureID, tag.ID); err != nil {
			return err
		}
		result.TagsAttached++
	}
	return nil
}

func (imp *JournalImporter) applyWikiLinks(ctx context.Context, ownerID, captureID string, links []WikiLink, result *ImportResult) error {
	for _, wl := range links {
		entity, err := imp.store.ResolveOrCreateEntity(ctx, ownerID, wl.Target, wl.Kind, nil)
		if err != nil {
			return err
		}
		if _, err := imp.store.Link(ctx, ownerID, captureID, entity.ID, types.RelationMentioned, 1.0); err != nil {
			return err
		}
		result.LinkagesCreated++
	}
	return nil
}

// collectMarkdownFiles walks dirPath and returns all .md / .markdown files.
// Hidden directories (e.g. .obsidian, .git, .trash) are skipped.
func collectMarkdownFiles(dirPath string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dirPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != dirPath {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if ext == ".md" || ext == ".markdown" {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}
