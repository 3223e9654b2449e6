package backup

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/atticlabs/attic/internal/storage"
	"github.com/atticlabs/attic/internal/storage/sqlite"
	"github.com/atticlabs/attic/pkg/types"
)

// newTestDB creates a populated SQLite store on disk and returns its path.
func newTestDB(t *testing.T) string {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "attic.db")
	store, err := sqlite.NewStore(dbPath)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	capture := &types.Capture{
		OwnerID:      "own:alice",
		OriginalText: "backup me",
		SourceKind:   types.SourceText,
	}
	if err := store.CreateCapture(context.Background(), capture); err != nil {
		t.Fatalf("failed to create capture: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}

	return dbPath
}

func TestBackupNowCreatesVerifiedBackup(t *testing.T) {
	dbPath := newTestDB(t)
	backupDir := t.TempDir()

	svc, err := NewService(Config{
		DBPath:    dbPath,
		BackupDir: backupDir,
		Verify:    true,
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	result, err := svc.BackupNow(context.Background())
	if err != nil {
		t.Fatalf("backup failed: %v", err)
	}

	if !result.Verified {
		t.Error("expected backup to be verified")
	}
	if result.Size == 0 {
		t.Error("expected non-empty backup")
	}
	if _, err := os.Stat(result.Path); err != nil {
		t.Errorf("backup file missing: %v", err)
	}

	backups, err := svc.ListBackups()
	if err != nil {
		t.Fatalf("failed to list backups: %v", err)
	}
	if len(backups) != 1 {
		t.Errorf("expected 1 backup, got %d", len(backups))
	}
}

func TestBackupRoundTrip(t *testing.T) {
	dbPath := newTestDB(t)
	backupDir := t.TempDir()

	svc, err := NewService(Config{DBPath: dbPath, BackupDir: backupDir, Verify: true})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	result, err := svc.BackupNow(context.Background())
	if err != nil {
		t.Fatalf("backup failed: %v", err)
	}

	// Wipe the live database, then restore from the backup.
	if err := os.Remove(dbPath); err != nil {
		t.Fatalf("failed to remove database: %v", err)
	}
	if err := svc.Restore(result.Path); err != nil {
		t.Fatalf("restore failed: %v", err)
	}

	store, err := sqlite.NewStore(dbPath)
	if err != nil {
		t.Fatalf("failed to reopen store: %v", err)
	}
	defer store.Close()

	listed, err := store.ListCaptures(context.Background(), "own:alice", storage.ListOptions{})
	if err != nil {
		t.Fatalf("failed to list captures: %v", err)
	}
	if listed.Total != 1 {
		t.Errorf("expected 1 capture after restore, got %d", listed.Total)
	}
	if len(listed.Items) == 1 && listed.Items[0].OriginalText != "backup me" {
		t.Errorf("unexpected capture text %q", listed.Items[0].OriginalText)
	}
}

func TestBackupMissingDatabase(t *testing.T) {
	svc, err := NewService(Config{
		DBPath:    filepath.Join(t.TempDir(), "missing.db"),
		BackupDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}

	if _, err := svc.BackupNow(context.Background()); err == nil {
		t.Fatal("expected error for missing database")
	}
}

func TestListBackupsIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub"), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "attic-backup-1.db"), []byte("sqlite"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	backups, err := listBackups(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(backups) != 1 {
		t.Errorf("expected 1 backup, got %d", len(backups))
	}
}

func TestRetentionKeepsNewestPerTier(t *testing.T) {
	dir := t.TempDir()

	// Three fresh files; a policy of one hourly backup keeps the newest.
	paths := []string{"a.db", "b.db", "c.db"}
	now := time.Now()
	for i, name := range paths {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte("sqlite"), 0644); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}
		mtime := now.Add(-time.Duration(i) * time.Minute)
		if err := os.Chtimes(p, mtime, mtime); err != nil {
			t.Fatalf("failed to set mtime: %v", err)
		}
	}

	policy := RetentionPolicy{Hourly: 1, Daily: 7, Weekly: 4, Monthly: 12}
	if err := applyRetention(dir, policy); err != nil {
		t.Fatalf("retention failed: %v", err)
	}

	backups, err := listBackups(dir)
	if err != nil {
		t.Fatalf("failed to list backups: %v", err)
	}
	if len(backups) != 1 {
		t.Fatalf("expected 1 surviving backup, got %d", len(backups))
	}
	if filepath.Base(backups[0].Path) != "a.db" {
		t.Errorf("expected newest backup to survive, got %s", backups[0].Path)
	}
}

func TestRetentionDeletesAncientBackups(t *testing.T) {
	dir := t.TempDir()

	p := filepath.Join(dir, "ancient.db")
	if err := os.WriteFile(p, []byte("sqlite"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	old := time.Now().Add(-400 * 24 * time.Hour)
	if err := os.Chtimes(p, old, old); err != nil {
		t.Fatalf("failed to set mtime: %v", err)
	}

	if err := applyRetention(dir, RetentionPolicy{Hourly: 24, Daily: 7, Weekly: 4, Monthly: 12}); err != nil {
		t.Fatalf("retention failed: %v", err)
	}

	backups, err := listBackups(dir)
	if err != nil {
		t.Fatalf("failed to list backups: %v", err)
	}
	if len(backups) != 0 {
		t.Errorf("expected ancient backup to be deleted, got %d", len(backups))
	}
}

func TestStopWithoutStart(t *testing.T) {
	svc, err := NewService(Config{DBPath: "x.db", BackupDir: t.TempDir()})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	if err := svc.Stop(); err == nil {
		t.Fatal("expected error stopping a service that never started")
	}
}
