// Package backup provides periodic verified SQLite backups with a tiered
// retention policy.
package backup

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Config holds backup service configuration.
type Config struct {
	// DBPath is the SQLite database file to back up.
	DBPath string

	// BackupDir is where backup files are written.
	BackupDir string

	// Interval between automatic backups (default: 1 hour).
	Interval time.Duration

	// Retention controls how many backups each age tier keeps.
	Retention RetentionPolicy

	// Verify runs an integrity check on every new backup (default on).
	Verify bool
}

// RetentionPolicy defines how many backups to keep per age tier. Backups
// under 24 hours old are hourly, 1-7 days daily, 7-30 days weekly, and
// 30-365 days monthly. Anything older than a year is always removed.
type RetentionPolicy struct {
	Hourly  int // default 24
	Daily   int // default 7
	Weekly  int // default 4
	Monthly int // default 12
}

// Info describes one backup file on disk.
type Info struct {
	Path      string
	Timestamp time.Time
	Size      int64
}

// Result describes a completed backup run.
type Result struct {
	Path     string
	Duration time.Duration
	Size     int64
	Verified bool
}

// Service performs scheduled and on-demand database backups.
type Service struct {
	dbPath    string
	backupDir string
	interval  time.Duration
	retention RetentionPolicy
	verify    bool

	mu         sync.Mutex
	running    bool
	stopCh     chan struct{}
	lastBackup time.Time
}

// NewService validates the configuration, fills in defaults, creates the
// backup directory, and returns a ready service.
func NewService(cfg Config) (*Service, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if cfg.BackupDir == "" {
		return nil, fmt.Errorf("backup directory is required")
	}

	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	if cfg.Retention.Hourly == 0 {
		cfg.Retention.Hourly = 24
	}
	if cfg.Retention.Daily == 0 {
		cfg.Retention.Daily = 7
	}
	if cfg.Retention.Weekly == 0 {
		cfg.Retention.Weekly = 4
	}
	if cfg.Retention.Monthly == 0 {
		cfg.Retention.Monthly = 12
	}

	if err := os.MkdirAll(cfg.BackupDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}

	return &Service{
		dbPath:    cfg.DBPath,
		backupDir: cfg.BackupDir,
		interval:  cfg.Interval,
		retention: cfg.Retention,
		verify:    cfg.Verify,
		stopCh:    make(chan struct{}),
	}, nil
}

// Start runs the backup loop until the context is cancelled or Stop is
// called. It blocks; callers run it in a goroutine.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("backup service is already running")
	}
	s.running = true
	s.mu.Unlock()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	log.Printf("Backup service started: interval=%v, backup_dir=%s", s.interval, s.backupDir)

	for {
		select {
		case <-ctx.Done():
			log.Println("Backup service stopping (context cancelled)")
			return ctx.Err()

		case <-s.stopCh:
			log.Println("Backup service stopping (stop requested)")
			return nil

		case <-ticker.C:
			result, err := s.BackupNow(ctx)
			if err != nil {
				log.Printf("Scheduled backup failed: %v", err)
				continue
			}
			log.Printf("Scheduled backup completed: path=%s, size=%d bytes, duration=%v, verified=%v",
				result.Path, result.Size, result.Duration, result.Verified)
		}
	}
}

// Stop requests a graceful shutdown of the backup loop.
func (s *Service) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return fmt.Errorf("backup service is not running")
	}

	close(s.stopCh)
	s.running = false
	return nil
}

// BackupNow creates a timestamped backup immediately, verifies it when
// enabled, and applies the retention policy.
func (s *Service) BackupNow(ctx context.Context) (*Result, error) {
	start := time.Now()

	if _, err := os.Stat(s.dbPath); err != nil {
		return nil, fmt.Errorf("database not found: %w", err)
	}

	// Microsecond timestamps keep back-to-back backups from colliding.
	name := fmt.Sprintf("attic-backup-%s.db", time.Now().Format("20060102-150405.000000"))
	backupPath := filepath.Join(s.backupDir, name)

	if err := snapshotSQLite(s.dbPath, backupPath); err != nil {
		return nil, err
	}

	info, err := os.Stat(backupPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat backup: %w", err)
	}

	result := &Result{
		Path:     backupPath,
		Duration: time.Since(start),
		Size:     info.Size(),
	}

	if s.verify {
		if err := verifyBackup(backupPath); err != nil {
			return result, fmt.Errorf("backup verification failed: %w", err)
		}
		result.Verified = true
	}

	s.mu.Lock()
	s.lastBackup = time.Now()
	s.mu.Unlock()

	// Retention failures never fail the backup itself.
	if err := applyRetention(s.backupDir, s.retention); err != nil {
		log.Printf("Warning: failed to apply retention policy: %v", err)
	}

	return result, nil
}

// ListBackups returns the backups on disk, newest first.
func (s *Service) ListBackups() ([]Info, error) {
	return listBackups(s.backupDir)
}

// Restore replaces the live database with the named backup. The store and
// the backup loop must not be running.
func (s *Service) Restore(backupPath string) error {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()
	if running {
		return fmt.Errorf("cannot restore while backup service is running")
	}

	if _, err := os.Stat(backupPath); err != nil {
		return fmt.Errorf("backup not found: %w", err)
	}

	// Snapshot the current database first so a bad restore can roll back.
	preRestore := s.dbPath + ".pre-restore"
	if _, err := os.Stat(s.dbPath); err == nil {
		if err := snapshotSQLite(s.dbPath, preRestore); err != nil {
			return fmt.Errorf("failed to create pre-restore backup: %w", err)
		}
		defer os.Remove(preRestore)
	}

	if err := restoreSQLite(backupPath, s.dbPath); err != nil {
		if _, statErr := os.Stat(preRestore); statErr == nil {
			if rollbackErr := restoreSQLite(preRestore, s.dbPath); rollbackErr != nil {
				return fmt.Errorf("restore failed and rollback failed: %v (restore error: %w)", rollbackErr, err)
			}
			return fmt.Errorf("restore failed, rolled back to previous state: %w", err)
		}
		return err
	}

	log.Printf("Database restored from backup: %s", backupPath)
	return nil
}
