package storage

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func newMigrationDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "migrate.db"))
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func writeMigration(t *testing.T, dir, name, ddl string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(ddl), 0o644); err != nil {
		t.Fatalf("failed to write migration file: %v", err)
	}
}

func TestMigrationsUpAndVersion(t *testing.T) {
	db := newMigrationDB(t)
	dir := t.TempDir()
	writeMigration(t, dir, "001_notes.up.sql", "CREATE TABLE notes (id TEXT PRIMARY KEY)")
	writeMigration(t, dir, "001_notes.down.sql", "DROP TABLE notes")
	writeMigration(t, dir, "002_notes_body.up.sql", "ALTER TABLE notes ADD COLUMN body TEXT")
	writeMigration(t, dir, "002_notes_body.down.sql", "ALTER TABLE notes DROP COLUMN body")

	mgr, err := NewMigrationManager(db, dir)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	if _, err := mgr.Version(); !errors.Is(err, ErrNoMigration) {
		t.Fatalf("expected ErrNoMigration before Up, got %v", err)
	}

	if err := mgr.Up(); err != nil {
		t.Fatalf("Up failed: %v", err)
	}

	version, err := mgr.Version()
	if err != nil {
		t.Fatalf("Version failed: %v", err)
	}
	if version != 2 {
		t.Errorf("expected version 2, got %d", version)
	}

	if _, err := db.Exec("INSERT INTO notes (id, body) VALUES ('n1', 'hello')"); err != nil {
		t.Errorf("migrated schema not usable: %v", err)
	}

	// Up is idempotent once current.
	if err := mgr.Up(); err != nil {
		t.Fatalf("second Up failed: %v", err)
	}
}

func TestMigrationsDown(t *testing.T) {
	db := newMigrationDB(t)
	dir := t.TempDir()
	writeMigration(t, dir, "001_notes.up.sql", "CREATE TABLE notes (id TEXT PRIMARY KEY)")
	writeMigration(t, dir, "001_notes.down.sql", "DROP TABLE notes")

	mgr, err := NewMigrationManager(db, dir)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	if err := mgr.Up(); err != nil {
		t.Fatalf("Up failed: %v", err)
	}

	if err := mgr.Down(); err != nil {
		t.Fatalf("Down failed: %v", err)
	}
	if _, err := mgr.Version(); !errors.Is(err, ErrNoMigration) {
		t.Fatalf("expected ErrNoMigration after Down, got %v", err)
	}
	if _, err := db.Exec("INSERT INTO notes (id) VALUES ('n1')"); err == nil {
		t.Error("expected insert into dropped table to fail")
	}

	// Down with nothing applied is a no-op.
	if err := mgr.Down(); err != nil {
		t.Fatalf("second Down failed: %v", err)
	}
}

func TestMigrationsSkipMalformedFiles(t *testing.T) {
	db := newMigrationDB(t)
	dir := t.TempDir()
	writeMigration(t, dir, "001_notes.up.sql", "CREATE TABLE notes (id TEXT PRIMARY KEY)")
	writeMigration(t, dir, "README.md", "not a migration")
	writeMigration(t, dir, "abc_bad.up.sql", "SELECT 1")
	writeMigration(t, dir, "002_downonly.down.sql", "SELECT 1")

	mgr, err := NewMigrationManager(db, dir)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}
	if err := mgr.Up(); err != nil {
		t.Fatalf("Up failed: %v", err)
	}

	version, err := mgr.Version()
	if err != nil {
		t.Fatalf("Version failed: %v", err)
	}
	if version != 1 {
		t.Errorf("expected version 1, got %d", version)
	}
}

func TestMigrationManagerMissingDirectory(t *testing.T) {
	db := newMigrationDB(t)
	if _, err := NewMigrationManager(db, filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("expected error for missing directory")
	}
}
