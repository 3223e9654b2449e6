package sqlite

// Schema contains the SQL statements to create the Attic schema for SQLite.
// All statements are idempotent (IF NOT EXISTS) so the schema can be applied
// on every open.
//
// Timestamps are stored as fixed-width UTC text (see timeLayout) so that
// lexicographic ordering matches chronological ordering.
//
// Cascade rules implement the deletion semantics of the data model: deleting
// a capture removes its linkages and tag associations and clears the capture
// reference on any reminder, all inside the single DELETE statement.
const Schema = `
-- Captures: one row per user observation
CREATE TABLE IF NOT EXISTS captures (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    original_text TEXT NOT NULL CHECK (original_text <> ''),
    processed_text TEXT,
    source_kind TEXT NOT NULL,
    audio_path TEXT,
    status TEXT NOT NULL DEFAULT 'pending',
    created_by TEXT,
    metadata TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_captures_owner_created ON captures(owner_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_captures_status ON captures(status);

-- Entities: deduplicated named things, one per (owner, name, kind)
CREATE TABLE IF NOT EXISTS entities (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    name TEXT NOT NULL,
    kind TEXT NOT NULL,
    attributes TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,

    UNIQUE(owner_id, name, kind)
);

CREATE INDEX IF NOT EXISTS idx_entities_owner_kind ON entities(owner_id, kind);

-- Linkages: confidence-weighted capture-entity edges
CREATE TABLE IF NOT EXISTS linkages (
    id TEXT PRIMARY KEY,
    capture_id TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    relation_kind TEXT NOT NULL,
    confidence REAL NOT NULL DEFAULT 1.0 CHECK (confidence >= 0.0 AND confidence <= 1.0),
    created_at TEXT NOT NULL,

    FOREIGN KEY (capture_id) REFERENCES captures(id) ON DELETE CASCADE,
    FOREIGN KEY (entity_id) REFERENCES entities(id) ON DELETE CASCADE,

    UNIQUE(capture_id, entity_id, relation_kind)
);

CREATE INDEX IF NOT EXISTS idx_linkages_entity ON linkages(entity_id);

-- Tags: per-owner labels, one per (owner, name)
CREATE TABLE IF NOT EXISTS tags (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    name TEXT NOT NULL,
    color TEXT,
    created_at TEXT NOT NULL,

    UNIQUE(owner_id, name)
);

-- Capture-tag associations: pure join, no independent identity
CREATE TABLE IF NOT EXISTS capture_tags (
    capture_id TEXT NOT NULL,
    tag_id TEXT NOT NULL,

    FOREIGN KEY (capture_id) REFERENCES captures(id) ON DELETE CASCADE,
    FOREIGN KEY (tag_id) REFERENCES tags(id) ON DELETE CASCADE,

    PRIMARY KEY (capture_id, tag_id)
);

CREATE INDEX IF NOT EXISTS idx_capture_tags_tag ON capture_tags(tag_id);

-- Reminders: reminders survive their originating capture (SET NULL)
CREATE TABLE IF NOT EXISTS reminders (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    capture_id TEXT,
    text TEXT NOT NULL CHECK (text <> ''),
    trigger_at TEXT,
    trigger_condition TEXT,
    status TEXT NOT NULL DEFAULT 'active',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,

    FOREIGN KEY (capture_id) REFERENCES captures(id) ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_reminders_due ON reminders(status, trigger_at);
CREATE INDEX IF NOT EXISTS idx_reminders_owner ON reminders(owner_id, status);
CREATE INDEX IF NOT EXISTS idx_reminders_capture ON reminders(capture_id);

-- Capture embeddings: JSON float arrays, ranked in process
CREATE TABLE IF NOT EXISTS capture_embeddings (
    capture_id TEXT PRIMARY KEY,
    vector TEXT NOT NULL,
    dimension INTEGER NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,

    FOREIGN KEY (capture_id) REFERENCES captures(id) ON DELETE CASCADE
);

-- Per-owner preferences
CREATE TABLE IF NOT EXISTS owner_settings (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL UNIQUE,
    timezone TEXT,
    webhook_url TEXT,
    digest_hour INTEGER NOT NULL DEFAULT 9,
    display_name TEXT,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

-- Global settings persisted across restarts
CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

-- Full-text index over capture text, kept in sync by triggers
CREATE VIRTUAL TABLE IF NOT EXISTS captures_fts USING fts5(
    original_text,
    processed_text,
    content='captures',
    content_rowid='rowid'
);

CREATE TRIGGER IF NOT EXISTS captures_fts_insert AFTER INSERT ON captures BEGIN
    INSERT INTO captures_fts(rowid, original_text, processed_text)
    VALUES (new.rowid, new.original_text, COALESCE(new.processed_text, ''));
END;

CREATE TRIGGER IF NOT EXISTS captures_fts_delete AFTER DELETE ON captures BEGIN
    INSERT INTO captures_fts(captures_fts, rowid, original_text, processed_text)
    VALUES ('delete', old.rowid, old.original_text, COALESCE(old.processed_text, ''));
END;

CREATE TRIGGER IF NOT EXISTS captures_fts_update AFTER UPDATE ON captures BEGIN
    INSERT INTO captures_fts(captures_fts, rowid, original_text, processed_text)
    VALUES ('delete', old.rowid, old.original_text, COALESCE(old.processed_text, ''));
    INSERT INTO captures_fts(rowid, original_text, processed_text)
    VALUES (new.rowid, new.original_text, COALESCE(new.processed_text, ''));
END;
`
