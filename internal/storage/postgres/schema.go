// Package postgres implements the storage interfaces on PostgreSQL with
// lib/pq, tsvector full-text search, and optional pgvector similarity.
package postgres

// Schema contains the SQL statements to create the Attic schema for
// PostgreSQL. All statements are idempotent (IF NOT EXISTS).
const Schema = `
CREATE TABLE IF NOT EXISTS captures (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    original_text TEXT NOT NULL CHECK (original_text <> ''),
    processed_text TEXT,
    source_kind TEXT NOT NULL,
    audio_path TEXT,
    status TEXT NOT NULL DEFAULT 'pending',
    created_by TEXT,
    metadata JSONB,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_captures_owner_created ON captures(owner_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_captures_status ON captures(status);

CREATE TABLE IF NOT EXISTS entities (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    name TEXT NOT NULL,
    kind TEXT NOT NULL,
    attributes JSONB,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    UNIQUE(owner_id, name, kind)
);

CREATE INDEX IF NOT EXISTS idx_entities_owner_kind ON entities(owner_id, kind);

CREATE TABLE IF NOT EXISTS linkages (
    id TEXT PRIMARY KEY,
    capture_id TEXT NOT NULL REFERENCES captures(id) ON DELETE CASCADE,
    entity_id TEXT NOT NULL REFERENCES entities(id) ON DELETE CASCADE,
    relation_kind TEXT NOT NULL,
    confidence REAL NOT NULL DEFAULT 1.0 CHECK (confidence >= 0.0 AND confidence <= 1.0),
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    UNIQUE(capture_id, entity_id, relation_kind)
);

CREATE INDEX IF NOT EXISTS idx_linkages_entity ON linkages(entity_id);

CREATE TABLE IF NOT EXISTS tags (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    name TEXT NOT NULL,
    color TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    UNIQUE(owner_id, name)
);

CREATE TABLE IF NOT EXISTS capture_tags (
    capture_id TEXT NOT NULL REFERENCES captures(id) ON DELETE CASCADE,
    tag_id TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,

    PRIMARY KEY (capture_id, tag_id)
);

CREATE INDEX IF NOT EXISTS idx_capture_tags_tag ON capture_tags(tag_id);

CREATE TABLE IF NOT EXISTS reminders (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL,
    capture_id TEXT REFERENCES captures(id) ON DELETE SET NULL,
    text TEXT NOT NULL CHECK (text <> ''),
    trigger_at TIMESTAMPTZ,
    trigger_condition TEXT,
    status TEXT NOT NULL DEFAULT 'active',
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_reminders_due ON reminders(status, trigger_at);
CREATE INDEX IF NOT EXISTS idx_reminders_owner ON reminders(owner_id, status);
CREATE INDEX IF NOT EXISTS idx_reminders_capture ON reminders(capture_id);

CREATE TABLE IF NOT EXISTS capture_embeddings (
    capture_id TEXT PRIMARY KEY REFERENCES captures(id) ON DELETE CASCADE,
    vector JSONB NOT NULL,
    dimension INTEGER NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS owner_settings (
    id TEXT PRIMARY KEY,
    owner_id TEXT NOT NULL UNIQUE,
    timezone TEXT,
    webhook_url TEXT,
    digest_hour INTEGER NOT NULL DEFAULT 9,
    display_name TEXT,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS settings (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// MigrationFTS adds a tsvector column over original and processed capture
// text plus the trigger that keeps it current. Safe to run repeatedly.
const MigrationFTS = `
DO $$
BEGIN
    IF NOT EXISTS (
        SELECT 1 FROM information_schema.columns
        WHERE table_name = 'captures' AND column_name = 'text_tsv'
    ) THEN
        ALTER TABLE captures ADD COLUMN text_tsv tsvector;
    END IF;
END
$$;

UPDATE captures
SET text_tsv = to_tsvector('english', original_text || ' ' || COALESCE(processed_text, ''))
WHERE text_tsv IS NULL;

CREATE INDEX IF NOT EXISTS idx_captures_text_tsv ON captures USING GIN(text_tsv);

CREATE OR REPLACE FUNCTION captures_tsv_update()
RETURNS TRIGGER AS $$
BEGIN
    NEW.text_tsv := to_tsvector('english', NEW.original_text || ' ' || COALESCE(NEW.processed_text, ''));
    RETURN NEW;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS captures_tsv_trigger ON captures;
CREATE TRIGGER captures_tsv_trigger
    BEFORE INSERT OR UPDATE OF original_text, processed_text
    ON captures
    FOR EACH ROW
    EXECUTE FUNCTION captures_tsv_update();
`

// MigrationPgvector adds a native vector column to capture_embeddings. Only
// applied when the pgvector extension is available. Safe to run repeatedly.
const MigrationPgvector = `
DO $$
BEGIN
    IF NOT EXISTS (
        SELECT 1 FROM information_schema.columns
        WHERE table_name = 'capture_embeddings' AND column_name = 'vec'
    ) THEN
        ALTER TABLE capture_embeddings ADD COLUMN vec vector;
    END IF;
END
$$;

-- ivfflat needs data to build cluster centroids, so only create the index
-- once at least one embedding exists.
DO $$
BEGIN
  IF NOT EXISTS (
    SELECT 1 FROM pg_indexes WHERE indexname = 'idx_capture_embeddings_vec_cosine'
  ) THEN
    IF EXISTS (SELECT 1 FROM capture_embeddings LIMIT 1) THEN
      EXECUTE 'CREATE INDEX idx_capture_embeddings_vec_cosine ON capture_embeddings USING ivfflat (vec vector_cosine_ops) WITH (lists = 100)';
    END IF;
  END IF;
END$$;
`
