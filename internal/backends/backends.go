// Package backends selects and opens a storage backend from configuration.
package backends

import (
	"fmt"
	"path/filepath"

	"github.com/atticlabs/attic/internal/config"
	"github.com/atticlabs/attic/internal/storage"
	"github.com/atticlabs/attic/internal/storage/postgres"
	"github.com/atticlabs/attic/internal/storage/sqlite"
)

// DatabaseFile is the SQLite database filename under the data directory.
const DatabaseFile = "attic.db"

// Open opens the storage backend named by cfg.Storage.StorageEngine.
// An empty engine defaults to sqlite.
func Open(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.StorageEngine {
	case "", "sqlite":
		return sqlite.NewStore(SQLitePath(cfg))
	case "postgres":
		if cfg.Storage.PostgresDSN == "" {
			return nil, fmt.Errorf("backends: postgres engine selected but ATTIC_POSTGRES_DSN is not set")
		}
		return postgres.NewStore(cfg.Storage.PostgresDSN)
	default:
		return nil, fmt.Errorf("backends: unknown storage engine %q", cfg.Storage.StorageEngine)
	}
}

// SQLitePath returns the SQLite database path for the configured data
// directory.
func SQLitePath(cfg *config.Config) string {
	return filepath.Join(cfg.Storage.DataPath, DatabaseFile)
}
