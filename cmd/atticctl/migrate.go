package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/atticlabs/attic/internal/backends"
	"github.com/atticlabs/attic/internal/config"
	"github.com/atticlabs/attic/internal/storage"
	"github.com/atticlabs/attic/internal/storage/sqlite"
)

var migrateDown bool

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.Flags().BoolVar(&migrateDown, "down", false, "Roll back all applied migrations")
}

var migrateCmd = &cobra.Command{
	Use:   "migrate <directory>",
	Short: "Apply schema migrations from a directory",
	Long: `Apply plain-SQL schema migrations (NNN_name.up.sql / NNN_name.down.sql)
to the SQLite database. The embedded schema bootstraps new databases; this
command upgrades an existing one.

Example:
  atticctl migrate ./migrations`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if cfg.Storage.StorageEngine != "" && cfg.Storage.StorageEngine != "sqlite" {
			return fmt.Errorf("migrate supports the sqlite engine only, configured engine is %q", cfg.Storage.StorageEngine)
		}

		store, err := sqlite.NewStore(backends.SQLitePath(cfg))
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer store.Close()

		if migrateDown {
			mgr, err := storage.NewMigrationManager(store.GetDB(), args[0])
			if err != nil {
				return err
			}
			if err := mgr.Down(); err != nil {
				return err
			}
			fmt.Println("Rolled back all migrations.")
			return nil
		}

		if err := store.RunMigrations(args[0]); err != nil {
			return err
		}

		mgr, err := storage.NewMigrationManager(store.GetDB(), args[0])
		if err != nil {
			return err
		}
		version, err := mgr.Version()
		if errors.Is(err, storage.ErrNoMigration) {
			fmt.Println("No migrations to apply.")
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Printf("Database at migration version %d.\n", version)
		return nil
	},
}
