package main

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/atticlabs/attic/internal/backends"
	"github.com/atticlabs/attic/internal/config"
)

func init() {
	rootCmd.AddCommand(initCmd)
}

type dbGetter interface {
	GetDB() *sql.DB
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the data directory and database",
	Long: `Initialize the data directory, create the database schema, and
optionally persist a default owner so later commands need no --owner flag.

Example:
  atticctl init --owner own:alice`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if err := os.MkdirAll(cfg.Storage.DataPath, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}

		store, err := backends.Open(cfg)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		defer store.Close()

		fmt.Printf("Data directory: %s\n", cfg.Storage.DataPath)
		if cfg.Storage.StorageEngine == "" || cfg.Storage.StorageEngine == "sqlite" {
			fmt.Printf("Database:       %s\n", backends.SQLitePath(cfg))
		}

		if ownerFlag != "" {
			getter, ok := store.(dbGetter)
			if !ok {
				return fmt.Errorf("storage engine %q does not support persisted settings", cfg.Storage.StorageEngine)
			}
			cfg.User.DefaultOwner = ownerFlag
			if err := cfg.SaveConfig(getter.GetDB()); err != nil {
				return fmt.Errorf("failed to save default owner: %w", err)
			}
			fmt.Printf("Default owner:  %s\n", ownerFlag)
		}

		fmt.Println("Initialized.")
		return nil
	},
}
