// Package main implements the atticctl CLI for local operations against the
// Attic store.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/atticlabs/attic/internal/backends"
	"github.com/atticlabs/attic/internal/config"
	"github.com/atticlabs/attic/internal/storage"
)

var (
	// ownerFlag overrides the configured default owner for one invocation
	ownerFlag string
	// version information
	version = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "atticctl",
	Short: "CLI for the Attic knowledge store",
	Long: `atticctl is a command-line interface for working with a local Attic store.
It captures notes, queries entities and tags, manages reminders, and imports
markdown journals without going through the HTTP API.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: false,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&ownerFlag, "owner", "", "Owner ID (defaults to the configured owner)")
}

// openStore loads configuration and opens the configured storage backend.
// Callers must Close the returned store.
func openStore() (storage.Store, *config.Config, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	store, err := backends.Open(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open store: %w", err)
	}

	// Settings persisted via 'atticctl init' override env defaults.
	if getter, ok := store.(dbGetter); ok {
		if dbCfg, err := config.LoadConfigFromDB(getter.GetDB()); err == nil {
			cfg = dbCfg
		}
	}

	return store, cfg, nil
}

// resolveOwner returns the owner scope for a command: the --owner flag when
// set, otherwise the configured default owner.
func resolveOwner(cfg *config.Config) (string, error) {
	if ownerFlag != "" {
		return ownerFlag, nil
	}
	if cfg.User.DefaultOwner != "" {
		return cfg.User.DefaultOwner, nil
	}
	return "", fmt.Errorf("no owner configured: pass --owner or run 'atticctl init --owner <id>'")
}
