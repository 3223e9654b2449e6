package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/atticlabs/attic/internal/importer"
)

func init() {
	rootCmd.AddCommand(importCmd)
}

var importCmd = &cobra.Command{
	Use:   "import <directory>",
	Short: "Import a directory of journal files",
	Long: `Import a directory of Markdown journal files as captures.

Files are processed synchronously. Front matter tags become tag
attachments and wiki-style links become entity linkages.

Example:
  atticctl import ~/journals/2026`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		owner, err := resolveOwner(cfg)
		if err != nil {
			return err
		}

		dir, err := filepath.Abs(args[0])
		if err != nil {
			return fmt.Errorf("invalid directory: %w", err)
		}

		imp := importer.NewJournalImporter(store)
		result, err := imp.ImportDirectory(context.Background(), owner, dir)
		if err != nil {
			return fmt.Errorf("import failed: %w", err)
		}

		fmt.Printf("Imported %s in %s\n\n", dir, result.Duration.Round(time.Millisecond))
		fmt.Printf("Files found:      %d\n", result.FilesFound)
		fmt.Printf("Files processed:  %d\n", result.FilesProcessed)
		fmt.Printf("Files skipped:    %d\n", result.FilesSkipped)
		fmt.Printf("Files failed:     %d\n", result.FilesFailed)
		fmt.Printf("Captures created: %d\n", result.CapturesCreated)
		fmt.Printf("Linkages created: %d\n", result.LinkagesCreated)
		fmt.Printf("Tags attached:    %d\n", result.TagsAttached)
		for _, msg := range result.Errors {
			fmt.Printf("  error: %s\n", msg)
		}
		return nil
	},
}
