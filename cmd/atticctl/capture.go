package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/atticlabs/attic/internal/attribution"
	"github.com/atticlabs/attic/internal/storage"
	"github.com/atticlabs/attic/pkg/types"
)

var (
	addSource  string
	addTags    []string
	listLimit  int
	listSource string
	listStatus string
)

func init() {
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(searchCmd)

	addCmd.Flags().StringVar(&addSource, "source", "text", "Source kind: text, voice, audio_file")
	addCmd.Flags().StringSliceVar(&addTags, "tag", nil, "Tag to attach (repeatable)")

	listCmd.Flags().IntVar(&listLimit, "limit", 20, "Maximum number of captures to show")
	listCmd.Flags().StringVar(&listSource, "source", "", "Filter by source kind")
	listCmd.Flags().StringVar(&listStatus, "status", "", "Filter by pipeline status")

	searchCmd.Flags().IntVar(&listLimit, "limit", 20, "Maximum number of results")
}

var addCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Capture a new observation",
	Long: `Capture a new observation into the store.

The capture is stored pending; extraction happens when the server's
extraction collaborator picks it up.

Examples:
  atticctl add "Bought milk at Walmart"
  atticctl add --tag errands --tag shopping "Pick up the dry cleaning"`,
	Args: cobra.ExactArgs(1),
	RunE: runAdd,
}

func runAdd(cmd *cobra.Command, args []string) error {
	store, cfg, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	owner, err := resolveOwner(cfg)
	if err != nil {
		return err
	}

	ctx := context.Background()
	capture := &types.Capture{
		OwnerID:      owner,
		OriginalText: args[0],
		SourceKind:   types.SourceKind(addSource),
		CreatedBy:    attribution.ClientCLI,
		Metadata:     map[string]interface{}{"operator": attribution.DetectOperator()},
	}
	if err := store.CreateCapture(ctx, capture); err != nil {
		return fmt.Errorf("failed to create capture: %w", err)
	}

	for _, name := range addTags {
		tag, err := store.GetOrCreateTag(ctx, owner, name, "")
		if err != nil {
			return fmt.Errorf("failed to resolve tag %q: %w", name, err)
		}
		if err := store.AttachTag(ctx, owner, capture.ID, tag.ID); err != nil {
			return fmt.Errorf("failed to attach tag %q: %w", name, err)
		}
	}

	fmt.Printf("Created %s\n", capture.ID)
	return nil
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent captures",
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

		result, err := store.ListCaptures(context.Background(), owner, storage.ListOptions{
			Limit:      listLimit,
			SourceKind: types.SourceKind(listSource),
			Status:     types.CaptureStatus(listStatus),
		})
		if err != nil {
			return fmt.Errorf("failed to list captures: %w", err)
		}

		printCaptures(result.Items)
		fmt.Printf("\n%d of %d captures\n", len(result.Items), result.Total)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <capture-id>",
	Short: "Show a capture with its links, tags, and reminder",
	Args:  cobra.ExactArgs(1),
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

		ctx := context.Background()
		capture, err := store.GetCapture(ctx, owner, args[0])
		if err != nil {
			return fmt.Errorf("failed to get capture: %w", err)
		}

		fmt.Printf("ID:       %s\n", capture.ID)
		fmt.Printf("Status:   %s\n", capture.Status)
		fmt.Printf("Source:   %s\n", capture.SourceKind)
		fmt.Printf("Created:  %s by %s\n", capture.CreatedAt.Format("2006-01-02 15:04"), capture.CreatedBy)
		fmt.Printf("Text:     %s\n", capture.OriginalText)
		if capture.ProcessedText != "" {
			fmt.Printf("Processed: %s\n", capture.ProcessedText)
		}

		links, err := store.LinksForCapture(ctx, owner, capture.ID)
		if err != nil {
			return fmt.Errorf("failed to list links: %w", err)
		}
		if len(links) > 0 {
			fmt.Println("\nEntities:")
			for _, l := range links {
				fmt.Printf("  %s (%s)  %s  %.2f\n", l.Entity.Name, l.Entity.Kind, l.Linkage.RelationKind, l.Linkage.Confidence)
			}
		}

		tags, err := store.TagsForCapture(ctx, owner, capture.ID)
		if err != nil {
			return fmt.Errorf("failed to list tags: %w", err)
		}
		if len(tags) > 0 {
			names := make([]string, len(tags))
			for i, tag := range tags {
				names[i] = tag.Name
			}
			fmt.Printf("\nTags: %s\n", strings.Join(names, ", "))
		}

		if reminder, err := store.ReminderForCapture(ctx, owner, capture.ID); err == nil {
			fmt.Printf("\nReminder: [%s] %s", reminder.Status, reminder.Text)
			if reminder.TriggerAt != nil {
				fmt.Printf(" @ %s", reminder.TriggerAt.Format("2006-01-02 15:04"))
			}
			fmt.Println()
		}

		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <capture-id>",
	Short: "Delete a capture and its linkages and tag associations",
	Args:  cobra.ExactArgs(1),
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

		if err := store.DeleteCapture(context.Background(), owner, args[0]); err != nil {
			return fmt.Errorf("failed to delete capture: %w", err)
		}

		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search over captures",
	Args:  cobra.ExactArgs(1),
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

		result, err := store.SearchCaptures(context.Background(), owner, storage.SearchOptions{
			Query: args[0],
			Limit: listLimit,
		})
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}

		printCaptures(result.Items)
		fmt.Printf("\n%d results\n", len(result.Items))
		return nil
	},
}

func printCaptures(captures []types.Capture) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tCREATED\tSTATUS\tTEXT")
	for _, c := range captures {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			c.ID, c.CreatedAt.Format("2006-01-02 15:04"), c.Status, truncate(c.OriginalText, 60))
	}
	w.Flush()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
