package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var statsTop int

func init() {
	rootCmd.AddCommand(statsCmd)
	statsCmd.Flags().IntVar(&statsTop, "top", 5, "Number of top entities to show")
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store counts and the most-mentioned entities",
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
		stats, err := store.OwnerStats(ctx, owner)
		if err != nil {
			return fmt.Errorf("failed to load stats: %w", err)
		}

		fmt.Printf("Owner: %s\n\n", owner)
		fmt.Printf("Captures:         %d\n", stats.Captures)
		fmt.Printf("Entities:         %d\n", stats.Entities)
		fmt.Printf("Linkages:         %d\n", stats.Linkages)
		fmt.Printf("Tags:             %d\n", stats.Tags)
		fmt.Printf("Active reminders: %d\n", stats.ActiveReminders)

		top, err := store.TopEntities(ctx, owner, "", statsTop)
		if err != nil {
			return fmt.Errorf("failed to load top entities: %w", err)
		}
		if len(top) > 0 {
			fmt.Println("\nTop entities:")
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			for _, m := range top {
				fmt.Fprintf(w, "  %s\t%s\t%d mentions\n", m.Entity.Name, m.Entity.Kind, m.MentionCount)
			}
			w.Flush()
		}
		return nil
	},
}
