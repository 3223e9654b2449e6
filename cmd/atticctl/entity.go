package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/atticlabs/attic/internal/storage"
	"github.com/atticlabs/attic/pkg/types"
)

var entityKind string

func init() {
	rootCmd.AddCommand(entitiesCmd)
	rootCmd.AddCommand(tagsCmd)

	entitiesCmd.Flags().StringVar(&entityKind, "kind", "", "Filter by entity kind (person, place, event, object, task, reminder)")
}

var entitiesCmd = &cobra.Command{
	Use:   "entities",
	Short: "List known entities",
	Long: `List the entities the registry has accumulated from extraction.

Examples:
  atticctl entities
  atticctl entities --kind person`,
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
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

		if entityKind != "" {
			entities, err := store.FindEntitiesByKind(ctx, owner, types.EntityKind(entityKind))
			if err != nil {
				return fmt.Errorf("failed to list entities: %w", err)
			}
			fmt.Fprintln(w, "ID\tKIND\tNAME\tCREATED")
			for _, e := range entities {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.ID, e.Kind, e.Name, e.CreatedAt.Format("2006-01-02"))
			}
			w.Flush()
			fmt.Printf("\n%d entities\n", len(entities))
			return nil
		}

		result, err := store.ListEntities(ctx, owner, storage.ListOptions{Limit: 100})
		if err != nil {
			return fmt.Errorf("failed to list entities: %w", err)
		}
		fmt.Fprintln(w, "ID\tKIND\tNAME\tMENTIONS")
		for _, m := range result.Items {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", m.Entity.ID, m.Entity.Kind, m.Entity.Name, m.MentionCount)
		}
		w.Flush()
		fmt.Printf("\n%d of %d entities\n", len(result.Items), result.Total)
		return nil
	},
}

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List tags in the catalog",
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

		tags, err := store.ListTags(context.Background(), owner)
		if err != nil {
			return fmt.Errorf("failed to list tags: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCOLOR")
		for _, t := range tags {
			fmt.Fprintf(w, "%s\t%s\t%s\n", t.ID, t.Name, t.Color)
		}
		w.Flush()
		fmt.Printf("\n%d tags\n", len(tags))
		return nil
	},
}
