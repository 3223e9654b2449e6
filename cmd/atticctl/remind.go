package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/atticlabs/attic/internal/storage"
	"github.com/atticlabs/attic/pkg/types"
)

var (
	remindAt        string
	remindCondition string
	remindCapture   string
	remindStatus    string
	remindDue       bool
)

func init() {
	rootCmd.AddCommand(remindCmd)
	remindCmd.AddCommand(remindAddCmd)
	remindCmd.AddCommand(remindListCmd)
	remindCmd.AddCommand(remindDoneCmd)
	remindCmd.AddCommand(remindCancelCmd)

	remindAddCmd.Flags().StringVar(&remindAt, "at", "", "Trigger time, RFC 3339 (e.g. 2026-09-01T09:00:00Z)")
	remindAddCmd.Flags().StringVar(&remindCondition, "when", "", "Free-form trigger condition (e.g. \"in 3000 km\")")
	remindAddCmd.Flags().StringVar(&remindCapture, "capture", "", "Originating capture ID")

	remindListCmd.Flags().StringVar(&remindStatus, "status", "", "Filter by status: active, completed, cancelled")
	remindListCmd.Flags().BoolVar(&remindDue, "due", false, "Show only reminders due right now")
}

var remindCmd = &cobra.Command{
	Use:   "remind",
	Short: "Manage reminders",
}

var remindAddCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Create a reminder",
	Long: `Create a reminder with a time trigger, a condition trigger, or both.

Examples:
  atticctl remind add --at 2026-09-01T09:00:00Z "Renew the car insurance"
  atticctl remind add --when "next oil change" "Check the brake pads"`,
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

		reminder := &types.Reminder{
			OwnerID:          owner,
			CaptureID:        remindCapture,
			Text:             args[0],
			TriggerCondition: remindCondition,
			Status:           types.ReminderActive,
		}
		if remindAt != "" {
			at, err := time.Parse(time.RFC3339, remindAt)
			if err != nil {
				return fmt.Errorf("invalid --at value: %w", err)
			}
			reminder.TriggerAt = &at
		}

		if err := store.CreateReminder(context.Background(), reminder); err != nil {
			return fmt.Errorf("failed to create reminder: %w", err)
		}

		fmt.Printf("Created %s\n", reminder.ID)
		return nil
	},
}

var remindListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reminders",
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
		var reminders []types.Reminder
		if remindDue {
			reminders, err = store.DueReminders(ctx, owner, time.Now().UTC())
			if err != nil {
				return fmt.Errorf("failed to list due reminders: %w", err)
			}
		} else {
			result, err := store.ListReminders(ctx, owner, types.ReminderStatus(remindStatus), storage.ListOptions{Limit: 50})
			if err != nil {
				return fmt.Errorf("failed to list reminders: %w", err)
			}
			reminders = result.Items
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSTATUS\tTRIGGER\tTEXT")
		for _, r := range reminders {
			trigger := r.TriggerCondition
			if r.TriggerAt != nil {
				trigger = r.TriggerAt.Format("2006-01-02 15:04")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, r.Status, trigger, truncate(r.Text, 50))
		}
		w.Flush()
		fmt.Printf("\n%d reminders\n", len(reminders))
		return nil
	},
}

var remindDoneCmd = &cobra.Command{
	Use:   "done <reminder-id>",
	Short: "Mark a reminder completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return transitionReminder(args[0], "Completed", storage.Store.CompleteReminder)
	},
}

var remindCancelCmd = &cobra.Command{
	Use:   "cancel <reminder-id>",
	Short: "Cancel a reminder",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return transitionReminder(args[0], "Cancelled", storage.Store.CancelReminder)
	},
}

func transitionReminder(id, verb string, apply func(storage.Store, context.Context, string, string) error) error {
	store, cfg, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	owner, err := resolveOwner(cfg)
	if err != nil {
		return err
	}

	if err := apply(store, context.Background(), owner, id); err != nil {
		return fmt.Errorf("failed to update reminder: %w", err)
	}

	fmt.Printf("%s %s\n", verb, id)
	return nil
}
