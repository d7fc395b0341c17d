package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aleksis/flipkit/config"
)

func newDraftsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drafts",
		Short: "Browse and manage saved listing drafts",
	}

	cmd.AddCommand(newDraftsListCmd())
	cmd.AddCommand(newDraftsShowCmd())
	cmd.AddCommand(newDraftsDeleteCmd())

	return cmd
}

func newDraftsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List saved drafts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(config.FromEnv())
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer store.Close()

			drafts, err := store.GetAll()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(drafts) == 0 {
				fmt.Fprintln(out, "No drafts saved yet.")
				return nil
			}
			for _, d := range drafts {
				fmt.Fprintf(out, "%s  %s  %d €  %s\n",
					d.ID, d.CreatedAt.Format("2006-01-02 15:04"), d.SuggestedPrice, d.Title)
			}
			return nil
		},
	}
}

func newDraftsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show a draft in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(config.FromEnv())
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer store.Close()

			draft, err := store.Get(args[0])
			if err != nil {
				return err
			}
			if draft == nil {
				return fmt.Errorf("draft %s not found", args[0])
			}

			printDraft(cmd, draft)
			return nil
		},
	}
}

func newDraftsDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(config.FromEnv())
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer store.Close()

			if err := store.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}
