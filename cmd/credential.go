package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aleksis/flipkit/config"
)

func newCredentialCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage the inference credential",
		Long: `Manages the credential used to call the vision-inference backend.
It is stored encrypted in the local database; without one, analysis is
rejected before any network call.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <credential>",
		Short: "Store the inference credential",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(config.FromEnv())
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer store.Close()

			if err := store.SetCredential(args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Credential saved.")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove the stored credential",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(config.FromEnv())
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer store.Close()

			if err := store.ClearCredential(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Credential cleared.")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show whether a credential is configured (masked)",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(config.FromEnv())
			if err != nil {
				return fmt.Errorf("failed to open store: %w", err)
			}
			defer store.Close()

			credential, err := store.GetCredential()
			if err != nil {
				return err
			}
			if credential == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "No credential configured.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Credential configured: %s\n", mask(credential))
			return nil
		},
	})

	return cmd
}

func mask(credential string) string {
	if len(credential) <= 6 {
		return strings.Repeat("*", len(credential))
	}
	return credential[:3] + strings.Repeat("*", len(credential)-6) + credential[len(credential)-3:]
}
