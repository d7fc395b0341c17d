package cmd

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/aleksis/flipkit/config"
	"github.com/aleksis/flipkit/internal/storage"
)

func NewRootCmd() *cobra.Command {
	var verbose bool

	cmd := &cobra.Command{
		Use:   "flipkit",
		Short: "Turn photos of an item into a priced marketplace listing draft",
		Long: `Flipkit captures photos of a physical item, enhances them, analyzes them
with a vision model and persists the result as an editable listing draft.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			config.LoadEnvFile()

			zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
			log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
			if verbose {
				zerolog.SetGlobalLevel(zerolog.DebugLevel)
			} else {
				zerolog.SetGlobalLevel(zerolog.InfoLevel)
			}
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(newAnalyzeCmd())
	cmd.AddCommand(newDraftsCmd())
	cmd.AddCommand(newCredentialCmd())

	return cmd
}

// openStore opens the local SQLite store with the credential encryption key
// derived from the configured passphrase.
func openStore(cfg config.Config) (*storage.SQLiteStore, error) {
	key, err := storage.DeriveKey(cfg.StoreKey)
	if err != nil {
		return nil, err
	}
	return storage.NewSQLiteStore(cfg.DBPath, key)
}
