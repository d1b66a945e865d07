package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ledgerlink/internal/shared/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "admin",
		Short: "Ledgerlink admin CLI - management commands for the ledgerlink API",
		Long: `Ledgerlink admin CLI - management commands for the ledgerlink API.

Configuration is read from the same environment variables (and .env file)
as the API server.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newMigrateCmd(),
		newReplayCmd(),
		newCreateSessionCmd(),
		newTokenCmd(),
	)
	return root
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}
