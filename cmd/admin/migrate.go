package main

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"

	"ledgerlink/internal/infrastructure/postgres"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withMigrator(func(mg *postgres.Migrator) error {
				if err := mg.Down(steps); err != nil {
					return err
				}
				log.Printf("Rolled back %d migration(s)", steps)
				return nil
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(func(mg *postgres.Migrator) error {
					return mg.Up()
				})
			},
		},
		down,
		&cobra.Command{
			Use:   "status",
			Short: "Print the applied schema version",
			RunE: func(cmd *cobra.Command, args []string) error {
				return withMigrator(func(mg *postgres.Migrator) error {
					version, dirty, ok, err := mg.Version()
					if err != nil {
						return err
					}
					if !ok {
						fmt.Fprintln(cmd.OutOrStdout(), "No migrations applied")
						return nil
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Version: %d (dirty: %t)\n", version, dirty)
					return nil
				})
			},
		},
	)
	return cmd
}

func withMigrator(fn func(mg *postgres.Migrator) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	mg, err := postgres.NewMigrator(cfg.Database.ConnectionString())
	if err != nil {
		return err
	}
	defer func() {
		if err := mg.Close(); err != nil {
			log.Printf("Warning: failed to close migrator: %v", err)
		}
	}()

	return fn(mg)
}
