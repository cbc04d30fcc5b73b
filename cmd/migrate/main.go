// Migrate applies or rolls back the embedded schema migrations against DATABASE_URL.
package main

import (
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"carescope/backend/internal/config"
	"carescope/backend/internal/db/migrate"
)

var (
	dsn   string
	steps int

	rootCmd = &cobra.Command{
		Use:           "migrate",
		Short:         "Manage the database schema",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			dsn = cfg.DatabaseURL
			return nil
		},
	}

	upCmd = &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if err := migrate.Run(dsn, migrate.Up, 0); err != nil {
				return fmt.Errorf("migrate up: %w", err)
			}
			return printVersion()
		},
	}

	downCmd = &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Long:  "Roll back the last --steps migrations, or every migration when --steps is 0.",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			if err := migrate.Run(dsn, migrate.Down, steps); err != nil {
				return fmt.Errorf("migrate down: %w", err)
			}
			return printVersion()
		},
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			return printVersion()
		},
	}
)

func init() {
	downCmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back (0 for all)")
	rootCmd.AddCommand(upCmd, downCmd, versionCmd)
}

func printVersion() error {
	v, dirty, err := migrate.Version(dsn)
	if err != nil {
		return fmt.Errorf("migrate version: %w", err)
	}
	log.Info("schema", "version", v, "dirty", dirty)
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
