package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/seuros/leadtrack/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
	Long:  `Apply, roll back or inspect the embedded schema migrations.`,
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrateUp()
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrateDown(migrateSteps)
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runMigrateVersion()
	},
}

var migrateSteps int

// Seams for tests.
var (
	runMigrations      = database.RunMigrations
	rollbackMigrations = database.RollbackMigrations
	migrationVersion   = database.MigrationVersion
)

func migrationURL() (string, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	if cfg.DatabaseURL == "" {
		return "", errors.New("DATABASE_URL is not set (use --database-url, leadtrack.toml or the environment)")
	}
	return cfg.DatabaseURL, nil
}

func runMigrateUp() error {
	url, err := migrationURL()
	if err != nil {
		return err
	}
	if err := runMigrations(url); err != nil {
		return err
	}
	fmt.Println("Migrations applied")
	return nil
}

func runMigrateDown(steps int) error {
	if steps < 1 {
		return errors.New("--steps must be at least 1")
	}
	url, err := migrationURL()
	if err != nil {
		return err
	}
	if err := rollbackMigrations(url, steps); err != nil {
		return err
	}
	fmt.Printf("Rolled back %d migration(s)\n", steps)
	return nil
}

func runMigrateVersion() error {
	url, err := migrationURL()
	if err != nil {
		return err
	}
	version, dirty, err := migrationVersion(url)
	if err != nil {
		return err
	}
	switch {
	case version == 0:
		fmt.Println("No migrations applied")
	case dirty:
		fmt.Printf("Version %d (dirty)\n", version)
	default:
		fmt.Printf("Version %d\n", version)
	}
	return nil
}

func init() {
	migrateDownCmd.Flags().IntVarP(&migrateSteps, "steps", "n", 1, "Number of migrations to roll back")

	migrateCmd.AddCommand(migrateUpCmd)
	migrateCmd.AddCommand(migrateDownCmd)
	migrateCmd.AddCommand(migrateVersionCmd)

	RootCmd.AddCommand(migrateCmd)
}
