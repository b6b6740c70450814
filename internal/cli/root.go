package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/seuros/leadtrack/internal/config"
	"github.com/seuros/leadtrack/internal/logging"
)

// Version is set at build time with -ldflags "-X .../internal/cli.Version=...".
var Version = "dev"

// Global flags
var (
	databaseURLFlag string
	portFlag        string
	dataDirFlag     string
)

var RootCmd = &cobra.Command{
	Use:   "leadtrack",
	Short: "Lead capture and event ingestion service",
	Long: `leadtrack captures leads and their events from websites.

Website backends and widgets push events to POST /api/v1/events with a
per-website API key. Owners manage websites, keys and conversions from the
dashboard API or from this CLI.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	Version:       Version,
}

func init() {
	RootCmd.PersistentFlags().StringVar(&databaseURLFlag, "database-url", "", "PostgreSQL connection URL (overrides DATABASE_URL)")
	RootCmd.PersistentFlags().StringVar(&portFlag, "port", "", "HTTP port (overrides PORT)")
	RootCmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Data directory for the GeoIP database (overrides DATA_DIR)")
}

// loadConfig applies the global flags on top of file, env and defaults.
var loadConfig = func() (*config.Config, error) {
	return config.LoadWithOverrides(databaseURLFlag, portFlag, dataDirFlag)
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	defer func() { _ = logging.Sync() }()

	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
