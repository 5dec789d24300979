// Package cli implements the command-line interface for qiyicube.
package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/SeamusWaldron/qiyicube_ble_library/internal/config"
	"github.com/SeamusWaldron/qiyicube_ble_library/internal/logging"
	"github.com/SeamusWaldron/qiyicube_ble_library/internal/storage"
)

const version = "0.1.0"

var (
	// Global flags
	configPath string
	dbPath     string
	logLevel   string
	verbose    bool

	// settings is loaded before every command runs.
	settings = config.Default()
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "qiyicube",
	Short: "QiYi smart cube client",
	Long: `qiyicube - A CLI tool for QiYi smart cubes.

Connect to your cube over Bluetooth, watch its state and moves live,
record sessions to a local database, and decode captured frames.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

// Execute runs the root command.
func Execute() {
	defer logging.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file, .yaml or .toml (default: ~/.config/qiyicube/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database file path (default: ~/.config/qiyicube/qiyicube.db)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
}

// loadSettings reads the config file and applies flag overrides.
func loadSettings(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			return err
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if dbPath != "" {
		cfg.DBPath = dbPath
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	settings = cfg

	return logging.Initialize(settings.LogLevel)
}

// logFilePath is where logs go while the full-screen UI is active.
func logFilePath() string {
	dir, err := config.Dir()
	if err != nil {
		return filepath.Join(os.TempDir(), "qiyicube.log")
	}
	return filepath.Join(dir, "logs", "qiyicube.log")
}

func openDB() (*storage.DB, error) {
	path, err := settings.ResolveDBPath()
	if err != nil {
		return nil, err
	}

	db, err := storage.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

func scanTimeout() time.Duration {
	d, err := settings.ScanTimeoutDuration()
	if err != nil {
		return config.DefaultScanTimeout
	}
	return d
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := d.Seconds() - float64(minutes*60)
	return fmt.Sprintf("%d:%05.2f", minutes, seconds)
}
