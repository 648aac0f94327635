package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/gofanout/internal/config"
	"github.com/dbsmedya/gofanout/internal/logger"
	"github.com/dbsmedya/gofanout/internal/profile"
	"github.com/dbsmedya/gofanout/internal/store"
	"github.com/dbsmedya/gofanout/internal/types"
)

// Version information (set via ldflags at build time)
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// PasswordEnv supplies the password for profiles stored without one.
const PasswordEnv = "GOFANOUT_PASSWORD"

// CLI flags that override config file values
var (
	cfgFile   string
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "gofanout",
	Short: "Run SQL against many databases on one server",
	Long: `gofanout runs a batch of SQL statements against a chosen set of
databases on a single PostgreSQL or MySQL server and reports the outcome
of every statement per database.

Features:
  - Per-database and per-statement failure isolation
  - Optional stop-on-error within each database
  - CSV export, one file per database or one combined file
  - Saved connection profiles, query history and snippets`,
	Version: Version,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	// Config file flag
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "gofanout.yaml",
		"Path to configuration file")

	// Logging overrides
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "",
		"Override log format (json, text)")
}

// GetConfigFile returns the config file path
func GetConfigFile() string {
	return cfgFile
}

// CLIOverrides contains flag values that override config file settings
type CLIOverrides = config.Overrides

// GetCLIOverrides returns the CLI flag override values. --stop-on-error
// only overrides the file when it was given explicitly.
func GetCLIOverrides() CLIOverrides {
	o := CLIOverrides{
		LogLevel:  logLevel,
		LogFormat: logFormat,
		Save:      runSave,
		OutputDir: runOutputDir,
	}
	if runCmd.Flags().Changed("stop-on-error") {
		stop := runStopOnError
		o.StopOnError = &stop
	}
	return o
}

// loadConfig reads the config file (defaults when it does not exist),
// applies CLI overrides and validates the result.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOrDefault(GetConfigFile())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg.ApplyOverrides(GetCLIOverrides())

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadEnvironment loads the config and builds the logger from it.
func loadEnvironment() (*config.Config, *logger.Logger, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, log, nil
}

// resolveProfile finds a connection by name. Connections defined in the
// config file take precedence over the profile store.
func resolveProfile(cfg *config.Config, name string) (types.ConnectionProfile, error) {
	if name == "" {
		return types.ConnectionProfile{}, fmt.Errorf("a connection is required (--connection)")
	}

	p, ok := cfg.Profile(name)
	if !ok {
		var err error
		p, err = profile.NewStore(cfg.Storage.ProfilesFile).Find(name)
		if errors.Is(err, profile.ErrNotFound) {
			return types.ConnectionProfile{}, fmt.Errorf("connection %q not found in config or %s", name, cfg.Storage.ProfilesFile)
		}
		if err != nil {
			return types.ConnectionProfile{}, err
		}
	}

	if p.Password == "" {
		p.Password = os.Getenv(PasswordEnv)
	}
	return p, nil
}

// openStore opens the history and snippet database.
func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	s, err := store.Open(ctx, cfg.Storage.HistoryFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	return s, nil
}
