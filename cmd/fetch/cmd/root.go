// Package cmd provides the CLI commands for fetch.
package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/fetchgo/internal/app"
	"github.com/Aman-CERP/fetchgo/internal/config"
	"github.com/Aman-CERP/fetchgo/internal/logging"
	"github.com/Aman-CERP/fetchgo/pkg/version"
)

var (
	debugMode      bool
	appDataDir     string
	loggingCleanup func()
)

// NewRootCmd creates the root command for the fetch CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "fetch",
		Short:   "Local-first file indexing and semantic search",
		Version: version.Version,
	}
	cmd.SetVersionTemplate("fetch version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to ~/.fetch/logs/")
	cmd.PersistentFlags().StringVar(&appDataDir, "app-data-dir", config.DefaultAppDataDir(), "Application data directory")

	cmd.PersistentPreRunE = startLogging
	cmd.PersistentPostRunE = stopLogging

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newQueryByFileCmd())
	cmd.AddCommand(newDropCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

func startLogging(_ *cobra.Command, _ []string) error {
	if !debugMode {
		return nil
	}
	logger, cleanup, err := logging.Setup(logging.DebugConfig())
	if err != nil {
		return fmt.Errorf("setup debug logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	slog.Info("debug logging enabled", "log_file", logging.DefaultLogPath())
	return nil
}

func stopLogging(_ *cobra.Command, _ []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// openApp loads config rooted at appDataDir and opens every table and
// session pool it names, returning the wired App ready for a single CLI
// invocation.
func openApp() (*app.App, error) {
	configPath := filepath.Join(appDataDir, "config.yaml")
	cfg, err := config.Load(configPath, appDataDir)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return app.Open(cfg, slog.Default())
}
