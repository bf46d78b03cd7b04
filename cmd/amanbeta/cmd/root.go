// Package cmd provides the CLI commands for amanbeta.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amanbeta/internal/config"
	berrors "github.com/Aman-CERP/amanbeta/internal/errors"
	"github.com/Aman-CERP/amanbeta/internal/logging"
	"github.com/Aman-CERP/amanbeta/internal/profiling"
	"github.com/Aman-CERP/amanbeta/pkg/version"
)

// Persistent flags
var (
	debugMode      bool
	configPath     string
	loggingCleanup func()
	profileOpts    profiling.Options
	profiler       *profiling.Session
)

// NewRootCmd creates the root command for amanbeta CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "amanbeta",
		Short: "Faceted search across your personal SQLite databases",
		Long: `amanbeta builds one full-text index over many SQLite databases.

A mapping document says, for each source database and record type, which
SQL selects rows for the index and how a result is displayed. Index with
'amanbeta index', then query with 'amanbeta search', over HTTP with
'amanbeta serve', or from an AI client with 'amanbeta mcp'.`,
		Version:           version.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := startLogging(cmd, args); err != nil {
				return err
			}
			return startProfiling()
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			finish()
		},
	}

	cmd.SetVersionTemplate("amanbeta version {{.Version}}\n")

	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false,
		"Debug logging to ~/.amanbeta/logs/ and inline render errors")
	cmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Config file (default: amanbeta.yaml in the current directory)")
	cmd.PersistentFlags().StringVar(&profileOpts.CPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Heap, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// startLogging installs the default logger: warnings to stderr, or with
// --debug everything to the log file as well.
func startLogging(cmd *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	if debugMode {
		cfg = logging.DebugConfig()
	}
	if cmd.Name() == "mcp" {
		// stdout carries the protocol; keep logs in the file
		level := "info"
		if debugMode {
			level = "debug"
		}
		cfg = logging.ProtocolConfig(level)
	}

	logger, cleanup, err := logging.Setup(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	if debugMode {
		slog.Debug("Debug logging enabled",
			slog.String("log_file", logging.DefaultLogPath()),
			slog.String("version", version.Version))
	}
	return nil
}

// useLogLevel reinstalls the default logger at the configured level for the
// long-running commands. --debug keeps its own setup.
func useLogLevel(level string, protocol bool) error {
	if debugMode {
		return nil
	}
	cfg := logging.DefaultConfig()
	cfg.Level = level
	if protocol {
		cfg = logging.ProtocolConfig(level)
	}
	stopLogging()
	cleanup, err := logging.SetupDefault(cfg)
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	loggingCleanup = cleanup
	return nil
}

func startProfiling() error {
	if !profileOpts.Enabled() {
		return nil
	}
	s, err := profiling.Start(profileOpts)
	if err != nil {
		return err
	}
	profiler = s
	return nil
}

// finish flushes profiles and closes the log file.
func finish() {
	if profiler != nil {
		if err := profiler.Stop(); err != nil {
			slog.Warn("profile_write_failed", slog.String("error", err.Error()))
		}
		profiler = nil
	}
	profileOpts = profiling.Options{}
	stopLogging()
}

func stopLogging() {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
}

// loadConfig loads the configuration for the working directory, honouring
// --config and --debug.
func loadConfig() (*config.Config, error) {
	dir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	cfg, err := config.Load(dir, configPath)
	if err != nil {
		return nil, err
	}
	if debugMode {
		cfg.Server.Debug = true
	}
	return cfg, nil
}

// indexAndMapping resolves the index and mapping paths from the positional
// arguments, falling back to the configuration.
func indexAndMapping(cfg *config.Config, args []string) (string, string) {
	indexPath, mappingPath := cfg.Index.Path, cfg.Mapping.Path
	if len(args) > 0 {
		indexPath = args[0]
	}
	if len(args) > 1 {
		mappingPath = args[1]
	}
	return indexPath, mappingPath
}

// Execute runs the root command, printing errors in the CLI format.
func Execute() error {
	err := NewRootCmd().Execute()
	finish()
	if err != nil {
		_, _ = fmt.Fprint(os.Stderr, berrors.FormatForCLI(err))
	}
	return err
}
