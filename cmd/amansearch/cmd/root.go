// Package cmd provides the CLI commands for amansearch.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Aman-CERP/amansearch/internal/config"
	amerrors "github.com/Aman-CERP/amansearch/internal/errors"
	"github.com/Aman-CERP/amansearch/internal/logging"
	"github.com/Aman-CERP/amansearch/internal/profiling"
	"github.com/Aman-CERP/amansearch/pkg/version"
)

// Persistent flag names.
const (
	flagConfig = "config"
	flagDebug  = "debug"
)

// NewRootCmd creates the root command for the amansearch CLI.
func NewRootCmd() *cobra.Command {
	var (
		debugMode      bool
		profileOpts    profiling.Options
		profile        *profiling.Session
		loggingCleanup func()
	)

	cmd := &cobra.Command{
		Use:   "amansearch",
		Short: "Full-text search over document collections",
		Long: `amansearch compiles search requests (free text, quoted phrases,
site: operators, tag and facet filters, date windows) into engine queries,
runs them across one or more collections, and returns ranked, highlighted
results with facet counts and spelling suggestions.

Index documents with 'amansearch index', query them with 'amansearch search',
or expose the search tool to AI clients with 'amansearch serve'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if profileOpts.Enabled() {
				s, err := profiling.Start(profileOpts)
				if err != nil {
					return err
				}
				profile = s
			}

			// serve installs its own file-only logger.
			if cmd.Name() == "serve" {
				return nil
			}
			cleanup, err := setupLogging(cmd, debugMode)
			if err != nil {
				return fmt.Errorf("failed to setup logging: %w", err)
			}
			loggingCleanup = cleanup
			return nil
		},
		PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
			if loggingCleanup != nil {
				loggingCleanup()
				loggingCleanup = nil
			}
			return profile.Stop()
		},
	}

	cmd.SetVersionTemplate("amansearch version {{.Version}}\n")

	cmd.PersistentFlags().String(flagConfig, "", "Config file (default: user config merged with ./.amansearch.yaml)")
	cmd.PersistentFlags().BoolVar(&debugMode, flagDebug, false, "Enable debug logging, also echoed to stderr")
	cmd.PersistentFlags().StringVar(&profileOpts.CPUPath, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.HeapPath, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileOpts.TracePath, "profile-trace", "", "Write execution trace to file")

	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newCollectionsCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	root := NewRootCmd()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(root.ErrOrStderr(), amerrors.FormatForUser(err, isDebug(root)))
		return err
	}
	return nil
}

// loadConfig loads the explicit --config file, or the merged user and
// project configuration for the working directory.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if path, _ := cmd.Flags().GetString(flagConfig); path != "" {
		return config.LoadFile(path)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	return config.Load(wd)
}

// setupLogging installs the CLI logger. Records go to the rotating log
// file; --debug lowers the level and echoes them to stderr. A config that
// fails to load is reported by the command itself, so defaults apply here.
func setupLogging(cmd *cobra.Command, debug bool) (func(), error) {
	logCfg := logging.DefaultConfig()
	logCfg.WriteToStderr = false
	if cfg, err := loadConfig(cmd); err == nil {
		logCfg.Level = cfg.Logging.Level
		if cfg.Logging.FilePath != "" {
			logCfg.FilePath = cfg.Logging.FilePath
		}
		logCfg.MaxSizeMB = cfg.Logging.MaxSizeMB
		logCfg.MaxFiles = cfg.Logging.MaxFiles
	}
	if debug {
		logCfg.Level = "debug"
		logCfg.WriteToStderr = true
	}

	logger, cleanup, err := logging.Setup(logCfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	logger.Debug("cli_logging_initialized",
		slog.String("command", cmd.CommandPath()),
		slog.String("log_file", logCfg.FilePath))
	return cleanup, nil
}

func isDebug(cmd *cobra.Command) bool {
	debug, _ := cmd.PersistentFlags().GetBool(flagDebug)
	return debug
}
