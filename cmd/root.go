// Package cmd assembles the evmtrack command line.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evmtrack/evmtrack/cmd/migrate"
	"github.com/evmtrack/evmtrack/cmd/serve"
	"github.com/evmtrack/evmtrack/internal/buildinfo"
	"github.com/evmtrack/evmtrack/internal/conf"
	"github.com/evmtrack/evmtrack/internal/logger"
)

// RootCommand creates and returns the root command. Subcommands receive
// settings that are filled in before they run.
func RootCommand() *cobra.Command {
	settings := &conf.Settings{}
	var (
		configFile string
		debug      bool
	)

	rootCmd := &cobra.Command{
		Use:     "evmtrack",
		Short:   "EVM custody and commissioning tracker",
		Version: buildinfo.Current().Version(),
	}

	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to config.yaml (default: search ., ~/.config/evmtrack, /etc/evmtrack)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug output")

	rootCmd.AddCommand(
		serve.Command(settings),
		migrate.Command(settings),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return initialize(settings, configFile, debug)
	}

	return rootCmd
}

// initialize loads configuration and sets up the global logger before any
// subcommand runs.
func initialize(settings *conf.Settings, configFile string, debug bool) error {
	loaded, err := conf.LoadFrom(configFile)
	if err != nil {
		return err
	}
	if debug {
		loaded.Main.Debug = true
		loaded.Logging.DefaultLevel = string(logger.LogLevelDebug)
		loaded.Logging.Console.Level = string(logger.LogLevelDebug)
	}
	*settings = *loaded

	central, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(central)
	return nil
}
