package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/observer/internal/config"
	"github.com/aretw0/observer/internal/logging"
	"github.com/spf13/cobra"
)

var (
	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "observer",
	Short: "Observer reports attribute changes of related entities",
	Long: `Observer watches attributes of persisted entities and reports every change,
including changes that reach them through relationships.

The CLI replays YAML scenarios against a memory, redis or sqlite store and
serves the watcher registry and Prometheus metrics over HTTP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			loaded.LogLevel, _ = cmd.Flags().GetString("log-level")
		}
		if cmd.Flags().Changed("store") {
			loaded.Store.Driver, _ = cmd.Flags().GetString("store")
		}
		if err := loaded.Validate(); err != nil {
			return err
		}

		level, _ := logging.ParseLevel(loaded.LogLevel)
		cfg = loaded
		logger = logging.New(level)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Persistent flags (available to all commands)
	rootCmd.PersistentFlags().String("config", "", "Path to the YAML config file (default $"+config.EnvPath+")")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().String("store", config.DriverMemory, "Store driver: memory, redis or sqlite")
}
