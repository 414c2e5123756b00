// nexora-track runs a development collector for Nexora tracker payloads and
// drives simulated visitors against it.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/nexora/nexora-analytics/analytics"
	"github.com/nexora/nexora-analytics/internal/config"
)

var (
	configPath string
	debugFlag  bool

	cfg    *config.Config
	logger *slog.Logger
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "nexora-track",
	Short: "Nexora tracking collector and visitor simulator",
	Long: `nexora-track speaks the Nexora tracking wire protocol.

Settings are read from an optional YAML file, then NEXORA_* environment
variables (NEXORA_API_KEY, NEXORA_ENDPOINT, NEXORA_COLLECT_ADDR,
NEXORA_REDIS_ADDR, NEXORA_DEBUG), then flags.`,
	Version:       analytics.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("debug") {
			loaded.Tracker.Debug = debugFlag
		}
		cfg = loaded
		logger = newLogger(cfg.Tracker.Debug)
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the tracker version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), analytics.Version)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(versionCmd)
}

// newLogger logs text to a terminal and JSON otherwise.
func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		return slog.New(slog.NewTextHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, opts))
}
