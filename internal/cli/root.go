// Package cli implements the agenttrail command line interface.
package cli

import (
	"log/slog"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/AgentTrail/AgentTrail/internal/config"
	"github.com/AgentTrail/AgentTrail/internal/store"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/AgentTrail/AgentTrail/internal/cli.version=1.2.3"
	version = "0.4.1"
	logo    = "\n" +
		"     _                    _  _____           _ _\n" +
		"    / \\   __ _  ___ _ __ | ||_   _| __ __ _(_) |\n" +
		"   / _ \\ / _` |/ _ \\ '_ \\| __|| || '__/ _` | | |\n" +
		"  / ___ \\ (_| |  __/ | | | |_ | || | | (_| | | |\n" +
		" /_/   \\_\\__, |\\___|_| |_|\\__||_||_|  \\__,_|_|_|\n" +
		"         |___/\n"
)

var rootCmd = &cobra.Command{
	Use:   "agenttrail",
	Short: "AgentTrail - agent session recorder and timeline viewer",
	Long:  color.CyanString(logo) + "\nRecords agent CLI event streams into one canonical timeline.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		setupLogging(cfg.Log)
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

func setupLogging(cfg config.LogConfig) {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.EqualFold(cfg.Format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}

// openStore loads config and opens the task database.
func openStore() (*store.Store, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if err := config.EnsureDir(cfg.Paths.DataDir); err != nil {
		return nil, nil, err
	}
	st, err := store.New(cfg.Paths.DBPath)
	if err != nil {
		return nil, nil, err
	}
	return st, cfg, nil
}
