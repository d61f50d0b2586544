package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/v0xg/deskreplay/internal/config"
	"github.com/v0xg/deskreplay/internal/playback"
)

var (
	configPath string
	logLevel   string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "deskreplay",
	Short: "Replay recorded desktop input sequences with timing fidelity",
	Long: `deskreplay replays recorded mouse and keyboard sequences against a target,
keeping the original spacing between actions (scaled by a speed factor),
with pause, resume and stop available while it runs.

Example:
  deskreplay play recording.json --speed 2 --loops 3 --url https://myapp.com`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "Config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default: from config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show detailed progress")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config file and applies the root flags
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if verbose {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

// setupLogging installs a text handler on stderr at the configured level
func setupLogging(cfg *config.Config) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger, nil
}

// engineOptions maps config onto playback.Options
func engineOptions(cfg *config.Config, logger *slog.Logger) playback.Options {
	return playback.Options{
		Logger:           logger,
		InterActionDelay: cfg.InterActionDelay(),
		DriftTolerance:   cfg.DriftTolerance(),
		PausePoll:        cfg.PausePoll(),
		Retry: &playback.RetryPolicy{
			MaxAttempts:  cfg.Playback.RetryAttempts,
			InitialDelay: cfg.RetryDelay(),
			Multiplier:   1.0,
			MaxDelay:     cfg.RetryDelay(),
		},
	}
}

func logVerbose(format string, args ...any) {
	if verbose {
		fmt.Printf(format+"\n", args...)
	}
}
