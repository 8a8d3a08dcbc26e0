package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Yates-Labs/lectern/internal/config"
	"github.com/Yates-Labs/lectern/internal/logging"
)

var (
	configPath string
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "lectern",
	Short: "Lectern - answer questions in a lecturer's voice from their transcripts",
	Long: `Lectern indexes lecture transcripts and answers questions in the lecturer's
teaching style, grounding each answer in retrieved transcript passages.

It builds the transcript index, extracts a teaching style profile, answers
questions from the command line or over HTTP, and scores answer quality
against a fixed evaluation battery.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file path (default ~/.config/lectern/config.toml, then ./lectern.toml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, errorStyle.Render("Error:"), err)
		}
		stop()
		os.Exit(1)
	}
}

// loadRuntime resolves the configuration and builds the process logger.
func loadRuntime() (*config.Config, *slog.Logger, error) {
	cfg, resolved, exists, err := config.Load(strings.TrimSpace(configPath))
	if err != nil {
		return nil, nil, err
	}

	level := cfg.Logging.Level
	if strings.TrimSpace(logLevel) != "" {
		level = logLevel
	}
	logger, err := logging.New(logging.Options{Level: level, Format: cfg.Logging.Format})
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", config.ErrInvalidConfig, err)
	}

	if exists {
		logger.Debug("configuration loaded", "path", resolved)
	} else {
		logger.Debug("no configuration file, using defaults", "path", resolved)
	}
	return cfg, logger, nil
}
