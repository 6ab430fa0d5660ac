package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/prepfox/prepfox-ops/internal/control"
	"github.com/prepfox/prepfox-ops/internal/core/config"
)

const defaultConfigPath = "config.yaml"

type rootOptions struct {
	cfgPath string
	isDebug bool
}

// NewRootCmd builds the prepfox-ops command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "prepfox-ops",
		Short:         "PrepFox operations service",
		Long:          `prepfox-ops keeps integration sync statuses fresh, reconciles stuck syncs and tracks operations that failed after retries.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.cfgPath, "config", defaultConfigPath, "config file")
	cmd.PersistentFlags().BoolVar(&opts.isDebug, "debug", false, "enable debug logging")

	cmd.AddCommand(
		newServeCmd(opts),
		newCleanupCmd(opts),
		newRefreshCmd(opts),
		newFailedCmd(opts),
	)
	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

// load reads .env and the config file, then initializes logging.
// A missing default config file falls back to environment-only config.
func (o *rootOptions) load() (*config.AppConfig, error) {
	_ = godotenv.Load()

	path := o.cfgPath
	if path == defaultConfigPath {
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			path = ""
		}
	}

	cfg, err := config.Load(path)
	if err != nil {
		stylelog.InitDefault()
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	setupLogging(cfg.Logging, o.isDebug)
	return cfg, nil
}

func (o *rootOptions) app(ctx context.Context) (*control.App, error) {
	cfg, err := o.load()
	if err != nil {
		return nil, err
	}
	return control.New(ctx, cfg, slog.Default())
}

func setupLogging(cfg config.LoggingConfig, debug bool) {
	level := slog.LevelInfo
	switch {
	case debug || cfg.Level == "debug":
		level = slog.LevelDebug
	case cfg.Level == "warn":
		level = slog.LevelWarn
	case cfg.Level == "error":
		level = slog.LevelError
	}

	if cfg.Format == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return
	}

	stylelog.InitDefault(&tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	})
}
