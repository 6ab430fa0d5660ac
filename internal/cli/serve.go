package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the health server and stuck sync cleaner",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app, err := opts.app(ctx)
			if err != nil {
				return err
			}

			slog.Info("prepfox-ops started", "config", opts.cfgPath, "pid", os.Getpid())
			runErr := app.Start(ctx)
			slog.Info("Shutting down...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := app.Stop(shutdownCtx); err != nil {
				slog.Error("Error during shutdown", "error", err)
			}
			return runErr
		},
	}
}
