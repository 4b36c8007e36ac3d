package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/apex/log"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
	"github.com/veedubyou/stem-splitter/src/server/application"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			app, err := application.NewApp(cfg)
			if err != nil {
				return err
			}

			signalCtx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			startErr := make(chan error, 1)
			go func() {
				log.WithFields(log.Fields{
					"port":          cfg.Server.Port,
					"uploadRoot":    cfg.Paths.UploadRoot,
					"processedRoot": cfg.Paths.ProcessedRoot,
				}).Info("Starting stem splitter")
				startErr <- app.Start()
			}()

			select {
			case err := <-startErr:
				_ = app.Stop()
				return err

			case <-signalCtx.Done():
				log.Info("Shutting down stem splitter")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()

				if err := app.Shutdown(shutdownCtx); err != nil {
					return errors.Wrap(err, "Failed to shut down cleanly")
				}
				return nil
			}
		},
	}
}
