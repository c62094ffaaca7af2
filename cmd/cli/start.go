package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/taskline/taskline/internal/config"
	"github.com/taskline/taskline/internal/initialization"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewStartCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the Taskline server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart()
		},
	}
}

func runStart() error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		// Configuration problems (a missing encryption secret above all)
		// stop startup; there is nothing sensible to fall back to.
		return err
	}

	app, err := initialization.NewApp(ctx, cfg)
	if err != nil {
		return err
	}

	go func() {
		log.Info().Str("address", app.HTTPAddress).Msg("Starting HTTP server")

		if err := app.HTTPServer.Listen(app.HTTPAddress); err != nil {
			log.Error().Err(err).Msg("HTTP server stopped")
			cancel()
		}
	}()

	<-ctx.Done()

	log.Info().Msg("Shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	app.Shutdown(shutdownCtx)

	return nil
}
