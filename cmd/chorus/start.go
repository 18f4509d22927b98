package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/sandevgo/chorus/pkg/log"
	"github.com/sandevgo/chorus/pkg/srv"
	"github.com/spf13/cobra"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the Chorus services",
	Long:  `Starts the configured long-running services (Telegram bot, metrics endpoint) and waits for a shutdown signal.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		logger := log.FromCtx(ctx)
		logger.Info().Msg("starting chorus")

		app, err := NewApp(ctx)
		if err != nil {
			return err
		}
		services, err := app.Services(ctx)
		if err != nil {
			app.Close(ctx)
			return err
		}

		srv.StartServices(ctx, services)
		srv.ShutdownServices(ctx, services)
		logger.Info().Msg("chorus has been shut down gracefully")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}
