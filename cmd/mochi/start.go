package main

import (
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/shikidmsh-rgb/mochibot/pkg/log"
	"github.com/shikidmsh-rgb/mochibot/pkg/srv"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start MochiBot",
	Long:  `Initializes storage, the LLM providers, the Telegram transport, and the background loops (heartbeat, reminders, nightly maintenance).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		logger := log.FromCtx(ctx)
		logger.Info().Msg("starting mochibot")

		services := NewServices(ctx)

		srv.StartServices(ctx, services)

		srv.ShutdownServices(ctx, services)
		logger.Info().Msg("mochibot has been shut down gracefully")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(startCmd)
}
