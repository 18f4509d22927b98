package main

import (
	"os"
	"os/signal"

	"github.com/sandevgo/chorus/internal/transport/cli"
	"github.com/spf13/cobra"
)

var (
	chatSession   string
	showReasoning bool
)

var chatCmd = &cobra.Command{
	Use:          "chat",
	Short:        "Chat in the terminal",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		var flushLog func()
		ctx, flushLog = setupLogger(ctx)
		defer flushLog()

		app, err := NewApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close(ctx)

		if chatSession != "" {
			app.Focus.Switch(cli.ChatID, chatSession)
		}

		rl, err := cli.NewReadLine(app.Config, app.Sessions, app.Router, app.Focus, showReasoning)
		if err != nil {
			return err
		}
		defer rl.Shutdown(ctx)

		return rl.Start(ctx)
	},
}

func init() {
	chatCmd.Flags().StringVarP(&chatSession, "session", "s", "", "continue a saved session")
	chatCmd.Flags().BoolVar(&showReasoning, "reasoning", false, "show the model's reasoning")
	rootCmd.AddCommand(chatCmd)
}
