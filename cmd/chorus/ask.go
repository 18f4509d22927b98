package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/sandevgo/chorus/internal/core"
	"github.com/sandevgo/chorus/internal/service/pipeline"
	"github.com/sandevgo/chorus/internal/service/ui"
	"github.com/spf13/cobra"
)

var (
	askSession string
	askJSON    bool
)

var askCmd = &cobra.Command{
	Use:          "ask <question>",
	Short:        "Answer a single question and exit",
	Args:         cobra.MinimumNArgs(1),
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

		out := cmd.OutOrStdout()
		errOut := cmd.ErrOrStderr()

		res, err := app.Sessions.Ask(ctx, askSession, strings.Join(args, " "), func(p core.Progress) {
			if !askJSON && p.State != core.StateDone {
				fmt.Fprintln(errOut, ui.Progress(p))
			}
		})
		if err != nil {
			fmt.Fprintln(errOut, ui.Error(pipeline.UserMessage(err)))
			return errors.New("run failed")
		}

		if askJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		}
		fmt.Fprintln(out, ui.Answer(res, showReasoning))
		fmt.Fprintln(errOut, ui.DescStyle.Render("session "+res.SessionID))
		return nil
	},
}

func init() {
	askCmd.Flags().StringVarP(&askSession, "session", "s", "", "ask within a saved session")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the full result as JSON")
	askCmd.Flags().BoolVar(&showReasoning, "reasoning", false, "show the model's reasoning")
	rootCmd.AddCommand(askCmd)
}
