package main

import (
	"fmt"

	"github.com/sandevgo/chorus/internal/service/command"
	"github.com/sandevgo/chorus/internal/service/ui"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage saved sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:          "list",
	Short:        "List saved sessions",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		app, err := NewApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close(ctx)

		list, err := app.Sessions.List(ctx)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(list) == 0 {
			fmt.Fprintln(out, ui.DescStyle.Render("No sessions yet."))
			return nil
		}
		for _, s := range list {
			fmt.Fprintf(out, "%s  %s\n", s.ID, command.FormatSession(s, false))
		}
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:          "show <id>",
	Short:        "Print the turns of a session",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		app, err := NewApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close(ctx)

		turns, err := app.Sessions.History(ctx, args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, t := range turns {
			fmt.Fprintln(out, ui.UsageStyle.Render("› "+t.UserMessage))
			fmt.Fprintln(out, t.DisplayContent)
			fmt.Fprintln(out)
		}
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:          "delete <id>",
	Short:        "Delete a saved session",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, flushLog := setupLogger(cmd.Context())
		defer flushLog()

		app, err := NewApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close(ctx)

		if err := app.Sessions.Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
		return nil
	},
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}
