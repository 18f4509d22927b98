package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/sandevgo/chorus/internal/config"
	"github.com/sandevgo/chorus/internal/core"
	"github.com/sandevgo/chorus/internal/service/command"
	"github.com/sandevgo/chorus/internal/service/pipeline"
	"github.com/sandevgo/chorus/internal/service/session"
	"github.com/sandevgo/chorus/internal/service/ui"
	"github.com/sandevgo/chorus/pkg/log"
)

// ChatID is the focus key of the terminal chat.
const ChatID = "cli-local"

type ReadLine struct {
	cfg           *config.AppConfig
	sessions      *session.Manager
	router        core.CmdRouter
	focus         *command.Focus
	showReasoning bool
	rl            *readline.Instance
}

func NewReadLine(
	cfg *config.AppConfig,
	sessions *session.Manager,
	router core.CmdRouter,
	focus *command.Focus,
	showReasoning bool,
) (*ReadLine, error) {
	if err := os.MkdirAll(cfg.RuntimePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create runtime directory: %w", err)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          ui.UsageStyle.Render("chorus") + " › ",
		HistoryFile:     cfg.GetHistoryFilePath(),
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, err
	}

	return &ReadLine{
		cfg:           cfg,
		sessions:      sessions,
		router:        router,
		focus:         focus,
		showReasoning: showReasoning,
		rl:            rl,
	}, nil
}

func (r *ReadLine) Start(ctx context.Context) error {
	logger := log.FromCtx(ctx)
	logger.Debug().Msg("readline chat started")
	fmt.Fprintln(r.rl.Stdout(), ui.DescStyle.Render("Ask anything. /help lists commands, 'exit' quits."))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := r.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				if len(line) == 0 {
					return nil
				}
				continue
			} else if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		line = strings.TrimSpace(line)
		if line == "exit" || line == "quit" {
			return nil
		}
		if line == "" {
			continue
		}

		if out, ok := r.router.Execute(ctx, ChatID, line); ok {
			fmt.Fprintln(r.rl.Stdout(), out)
			continue
		}

		r.ask(ctx, line)
	}
}

func (r *ReadLine) ask(ctx context.Context, query string) {
	w := r.rl.Stdout()

	res, err := r.sessions.Ask(ctx, r.focus.Current(ChatID), query, func(p core.Progress) {
		if p.State == core.StateDone {
			return
		}
		fmt.Fprintln(w, ui.Progress(p))
	})
	if err != nil {
		log.FromCtx(ctx).Error().Err(err).Msg("run failed")
		fmt.Fprintln(w, ui.Error(pipeline.UserMessage(err)))
		return
	}

	fmt.Fprintln(w, ui.Answer(res, r.showReasoning))
}

func (r *ReadLine) Shutdown(ctx context.Context) error {
	if r.rl != nil {
		return r.rl.Close()
	}
	return nil
}
