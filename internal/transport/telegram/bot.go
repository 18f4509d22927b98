package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sandevgo/chorus/internal/config"
	"github.com/sandevgo/chorus/internal/core"
	"github.com/sandevgo/chorus/internal/service/command"
	"github.com/sandevgo/chorus/internal/service/pipeline"
	"github.com/sandevgo/chorus/internal/service/session"
	"github.com/sandevgo/chorus/pkg/log"
	tele "gopkg.in/telebot.v3"
)

const baseContextKey = "base_context"

type Bot struct {
	bot      *tele.Bot
	cfg      *config.TelegramConfig
	sessions *session.Manager
	router   core.CmdRouter
	focus    *command.Focus
	sender   *sender
}

func NewBot(
	ctx context.Context,
	cfg *config.TelegramConfig,
	sessions *session.Manager,
	router core.CmdRouter,
	focus *command.Focus,
) (*Bot, error) {
	pref := tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c tele.Context) {
			log.FromCtx(ctx).Error().Err(err).Msg("telegram handler failed")
		},
	}

	b, err := tele.NewBot(pref)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	bot := &Bot{
		bot:      b,
		cfg:      cfg,
		sessions: sessions,
		router:   router,
		focus:    focus,
		sender:   newSender(b),
	}

	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			c.Set(baseContextKey, ctx)
			return next(c)
		}
	})

	// Only the owner may talk to the bot
	b.Use(func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			if c.Sender() == nil || c.Sender().ID != cfg.OwnerID {
				return nil
			}
			return next(c)
		}
	})

	b.Handle(tele.OnText, bot.handleMessage)

	return bot, nil
}

func (b *Bot) Start(ctx context.Context) error {
	log.FromCtx(ctx).Info().Msg("starting telegram bot")
	b.bot.Start()
	return nil
}

func (b *Bot) Shutdown(ctx context.Context) error {
	b.bot.Stop()
	return nil
}

func chatKey(c tele.Context) string {
	return fmt.Sprintf("telegram-%d", c.Chat().ID)
}

func (b *Bot) handleMessage(c tele.Context) error {
	ctx := c.Get(baseContextKey).(context.Context)
	chat := chatKey(c)

	if out, ok := b.router.Execute(ctx, chat, c.Text()); ok {
		return b.sender.sendMarkdown(ctx, c.Recipient(), out)
	}

	sessionID := b.focus.Current(chat)
	ctx = log.WithFields(ctx, "chat", chat)
	logger := log.FromCtx(ctx)

	_ = c.Notify(tele.Typing)
	status := newStatus(b.bot, c.Recipient(), b.cfg.ShowProgress)

	outcome, _, err := b.sessions.Submit(ctx, sessionID, c.Text(), func(p core.Progress) {
		_ = c.Notify(tele.Typing)
		status.update(p)
	})
	if err != nil {
		if errors.Is(err, core.ErrSessionBusy) {
			return c.Send(pipeline.UserMessage(err) + " Send /cancel to stop it.")
		}
		return c.Send(pipeline.UserMessage(err))
	}

	// handlers run on their own goroutine; waiting here keeps the reply ordered
	o := <-outcome
	status.clear()

	if o.Err != nil {
		logger.Error().Err(o.Err).Msg("run failed")
		return c.Send(pipeline.UserMessage(o.Err))
	}
	return b.sender.sendMarkdown(ctx, c.Recipient(), o.Result.DisplayContent)
}

// status is a single message edited in place as the run progresses.
type status struct {
	bot     *tele.Bot
	to      tele.Recipient
	enabled bool
	msg     *tele.Message
}

func newStatus(bot *tele.Bot, to tele.Recipient, enabled bool) *status {
	return &status{bot: bot, to: to, enabled: enabled}
}

func (s *status) update(p core.Progress) {
	if !s.enabled || p.State == core.StateDone || p.State == core.StateFailed {
		return
	}
	text := "⏳ " + p.Message + "…"
	if s.msg == nil {
		s.msg, _ = s.bot.Send(s.to, text, tele.Silent)
		return
	}
	if m, err := s.bot.Edit(s.msg, text); err == nil {
		s.msg = m
	}
}

func (s *status) clear() {
	if s.msg != nil {
		_ = s.bot.Delete(s.msg)
		s.msg = nil
	}
}
