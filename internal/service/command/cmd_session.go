package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/sandevgo/chorus/internal/core"
)

const shortIDLen = 8

type NewCommand struct {
	sessions Sessions
	focus    *Focus
}

func NewNewCommand(sessions Sessions, focus *Focus) *NewCommand {
	return &NewCommand{sessions: sessions, focus: focus}
}

func (c *NewCommand) Name() string        { return "new" }
func (c *NewCommand) Description() string { return "Start a new session" }

func (c *NewCommand) Execute(ctx context.Context, chatID string, args []string) (string, error) {
	s, err := c.sessions.Create(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	c.focus.Switch(chatID, s.ID)
	return newReply().done("New session `%s`", shortID(s.ID)).String(), nil
}

type CancelCommand struct {
	sessions Sessions
	focus    *Focus
}

func NewCancelCommand(sessions Sessions, focus *Focus) *CancelCommand {
	return &CancelCommand{sessions: sessions, focus: focus}
}

func (c *CancelCommand) Name() string        { return "cancel" }
func (c *CancelCommand) Description() string { return "Stop the answer in progress" }

func (c *CancelCommand) Execute(ctx context.Context, chatID string, args []string) (string, error) {
	if !c.sessions.Cancel(c.focus.Current(chatID)) {
		return "Nothing to cancel.", nil
	}
	return newReply().done("Canceled").String(), nil
}

type SessionsCommand struct {
	sessions Sessions
	focus    *Focus
}

func NewSessionsCommand(sessions Sessions, focus *Focus) *SessionsCommand {
	return &SessionsCommand{sessions: sessions, focus: focus}
}

func (c *SessionsCommand) Name() string        { return "sessions" }
func (c *SessionsCommand) Description() string { return "List saved sessions" }

func (c *SessionsCommand) Execute(ctx context.Context, chatID string, args []string) (string, error) {
	list, err := c.sessions.List(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(list) == 0 {
		return "No sessions yet.", nil
	}

	current := c.focus.Current(chatID)
	items := make([]string, 0, len(list))
	for _, s := range list {
		items = append(items, FormatSession(s, s.ID == current))
	}
	return newReply().
		heading("Sessions").
		bullets(items).
		usage("/switch <id>", "").
		String(), nil
}

type SwitchCommand struct {
	sessions Sessions
	focus    *Focus
}

func NewSwitchCommand(sessions Sessions, focus *Focus) *SwitchCommand {
	return &SwitchCommand{sessions: sessions, focus: focus}
}

func (c *SwitchCommand) Name() string        { return "switch" }
func (c *SwitchCommand) Description() string { return "Continue a saved session" }

func (c *SwitchCommand) Execute(ctx context.Context, chatID string, args []string) (string, error) {
	if len(args) == 0 {
		return newReply().usage("/switch <id>", "/switch 3f2a9c1e").String(), nil
	}

	s, err := resolve(ctx, c.sessions, args[0])
	if err != nil {
		return "", err
	}
	c.focus.Switch(chatID, s.ID)
	return newReply().
		done("Switched session").
		field("Now on", FormatSession(s, false)).
		String(), nil
}

type DeleteCommand struct {
	sessions Sessions
	focus    *Focus
}

func NewDeleteCommand(sessions Sessions, focus *Focus) *DeleteCommand {
	return &DeleteCommand{sessions: sessions, focus: focus}
}

func (c *DeleteCommand) Name() string        { return "delete" }
func (c *DeleteCommand) Description() string { return "Delete a saved session" }

func (c *DeleteCommand) Execute(ctx context.Context, chatID string, args []string) (string, error) {
	if len(args) == 0 {
		return newReply().usage("/delete <id>", "/delete 3f2a9c1e").String(), nil
	}

	s, err := resolve(ctx, c.sessions, args[0])
	if err != nil {
		return "", err
	}
	if err := c.sessions.Delete(ctx, s.ID); err != nil {
		return "", err
	}
	if c.focus.Current(chatID) == s.ID {
		c.focus.Switch(chatID, "")
	}
	return newReply().done("Deleted `%s`", shortID(s.ID)).String(), nil
}

// resolve finds the single session whose ID starts with prefix.
func resolve(ctx context.Context, sessions Sessions, prefix string) (core.Session, error) {
	list, err := sessions.List(ctx)
	if err != nil {
		return core.Session{}, err
	}

	var found []core.Session
	for _, s := range list {
		if s.ID == prefix {
			return s, nil
		}
		if strings.HasPrefix(s.ID, prefix) {
			found = append(found, s)
		}
	}
	switch len(found) {
	case 0:
		return core.Session{}, fmt.Errorf("%q: %w", prefix, core.ErrSessionNotFound)
	case 1:
		return found[0], nil
	default:
		return core.Session{}, fmt.Errorf("%q matches %d sessions", prefix, len(found))
	}
}

// FormatSession renders one line of a session list.
func FormatSession(s core.Session, current bool) string {
	title := s.Title
	if title == "" {
		title = "(untitled)"
	}
	line := fmt.Sprintf("`%s` %s · %d turns · %s", shortID(s.ID), title, s.Turns, s.UpdatedAt.Format("2006-01-02 15:04"))
	if current {
		line += " ◀"
	}
	return line
}

func shortID(id string) string {
	if len(id) > shortIDLen {
		return id[:shortIDLen]
	}
	return id
}
