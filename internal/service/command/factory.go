package command

import (
	"context"

	"github.com/sandevgo/chorus/internal/core"
)

// Sessions is the part of the session manager the commands drive.
type Sessions interface {
	Create(ctx context.Context) (core.Session, error)
	List(ctx context.Context) ([]core.Session, error)
	Delete(ctx context.Context, sessionID string) error
	Cancel(sessionID string) bool
}

func NewCommands(sessions Sessions, focus *Focus) []core.Command {
	return []core.Command{
		NewNewCommand(sessions, focus),
		NewCancelCommand(sessions, focus),
		NewSessionsCommand(sessions, focus),
		NewSwitchCommand(sessions, focus),
		NewDeleteCommand(sessions, focus),
	}
}
