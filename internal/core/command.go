package core

import "context"

type CmdRouter interface {
	Execute(ctx context.Context, chatID, input string) (string, bool)
	ListCommands() []Command
}

// Command is a slash command shared by the chat transports.
// chatID identifies the conversation surface, not the session.
type Command interface {
	Name() string
	Description() string
	Execute(ctx context.Context, chatID string, args []string) (string, error)
}
