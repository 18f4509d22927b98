package synthesis

import (
	"context"
	"strings"

	"github.com/sandevgo/chorus/internal/config"
	"github.com/sandevgo/chorus/internal/core"
	"github.com/sandevgo/chorus/pkg/conv"
)

const fallbackTitleLen = 30

type Titler struct {
	llm    core.Invoker
	prompt config.Prompt
}

func NewTitler(llm core.Invoker, prompts *config.Prompts) *Titler {
	return &Titler{llm: llm, prompt: prompts.Title}
}

// Title names a conversation after its first message.
func (t *Titler) Title(ctx context.Context, message string) string {
	out, err := t.llm.Invoke(ctx, core.TaskTitle, []core.Message{
		core.SystemMessage(string(t.prompt)),
		core.UserMessage(message),
	})
	if err == nil {
		title := strings.TrimSpace(conv.StripReasoning(out))
		if i := strings.IndexByte(title, '\n'); i >= 0 {
			title = title[:i]
		}
		title = strings.Trim(title, "\"'`*#. ")
		if title != "" {
			return conv.Truncate(title, 80)
		}
	}
	return FallbackTitle(message)
}

func FallbackTitle(message string) string {
	message = strings.Join(strings.Fields(message), " ")
	runes := []rune(message)
	if len(runes) <= fallbackTitleLen {
		return message
	}
	return string(runes[:fallbackTitleLen]) + "..."
}
