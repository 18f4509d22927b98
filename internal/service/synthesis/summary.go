package synthesis

import (
	"context"
	"fmt"
	"strings"

	"github.com/sandevgo/chorus/internal/config"
	"github.com/sandevgo/chorus/internal/core"
	"github.com/sandevgo/chorus/internal/service/memory"
	"github.com/sandevgo/chorus/pkg/conv"
	"github.com/sandevgo/chorus/pkg/log"
)

// Summarizer produces the memory content stored for a finished turn.
type Summarizer struct {
	llm    core.Invoker
	prompt config.Prompt
}

func NewSummarizer(llm core.Invoker, prompts *config.Prompts) *Summarizer {
	return &Summarizer{llm: llm, prompt: prompts.Summary}
}

// Summarize condenses a sourced answer for memory. Answers without sources
// are stored as they are. It never fails; a deterministic sentence replaces
// an unusable model response.
func (s *Summarizer) Summarize(ctx context.Context, query, answer string, citations []core.Citation) string {
	if len(citations) == 0 {
		return DirectSummary(query, answer)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "User: %s\n\nAssistant: %s\n\nSources:\n", query, memory.Sanitize(answer))
	for _, c := range citations {
		fmt.Fprintf(&sb, "- %s (%s)\n", c.Title, c.URL)
	}

	out, err := s.llm.Invoke(ctx, core.TaskSummarize, []core.Message{
		core.SystemMessage(string(s.prompt)),
		core.UserMessage(sb.String()),
	})
	if err == nil {
		if summary := memory.Sanitize(out); summary != "" {
			return summary
		}
	}

	log.FromCtx(ctx).Warn().Err(err).Str("component", "summary").Msg("summary fallback")
	return fallbackSummary(query, citations)
}

// DirectSummary is the memory content of an answer that used no sources.
func DirectSummary(query, answer string) string {
	if s := memory.Sanitize(answer); s != "" {
		return s
	}
	return fmt.Sprintf("Could not find a relevant answer for the query: '%s'", query)
}

func fallbackSummary(query string, citations []core.Citation) string {
	titles := make([]string, 0, len(citations))
	for _, c := range citations {
		titles = append(titles, c.Title)
	}
	return fmt.Sprintf("Responded to the user query: '%s' using sources: %s.", query, strings.Join(titles, "; "))
}

// RenderDisplay appends a numbered source list to the answer.
func RenderDisplay(answer string, citations []core.Citation) string {
	answer = strings.TrimSpace(answer)
	if len(citations) == 0 {
		return answer
	}

	var sb strings.Builder
	sb.WriteString(answer)
	sb.WriteString("\n\n**Sources**\n")
	for _, c := range citations {
		title := c.Title
		if title == "" {
			title = c.URL
		}
		fmt.Fprintf(&sb, "%d. [%s](%s)", c.Ref, conv.Truncate(title, 120), c.URL)
		if c.Published != "" {
			fmt.Fprintf(&sb, " (%s)", c.Published)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
