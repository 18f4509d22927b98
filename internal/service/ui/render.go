package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/sandevgo/chorus/internal/core"
)

func Progress(p core.Progress) string {
	return ProgressStyle.Render("· " + p.Message)
}

// Answer renders a finished run for the terminal: optional reasoning, the
// answer itself and a numbered source list.
func Answer(res core.Result, showReasoning bool) string {
	var sb strings.Builder

	if showReasoning && strings.TrimSpace(res.Reasoning) != "" {
		sb.WriteString(DescStyle.Render("[Thinking]\n" + strings.TrimSpace(res.Reasoning)))
		sb.WriteString("\n\n")
	}

	sb.WriteString(strings.TrimSpace(res.Answer))
	sb.WriteString("\n")

	if len(res.Citations) > 0 {
		sb.WriteString("\n")
		sb.WriteString(TitleStyle.Render("Sources"))
		sb.WriteString("\n")
		for _, c := range res.Citations {
			line := fmt.Sprintf("[%d] %s", c.Ref, c.Title)
			if c.Published != "" {
				line += " (" + c.Published + ")"
			}
			sb.WriteString(UsageStyle.Render(line))
			sb.WriteString("\n    ")
			sb.WriteString(DescStyle.Render(c.URL))
			sb.WriteString("\n")
		}
	}

	sb.WriteString(DescStyle.Render(fmt.Sprintf("took %s", res.Elapsed.Round(100*time.Millisecond))))
	sb.WriteString("\n")
	return sb.String()
}

func Error(msg string) string {
	return ErrorStyle.Render(msg)
}
