package memory

import (
	"fmt"
	"strings"

	"github.com/sandevgo/chorus/internal/core"
	"github.com/sandevgo/chorus/pkg/conv"
)

// internal markup that must never reach a planning or synthesis prompt
var internalTags = []string{"search_request", "additional_search", "sources", "used_sources", "structured_data"}

// Sanitize strips reasoning and pipeline markup from stored text.
func Sanitize(text string) string {
	text = conv.StripReasoning(text)
	return conv.StripTags(text, internalTags...)
}

// Format renders a memory context as prompt text. Semantic hits come first,
// then the recent turns in conversation order.
func Format(c core.MemoryContext) string {
	if c.Empty() {
		return ""
	}

	var sb strings.Builder
	if len(c.Semantic) > 0 {
		sb.WriteString("Earlier, related parts of this conversation:\n")
		for _, r := range c.Semantic {
			writeRecord(&sb, r)
		}
	}
	if len(c.Recent) > 0 {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("Most recent turns:\n")
		for _, r := range c.Recent {
			writeRecord(&sb, r)
		}
	}
	return strings.TrimSpace(sb.String())
}

func writeRecord(sb *strings.Builder, r core.MemoryRecord) {
	fmt.Fprintf(sb, "- [turn %d] User: %s\n", r.Index+1, Sanitize(r.UserMessage))
	fmt.Fprintf(sb, "  Assistant: %s\n", Sanitize(r.MemoryContent))
}
