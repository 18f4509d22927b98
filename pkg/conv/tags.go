package conv

import (
	"regexp"
	"strings"
	"sync"
)

var (
	tagPatterns sync.Map // name -> *regexp.Regexp
	blankLines  = regexp.MustCompile(`\n{3,}`)
)

func tagPattern(name string) *regexp.Regexp {
	if re, ok := tagPatterns.Load(name); ok {
		return re.(*regexp.Regexp)
	}
	q := regexp.QuoteMeta(name)
	re := regexp.MustCompile(`(?is)<` + q + `(?:\s[^>]*)?>(.*?)</` + q + `\s*>`)
	tagPatterns.Store(name, re)
	return re
}

// Tag returns the trimmed body of the first <name>...</name> block.
func Tag(text, name string) (string, bool) {
	m := tagPattern(name).FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(m[1]), true
}

// Tags returns the trimmed bodies of every <name>...</name> block in order.
func Tags(text, name string) []string {
	matches := tagPattern(name).FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, strings.TrimSpace(m[1]))
	}
	return out
}

// StripTags removes every block of the named tags and tidies the blank lines left behind.
func StripTags(text string, names ...string) string {
	for _, name := range names {
		text = tagPattern(name).ReplaceAllString(text, "")
	}
	return strings.TrimSpace(blankLines.ReplaceAllString(text, "\n\n"))
}

// StripReasoning removes <think> blocks, including a leading block whose
// opening tag was cut off and a trailing block that was never closed.
func StripReasoning(text string) string {
	text = StripTags(text, "think")
	if i := strings.Index(strings.ToLower(text), "</think>"); i >= 0 {
		text = text[i+len("</think>"):]
	}
	if i := strings.Index(strings.ToLower(text), "<think>"); i >= 0 {
		text = text[:i]
	}
	return strings.TrimSpace(text)
}

// Reasoning returns the <think> content, if any.
func Reasoning(text string) string {
	if body, ok := Tag(text, "think"); ok {
		return body
	}
	lower := strings.ToLower(text)
	if i := strings.Index(lower, "</think>"); i >= 0 {
		return strings.TrimSpace(text[:i])
	}
	if i := strings.Index(lower, "<think>"); i >= 0 {
		return strings.TrimSpace(text[i+len("<think>"):])
	}
	return ""
}

// Truncate cuts s to at most max bytes on a rune boundary and appends an ellipsis when cut.
func Truncate(s string, max int) string {
	if max <= 0 || len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
