package command

import (
	"fmt"
	"strings"
)

// reply assembles a markdown chat message line by line.
type reply struct {
	sb strings.Builder
}

func newReply() *reply {
	return &reply{}
}

func (r *reply) heading(title string) *reply {
	fmt.Fprintf(&r.sb, "**%s**\n", title)
	return r
}

func (r *reply) done(format string, args ...any) *reply {
	fmt.Fprintf(&r.sb, "✅ %s\n", fmt.Sprintf(format, args...))
	return r
}

func (r *reply) field(label, value string) *reply {
	fmt.Fprintf(&r.sb, "%s: %s\n", label, value)
	return r
}

func (r *reply) bullets(items []string) *reply {
	for _, item := range items {
		fmt.Fprintf(&r.sb, "• %s\n", item)
	}
	return r
}

// usage prints the command syntax, with an example when one is given.
func (r *reply) usage(syntax, example string) *reply {
	if example == "" {
		fmt.Fprintf(&r.sb, "Usage: `%s`\n", syntax)
		return r
	}
	fmt.Fprintf(&r.sb, "Usage: `%s`, for example `%s`\n", syntax, example)
	return r
}

func (r *reply) note(text string) *reply {
	fmt.Fprintf(&r.sb, "_%s_\n", text)
	return r
}

func (r *reply) String() string {
	return strings.TrimRight(r.sb.String(), "\n")
}

// failure reports a command error in a single line.
func failure(command string, err error) string {
	return fmt.Sprintf("⚠️ /%s did not complete: %s", command, err)
}
