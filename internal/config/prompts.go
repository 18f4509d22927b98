package config

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"
)

//go:embed defaults/prompts.txt
var defaultPrompts []byte

var sectionHeader = regexp.MustCompile(`(?m)^\[--- PROMPT: ([A-Z_]+) ---\]\s*$`)

// Prompt is a prompt template. Placeholders look like {name}.
type Prompt string

// Format replaces {key} placeholders. Arguments are key, value pairs.
func (p Prompt) Format(pairs ...string) string {
	if len(pairs) == 0 {
		return string(p)
	}
	oldnew := make([]string, 0, len(pairs))
	for i := 0; i+1 < len(pairs); i += 2 {
		oldnew = append(oldnew, "{"+pairs[i]+"}", pairs[i+1])
	}
	return strings.NewReplacer(oldnew...).Replace(string(p))
}

// Prompts is loaded once at startup and handed to every stage constructor.
type Prompts struct {
	Planner        Prompt
	Validator      Prompt
	Refiner        Prompt
	Abstractor     Prompt
	Synthesis      Prompt
	Conversational Prompt
	Fallback       Prompt
	Summary        Prompt
	Title          Prompt
}

func (p *Prompts) fields() map[string]*Prompt {
	return map[string]*Prompt{
		"SEARCH_INTENT":  &p.Planner,
		"VALIDATOR":      &p.Validator,
		"REFINER":        &p.Refiner,
		"ABSTRACTION":    &p.Abstractor,
		"SYNTHESIS":      &p.Synthesis,
		"CONVERSATION":   &p.Conversational,
		"FALLBACK":       &p.Fallback,
		"MEMORY_SUMMARY": &p.Summary,
		"TITLE":          &p.Title,
	}
}

// DefaultPrompts returns the embedded prompt set.
func DefaultPrompts() *Prompts {
	p := &Prompts{}
	if err := p.apply(defaultPrompts); err != nil {
		panic(fmt.Sprintf("embedded prompts are invalid: %v", err))
	}
	return p
}

// LoadPrompts starts from the embedded prompts and overlays the sections found in path.
// An empty path returns the defaults.
func LoadPrompts(path string) (*Prompts, error) {
	p := DefaultPrompts()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts file: %w", err)
	}
	if err := p.apply(data); err != nil {
		return nil, fmt.Errorf("parse prompts file %s: %w", path, err)
	}
	return p, nil
}

func (p *Prompts) apply(data []byte) error {
	sections, err := ParsePromptSections(string(data))
	if err != nil {
		return err
	}

	fields := p.fields()
	for name, text := range sections {
		field, ok := fields[name]
		if !ok {
			return fmt.Errorf("unknown prompt section %q", name)
		}
		*field = Prompt(text)
	}

	for name, field := range fields {
		if strings.TrimSpace(string(*field)) == "" {
			return fmt.Errorf("prompt section %q is missing or empty", name)
		}
	}
	return nil
}

// ParsePromptSections splits a prompt file on its "[--- PROMPT: NAME ---]" headers.
func ParsePromptSections(text string) (map[string]string, error) {
	locs := sectionHeader.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return nil, fmt.Errorf("no prompt sections found")
	}

	sections := make(map[string]string, len(locs))
	for i, loc := range locs {
		name := text[loc[2]:loc[3]]
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		if _, dup := sections[name]; dup {
			return nil, fmt.Errorf("duplicate prompt section %q", name)
		}
		sections[name] = strings.TrimSpace(text[loc[1]:end])
	}
	return sections, nil
}
