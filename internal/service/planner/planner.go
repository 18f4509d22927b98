package planner

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sandevgo/chorus/internal/config"
	"github.com/sandevgo/chorus/internal/core"
	"github.com/sandevgo/chorus/internal/service/memory"
	"github.com/sandevgo/chorus/pkg/conv"
	"github.com/sandevgo/chorus/pkg/log"
)

const minTopicLen = 3

var urlRe = regexp.MustCompile(`https?://[^\s<>"'\x60]+`)

type Planner struct {
	llm       core.Invoker
	prompt    config.Prompt
	maxTopics int
	now       core.Clock
}

func New(llm core.Invoker, prompts *config.Prompts, maxTopics int) *Planner {
	return &Planner{
		llm:       llm,
		prompt:    prompts.Planner,
		maxTopics: maxTopics,
		now:       time.Now,
	}
}

// WithClock replaces the time source used for prompt dates.
func (p *Planner) WithClock(c core.Clock) *Planner {
	p.now = c
	return p
}

// Plan turns the user query into a classified set of search topics.
// A query carrying a URL is planned as a direct fetch without calling the model.
func (p *Planner) Plan(ctx context.Context, query string, mem core.MemoryContext) (core.SearchPlan, error) {
	logger := log.FromCtx(ctx).With().Str("component", "planner").Logger()

	if u := FindURL(query); u != "" {
		logger.Debug().Str("url", u).Msg("direct url in query")
		return core.SearchPlan{Type: core.SearchDirect, Topics: []string{u}}, nil
	}

	now := p.now()
	zone, _ := now.Zone()
	system := p.prompt.Format(
		"current_date", now.Format("Monday, January 2, 2006"),
		"current_time", now.Format("15:04"),
		"current_timezone", zone,
		"max_topics", strconv.Itoa(p.maxTopics),
	)

	out, err := p.llm.Invoke(ctx, core.TaskPlan, []core.Message{
		core.SystemMessage(system),
		core.UserMessage(userPrompt(query, mem)),
	})
	if err != nil {
		return core.SearchPlan{}, err
	}

	plan, err := ParsePlan(out, p.maxTopics)
	if err != nil {
		logger.Warn().Err(err).Str("output", conv.Truncate(out, 300)).Msg("unparseable plan")
		return core.SearchPlan{}, err
	}

	logger.Info().Str("plan", plan.String()).Msg("plan ready")
	return plan, nil
}

func userPrompt(query string, mem core.MemoryContext) string {
	var sb strings.Builder
	if ctxText := memory.Format(mem); ctxText != "" {
		sb.WriteString("Conversation so far:\n")
		sb.WriteString(ctxText)
		sb.WriteString("\n\n")
	}
	sb.WriteString("User message: ")
	sb.WriteString(query)
	return sb.String()
}

// ParsePlan reads the <search_type> and <topic> tags of a planner response.
func ParsePlan(text string, maxTopics int) (core.SearchPlan, error) {
	text = conv.StripReasoning(text)

	raw, ok := conv.Tag(text, "search_type")
	if !ok {
		return core.SearchPlan{}, fmt.Errorf("missing <search_type>: %w", core.ErrParse)
	}
	st, err := core.ParseSearchType(raw)
	if err != nil {
		return core.SearchPlan{}, err
	}

	if st == core.SearchNone {
		return core.SearchPlan{Type: core.SearchNone}, nil
	}

	if st == core.SearchDirect {
		u := FindURL(text)
		if u == "" {
			return core.SearchPlan{}, fmt.Errorf("direct plan without url: %w", core.ErrParse)
		}
		return core.SearchPlan{Type: core.SearchDirect, Topics: []string{u}}, nil
	}

	topics := CleanTopics(conv.Tags(text, "topic"), maxTopics)
	if len(topics) == 0 {
		return core.SearchPlan{}, fmt.Errorf("no topics for %s plan: %w", st, core.ErrParse)
	}
	return core.SearchPlan{Type: st, Topics: topics}, nil
}

// CleanTopics trims, drops short entries, removes case-insensitive duplicates
// and caps the list, keeping the original order.
func CleanTopics(raw []string, maxTopics int) []string {
	seen := make(map[string]bool, len(raw))
	out := make([]string, 0, len(raw))

	for _, t := range raw {
		t = strings.Join(strings.Fields(t), " ")
		if len([]rune(t)) < minTopicLen {
			continue
		}
		key := strings.ToLower(t)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, t)
		if maxTopics > 0 && len(out) == maxTopics {
			break
		}
	}
	return out
}

// FindURL returns the first http(s) URL in text, without trailing punctuation.
func FindURL(text string) string {
	u := urlRe.FindString(text)
	return strings.TrimRight(u, ".,;:!?)]}>")
}
