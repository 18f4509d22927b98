package planner

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sandevgo/chorus/internal/config"
	"github.com/sandevgo/chorus/internal/core"
	"github.com/sandevgo/chorus/pkg/conv"
	"github.com/sandevgo/chorus/pkg/log"
)

// Refiner rewrites the topics of a plan whose sources were all rejected.
type Refiner struct {
	llm       core.Invoker
	prompt    config.Prompt
	maxTopics int
	now       core.Clock
}

func NewRefiner(llm core.Invoker, prompts *config.Prompts, maxTopics int) *Refiner {
	return &Refiner{
		llm:       llm,
		prompt:    prompts.Refiner,
		maxTopics: maxTopics,
		now:       time.Now,
	}
}

func (r *Refiner) Refine(ctx context.Context, query string, plan core.SearchPlan, reasons []string) (core.SearchPlan, error) {
	system := r.prompt.Format(
		"current_date", r.now().Format("Monday, January 2, 2006"),
		"max_topics", strconv.Itoa(r.maxTopics),
	)

	var sb strings.Builder
	fmt.Fprintf(&sb, "User question: %s\n\n", query)
	fmt.Fprintf(&sb, "Search type: %s\n", plan.Type)
	sb.WriteString("Previous topics:\n")
	for _, t := range plan.Topics {
		fmt.Fprintf(&sb, "- %s\n", t)
	}
	sb.WriteString("\nRejected sources:\n")
	if len(reasons) == 0 {
		sb.WriteString("- no sources were found\n")
	}
	for _, reason := range reasons {
		fmt.Fprintf(&sb, "- %s\n", reason)
	}

	out, err := r.llm.Invoke(ctx, core.TaskRefine, []core.Message{
		core.SystemMessage(system),
		core.UserMessage(sb.String()),
	})
	if err != nil {
		return core.SearchPlan{}, err
	}

	refined, err := ParseRefinement(out, plan.Type, r.maxTopics)
	if err != nil {
		return core.SearchPlan{}, err
	}

	log.FromCtx(ctx).Info().
		Str("component", "refiner").
		Str("plan", refined.String()).
		Msg("plan refined")
	return refined, nil
}

// ParseRefinement reads new topics and keeps the previous type unless a valid
// non-direct replacement is given.
func ParseRefinement(text string, prev core.SearchType, maxTopics int) (core.SearchPlan, error) {
	text = conv.StripReasoning(text)

	st := prev
	if raw, ok := conv.Tag(text, "search_type"); ok {
		if parsed, err := core.ParseSearchType(raw); err == nil && parsed != core.SearchDirect && parsed != core.SearchNone {
			st = parsed
		}
	}

	topics := CleanTopics(conv.Tags(text, "topic"), maxTopics)
	if len(topics) == 0 {
		return core.SearchPlan{}, fmt.Errorf("refinement without topics: %w", core.ErrParse)
	}
	return core.SearchPlan{Type: st, Topics: topics}, nil
}
