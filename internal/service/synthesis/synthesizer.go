package synthesis

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/sandevgo/chorus/internal/config"
	"github.com/sandevgo/chorus/internal/core"
	"github.com/sandevgo/chorus/internal/service/memory"
	"github.com/sandevgo/chorus/pkg/conv"
)

type Mode string

const (
	ModeRetrieval      Mode = "retrieval"
	ModeConversational Mode = "conversational"
	ModeFallback       Mode = "fallback"
)

var (
	inlineRefRe = regexp.MustCompile(`\[(\d+)\]`)
	numberRe    = regexp.MustCompile(`\d+`)

	// markup that must never reach the user
	answerTags = []string{"additional_search", "used_sources", "sources", "search_request", "structured_data"}
)

type Input struct {
	Query        string
	Context      core.MemoryContext
	Facts        []core.Facts
	Mode         Mode
	AllowAugment bool
	// Extra instruction appended to the request, e.g. after a failed augmentation
	Note string
}

type Output struct {
	Answer    string
	Reasoning string
	UsedRefs  []int
	// Follow-up search query requested by the model; empty when none or not allowed
	Augment string
}

type Synthesizer struct {
	llm     core.Invoker
	prompts *config.Prompts
	now     core.Clock
}

func New(llm core.Invoker, prompts *config.Prompts) *Synthesizer {
	return &Synthesizer{llm: llm, prompts: prompts, now: time.Now}
}

func (s *Synthesizer) WithClock(c core.Clock) *Synthesizer {
	s.now = c
	return s
}

func (s *Synthesizer) Synthesize(ctx context.Context, in Input) (Output, error) {
	out, err := s.llm.Invoke(ctx, core.TaskSynthesize, s.messages(in))
	if err != nil {
		return Output{}, err
	}
	return ParseOutput(out, in)
}

func (s *Synthesizer) messages(in Input) []core.Message {
	date := s.now().Format("Monday, January 2, 2006")

	var system config.Prompt
	switch in.Mode {
	case ModeConversational:
		system = s.prompts.Conversational
	case ModeFallback:
		system = s.prompts.Fallback
	default:
		system = s.prompts.Synthesis
	}

	var sb strings.Builder
	if ctxText := memory.Format(in.Context); ctxText != "" {
		sb.WriteString("Conversation context:\n")
		sb.WriteString(ctxText)
		sb.WriteString("\n\n")
	}
	if in.Mode == ModeRetrieval {
		sb.WriteString("Sources:\n")
		for _, f := range in.Facts {
			fmt.Fprintf(&sb, "<source ref=\"%d\" title=\"%s\" url=\"%s\">\n%s\n</source>\n",
				f.Candidate.Ref, f.Candidate.Title, f.Candidate.URL, f.Content)
		}
		sb.WriteString("\n")
		if !in.AllowAugment {
			sb.WriteString("Answer with the sources above; do not request another search.\n\n")
		}
	}
	if in.Note != "" {
		sb.WriteString(in.Note)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Question: ")
	sb.WriteString(in.Query)

	return []core.Message{
		core.SystemMessage(system.Format("current_date", date)),
		core.UserMessage(sb.String()),
	}
}

// ParseOutput splits a synthesis response into answer, reasoning, cited
// references and an optional augmentation request.
func ParseOutput(raw string, in Input) (Output, error) {
	out := Output{Reasoning: conv.Reasoning(raw)}
	text := conv.StripReasoning(raw)

	if in.AllowAugment {
		if block, ok := conv.Tag(text, "additional_search"); ok {
			q, ok := conv.Tag(block, "query")
			if !ok {
				q = block
			}
			out.Augment = strings.Join(strings.Fields(q), " ")
		}
	}

	// An explicit <used_sources> list is final, even when it is empty.
	used, declared := conv.Tag(text, "used_sources")
	var refs []int
	if declared {
		refs = parseRefs(used, numberRe)
	}

	out.Answer = conv.StripTags(text, answerTags...)
	if !declared {
		refs = parseRefs(out.Answer, inlineRefRe)
	}

	supplied := make(map[int]bool, len(in.Facts))
	for _, f := range in.Facts {
		supplied[f.Candidate.Ref] = true
	}
	if !declared && len(refs) == 0 && in.Mode == ModeRetrieval {
		for _, f := range in.Facts {
			refs = append(refs, f.Candidate.Ref)
		}
	}
	for _, r := range refs {
		if supplied[r] && !slices.Contains(out.UsedRefs, r) {
			out.UsedRefs = append(out.UsedRefs, r)
		}
	}
	slices.Sort(out.UsedRefs)

	if out.Answer == "" && out.Augment == "" {
		return Output{}, fmt.Errorf("empty answer: %w", core.ErrParse)
	}
	return out, nil
}

func parseRefs(text string, re *regexp.Regexp) []int {
	var out []int
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		s := m[0]
		if len(m) > 1 {
			s = m[1]
		}
		if n, err := strconv.Atoi(s); err == nil {
			out = append(out, n)
		}
	}
	return out
}
