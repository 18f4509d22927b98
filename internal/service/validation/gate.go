package validation

import (
	"context"
	"fmt"
	"strings"

	"github.com/sandevgo/chorus/internal/config"
	"github.com/sandevgo/chorus/internal/core"
	"github.com/sandevgo/chorus/internal/metrics"
	"github.com/sandevgo/chorus/pkg/conv"
	"github.com/sandevgo/chorus/pkg/log"
)

const (
	reasonAmbiguous = "ambiguous verdict"
	// enough of the page for a relevance call
	excerptChars = 4000
)

// Gate decides which candidates may be used as sources.
type Gate struct {
	llm    core.Invoker
	prompt config.Prompt
}

func New(llm core.Invoker, prompts *config.Prompts) *Gate {
	return &Gate{llm: llm, prompt: prompts.Validator}
}

// ValidateBatch judges every candidate against its own topic and returns the
// verdicts in input order. Direct fetches are admitted without inference.
func (g *Gate) ValidateBatch(ctx context.Context, st core.SearchType, candidates []core.Candidate) ([]core.Verdict, error) {
	logger := log.FromCtx(ctx).With().Str("component", "validation").Logger()

	verdicts := make([]core.Verdict, 0, len(candidates))
	if st == core.SearchDirect {
		for _, c := range candidates {
			verdicts = append(verdicts, core.Verdict{Candidate: c, Admit: true})
			metrics.RecordVerdict(true)
		}
		return verdicts, nil
	}

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		v := g.validate(ctx, c)
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		metrics.RecordVerdict(v.Admit)
		logger.Debug().
			Str("url", c.URL).
			Bool("admit", v.Admit).
			Str("reason", v.Reason).
			Msg("verdict")
		verdicts = append(verdicts, v)
	}

	logger.Info().
		Int("total", len(verdicts)).
		Int("admitted", len(Admitted(verdicts))).
		Msg("batch validated")
	return verdicts, nil
}

func (g *Gate) validate(ctx context.Context, c core.Candidate) core.Verdict {
	user := fmt.Sprintf("Search topic: %s\n\nPage title: %s\nPage URL: %s\n\nPage content:\n%s",
		c.Topic, c.Title, c.URL, conv.Truncate(c.Text, excerptChars))

	out, err := g.llm.Invoke(ctx, core.TaskValidate, []core.Message{
		core.SystemMessage(string(g.prompt)),
		core.UserMessage(user),
	})
	if err != nil {
		return core.Verdict{Candidate: c, Reason: err.Error()}
	}

	admit, reason := ParseVerdict(out)
	return core.Verdict{Candidate: c, Admit: admit, Reason: reason}
}

// ParseVerdict reads a validator response. Anything that is neither a pass
// nor a fail is a rejection.
func ParseVerdict(text string) (bool, string) {
	text = conv.StripReasoning(text)
	lower := strings.ToLower(text)

	if strings.Contains(lower, "<pass") {
		return true, ""
	}
	if reason, ok := conv.Tag(text, "fail"); ok {
		if reason == "" {
			reason = "rejected"
		}
		return false, reason
	}
	return false, reasonAmbiguous
}

// Passes reports whether a batch produced enough usable sources: at least two,
// or one when the batch had at most two candidates.
func Passes(total, admitted int) bool {
	return admitted >= 2 || (total <= 2 && admitted >= 1)
}

func Admitted(verdicts []core.Verdict) []core.Candidate {
	var out []core.Candidate
	for _, v := range verdicts {
		if v.Admit {
			out = append(out, v.Candidate)
		}
	}
	return out
}

// RejectionReasons formats rejected verdicts as "title: reason".
func RejectionReasons(verdicts []core.Verdict) []string {
	var out []string
	for _, v := range verdicts {
		if v.Admit {
			continue
		}
		title := v.Candidate.Title
		if title == "" {
			title = v.Candidate.URL
		}
		out = append(out, title+": "+v.Reason)
	}
	return out
}
