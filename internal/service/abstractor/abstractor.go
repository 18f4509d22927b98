package abstractor

import (
	"context"
	"fmt"

	"github.com/sandevgo/chorus/internal/config"
	"github.com/sandevgo/chorus/internal/core"
	"github.com/sandevgo/chorus/internal/metrics"
	"github.com/sandevgo/chorus/pkg/conv"
	"github.com/sandevgo/chorus/pkg/log"
)

// Abstractor condenses admitted pages into fact lists, one source at a time.
type Abstractor struct {
	llm     core.Invoker
	prompt  config.Prompt
	retries int
}

func New(llm core.Invoker, prompts *config.Prompts, retries int) *Abstractor {
	return &Abstractor{llm: llm, prompt: prompts.Abstractor, retries: max(retries, 0)}
}

func (a *Abstractor) Abstract(ctx context.Context, query string, c core.Candidate) (core.Facts, error) {
	user := fmt.Sprintf("User question: %s\nSearch topic: %s\n\nSource: %s (%s)\n\n%s",
		query, c.Topic, c.Title, c.URL, c.Text)
	msgs := []core.Message{
		core.SystemMessage(string(a.prompt)),
		core.UserMessage(user),
	}

	var lastErr error
	for attempt := 0; attempt <= a.retries; attempt++ {
		out, err := a.llm.Invoke(ctx, core.TaskAbstract, msgs)
		if err != nil {
			if ctx.Err() != nil {
				return core.Facts{}, ctx.Err()
			}
			lastErr = err
			continue
		}

		data, ok := conv.Tag(conv.StripReasoning(out), "structured_data")
		if !ok || data == "" {
			lastErr = fmt.Errorf("missing <structured_data>: %w", core.ErrParse)
			continue
		}
		return core.Facts{Candidate: c, Content: data}, nil
	}
	return core.Facts{}, lastErr
}

// AbstractAll abstracts every candidate in order. Sources that cannot be
// abstracted are dropped; only cancellation is returned as an error.
func (a *Abstractor) AbstractAll(ctx context.Context, query string, candidates []core.Candidate) ([]core.Facts, error) {
	logger := log.FromCtx(ctx).With().Str("component", "abstractor").Logger()

	out := make([]core.Facts, 0, len(candidates))
	for _, c := range candidates {
		f, err := a.Abstract(ctx, query, c)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			metrics.DroppedSources.Inc()
			logger.Warn().Err(err).Str("url", c.URL).Msg("source dropped")
			continue
		}
		out = append(out, f)
	}
	return out, nil
}
