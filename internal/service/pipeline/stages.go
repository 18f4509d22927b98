package pipeline

import (
	"context"

	"github.com/sandevgo/chorus/internal/core"
	"github.com/sandevgo/chorus/internal/service/synthesis"
)

type Planner interface {
	Plan(ctx context.Context, query string, mem core.MemoryContext) (core.SearchPlan, error)
}

type Retriever interface {
	Execute(ctx context.Context, plan core.SearchPlan) ([]core.Candidate, error)
}

type Validator interface {
	ValidateBatch(ctx context.Context, st core.SearchType, candidates []core.Candidate) ([]core.Verdict, error)
}

type Refiner interface {
	Refine(ctx context.Context, query string, plan core.SearchPlan, reasons []string) (core.SearchPlan, error)
}

type Abstractor interface {
	AbstractAll(ctx context.Context, query string, candidates []core.Candidate) ([]core.Facts, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, in synthesis.Input) (synthesis.Output, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, query, answer string, citations []core.Citation) string
}

// Stages bundles the collaborators of a pipeline run.
type Stages struct {
	Planner     Planner
	Retriever   Retriever
	Validator   Validator
	Refiner     Refiner
	Abstractor  Abstractor
	Synthesizer Synthesizer
	Summarizer  Summarizer
}
