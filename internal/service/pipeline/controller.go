package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sandevgo/chorus/internal/config"
	"github.com/sandevgo/chorus/internal/core"
	"github.com/sandevgo/chorus/internal/metrics"
	"github.com/sandevgo/chorus/internal/service/synthesis"
	"github.com/sandevgo/chorus/internal/service/validation"
	"github.com/sandevgo/chorus/pkg/log"
)

const augmentEmptyNote = "The additional search found nothing new. Answer with the sources you already have."

type Request struct {
	SessionID  string
	Query      string
	Memory     core.Memory
	OnProgress func(core.Progress)
}

// Controller drives one query through plan, search, validation, abstraction
// and synthesis.
type Controller struct {
	stages Stages
	cfg    *config.PipelineConfig
	now    core.Clock
}

func NewController(stages Stages, cfg *config.PipelineConfig) *Controller {
	return &Controller{stages: stages, cfg: cfg, now: time.Now}
}

func (c *Controller) WithClock(clock core.Clock) *Controller {
	c.now = clock
	return c
}

// Run answers one query. On success the turn has been appended to the
// request's memory; a failed or canceled run leaves memory untouched.
func (c *Controller) Run(ctx context.Context, req Request) (core.Result, error) {
	ctx, cancel := context.WithTimeoutCause(ctx, c.cfg.RunTimeout, core.ErrRunTimeout)
	defer cancel()

	r := newRun(c.now, req.OnProgress)
	ctx = log.WithFields(ctx, "run_id", r.id, "session_id", req.SessionID)
	logger := log.FromCtx(ctx)

	metrics.RunsStarted.Inc()
	logger.Info().Str("query", req.Query).Msg("run started")

	res, err := c.execute(ctx, r, req)
	res.RunID = r.id
	res.SessionID = req.SessionID
	res.Query = req.Query
	res.Elapsed = r.elapsed()

	if err != nil {
		err = classify(ctx, err)
		r.fail(err)
		res.Trace = r.trace

		status := "failed"
		if errors.Is(err, core.ErrCanceled) {
			status = "canceled"
		}
		metrics.RunsCompleted.WithLabelValues(status, string(res.Plan.Type)).Inc()
		metrics.RunDuration.WithLabelValues(status).Observe(res.Elapsed.Seconds())
		logger.Error().Err(err).Dur("took", res.Elapsed).Msg("run failed")
		return res, err
	}

	res.Trace = r.trace
	metrics.RunsCompleted.WithLabelValues("done", string(res.Plan.Type)).Inc()
	metrics.RunDuration.WithLabelValues("done").Observe(res.Elapsed.Seconds())
	logger.Info().
		Int("citations", len(res.Citations)).
		Dur("took", res.Elapsed).
		Msg("run done")
	return res, nil
}

func (c *Controller) execute(ctx context.Context, r *run, req Request) (core.Result, error) {
	var res core.Result
	logger := log.FromCtx(ctx)

	var mem core.MemoryContext
	if req.Memory != nil {
		mem = req.Memory.RetrieveContext(ctx, req.Query, c.cfg.LastNVerbatim, c.cfg.KSemantic)
	}

	if err := r.to(core.StatePlanning, ""); err != nil {
		return res, err
	}
	plan, err := c.stages.Planner.Plan(ctx, req.Query, mem)
	if err != nil {
		if ctx.Err() != nil {
			return res, err
		}
		logger.Warn().Err(err).Msg("planner failed, searching the raw query")
		plan = core.SearchPlan{Type: core.SearchGeneral, Topics: []string{req.Query}}
	}
	res.Plan = plan

	if plan.Type == core.SearchNone {
		if err := r.to(core.StateSynthesizing, "conversational"); err != nil {
			return res, err
		}
		out, err := c.stages.Synthesizer.Synthesize(ctx, synthesis.Input{
			Query:   req.Query,
			Context: mem,
			Mode:    synthesis.ModeConversational,
		})
		if err != nil {
			return res, err
		}
		return c.finish(ctx, r, req, res, out, nil)
	}

	if err := r.to(core.StateRetrieving, plan.String()); err != nil {
		return res, err
	}
	cands, err := c.stages.Retriever.Execute(ctx, plan)
	if err != nil {
		return res, err
	}

	if plan.Type == core.SearchDirect && len(cands) == 0 {
		if err := r.to(core.StateSummarizing, "direct fetch empty"); err != nil {
			return res, err
		}
		out := synthesis.Output{Answer: directFailure(plan)}
		return c.complete(ctx, r, req, res, out, nil, synthesis.DirectSummary(req.Query, ""))
	}

	admitted, err := c.validate(ctx, r, plan.Type, cands)
	if err != nil {
		return res, err
	}

	if plan.Type != core.SearchDirect && !validation.Passes(len(cands), len(admitted)) {
		admitted, err = c.refine(ctx, r, req.Query, plan, admitted)
		if err != nil {
			return res, err
		}
	}

	facts, err := c.abstract(ctx, r, req.Query, admitted, 0)
	if err != nil {
		return res, err
	}

	mode := modeFor(facts)
	if err := r.to(core.StateSynthesizing, string(mode)); err != nil {
		return res, err
	}
	out, err := c.stages.Synthesizer.Synthesize(ctx, synthesis.Input{
		Query:        req.Query,
		Context:      mem,
		Facts:        facts,
		Mode:         mode,
		AllowAugment: mode == synthesis.ModeRetrieval && plan.Type != core.SearchDirect,
	})
	if err != nil {
		return res, err
	}

	if out.Augment != "" {
		out, facts, err = c.augment(ctx, r, req, plan, mem, facts, out.Augment)
		if err != nil {
			return res, err
		}
	}

	return c.finish(ctx, r, req, res, out, facts)
}

func (c *Controller) validate(ctx context.Context, r *run, st core.SearchType, cands []core.Candidate) ([]core.Candidate, error) {
	if err := r.to(core.StateValidating, fmt.Sprintf("%d candidates", len(cands))); err != nil {
		return nil, err
	}
	verdicts, err := c.stages.Validator.ValidateBatch(ctx, st, cands)
	if err != nil {
		return nil, err
	}
	r.rejections = append(r.rejections, validation.RejectionReasons(verdicts)...)
	return validation.Admitted(verdicts), nil
}

// refine runs the single corrective round. Admissions of both rounds are
// kept; a failed refinement keeps the first round.
func (c *Controller) refine(ctx context.Context, r *run, query string, plan core.SearchPlan, admitted []core.Candidate) ([]core.Candidate, error) {
	logger := log.FromCtx(ctx)

	if err := r.to(core.StateRefining, fmt.Sprintf("%d admitted", len(admitted))); err != nil {
		return nil, err
	}
	metrics.Refinements.Inc()

	refined, err := c.stages.Refiner.Refine(ctx, query, plan, r.rejections)
	if err != nil {
		if ctx.Err() != nil {
			return nil, err
		}
		logger.Warn().Err(err).Msg("refinement failed, keeping first round")
		return admitted, nil
	}

	if err := r.to(core.StateRetrieving, refined.String()); err != nil {
		return nil, err
	}
	cands, err := c.stages.Retriever.Execute(ctx, refined)
	if err != nil {
		return nil, err
	}

	more, err := c.validate(ctx, r, refined.Type, excludeURLs(cands, admitted))
	if err != nil {
		return nil, err
	}
	return append(admitted, more...), nil
}

// abstract renumbers the admitted candidates after offset and condenses them.
func (c *Controller) abstract(ctx context.Context, r *run, query string, admitted []core.Candidate, offset int) ([]core.Facts, error) {
	if err := r.to(core.StateAbstracting, fmt.Sprintf("%d sources", len(admitted))); err != nil {
		return nil, err
	}
	numbered := make([]core.Candidate, len(admitted))
	for i, cand := range admitted {
		cand.Ref = offset + i + 1
		numbered[i] = cand
	}
	return c.stages.Abstractor.AbstractAll(ctx, query, numbered)
}

// augment runs the single follow-up search requested by synthesis and
// answers again with the combined facts.
func (c *Controller) augment(ctx context.Context, r *run, req Request, plan core.SearchPlan, mem core.MemoryContext, facts []core.Facts, topic string) (synthesis.Output, []core.Facts, error) {
	if err := r.to(core.StateAugmenting, topic); err != nil {
		return synthesis.Output{}, nil, err
	}
	metrics.Augmentations.Inc()

	augPlan := core.SearchPlan{Type: plan.Type, Topics: []string{topic}}
	if err := r.to(core.StateRetrieving, augPlan.String()); err != nil {
		return synthesis.Output{}, nil, err
	}
	cands, err := c.stages.Retriever.Execute(ctx, augPlan)
	if err != nil {
		return synthesis.Output{}, nil, err
	}

	known := make([]core.Candidate, len(facts))
	for i, f := range facts {
		known[i] = f.Candidate
	}
	admitted, err := c.validate(ctx, r, plan.Type, excludeURLs(cands, known))
	if err != nil {
		return synthesis.Output{}, nil, err
	}

	more, err := c.abstract(ctx, r, req.Query, admitted, maxRef(facts))
	if err != nil {
		return synthesis.Output{}, nil, err
	}

	var note string
	if len(more) == 0 {
		note = augmentEmptyNote
	}
	facts = append(facts, more...)

	mode := modeFor(facts)
	if err := r.to(core.StateSynthesizing, string(mode)); err != nil {
		return synthesis.Output{}, nil, err
	}
	out, err := c.stages.Synthesizer.Synthesize(ctx, synthesis.Input{
		Query:   req.Query,
		Context: mem,
		Facts:   facts,
		Mode:    mode,
		Note:    note,
	})
	return out, facts, err
}

// finish renders citations, summarizes the turn and records it.
func (c *Controller) finish(ctx context.Context, r *run, req Request, res core.Result, out synthesis.Output, facts []core.Facts) (core.Result, error) {
	citations := citationsFor(out.UsedRefs, facts)

	if err := r.to(core.StateSummarizing, fmt.Sprintf("%d citations", len(citations))); err != nil {
		return res, err
	}
	summary := c.stages.Summarizer.Summarize(ctx, req.Query, out.Answer, citations)
	return c.complete(ctx, r, req, res, out, citations, summary)
}

func (c *Controller) complete(ctx context.Context, r *run, req Request, res core.Result, out synthesis.Output, citations []core.Citation, summary string) (core.Result, error) {
	if err := ctx.Err(); err != nil {
		return res, err
	}

	res.Answer = out.Answer
	res.Reasoning = out.Reasoning
	res.Citations = citations
	res.DisplayContent = synthesis.RenderDisplay(out.Answer, citations)
	res.MemoryContent = summary

	if req.Memory != nil {
		rec, err := req.Memory.Add(ctx, req.Query, res.DisplayContent, res.MemoryContent)
		if err != nil {
			return res, fmt.Errorf("record turn: %w", err)
		}
		res.Record = rec
	}

	if err := r.to(core.StateDone, ""); err != nil {
		return res, err
	}
	return res, nil
}

func modeFor(facts []core.Facts) synthesis.Mode {
	if len(facts) == 0 {
		return synthesis.ModeFallback
	}
	return synthesis.ModeRetrieval
}

func citationsFor(refs []int, facts []core.Facts) []core.Citation {
	byRef := make(map[int]core.Candidate, len(facts))
	for _, f := range facts {
		byRef[f.Candidate.Ref] = f.Candidate
	}
	var out []core.Citation
	for _, ref := range refs {
		if cand, ok := byRef[ref]; ok {
			out = append(out, core.CitationFrom(cand))
		}
	}
	return out
}

func excludeURLs(cands, known []core.Candidate) []core.Candidate {
	seen := make(map[string]bool, len(known))
	for _, k := range known {
		seen[k.URL] = true
	}
	out := make([]core.Candidate, 0, len(cands))
	for _, cand := range cands {
		if !seen[cand.URL] {
			seen[cand.URL] = true
			out = append(out, cand)
		}
	}
	return out
}

func maxRef(facts []core.Facts) int {
	m := 0
	for _, f := range facts {
		m = max(m, f.Candidate.Ref)
	}
	return m
}

func directFailure(plan core.SearchPlan) string {
	target := "the page"
	if len(plan.Topics) > 0 {
		target = plan.Topics[0]
	}
	return fmt.Sprintf("I couldn't read any content from %s. The page may be unavailable or blocked for automated access.", target)
}

// classify maps context errors onto the run's sentinel errors.
func classify(ctx context.Context, err error) error {
	if ctx.Err() == nil {
		return err
	}
	cause := context.Cause(ctx)
	if errors.Is(cause, core.ErrRunTimeout) || errors.Is(cause, context.DeadlineExceeded) {
		if errors.Is(err, core.ErrRunTimeout) {
			return err
		}
		return fmt.Errorf("%w: %w", core.ErrRunTimeout, err)
	}
	if errors.Is(err, core.ErrCanceled) {
		return err
	}
	return fmt.Errorf("%w: %w", core.ErrCanceled, err)
}
