package retrieval

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/sandevgo/chorus/internal/config"
	"github.com/sandevgo/chorus/internal/core"
	"github.com/sandevgo/chorus/pkg/log"
	"github.com/sourcegraph/conc/iter"
)

var yearRe = regexp.MustCompile(`\b(19[89]\d|20\d\d)\b`)

// Executor runs the search, rank and fetch loop for a plan.
type Executor struct {
	searcher core.WebSearcher
	fetcher  core.PageFetcher
	ranker   *Ranker
	cfg      *config.RetrievalConfig
	table    *config.RankingTable
	now      core.Clock
}

func NewExecutor(searcher core.WebSearcher, fetcher core.PageFetcher, table *config.RankingTable, cfg *config.RetrievalConfig) *Executor {
	return &Executor{
		searcher: searcher,
		fetcher:  fetcher,
		ranker:   NewRanker(table),
		cfg:      cfg,
		table:    table,
		now:      time.Now,
	}
}

func (e *Executor) WithClock(c core.Clock) *Executor {
	e.now = c
	return e
}

type fetched struct {
	ranked Ranked
	page   core.Page
	err    error
}

// Execute returns candidates for every topic of the plan in topic order,
// numbered from 1. Zero candidates is a valid outcome.
func (e *Executor) Execute(ctx context.Context, plan core.SearchPlan) ([]core.Candidate, error) {
	logger := log.FromCtx(ctx).With().Str("component", "retrieval").Logger()

	var out []core.Candidate
	var err error
	if plan.Type == core.SearchDirect {
		out, err = e.direct(ctx, plan)
	} else {
		seen := make(map[string]bool)
		for _, topic := range plan.Topics {
			var got []core.Candidate
			got, err = e.topic(ctx, plan.Type, topic, seen)
			if err != nil {
				break
			}
			out = append(out, got...)
		}
	}
	if err != nil {
		return nil, err
	}

	for i := range out {
		out[i].Ref = i + 1
	}
	logger.Info().Str("plan", plan.String()).Int("candidates", len(out)).Msg("retrieval done")
	return out, nil
}

func (e *Executor) direct(ctx context.Context, plan core.SearchPlan) ([]core.Candidate, error) {
	if len(plan.Topics) == 0 {
		return nil, nil
	}
	target := plan.Topics[0]

	page, err := e.fetcher.FetchExtract(ctx, target)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.FromCtx(ctx).Warn().Err(err).Str("url", target).Msg("direct fetch failed")
		return nil, nil
	}
	if page.Text == "" {
		return nil, nil
	}

	return []core.Candidate{{
		URL:   target,
		Title: titleOr(page.Title, target),
		Text:  page.Text,
		Topic: target,
	}}, nil
}

func (e *Executor) topic(ctx context.Context, st core.SearchType, topic string, seen map[string]bool) ([]core.Candidate, error) {
	start := time.Now()
	now := e.now()
	query := e.queryFor(st, topic, now.Year())

	logger := log.FromCtx(ctx).With().
		Str("component", "retrieval").
		Str("topic", topic).
		Logger()

	results, err := e.search(ctx, logger, st, query)
	if err != nil {
		return nil, err
	}

	ranked := e.ranker.Rank(results, topic, st, now.Year())
	if n := e.cfg.ScrapeTopN; n > 0 && len(ranked) > n {
		ranked = ranked[:n]
	}

	pending := make([]Ranked, 0, len(ranked))
	for _, r := range ranked {
		if !seen[r.Result.URL] {
			pending = append(pending, r)
		}
	}

	limit := e.cfg.MaxSourcesPerTopic
	var out []core.Candidate
	totalChars := 0

	for len(pending) > 0 && len(out) < limit {
		wave := pending[:min(limit-len(out), len(pending))]
		pending = pending[len(wave):]

		mapper := iter.Mapper[Ranked, fetched]{MaxGoroutines: max(e.cfg.FetchConcurrency, 1)}
		pages := mapper.Map(wave, func(r *Ranked) fetched {
			page, err := e.fetcher.FetchExtract(ctx, r.Result.URL)
			return fetched{ranked: *r, page: page, err: err}
		})
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for _, f := range pages {
			if f.err != nil {
				logger.Debug().Err(f.err).Str("url", f.ranked.Result.URL).Msg("fetch skipped")
				continue
			}
			if len([]rune(f.page.Text)) < e.cfg.MinContentChars {
				logger.Debug().
					Err(fmt.Errorf("%s: %w", f.ranked.Result.URL, core.ErrExtractionEmpty)).
					Int("chars", len(f.page.Text)).
					Msg("extraction discarded")
				continue
			}

			seen[f.ranked.Result.URL] = true
			totalChars += len(f.page.Text)
			out = append(out, core.Candidate{
				URL:       f.ranked.Result.URL,
				Title:     titleOr(f.ranked.Result.Title, titleOr(f.page.Title, f.ranked.Result.URL)),
				Published: f.ranked.Result.Published,
				Snippet:   f.ranked.Result.Snippet,
				Text:      f.page.Text,
				Topic:     topic,
				Score:     f.ranked.Score,
			})
			if len(out) == limit {
				break
			}
		}
	}

	logger.Info().
		Str("query", query).
		Int("results", len(results)).
		Int("sources", len(out)).
		Str("quality", string(core.GradeSearch(len(out), totalChars))).
		Dur("took", time.Since(start)).
		Msg("topic searched")
	return out, nil
}

// search tries the authority domains of the type first and falls back to an
// unrestricted search once when that yields nothing.
func (e *Executor) search(ctx context.Context, logger zerolog.Logger, st core.SearchType, query string) ([]core.SearchResult, error) {
	domains := e.table.AuthorityDomains(st, e.cfg.NarrowDomains)
	if len(domains) > 0 {
		results, err := e.searcher.Search(ctx, query, domains)
		if err == nil && len(results) > 0 {
			return results, nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			logger.Warn().Err(err).Msg("narrowed search failed")
		}
		logger.Debug().Msg("narrowed search empty, searching broadly")
	}

	results, err := e.searcher.Search(ctx, query, nil)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		logger.Warn().Err(err).Msg("search failed")
		return nil, nil
	}
	return results, nil
}

func (e *Executor) queryFor(st core.SearchType, topic string, year int) string {
	if !e.cfg.AppendYear || !st.TimeSensitive() || yearRe.MatchString(topic) {
		return topic
	}
	return topic + " " + strconv.Itoa(year)
}

func titleOr(title, fallback string) string {
	if title != "" {
		return title
	}
	return fallback
}
