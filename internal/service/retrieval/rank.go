package retrieval

import (
	"net/url"
	"slices"
	"strings"

	"github.com/sandevgo/chorus/internal/config"
	"github.com/sandevgo/chorus/internal/core"
)

type Ranked struct {
	Result core.SearchResult
	Score  float64
}

// Ranker scores search results with the weighting table.
type Ranker struct {
	table *config.RankingTable
}

func NewRanker(table *config.RankingTable) *Ranker {
	return &Ranker{table: table}
}

// Rank scores results for a topic and sorts them best first. Blocklisted hosts
// are dropped. Equal scores keep the search engine's order.
func (r *Ranker) Rank(results []core.SearchResult, topic string, st core.SearchType, year int) []Ranked {
	weights := r.table.Weights(st)
	recency := r.table.RecencyWordsFor(st, year)
	words := strings.Fields(strings.ToLower(topic))

	out := make([]Ranked, 0, len(results))
	for _, res := range results {
		u, err := url.Parse(res.URL)
		if err != nil || u.Host == "" {
			continue
		}
		host := strings.ToLower(u.Hostname())
		if matchesAny(host, r.table.Blocklist) {
			continue
		}

		title := strings.ToLower(res.Title)
		text := title + " " + strings.ToLower(res.Snippet)

		score := r.table.Base
		if matchesAny(host, weights.Authority) {
			score += weights.AuthorityBoost
		}
		if weights.RecencyBonus != 0 && containsAny(text, recency) {
			score += weights.RecencyBonus
		}
		for _, w := range words {
			if strings.Contains(title, w) {
				score += r.table.TitleMatchBonus
			}
		}
		if matchesAny(host, r.table.Denylist) {
			score -= r.table.DenylistPenalty
		}
		if u.Scheme == "https" {
			score += r.table.HTTPSBonus
		}

		out = append(out, Ranked{Result: res, Score: score})
	}

	slices.SortStableFunc(out, func(a, b Ranked) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	return out
}

// matchesAny reports whether host contains one of the patterns. Patterns
// starting with a dot match as suffixes.
func matchesAny(host string, patterns []string) bool {
	for _, p := range patterns {
		p = strings.ToLower(p)
		if strings.HasPrefix(p, ".") {
			if strings.HasSuffix(host, p) {
				return true
			}
			continue
		}
		if strings.Contains(host, p) {
			return true
		}
	}
	return false
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if w != "" && strings.Contains(text, strings.ToLower(w)) {
			return true
		}
	}
	return false
}
