package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sandevgo/chorus/internal/core"
	"gopkg.in/yaml.v3"
)

//go:embed defaults/ranking.yaml
var defaultRanking []byte

type TypeWeights struct {
	Authority      []string `yaml:"authority"`
	AuthorityBoost float64  `yaml:"authority_boost"`
	RecencyBonus   float64  `yaml:"recency_bonus"`
	// Overrides the table-wide recency words when set
	RecencyWords []string `yaml:"recency_words"`
}

// RankingTable holds the tunable source-ranking heuristic.
type RankingTable struct {
	Base            float64                         `yaml:"base"`
	HTTPSBonus      float64                         `yaml:"https_bonus"`
	TitleMatchBonus float64                         `yaml:"title_match_bonus"`
	DenylistPenalty float64                         `yaml:"denylist_penalty"`
	Blocklist       []string                        `yaml:"blocklist"`
	Denylist        []string                        `yaml:"denylist"`
	RecencyWords    []string                        `yaml:"recency_words"`
	Types           map[core.SearchType]TypeWeights `yaml:"types"`
}

func DefaultRankingTable() *RankingTable {
	t, err := ParseRankingTable(defaultRanking)
	if err != nil {
		panic(fmt.Sprintf("embedded ranking table is invalid: %v", err))
	}
	return t
}

// LoadRankingTable reads a YAML ranking table. An empty path returns the embedded default.
func LoadRankingTable(path string) (*RankingTable, error) {
	if path == "" {
		return DefaultRankingTable(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ranking table: %w", err)
	}
	t, err := ParseRankingTable(data)
	if err != nil {
		return nil, fmt.Errorf("parse ranking table %s: %w", path, err)
	}
	return t, nil
}

func ParseRankingTable(data []byte) (*RankingTable, error) {
	t := &RankingTable{}
	if err := yaml.Unmarshal(data, t); err != nil {
		return nil, err
	}
	for st := range t.Types {
		if _, err := core.ParseSearchType(string(st)); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// Weights returns the weights for a search type; zero weights when the type has none.
func (t *RankingTable) Weights(st core.SearchType) TypeWeights {
	return t.Types[st]
}

// AuthorityDomains lists the domains usable in a site: filter for the type.
// Suffix patterns such as ".edu" are skipped.
func (t *RankingTable) AuthorityDomains(st core.SearchType, limit int) []string {
	var out []string
	for _, d := range t.Types[st].Authority {
		if strings.HasPrefix(d, ".") {
			continue
		}
		out = append(out, d)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// RecencyWordsFor expands the {year} placeholder with the given year.
func (t *RankingTable) RecencyWordsFor(st core.SearchType, year int) []string {
	words := t.RecencyWords
	if w := t.Types[st].RecencyWords; len(w) > 0 {
		words = w
	}
	out := make([]string, 0, len(words))
	y := strconv.Itoa(year)
	for _, w := range words {
		out = append(out, strings.ReplaceAll(w, "{year}", y))
	}
	return out
}
