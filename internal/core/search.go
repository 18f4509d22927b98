package core

import (
	"fmt"
	"strings"
	"time"
)

type SearchType string

const (
	SearchGeneral    SearchType = "general"
	SearchNews       SearchType = "news"
	SearchFinancial  SearchType = "financial"
	SearchHistorical SearchType = "historical"
	SearchTechnical  SearchType = "technical"
	SearchDirect     SearchType = "direct"
	SearchNone       SearchType = "none"
)

var searchTypeAliases = map[string]SearchType{
	"tech": SearchTechnical,
}

// ParseSearchType accepts the canonical names plus a few aliases models tend to emit.
func ParseSearchType(s string) (SearchType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch t := SearchType(s); t {
	case SearchGeneral, SearchNews, SearchFinancial, SearchHistorical, SearchTechnical, SearchDirect, SearchNone:
		return t, nil
	}
	if t, ok := searchTypeAliases[s]; ok {
		return t, nil
	}
	return "", fmt.Errorf("unknown search type %q: %w", s, ErrParse)
}

// TimeSensitive reports whether topics of this type benefit from the current year.
func (t SearchType) TimeSensitive() bool {
	return t == SearchNews || t == SearchFinancial || t == SearchTechnical
}

type SearchPlan struct {
	Type   SearchType `json:"search_type"`
	Topics []string   `json:"topics"`
}

func (p SearchPlan) String() string {
	return fmt.Sprintf("%s[%s]", p.Type, strings.Join(p.Topics, "; "))
}

// SearchResult is one hit returned by the web search service.
type SearchResult struct {
	URL       string
	Title     string
	Snippet   string
	Published string
}

// Page is the outcome of fetching and extracting a single URL.
// An empty Text is a valid outcome.
type Page struct {
	URL   string
	Title string
	Text  string
}

type Candidate struct {
	Ref       int
	URL       string
	Title     string
	Published string
	Snippet   string
	Text      string
	Topic     string
	Score     float64
}

type Verdict struct {
	Candidate Candidate
	Admit     bool
	Reason    string
}

// Facts is the abstracted content of one admitted candidate.
type Facts struct {
	Candidate Candidate
	Content   string
}

type Citation struct {
	Ref       int    `json:"ref"`
	URL       string `json:"url"`
	Title     string `json:"title"`
	Published string `json:"published,omitempty"`
}

func CitationFrom(c Candidate) Citation {
	return Citation{Ref: c.Ref, URL: c.URL, Title: c.Title, Published: c.Published}
}

// SearchQuality grades how much usable text a topic produced.
type SearchQuality string

const (
	QualityExcellent SearchQuality = "excellent"
	QualityGood      SearchQuality = "good"
	QualityFair      SearchQuality = "fair"
	QualityPoor      SearchQuality = "poor"
	QualityNone      SearchQuality = "none"
)

func GradeSearch(successes, totalChars int) SearchQuality {
	switch {
	case successes >= 2 && totalChars > 1000:
		return QualityExcellent
	case successes >= 1 && totalChars > 600:
		return QualityGood
	case successes >= 1 && totalChars > 300:
		return QualityFair
	case successes == 0:
		return QualityNone
	default:
		return QualityPoor
	}
}

// Clock lets components be tested against a fixed time.
type Clock func() time.Time
