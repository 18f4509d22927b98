package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sandevgo/chorus/internal/config"
	"github.com/sandevgo/chorus/internal/core"
	"github.com/sandevgo/chorus/internal/metrics"
	"github.com/sandevgo/chorus/pkg/conv"
	"github.com/sandevgo/chorus/pkg/log"
	"github.com/sandevgo/chorus/pkg/retry"
	"golang.org/x/time/rate"
)

// SearXNG queries a SearXNG instance through its JSON API.
type SearXNG struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	retrier *retry.Retrier
	limit   int
}

func NewSearXNG(cfg *config.RetrievalConfig) *SearXNG {
	return &SearXNG{
		baseURL: strings.TrimRight(cfg.SearxURL, "/"),
		client:  &http.Client{Timeout: cfg.FetchTimeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.SearchRPS), max(cfg.SearchBurst, 1)),
		retrier: retry.NewRetrier(retry.NewQuickConfig()),
		limit:   cfg.ScrapeTopN,
	}
}

type searxResponse struct {
	Results []struct {
		URL           string `json:"url"`
		Title         string `json:"title"`
		Content       string `json:"content"`
		PublishedDate string `json:"publishedDate"`
	} `json:"results"`
}

// Search runs one query. When domains is non-empty the query is restricted
// to those sites. An empty result is not an error.
func (s *SearXNG) Search(ctx context.Context, query string, domains []string) ([]core.SearchResult, error) {
	scope := "broad"
	if len(domains) > 0 {
		scope = "narrow"
	}
	q := BuildQuery(query, domains)

	logger := log.FromCtx(ctx).With().Str("component", "search").Str("scope", scope).Logger()

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var resp searxResponse
	err := s.retrier.Do(ctx, func() error {
		var err error
		resp, err = s.do(ctx, q)
		return err
	})
	if err != nil {
		metrics.SearchRequests.WithLabelValues(scope, "error").Inc()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("search %q: %w: %w", query, core.ErrServiceUnavailable, err)
	}

	results := make([]core.SearchResult, 0, len(resp.Results))
	seen := make(map[string]bool, len(resp.Results))
	for _, r := range resp.Results {
		if r.URL == "" || seen[r.URL] {
			continue
		}
		seen[r.URL] = true
		results = append(results, core.SearchResult{
			URL:       r.URL,
			Title:     strings.TrimSpace(r.Title),
			Snippet:   strings.TrimSpace(conv.StripMarkup(r.Content)),
			Published: r.PublishedDate,
		})
		if s.limit > 0 && len(results) >= s.limit {
			break
		}
	}

	metrics.SearchRequests.WithLabelValues(scope, "success").Inc()
	logger.Debug().Str("query", q).Int("results", len(results)).Msg("search done")
	return results, nil
}

func (s *SearXNG) do(ctx context.Context, q string) (searxResponse, error) {
	var out searxResponse

	params := url.Values{}
	params.Set("q", q)
	params.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return out, retry.Permanent(err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", core.ChorusUserAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return out, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		err = fmt.Errorf("searxng returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return out, retry.Permanent(err)
		}
		return out, err
	}

	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return out, retry.Permanent(fmt.Errorf("decode searxng response: %w", err))
	}
	return out, nil
}

// BuildQuery appends a site filter for the given domains.
func BuildQuery(query string, domains []string) string {
	query = strings.TrimSpace(query)
	if len(domains) == 0 {
		return query
	}

	sites := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		sites = append(sites, "site:"+d)
	}
	if len(sites) == 0 {
		return query
	}
	return fmt.Sprintf("%s (%s)", query, strings.Join(sites, " OR "))
}
