package fetch

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/sandevgo/chorus/internal/config"
	"github.com/sandevgo/chorus/internal/core"
	"github.com/sandevgo/chorus/internal/metrics"
	"github.com/sandevgo/chorus/pkg/log"
	"github.com/sandevgo/chorus/pkg/retry"
)

const maxResponseSize = 2 << 20 // 2MB

// Fetcher downloads pages and extracts their main text.
type Fetcher struct {
	client   *http.Client
	retrier  *retry.Retrier
	cache    *cache.Cache
	minChars int
	maxChars int
}

func NewFetcher(cfg *config.RetrievalConfig) *Fetcher {
	return &Fetcher{
		client:   &http.Client{Timeout: cfg.FetchTimeout},
		retrier:  retry.NewRetrier(retry.NewQuickConfig()),
		cache:    cache.New(cfg.FetchCacheTTL, 2*cfg.FetchCacheTTL),
		minChars: cfg.MinContentChars,
		maxChars: cfg.MaxContentChars,
	}
}

// FetchExtract returns the page with its extracted text. A page that yields
// no usable text is returned with an empty Text and a nil error.
func (f *Fetcher) FetchExtract(ctx context.Context, rawURL string) (core.Page, error) {
	if cached, ok := f.cache.Get(rawURL); ok {
		metrics.RecordFetch("cache")
		return cached.(core.Page), nil
	}

	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		metrics.RecordFetch("error")
		return core.Page{URL: rawURL}, fmt.Errorf("invalid url %q", rawURL)
	}

	logger := log.FromCtx(ctx).With().Str("component", "fetch").Str("url", rawURL).Logger()
	start := time.Now()

	var (
		body        []byte
		contentType string
	)
	err = f.retrier.Do(ctx, func() error {
		var err error
		body, contentType, err = f.download(ctx, rawURL)
		return err
	})
	if err != nil {
		metrics.RecordFetch("error")
		if ctx.Err() != nil {
			return core.Page{URL: rawURL}, ctx.Err()
		}
		logger.Debug().Err(err).Msg("fetch failed")
		return core.Page{URL: rawURL}, fmt.Errorf("fetch %s: %w: %w", rawURL, core.ErrServiceUnavailable, err)
	}

	page := f.extract(u, body, contentType)
	page.Text = truncate(page.Text, f.maxChars)

	if page.Text == "" {
		metrics.RecordFetch("empty")
	} else {
		metrics.RecordFetch("success")
	}
	logger.Debug().
		Int("chars", len(page.Text)).
		Dur("took", time.Since(start)).
		Msg("page extracted")

	f.cache.Set(rawURL, page, cache.DefaultExpiration)
	return page, nil
}

func (f *Fetcher) download(ctx context.Context, rawURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", retry.Permanent(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("User-Agent", core.ChorusUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.5")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		err = fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
		if resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, "", retry.Permanent(err)
		}
		return nil, "", err
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func (f *Fetcher) extract(u *url.URL, body []byte, contentType string) core.Page {
	page := core.Page{URL: u.String()}

	mediaType, _, _ := mime.ParseMediaType(contentType)
	switch {
	case mediaType == "text/plain":
		page.Text = normalizeSpace(string(body))
		return page
	case mediaType != "" && !strings.Contains(mediaType, "html"):
		// pdf, images and other binary payloads carry no extractable text here
		return page
	}

	title, text := Extract(u, body, f.minChars)
	page.Title = title
	page.Text = text
	return page
}

func truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
