package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sandevgo/chorus/internal/config"
	"github.com/sandevgo/chorus/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var article = `<html><head><title>Quarterly results &amp; outlook</title></head><body>
<nav>Home | About | Contact</nav>
<article><h1>Quarterly results</h1>
<p>` + strings.Repeat("Revenue grew strongly in the third quarter on data center demand. ", 12) + `</p>
<p>` + strings.Repeat("Margins expanded as supply constraints eased across the industry. ", 8) + `</p>
</article>
<footer>Copyright notice</footer>
</body></html>`

func newTestFetcher() *Fetcher {
	cfg := config.DefaultRetrievalConfig()
	cfg.FetchTimeout = 2 * time.Second
	return NewFetcher(cfg)
}

func TestFetcher_FetchExtract(t *testing.T) {
	tests := []struct {
		name         string
		contentType  string
		body         string
		wantContains string
		wantTitle    string
		wantEmpty    bool
	}{
		{
			name:         "article html",
			contentType:  "text/html; charset=utf-8",
			body:         article,
			wantContains: "Revenue grew strongly",
			wantTitle:    "Quarterly results",
		},
		{
			name:         "plain text",
			contentType:  "text/plain",
			body:         "just   some\n\n\n\ntext",
			wantContains: "just some\n\ntext",
		},
		{
			name:        "binary payload",
			contentType: "application/pdf",
			body:        "%PDF-1.4",
			wantEmpty:   true,
		},
		{
			name:        "empty html",
			contentType: "text/html",
			body:        "<html><body></body></html>",
			wantEmpty:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, core.ChorusUserAgent, r.Header.Get("User-Agent"))
				w.Header().Set("Content-Type", tt.contentType)
				fmt.Fprint(w, tt.body)
			}))
			defer srv.Close()

			page, err := newTestFetcher().FetchExtract(context.Background(), srv.URL)
			require.NoError(t, err)

			assert.Equal(t, srv.URL, page.URL)
			if tt.wantEmpty {
				assert.Empty(t, page.Text)
				return
			}
			assert.Contains(t, page.Text, tt.wantContains)
			if tt.wantTitle != "" {
				assert.Contains(t, page.Title, tt.wantTitle)
			}
		})
	}
}

func TestFetcher_Truncates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, strings.Repeat("a", 500))
	}))
	defer srv.Close()

	f := newTestFetcher()
	f.maxChars = 100

	page, err := f.FetchExtract(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", 100)+"...", page.Text)
}

func TestFetcher_CachesPerURL(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "cached body")
	}))
	defer srv.Close()

	f := newTestFetcher()
	for range 3 {
		page, err := f.FetchExtract(context.Background(), srv.URL)
		require.NoError(t, err)
		assert.Equal(t, "cached body", page.Text)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetcher_Errors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := newTestFetcher()

	_, err := f.FetchExtract(context.Background(), srv.URL)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrServiceUnavailable))
	assert.Equal(t, int32(1), calls.Load(), "4xx must not be retried")

	_, err = f.FetchExtract(context.Background(), "ftp://example.com/file")
	assert.Error(t, err)

	_, err = f.FetchExtract(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestExtract_FallsBackToMarkupStripping(t *testing.T) {
	u, _ := url.Parse("https://example.com/page")
	body := []byte(`<html><head><title>Short</title></head><body>
		<nav>menu items</nav><div>Tiny text <a href="/x">link</a></div><footer>foot</footer></body></html>`)

	title, text := Extract(u, body, 10_000)

	assert.Equal(t, "Short", title)
	assert.Contains(t, text, "Tiny text")
	assert.NotContains(t, text, "menu items")
	assert.NotContains(t, text, "foot")
	assert.NotContains(t, text, "/x")
}

func TestNormalizeSpace(t *testing.T) {
	assert.Equal(t, "a b\n\nc", normalizeSpace("  a \t  b \r\n\n\n\n  c  "))
}
