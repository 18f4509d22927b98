package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sandevgo/chorus/internal/config"
	"github.com/sandevgo/chorus/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSearXNG(t *testing.T, h http.HandlerFunc) *SearXNG {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	cfg := config.DefaultRetrievalConfig()
	cfg.SearxURL = srv.URL
	cfg.SearchRPS = 1000
	cfg.ScrapeTopN = 3
	return NewSearXNG(cfg)
}

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		domains []string
		want    string
	}{
		{name: "broad", query: " nvidia earnings ", want: "nvidia earnings"},
		{name: "single domain", query: "q", domains: []string{"reuters.com"}, want: "q (site:reuters.com)"},
		{name: "many domains", query: "q", domains: []string{"a.com", " ", "b.org"}, want: "q (site:a.com OR site:b.org)"},
		{name: "only blanks", query: "q", domains: []string{""}, want: "q"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildQuery(tt.query, tt.domains))
		})
	}
}

func TestSearXNG_Search(t *testing.T) {
	var gotQuery, gotFormat string
	s := newTestSearXNG(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		gotQuery = r.URL.Query().Get("q")
		gotFormat = r.URL.Query().Get("format")
		_, _ = w.Write([]byte(`{"results":[
			{"url":"https://a.com/1","title":" A ","content":"<span class=\"highlight\">first</span>"},
			{"url":"https://a.com/1","title":"dup"},
			{"url":"","title":"no url"},
			{"url":"https://b.com/2","title":"B","publishedDate":"2026-01-02"},
			{"url":"https://c.com/3","title":"C"},
			{"url":"https://d.com/4","title":"D"}
		]}`))
	})

	res, err := s.Search(context.Background(), "nvidia", []string{"reuters.com"})
	require.NoError(t, err)

	assert.Equal(t, "nvidia (site:reuters.com)", gotQuery)
	assert.Equal(t, "json", gotFormat)
	require.Len(t, res, 3)
	assert.Equal(t, core.SearchResult{URL: "https://a.com/1", Title: "A", Snippet: "first"}, res[0])
	assert.Equal(t, "2026-01-02", res[1].Published)
	assert.Equal(t, "https://c.com/3", res[2].URL)
}

func TestSearXNG_EmptyIsValid(t *testing.T) {
	s := newTestSearXNG(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	})

	res, err := s.Search(context.Background(), "nothing", nil)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestSearXNG_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	s := newTestSearXNG(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"results":[{"url":"https://a.com","title":"A"}]}`))
	})

	res, err := s.Search(context.Background(), "q", nil)
	require.NoError(t, err)
	assert.Len(t, res, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestSearXNG_ClientErrorIsNotRetried(t *testing.T) {
	var calls atomic.Int32
	s := newTestSearXNG(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	})

	_, err := s.Search(context.Background(), "q", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, core.ErrServiceUnavailable))
	assert.Equal(t, int32(1), calls.Load())
}

func TestSearXNG_Canceled(t *testing.T) {
	s := newTestSearXNG(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"results":[]}`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Search(ctx, "q", nil)
	assert.ErrorIs(t, err, context.Canceled)
}
