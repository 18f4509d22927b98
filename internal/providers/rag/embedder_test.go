package rag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ollama/ollama/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEmbedder(t *testing.T, h http.HandlerFunc) *Embedder {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return NewEmbedderWithClient(api.NewClient(u, srv.Client()), "nomic-embed-text")
}

func TestEmbedder_Embed(t *testing.T) {
	var model string
	e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		var req api.EmbeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		model = req.Model
		_, _ = w.Write([]byte(`{"embedding":[0.1,0.2,0.3]}`))
	})

	vec, err := e.Embed(context.Background(), "hello")
	require.NoError(t, err)

	assert.Equal(t, []float64{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, "nomic-embed-text", model)
}

func TestEmbedder_AveragesPassages(t *testing.T) {
	var calls atomic.Int32
	e := newTestEmbedder(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1)%2 == 1 {
			_, _ = w.Write([]byte(`{"embedding":[1,0]}`))
			return
		}
		_, _ = w.Write([]byte(`{"embedding":[0,1]}`))
	})
	e.passage = PassageConfig{MaxTokens: 20}

	// Two sentences that cannot share a 20-token passage
	text := strings.Repeat("alpha ", 15) + ". " + strings.Repeat("beta ", 15) + "."
	vec, err := e.Embed(context.Background(), text)
	require.NoError(t, err)

	n := int(calls.Load())
	require.GreaterOrEqual(t, n, 2)
	sum := vec[0] + vec[1]
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestEmbedder_Errors(t *testing.T) {
	tests := []struct {
		name string
		text string
		h    http.HandlerFunc
	}{
		{
			name: "empty text",
			text: "  ",
			h:    func(w http.ResponseWriter, r *http.Request) {},
		},
		{
			name: "server error",
			text: "hi",
			h: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"model not found"}`))
			},
		},
		{
			name: "empty vector",
			text: "hi",
			h: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"embedding":[]}`))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEmbedder(t, tt.h)
			_, err := e.Embed(context.Background(), tt.text)
			assert.Error(t, err)
		})
	}
}
