package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sandevgo/chorus/internal/config"
	"github.com/sandevgo/chorus/internal/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAICompatible_Complete(t *testing.T) {
	var got struct {
		Model    string         `json:"model"`
		Messages []core.Message `json:"messages"`
	}
	var auth, title string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		auth = r.Header.Get("Authorization")
		title = r.Header.Get("X-Title")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"hello"}}]}`))
	}))
	defer srv.Close()

	p := NewOpenAICompatible(OpenAICompatibleConfig{
		BaseURL:      srv.URL,
		APIKey:       "secret",
		AuthHeader:   "Authorization",
		AuthPrefix:   "Bearer ",
		ExtraHeaders: map[string]string{"X-Title": core.ChorusName},
	})

	out, err := p.Complete(context.Background(), core.CompletionRequest{
		Model:    "qwen3:4b",
		Messages: []core.Message{core.SystemMessage("sys"), core.UserMessage("hi")},
	})
	require.NoError(t, err)

	assert.Equal(t, "hello", out)
	assert.Equal(t, "qwen3:4b", got.Model)
	assert.Len(t, got.Messages, 2)
	assert.Equal(t, "Bearer secret", auth)
	assert.Equal(t, core.ChorusName, title)
}

func TestOpenAICompatible_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		model  string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `boom`, model: "m"},
		{name: "empty choices", status: http.StatusOK, body: `{"choices":[]}`, model: "m"},
		{name: "invalid json", status: http.StatusOK, body: `{`, model: "m"},
		{name: "no model", status: http.StatusOK, body: `{}`, model: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p := NewCustomOpenAI(srv.URL, "")
			_, err := p.Complete(context.Background(), core.CompletionRequest{Model: tt.model})
			assert.Error(t, err)
		})
	}
}

func TestParseOpenAIResponse_KeepsReasoning(t *testing.T) {
	out, err := parseOpenAIResponse([]byte(`{"choices":[{"message":{"content":"answer","reasoning":"hmm"}}]}`))
	require.NoError(t, err)
	assert.Equal(t, "<think>hmm</think>\nanswer", out)
}

func TestAnthropic_SplitsSystemMessages(t *testing.T) {
	var got map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"part1 "},{"type":"text","text":"part2"}]}`))
	}))
	defer srv.Close()

	a := NewAnthropic("key")
	a.baseURL = srv.URL

	out, err := a.Complete(context.Background(), core.CompletionRequest{
		Model:    "claude",
		Messages: []core.Message{core.SystemMessage("rules"), core.UserMessage("q")},
	})
	require.NoError(t, err)

	assert.Equal(t, "part1 part2", out)
	assert.Equal(t, "rules", got["system"])
	assert.Len(t, got["messages"], 1)
}

func TestOllama_Complete(t *testing.T) {
	var auth string
	var req struct {
		Model  string `json:"model"`
		Stream *bool  `json:"stream"`
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		_, _ = w.Write([]byte(`{"model":"qwen3:8b","message":{"role":"assistant","content":"pong"},"done":true}`))
	}))
	defer srv.Close()

	o, err := NewOllama(srv.URL, "tok", "default-model")
	require.NoError(t, err)

	out, err := o.Complete(context.Background(), core.CompletionRequest{
		Model:    "qwen3:8b",
		Messages: []core.Message{core.UserMessage("ping")},
	})
	require.NoError(t, err)

	assert.Equal(t, "pong", out)
	assert.Equal(t, "qwen3:8b", req.Model)
	require.NotNil(t, req.Stream)
	assert.False(t, *req.Stream)
	assert.Equal(t, "Bearer tok", auth)
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		provider string
		wantErr  bool
	}{
		{provider: "ollama"},
		{provider: "openai"},
		{provider: "anthropic"},
		{provider: "openrouter"},
		{provider: "custom", wantErr: true},
		{provider: "bogus", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := &config.ProviderConfig{Provider: tt.provider, OllamaBaseURL: "http://localhost:11434"}
			p, err := NewProvider(context.Background(), cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, p)
		})
	}
}
