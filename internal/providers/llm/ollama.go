package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/sandevgo/chorus/internal/core"
)

type Ollama struct {
	client *api.Client
	model  string
}

func NewOllama(baseURL, apiKey, model string) (*Ollama, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse ollama url: %w", err)
	}

	httpClient := &http.Client{}
	if apiKey != "" {
		httpClient.Transport = &bearerTransport{token: apiKey, next: http.DefaultTransport}
	}

	return &Ollama{
		client: api.NewClient(u, httpClient),
		model:  model,
	}, nil
}

// Client exposes the underlying API client so embeddings can share it.
func (o *Ollama) Client() *api.Client {
	return o.client
}

func (o *Ollama) Complete(ctx context.Context, req core.CompletionRequest) (string, error) {
	model := req.Model
	if model == "" {
		model = o.model
	}

	messages := make([]api.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, api.Message{Role: m.Role, Content: m.Content})
	}

	stream := false
	var content, thinking strings.Builder
	err := o.client.Chat(ctx, &api.ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   &stream,
	}, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		thinking.WriteString(resp.Message.Thinking)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}

	if thinking.Len() > 0 {
		return "<think>" + thinking.String() + "</think>\n" + content.String(), nil
	}
	return content.String(), nil
}

type bearerTransport struct {
	token string
	next  http.RoundTripper
}

func (t *bearerTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r = r.Clone(r.Context())
	r.Header.Set("Authorization", "Bearer "+t.token)
	return t.next.RoundTrip(r)
}
