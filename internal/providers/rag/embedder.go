package rag

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/sandevgo/chorus/internal/config"
	"github.com/sandevgo/chorus/internal/metrics"
	"github.com/sandevgo/chorus/pkg/log"
	"gonum.org/v1/gonum/floats"
)

const keepAlive = 60 * time.Minute

// Embedder produces text embeddings through the Ollama embeddings endpoint.
type Embedder struct {
	client  *api.Client
	model   string
	passage PassageConfig
}

func NewEmbedder(cfg *config.ProviderConfig) (*Embedder, error) {
	u, err := url.Parse(cfg.OllamaBaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse ollama url: %w", err)
	}
	return NewEmbedderWithClient(api.NewClient(u, &http.Client{}), cfg.EmbeddingModel), nil
}

func NewEmbedderWithClient(client *api.Client, model string) *Embedder {
	return &Embedder{
		client:  client,
		model:   model,
		passage: NomicPassageConfig(),
	}
}

// Embed returns one vector per text. Texts longer than a passage are embedded
// piecewise and averaged.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float64, error) {
	passages := SplitPassages(text, e.passage)
	if len(passages) == 0 {
		return nil, fmt.Errorf("empty text")
	}

	var sum []float64
	for _, p := range passages {
		log.FromCtx(ctx).Debug().Int("index", p.Index).Int("tokens", p.TokenSize).Msg("embedding passage")

		vec, err := e.embedOnce(ctx, p.Text)
		if err != nil {
			metrics.RecordEmbedding(err)
			return nil, err
		}
		if sum == nil {
			sum = vec
			continue
		}
		if len(vec) != len(sum) {
			err = fmt.Errorf("embedding dimension changed: %d != %d", len(vec), len(sum))
			metrics.RecordEmbedding(err)
			return nil, err
		}
		floats.Add(sum, vec)
	}

	if len(passages) > 1 {
		floats.Scale(1/float64(len(passages)), sum)
	}
	metrics.RecordEmbedding(nil)
	return sum, nil
}

func (e *Embedder) embedOnce(ctx context.Context, text string) ([]float64, error) {
	resp, err := e.client.Embeddings(ctx, &api.EmbeddingRequest{
		Model:     e.model,
		Prompt:    text,
		KeepAlive: &api.Duration{Duration: keepAlive},
	})
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, fmt.Errorf("embed: empty vector")
	}
	return resp.Embedding, nil
}
