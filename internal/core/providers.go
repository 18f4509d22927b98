package core

import "context"

type CompletionRequest struct {
	Model    string
	Messages []Message
}

// InferenceService is the raw text-in/text-out reasoning boundary.
// Timeout and retry policy live in the gateway, not here.
type InferenceService interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// Invoker runs a reasoning step under the profile of its task.
type Invoker interface {
	Invoke(ctx context.Context, task Task, messages []Message) (string, error)
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}

type WebSearcher interface {
	// Search returns hits in engine order. An empty slice is not an error.
	Search(ctx context.Context, query string, domains []string) ([]SearchResult, error)
}

type PageFetcher interface {
	FetchExtract(ctx context.Context, url string) (Page, error)
}
