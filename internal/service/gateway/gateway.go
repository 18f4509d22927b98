package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sandevgo/chorus/internal/config"
	"github.com/sandevgo/chorus/internal/core"
	"github.com/sandevgo/chorus/internal/metrics"
	"github.com/sandevgo/chorus/pkg/log"
)

// Gateway wraps every reasoning call in a per-task timeout and retry envelope.
// An attempt that overruns its timeout is abandoned: its context is cancelled
// and its eventual result is discarded.
type Gateway struct {
	svc      core.InferenceService
	profiles map[core.Task]config.Profile
	fallback config.Profile
}

func New(svc core.InferenceService, profiles map[core.Task]config.Profile) *Gateway {
	return &Gateway{
		svc:      svc,
		profiles: profiles,
		fallback: config.Profile{Timeout: 5 * time.Minute, MaxRetries: 1},
	}
}

func (g *Gateway) Profile(task core.Task) config.Profile {
	if p, ok := g.profiles[task]; ok {
		return p
	}
	return g.fallback
}

type outcome struct {
	text string
	err  error
}

func (g *Gateway) Invoke(ctx context.Context, task core.Task, messages []core.Message) (string, error) {
	p := g.Profile(task)
	logger := log.FromCtx(ctx).With().Str("task", string(task)).Str("model", p.Model).Logger()

	tokens := EstimateTokens(messages)
	metrics.PromptTokens.WithLabelValues(string(task)).Observe(float64(tokens))

	var lastErr error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		start := time.Now()
		text, err := g.attempt(ctx, p, messages)
		took := time.Since(start)
		metrics.InferenceLatency.WithLabelValues(string(task)).Observe(took.Seconds())

		if err == nil {
			metrics.InferenceCalls.WithLabelValues(string(task), "success").Inc()
			logger.Debug().
				Int("attempt", attempt+1).
				Int("prompt_tokens", tokens).
				Dur("took", took).
				Msg("inference call completed")
			return text, nil
		}

		// The caller gave up; no further attempts
		if ctx.Err() != nil {
			metrics.InferenceCalls.WithLabelValues(string(task), "canceled").Inc()
			return "", fmt.Errorf("%s: %w", task, ctx.Err())
		}

		status := "error"
		if errors.Is(err, core.ErrTimeout) {
			status = "timeout"
		}
		metrics.InferenceCalls.WithLabelValues(string(task), status).Inc()
		logger.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Int("max_attempts", p.MaxRetries+1).
			Dur("took", took).
			Msg("inference attempt failed")
		lastErr = err
	}

	if errors.Is(lastErr, core.ErrTimeout) {
		return "", fmt.Errorf("%s after %d attempts: %w", task, p.MaxRetries+1, core.ErrTimeout)
	}
	return "", fmt.Errorf("%s after %d attempts: %w: %w", task, p.MaxRetries+1, core.ErrServiceUnavailable, lastErr)
}

// attempt runs one call on its own goroutine and stops waiting once the profile timeout passes.
func (g *Gateway) attempt(ctx context.Context, p config.Profile, messages []core.Message) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, p.Timeout)
	defer cancel()

	// Buffered so an abandoned call can still deliver and exit
	done := make(chan outcome, 1)
	go func() {
		text, err := g.svc.Complete(attemptCtx, core.CompletionRequest{
			Model:    p.Model,
			Messages: messages,
		})
		done <- outcome{text: text, err: err}
	}()

	select {
	case out := <-done:
		if out.err != nil && errors.Is(out.err, context.DeadlineExceeded) && ctx.Err() == nil {
			return "", fmt.Errorf("no response within %s: %w", p.Timeout, core.ErrTimeout)
		}
		return out.text, out.err
	case <-attemptCtx.Done():
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("no response within %s: %w", p.Timeout, core.ErrTimeout)
	}
}
