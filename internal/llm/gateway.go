package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/nikhilbhutani/reviewguard/internal/config"
)

type gateway struct {
	provider   Provider
	model      string
	maxRetries int
	retryDelay time.Duration
}

func NewGateway(cfg config.LLMConfig) (Gateway, error) {
	var p Provider
	switch cfg.Provider {
	case "openai":
		p = NewOpenAIProvider(cfg.OpenAIKey)
	case "anthropic":
		p = NewAnthropicProvider(cfg.AnthropicKey)
	case "ollama":
		p = NewOllamaProvider(cfg.OllamaURL)
	default:
		return nil, fmt.Errorf("provider %q not supported", cfg.Provider)
	}
	return NewGatewayWithProvider(p, cfg.Model, cfg.MaxRetries, cfg.RetryDelay), nil
}

// NewGatewayWithProvider wraps p so that rate-limited calls are retried up to
// maxRetries times, retryDelay apart. Every other error is returned as is.
func NewGatewayWithProvider(p Provider, model string, maxRetries int, retryDelay time.Duration) Gateway {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if retryDelay <= 0 {
		retryDelay = time.Millisecond
	}
	return &gateway{
		provider:   p,
		model:      model,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}
}

func (g *gateway) Model() string { return g.model }

func (g *gateway) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if req.Model == "" {
		req.Model = g.model
	}

	var resp *ChatResponse
	attempt := 0
	b := retry.WithMaxRetries(uint64(g.maxRetries), retry.NewConstant(g.retryDelay))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		r, err := g.provider.ChatCompletion(ctx, req)
		if err == nil {
			resp = r
			return nil
		}
		if errors.Is(err, ErrRateLimited) {
			slog.Warn("rate limit exceeded",
				"provider", g.provider.Name(),
				"attempt", attempt,
				"retry_in", g.retryDelay,
			)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%s chat (attempt %d): %w", g.provider.Name(), attempt, err)
	}
	return resp, nil
}
