package moderation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/nikhilbhutani/reviewguard/internal/llm"
	"github.com/nikhilbhutani/reviewguard/internal/models"
)

// Classifier turns one review into a verdict with a single model call.
type Classifier struct {
	gateway     llm.Gateway
	temperature float64
	structured  bool
}

func NewClassifier(gw llm.Gateway, temperature float64, structured bool) *Classifier {
	return &Classifier{gateway: gw, temperature: temperature, structured: structured}
}

// Classify asks the model for a verdict on review under guideline. Rate
// limits are retried inside the gateway; any error that survives aborts the
// caller's run.
func (c *Classifier) Classify(ctx context.Context, review, guideline string) (models.Verdict, error) {
	resp, err := c.gateway.Chat(ctx, llm.ChatRequest{
		Messages: []llm.Message{
			{Role: "user", Content: BuildPrompt(guideline, review, c.structured)},
		},
		Temperature: c.temperature,
		JSONMode:    c.structured,
	})
	if err != nil {
		return models.Verdict{}, fmt.Errorf("classify review: %w", err)
	}

	if c.structured {
		v, err := ParseStructured(resp.Content)
		if err == nil {
			return v, nil
		}
		slog.Warn("structured verdict rejected, falling back to line format", "error", err)
	}
	return ParseLines(resp.Content), nil
}
