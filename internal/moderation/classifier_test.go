package moderation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/reviewguard/internal/llm"
	"github.com/nikhilbhutani/reviewguard/internal/models"
)

type fakeGateway struct {
	reply string
	err   error
	req   llm.ChatRequest
}

func (g *fakeGateway) Model() string { return "fake" }

func (g *fakeGateway) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	g.req = req
	if g.err != nil {
		return nil, g.err
	}
	return &llm.ChatResponse{Content: g.reply}, nil
}

func TestClassifyStructured(t *testing.T) {
	gw := &fakeGateway{reply: `{"status":"Violation","reason":"off-topic","result":"yes"}`}
	c := NewClassifier(gw, 0.8, true)

	v, err := c.Classify(context.Background(), "Meh, Shipping took forever", "RULES")
	require.NoError(t, err)
	assert.Equal(t, models.Verdict{Status: "Violation", Reason: "off-topic", Result: "yes"}, v)
	assert.True(t, gw.req.JSONMode)
	assert.Equal(t, 0.8, gw.req.Temperature)
	require.Len(t, gw.req.Messages, 1)
	assert.Equal(t, "user", gw.req.Messages[0].Role)
	assert.Contains(t, gw.req.Messages[0].Content, "RULES")
}

func TestClassifyFallsBackToLines(t *testing.T) {
	gw := &fakeGateway{reply: "Status: Compliant\nReason: fine"}
	c := NewClassifier(gw, 0.8, true)

	v, err := c.Classify(context.Background(), "Good, Works", "RULES")
	require.NoError(t, err)
	assert.Equal(t, models.Verdict{Status: "Compliant", Reason: "fine", Result: "no"}, v)
}

func TestClassifyLineMode(t *testing.T) {
	gw := &fakeGateway{reply: "Status: Violation\nReason: contains profanity\nResult: yes"}
	c := NewClassifier(gw, 0.8, false)

	v, err := c.Classify(context.Background(), "Bad, ...", "RULES")
	require.NoError(t, err)
	assert.Equal(t, models.Verdict{Status: "Violation", Reason: "contains profanity", Result: "yes"}, v)
	assert.False(t, gw.req.JSONMode)
}

func TestClassifyPropagatesRateLimit(t *testing.T) {
	gw := &fakeGateway{err: llm.ErrRateLimited}
	c := NewClassifier(gw, 0.8, false)

	_, err := c.Classify(context.Background(), "x", "RULES")
	assert.True(t, errors.Is(err, llm.ErrRateLimited))
}
