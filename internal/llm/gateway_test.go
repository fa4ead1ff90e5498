package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedProvider struct {
	errs  []error
	calls int
	last  ChatRequest
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) ChatCompletion(_ context.Context, req ChatRequest) (*ChatResponse, error) {
	p.calls++
	p.last = req
	if p.calls <= len(p.errs) && p.errs[p.calls-1] != nil {
		return nil, p.errs[p.calls-1]
	}
	return &ChatResponse{Provider: "scripted", Content: "Status: Compliant"}, nil
}

func rateLimited() error {
	return fmt.Errorf("upstream: %w", ErrRateLimited)
}

func TestGatewayRetriesRateLimits(t *testing.T) {
	p := &scriptedProvider{errs: []error{rateLimited(), rateLimited()}}
	gw := NewGatewayWithProvider(p, "gpt-4o-mini", 3, time.Millisecond)

	resp, err := gw.Chat(context.Background(), ChatRequest{})
	require.NoError(t, err)
	assert.Equal(t, "Status: Compliant", resp.Content)
	assert.Equal(t, 3, p.calls)
	assert.Equal(t, "gpt-4o-mini", p.last.Model)
}

func TestGatewayGivesUpAfterMaxRetries(t *testing.T) {
	p := &scriptedProvider{errs: []error{rateLimited(), rateLimited(), rateLimited(), rateLimited(), rateLimited()}}
	gw := NewGatewayWithProvider(p, "m", 3, time.Millisecond)

	_, err := gw.Chat(context.Background(), ChatRequest{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 4, p.calls, "one call plus three retries")
}

func TestGatewayDoesNotRetryOtherErrors(t *testing.T) {
	boom := errors.New("invalid api key")
	p := &scriptedProvider{errs: []error{boom}}
	gw := NewGatewayWithProvider(p, "m", 3, time.Millisecond)

	_, err := gw.Chat(context.Background(), ChatRequest{})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, p.calls)
}

func TestGatewayKeepsRequestModel(t *testing.T) {
	p := &scriptedProvider{}
	gw := NewGatewayWithProvider(p, "default", 0, 0)

	_, err := gw.Chat(context.Background(), ChatRequest{Model: "override", JSONMode: true})
	require.NoError(t, err)
	assert.Equal(t, "override", p.last.Model)
	assert.True(t, p.last.JSONMode)
}
