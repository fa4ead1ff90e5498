package ingest

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Inline runs the pipeline inside the caller's goroutine, detached from the
// caller's cancellation and bounded by timeout.
type Inline struct {
	pipeline *Pipeline
	timeout  time.Duration
}

func NewInline(p *Pipeline, timeout time.Duration) *Inline {
	return &Inline{pipeline: p, timeout: timeout}
}

// Process reports true since the run has finished by the time it returns.
func (i *Inline) Process(ctx context.Context, uploadID uuid.UUID) (bool, error) {
	ctx = context.WithoutCancel(ctx)
	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}
	if _, err := i.pipeline.Run(ctx, uploadID); err != nil {
		return false, err
	}
	return true, nil
}
