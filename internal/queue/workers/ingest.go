package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/reviewguard/internal/ingest"
	"github.com/nikhilbhutani/reviewguard/internal/queue"
	"github.com/nikhilbhutani/reviewguard/internal/upload"
)

type Runner interface {
	Run(ctx context.Context, uploadID uuid.UUID) (*ingest.Summary, error)
}

type IngestWorker struct {
	runner Runner
}

func NewIngestWorker(r Runner) *IngestWorker {
	return &IngestWorker{runner: r}
}

func (w *IngestWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.UploadProcessPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	uploadID, err := uuid.Parse(payload.UploadID)
	if err != nil {
		return fmt.Errorf("parse upload ID: %v: %w", err, asynq.SkipRetry)
	}

	slog.Info("processing upload task", "upload_id", uploadID)

	if _, err := w.runner.Run(ctx, uploadID); err != nil {
		slog.Error("upload run failed, upload left processing", "upload_id", uploadID, "error", err)
		if errors.Is(err, ingest.ErrSchema) || errors.Is(err, upload.ErrNotFound) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	return nil
}
