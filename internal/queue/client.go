package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/reviewguard/internal/config"
)

type Client struct {
	client *asynq.Client
}

func RedisOpt(cfg config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{
		client: asynq.NewClient(RedisOpt(cfg)),
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

// EnqueueUploadProcess queues one run of the ingestion pipeline. The upload
// id doubles as the task id so repeated triggers collapse onto the pending
// task. Failed runs are not retried.
func (c *Client) EnqueueUploadProcess(ctx context.Context, uploadID uuid.UUID, timeout time.Duration) error {
	err := c.enqueue(ctx, TypeUploadProcess, UploadProcessPayload{UploadID: uploadID.String()},
		asynq.TaskID(uploadID.String()),
		asynq.MaxRetry(0),
		asynq.Timeout(timeout),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		slog.Info("upload already queued", "upload_id", uploadID)
		return nil
	}
	return err
}

func (c *Client) enqueue(ctx context.Context, taskType string, payload interface{}, opts ...asynq.Option) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	task := asynq.NewTask(taskType, data)
	info, err := c.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", taskType, err)
	}
	slog.Info("task enqueued", "type", taskType, "task_id", info.ID, "queue", info.Queue)
	return nil
}

// Enqueuer is the part of Client the dispatcher needs.
type Enqueuer interface {
	EnqueueUploadProcess(ctx context.Context, uploadID uuid.UUID, timeout time.Duration) error
}

// Dispatcher hands uploads to the worker instead of processing them in the
// request.
type Dispatcher struct {
	enqueuer Enqueuer
	timeout  time.Duration
}

func NewDispatcher(e Enqueuer, timeout time.Duration) *Dispatcher {
	return &Dispatcher{enqueuer: e, timeout: timeout}
}

// Process reports false: the run happens later on the worker.
func (d *Dispatcher) Process(ctx context.Context, uploadID uuid.UUID) (bool, error) {
	return false, d.enqueuer.EnqueueUploadProcess(ctx, uploadID, d.timeout)
}
