package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/reviewguard/internal/ingest"
	"github.com/nikhilbhutani/reviewguard/internal/queue"
)

type fakeRunner struct {
	got uuid.UUID
	err error
}

func (r *fakeRunner) Run(_ context.Context, id uuid.UUID) (*ingest.Summary, error) {
	r.got = id
	return &ingest.Summary{}, r.err
}

func task(t *testing.T, id string) *asynq.Task {
	t.Helper()
	data, err := json.Marshal(queue.UploadProcessPayload{UploadID: id})
	require.NoError(t, err)
	return asynq.NewTask(queue.TypeUploadProcess, data)
}

func TestIngestWorkerRunsPipeline(t *testing.T) {
	r := &fakeRunner{}
	id := uuid.New()

	err := NewIngestWorker(r).ProcessTask(context.Background(), task(t, id.String()))
	require.NoError(t, err)
	assert.Equal(t, id, r.got)
}

func TestIngestWorkerErrors(t *testing.T) {
	tests := []struct {
		name     string
		id       string
		runErr   error
		wantSkip bool
	}{
		{name: "bad id", id: "not-a-uuid", wantSkip: true},
		{name: "schema", id: uuid.NewString(), runErr: fmt.Errorf("%w: missing columns body", ingest.ErrSchema), wantSkip: true},
		{name: "transient", id: uuid.NewString(), runErr: errors.New("connection reset")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewIngestWorker(&fakeRunner{err: tt.runErr}).ProcessTask(context.Background(), task(t, tt.id))
			require.Error(t, err)
			assert.Equal(t, tt.wantSkip, errors.Is(err, asynq.SkipRetry))
		})
	}
}
