package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/reviewguard/internal/api/handlers"
	"github.com/nikhilbhutani/reviewguard/internal/ingest"
	"github.com/nikhilbhutani/reviewguard/internal/models"
	"github.com/nikhilbhutani/reviewguard/internal/upload"
)

type memBlobs struct {
	stored map[string][]byte
	err    error
}

func (b *memBlobs) Store(_ context.Context, data io.Reader, name string) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	d, err := io.ReadAll(data)
	if err != nil {
		return "", err
	}
	b.stored[name] = d
	return name, nil
}

func (b *memBlobs) Delete(_ context.Context, name string) error {
	delete(b.stored, name)
	return nil
}

type memRegistry struct {
	mu      sync.Mutex
	uploads map[uuid.UUID]*models.Upload
	err     error
}

func (r *memRegistry) Register(_ context.Context, filename string) (uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return uuid.Nil, r.err
	}
	id := uuid.New()
	r.uploads[id] = &models.Upload{ID: id, Filename: filename, Status: models.UploadProcessing}
	return id, nil
}

func (r *memRegistry) Get(_ context.Context, id uuid.UUID) (*models.Upload, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.uploads[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", upload.ErrNotFound, id)
	}
	cp := *u
	return &cp, nil
}

type memResults map[uuid.UUID][]models.ReviewRecord

func (m memResults) ListByUpload(_ context.Context, id uuid.UUID) ([]models.ReviewRecord, error) {
	return m[id], nil
}

func (m memResults) CountClassified(_ context.Context, id uuid.UUID) (int, error) {
	n := 0
	for _, r := range m[id] {
		if r.Classified() {
			n++
		}
	}
	return n, nil
}

// fakeProcessor completes the upload with the given records when inline is
// set, and only records the call otherwise.
type fakeProcessor struct {
	inline  bool
	err     error
	calls   int
	reg     *memRegistry
	results memResults
	records []models.ReviewRecord
}

func (p *fakeProcessor) Process(_ context.Context, id uuid.UUID) (bool, error) {
	p.calls++
	if p.err != nil {
		return false, p.err
	}
	if !p.inline {
		return false, nil
	}
	p.results[id] = p.records
	p.reg.uploads[id].Status = models.UploadCompleted
	return true, nil
}

type fixture struct {
	blobs     *memBlobs
	registry  *memRegistry
	results   memResults
	processor *fakeProcessor
	srv       *httptest.Server
}

func newFixture(t *testing.T, mutate func(d *Deps)) *fixture {
	t.Helper()
	f := &fixture{
		blobs:    &memBlobs{stored: map[string][]byte{}},
		registry: &memRegistry{uploads: map[uuid.UUID]*models.Upload{}},
		results:  memResults{},
	}
	f.processor = &fakeProcessor{reg: f.registry, results: f.results}

	deps := Deps{
		Blobs:          f.blobs,
		Registry:       f.registry,
		Results:        f.results,
		Processor:      f.processor,
		AllowedOrigins: []string{"*"},
		Checks: map[string]handlers.Check{
			"database": func(context.Context) error { return nil },
		},
	}
	if mutate != nil {
		mutate(&deps)
	}
	f.srv = httptest.NewServer(NewRouter(deps).Setup())
	t.Cleanup(f.srv.Close)
	return f
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, err := mw.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = io.WriteString(fw, content)
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField("note", "no file here"))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func (f *fixture) upload(t *testing.T, field, filename, content string) (int, map[string]interface{}) {
	t.Helper()
	body, ct := multipartBody(t, field, filename, content)
	resp, err := http.Post(f.srv.URL+"/upload-to-gcs", ct, body)
	require.NoError(t, err)
	return decode(t, resp)
}

func (f *fixture) get(t *testing.T, path string) (int, map[string]interface{}) {
	t.Helper()
	resp, err := http.Get(f.srv.URL + path)
	require.NoError(t, err)
	return decode(t, resp)
}

func decode(t *testing.T, resp *http.Response) (int, map[string]interface{}) {
	t.Helper()
	defer resp.Body.Close()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestUploadValidation(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		filename string
		content  string
		wantErr  string
	}{
		{name: "wrong extension", field: "file", filename: "reviews.xlsx", content: "x", wantErr: "File type mismatch, CSV files only."},
		{name: "empty file", field: "file", filename: "reviews.csv", content: "", wantErr: "Empty file provided"},
		{name: "missing file", wantErr: "No file provided"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, nil)
			code, body := f.upload(t, tt.field, tt.filename, tt.content)

			assert.Equal(t, http.StatusBadRequest, code)
			assert.Equal(t, tt.wantErr, body["error"])
			assert.Empty(t, f.registry.uploads, "no registry row on rejected upload")
			assert.Empty(t, f.blobs.stored)
		})
	}
}

func TestUploadNotMultipart(t *testing.T) {
	f := newFixture(t, nil)
	resp, err := http.Post(f.srv.URL+"/upload-to-gcs", "application/json", bytes.NewBufferString("{}"))
	require.NoError(t, err)
	code, body := decode(t, resp)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "No file provided", body["error"])
}

func TestUploadRegisters(t *testing.T) {
	f := newFixture(t, nil)
	code, body := f.upload(t, "file", "reviews.csv", "Title,Body,Rating\nA,b,1\n")

	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "processing", body["status"])
	id, err := uuid.Parse(body["id"].(string))
	require.NoError(t, err)
	assert.Equal(t, "reviews.csv", f.registry.uploads[id].Filename)
	assert.Contains(t, f.blobs.stored, "reviews.csv")
}

func TestUploadStorageFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.blobs.err = errors.New("object store unavailable")

	code, _ := f.upload(t, "file", "reviews.csv", "Title,Body,Rating\n")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Empty(t, f.registry.uploads)
}

func TestUploadRegistryFailureRemovesBlob(t *testing.T) {
	f := newFixture(t, nil)
	f.registry.err = errors.New("database unavailable")

	code, body := f.upload(t, "file", "reviews.csv", "Title,Body,Rating\nA,b,1\n")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "Failed to insert file details", body["error"])
	assert.Empty(t, f.blobs.stored, "unregistered object is removed")
}

func TestProcessClassifierNotApplicableIsReturned(t *testing.T) {
	f := newFixture(t, nil)
	f.processor.inline = true
	f.processor.records = []models.ReviewRecord{
		{RowNumber: 1, Verdict: models.Verdict{Status: "N/A", Reason: "not a product review", Result: "maybe"}},
	}
	id, _ := f.registry.Register(context.Background(), "reviews.csv")

	code, body := f.get(t, "/process/"+id.String())
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []interface{}{
		map[string]interface{}{"status": "N/A", "reason": "not a product review", "result": "maybe"},
	}, body["gpt_data"])
}

func TestStatusLookups(t *testing.T) {
	f := newFixture(t, nil)

	for _, path := range []string{"/status/", "/status/not-a-uuid", "/status/" + uuid.NewString()} {
		code, body := f.get(t, path)
		assert.Equal(t, http.StatusNotFound, code, path)
		assert.Equal(t, "File not found or no UUID on payload.", body["error"])
	}
}

func TestStatusStaysProcessing(t *testing.T) {
	f := newFixture(t, nil)
	id, _ := f.registry.Register(context.Background(), "stuck.csv")

	for i := 0; i < 3; i++ {
		code, body := f.get(t, "/status/"+id.String())
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, map[string]interface{}{"status": "processing"}, body)
	}
}

func TestProcessUnknownID(t *testing.T) {
	f := newFixture(t, nil)

	for _, id := range []string{"nope", uuid.NewString()} {
		code, body := f.get(t, "/process/"+id)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "Invalid file ID", body["error"])
	}
	assert.Zero(t, f.processor.calls)
}

func TestProcessQueued(t *testing.T) {
	f := newFixture(t, nil)
	id, _ := f.registry.Register(context.Background(), "reviews.csv")

	code, body := f.get(t, "/process/"+id.String())
	assert.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, "processing", body["status"])
	assert.Equal(t, id.String(), body["id"])
	assert.Equal(t, 1, f.processor.calls)
}

func TestProcessInline(t *testing.T) {
	f := newFixture(t, nil)
	f.processor.inline = true
	f.processor.records = []models.ReviewRecord{
		{RowNumber: 1, Verdict: models.SkippedVerdict, Skipped: true},
		{RowNumber: 2, Verdict: models.Verdict{Status: "Violation", Reason: "contains profanity", Result: "YES"}},
	}
	id, _ := f.registry.Register(context.Background(), "reviews.csv")

	code, body := f.get(t, "/process/"+id.String())
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "complete", body["status"])
	assert.Equal(t, []interface{}{
		map[string]interface{}{"status": "N/A", "reason": "N/A", "result": "n/a"},
		map[string]interface{}{"status": "Violation", "reason": "contains profanity", "result": "yes"},
	}, body["gpt_data"])

	code, statusBody := f.get(t, "/status/"+id.String())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, body, statusBody)

	// completed uploads are answered from stored results
	f.get(t, "/process/"+id.String())
	assert.Equal(t, 1, f.processor.calls)
}

func TestProcessOnlySkippedRows(t *testing.T) {
	f := newFixture(t, nil)
	f.processor.inline = true
	f.processor.records = []models.ReviewRecord{{RowNumber: 1, Verdict: models.SkippedVerdict, Skipped: true}}
	id, _ := f.registry.Register(context.Background(), "reviews.csv")

	code, body := f.get(t, "/process/"+id.String())
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, handlers.NoClassifiedReviews, body["gpt_data"])
}

func TestProcessSchemaError(t *testing.T) {
	f := newFixture(t, nil)
	f.processor.err = fmt.Errorf("%w: missing columns rating", ingest.ErrSchema)
	id, _ := f.registry.Register(context.Background(), "reviews.csv")

	code, body := f.get(t, "/process/"+id.String())
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Contains(t, body["error"], "columns not found")
	assert.Equal(t, models.UploadProcessing, f.registry.uploads[id].Status)
}

func TestAuthRequiredWhenConfigured(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.JWTSecret = "secret" })

	code, _ := f.get(t, "/status/"+uuid.NewString())
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = f.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, code)
}

func TestReadyz(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		d.Checks["redis"] = func(context.Context) error { return errors.New("connection refused") }
	})

	code, body := f.get(t, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body["status"])
	checks := body["checks"].(map[string]interface{})
	assert.Equal(t, "ok", checks["database"])
}
