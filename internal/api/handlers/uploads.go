package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nikhilbhutani/reviewguard/internal/ingest"
	"github.com/nikhilbhutani/reviewguard/internal/models"
	"github.com/nikhilbhutani/reviewguard/internal/upload"
)

// NoClassifiedReviews is returned as gpt_data when every row of an upload was
// skipped.
const NoClassifiedReviews = "CSV contains 4-5 ratings only, no data has been processed."

const maxUploadMemory = 32 << 20

type Blobs interface {
	Store(ctx context.Context, data io.Reader, suggestedName string) (string, error)
	Delete(ctx context.Context, name string) error
}

type Registry interface {
	Register(ctx context.Context, filename string) (uuid.UUID, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Upload, error)
}

type Results interface {
	ListByUpload(ctx context.Context, uploadID uuid.UUID) ([]models.ReviewRecord, error)
	CountClassified(ctx context.Context, uploadID uuid.UUID) (int, error)
}

// Processor starts a pipeline run. It reports whether the run has already
// finished when it returns.
type Processor interface {
	Process(ctx context.Context, uploadID uuid.UUID) (bool, error)
}

type UploadHandler struct {
	blobs     Blobs
	registry  Registry
	results   Results
	processor Processor
}

func NewUploadHandler(blobs Blobs, reg Registry, results Results, p Processor) *UploadHandler {
	return &UploadHandler{blobs: blobs, registry: reg, results: results, processor: p}
}

func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	if !strings.HasSuffix(header.Filename, ".csv") {
		writeError(w, http.StatusBadRequest, "File type mismatch, CSV files only.")
		return
	}
	if header.Size == 0 {
		writeError(w, http.StatusBadRequest, "Empty file provided")
		return
	}

	name, err := h.blobs.Store(r.Context(), file, header.Filename)
	if err != nil {
		slog.Error("store upload", "file", header.Filename, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to store file")
		return
	}

	id, err := h.registry.Register(r.Context(), name)
	if err != nil {
		slog.Error("register upload", "file", name, "error", err)
		if derr := h.blobs.Delete(r.Context(), name); derr != nil {
			slog.Error("remove unregistered upload", "file", name, "error", derr)
		}
		writeError(w, http.StatusInternalServerError, "Failed to insert file details")
		return
	}

	slog.Info("upload registered", "upload_id", id, "file", name, "size", header.Size)
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "processing", "id": id})
}

func (h *UploadHandler) Process(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid file ID")
		return
	}

	u, err := h.registry.Get(r.Context(), id)
	if errors.Is(err, upload.ErrNotFound) {
		writeError(w, http.StatusBadRequest, "Invalid file ID")
		return
	}
	if err != nil {
		slog.Error("get upload", "upload_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Error retrieving file details")
		return
	}

	if u.Status != models.UploadCompleted {
		done, err := h.processor.Process(r.Context(), id)
		switch {
		case errors.Is(err, ingest.ErrSchema):
			writeError(w, http.StatusUnprocessableEntity, "Title, body and/or rating columns not found in the CSV file.")
			return
		case err != nil:
			slog.Error("process upload", "upload_id", id, "error", err)
			writeError(w, http.StatusInternalServerError, "Error processing file")
			return
		case !done:
			writeJSON(w, http.StatusAccepted, map[string]interface{}{"status": "processing", "id": id})
			return
		}
	}

	h.writeComplete(w, r, id)
}

func (h *UploadHandler) Status(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "id")
	if raw == "" {
		writeError(w, http.StatusNotFound, "File not found or no UUID on payload.")
		return
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusNotFound, "File not found or no UUID on payload.")
		return
	}

	u, err := h.registry.Get(r.Context(), id)
	if errors.Is(err, upload.ErrNotFound) {
		writeError(w, http.StatusNotFound, "File not found or no UUID on payload.")
		return
	}
	if err != nil {
		slog.Error("get upload", "upload_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Error retrieving file details")
		return
	}

	if u.Status != models.UploadCompleted {
		writeJSON(w, http.StatusOK, map[string]string{"status": "processing"})
		return
	}
	h.writeComplete(w, r, id)
}

type verdictView struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
	Result string `json:"result"`
}

func (h *UploadHandler) writeComplete(w http.ResponseWriter, r *http.Request, id uuid.UUID) {
	n, err := h.results.CountClassified(r.Context(), id)
	if err != nil {
		slog.Error("count results", "upload_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Error retrieving data from the table")
		return
	}
	if n == 0 {
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "complete", "gpt_data": NoClassifiedReviews})
		return
	}

	recs, err := h.results.ListByUpload(r.Context(), id)
	if err != nil {
		slog.Error("list results", "upload_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Error retrieving data from the table")
		return
	}

	views := make([]verdictView, len(recs))
	for i, rec := range recs {
		views[i] = verdictView{Status: rec.Status, Reason: rec.Reason, Result: strings.ToLower(rec.Result)}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "complete", "gpt_data": views})
}
