package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/reviewguard/internal/models"
)

// ErrSchema is returned when the CSV header lacks a required column.
var ErrSchema = errors.New("csv schema error")

var requiredColumns = []string{"title", "body", "rating"}

type Registry interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Upload, error)
	SetStatus(ctx context.Context, id uuid.UUID, status models.UploadStatus) error
}

type Blobs interface {
	Fetch(ctx context.Context, name string) (string, func(), error)
}

type Guidelines interface {
	Get(ctx context.Context, policyID string) (*models.Guideline, error)
}

type Classifier interface {
	Classify(ctx context.Context, review, guideline string) (models.Verdict, error)
}

type Results interface {
	Insert(ctx context.Context, rec *models.ReviewRecord) error
	Reset(ctx context.Context, uploadID uuid.UUID) (int64, error)
}

// Summary counts what a run did with the rows of one file.
type Summary struct {
	Rows       int `json:"rows"`
	Classified int `json:"classified"`
	Skipped    int `json:"skipped"`
	Ignored    int `json:"ignored"`
}

type Pipeline struct {
	registry   Registry
	blobs      Blobs
	guidelines Guidelines
	classifier Classifier
	results    Results
	policyID   string
}

func NewPipeline(reg Registry, blobs Blobs, guidelines Guidelines, classifier Classifier, results Results, policyID string) *Pipeline {
	return &Pipeline{
		registry:   reg,
		blobs:      blobs,
		guidelines: guidelines,
		classifier: classifier,
		results:    results,
		policyID:   policyID,
	}
}

// Run processes every row of the upload's file in order and marks the upload
// completed once all of them are handled. Any error leaves the upload in
// processing. Records left by an earlier failed run are discarded first. An
// upload that is already completed is not processed again.
func (p *Pipeline) Run(ctx context.Context, uploadID uuid.UUID) (*Summary, error) {
	u, err := p.registry.Get(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	if u.Status == models.UploadCompleted {
		slog.Info("upload already completed", "upload_id", uploadID)
		return &Summary{}, nil
	}

	path, cleanup, err := p.blobs.Fetch(ctx, u.Filename)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", u.Filename, err)
	}
	defer cleanup()

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scratch file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: file has no header", ErrSchema)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	g, err := p.guidelines.Get(ctx, p.policyID)
	if err != nil {
		return nil, fmt.Errorf("load guidelines: %w", err)
	}

	removed, err := p.results.Reset(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	if removed > 0 {
		slog.Warn("discarded records from earlier run", "upload_id", uploadID, "records", removed)
	}

	slog.Info("processing upload", "upload_id", uploadID, "file", u.Filename, "guideline_version", g.Version)

	sum := &Summary{}
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sum, fmt.Errorf("read row %d: %w", sum.Rows+1, err)
		}
		sum.Rows++

		if err := p.handleRow(ctx, uploadID, sum.Rows, rec, cols, g.Text, sum); err != nil {
			return sum, err
		}
	}

	if err := p.registry.SetStatus(ctx, uploadID, models.UploadCompleted); err != nil {
		return sum, fmt.Errorf("mark completed: %w", err)
	}

	slog.Info("upload completed",
		"upload_id", uploadID,
		"rows", sum.Rows,
		"classified", sum.Classified,
		"skipped", sum.Skipped,
		"ignored", sum.Ignored,
	)
	return sum, nil
}

func (p *Pipeline) handleRow(ctx context.Context, uploadID uuid.UUID, row int, rec []string, cols map[string]int, guideline string, sum *Summary) error {
	title, okTitle := cell(rec, cols["title"])
	body, okBody := cell(rec, cols["body"])
	if !okTitle || !okBody {
		sum.Ignored++
		slog.Debug("row without title or body ignored", "upload_id", uploadID, "row", row)
		return nil
	}
	rating, _ := cell(rec, cols["rating"])

	out := &models.ReviewRecord{
		UploadID:  uploadID,
		RowNumber: row,
		BodyText:  title + ", " + body,
	}

	if rating == "4" || rating == "5" {
		out.Verdict = models.SkippedVerdict
		out.Skipped = true
		sum.Skipped++
	} else {
		v, err := p.classifier.Classify(ctx, out.BodyText, guideline)
		if err != nil {
			return fmt.Errorf("row %d: %w", row, err)
		}
		out.Verdict = v
		sum.Classified++
	}

	if err := p.results.Insert(ctx, out); err != nil {
		return fmt.Errorf("row %d: %w", row, err)
	}
	slog.Debug("row stored", "upload_id", uploadID, "row", row, "status", out.Status)
	return nil
}

func columnIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}

	var missing []string
	for _, c := range requiredColumns {
		if _, ok := cols[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns %s", ErrSchema, strings.Join(missing, ", "))
	}
	return cols, nil
}

// cell returns the trimmed value at i and whether it is present and non-empty.
func cell(rec []string, i int) (string, bool) {
	if i >= len(rec) {
		return "", false
	}
	v := strings.TrimSpace(rec[i])
	return v, v != ""
}
