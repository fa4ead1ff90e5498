package upload

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilbhutani/reviewguard/internal/models"
)

// ErrNotFound is returned for an id the registry has no row for.
var ErrNotFound = errors.New("upload not found")

// Registry tracks submitted files and their processing status. Every call is
// a single autocommitted statement.
type Registry struct {
	db *pgxpool.Pool
}

func NewRegistry(db *pgxpool.Pool) *Registry {
	return &Registry{db: db}
}

func (r *Registry) Register(ctx context.Context, filename string) (uuid.UUID, error) {
	id := uuid.New()
	_, err := r.db.Exec(ctx,
		`INSERT INTO csv_upload (id, filename, status) VALUES ($1, $2, $3)`,
		id, filename, string(models.UploadProcessing),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("register upload: %w", err)
	}
	return id, nil
}

// SetStatus moves the upload to status. Setting the current status again is
// a no-op.
func (r *Registry) SetStatus(ctx context.Context, id uuid.UUID, status models.UploadStatus) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE csv_upload SET status = $1, updated_at = now() WHERE id = $2`,
		string(status), id,
	)
	if err != nil {
		return fmt.Errorf("set upload status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (r *Registry) GetStatus(ctx context.Context, id uuid.UUID) (models.UploadStatus, error) {
	u, err := r.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return u.Status, nil
}

func (r *Registry) GetFilename(ctx context.Context, id uuid.UUID) (string, error) {
	u, err := r.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return u.Filename, nil
}

func (r *Registry) Get(ctx context.Context, id uuid.UUID) (*models.Upload, error) {
	var u models.Upload
	var status string
	err := r.db.QueryRow(ctx,
		`SELECT id, filename, status, created_at, updated_at FROM csv_upload WHERE id = $1`, id,
	).Scan(&u.ID, &u.Filename, &status, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get upload: %w", err)
	}
	u.Status = models.UploadStatusFrom(status)
	return &u, nil
}
