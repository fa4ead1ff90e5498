package results

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nikhilbhutani/reviewguard/internal/models"
)

// Store persists review records for all uploads in review_results, keyed by
// upload id.
type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Insert(ctx context.Context, rec *models.ReviewRecord) error {
	err := s.db.QueryRow(ctx,
		`INSERT INTO review_results (upload_id, row_number, tbody, status, reason, result, skipped)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		rec.UploadID, rec.RowNumber, rec.BodyText, rec.Status, rec.Reason, rec.Result, rec.Skipped,
	).Scan(&rec.ID, &rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert review result: %w", err)
	}
	return nil
}

// ListByUpload returns the upload's records in source row order.
func (s *Store) ListByUpload(ctx context.Context, uploadID uuid.UUID) ([]models.ReviewRecord, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, upload_id, row_number, tbody, status, reason, result, skipped, created_at
		 FROM review_results WHERE upload_id = $1
		 ORDER BY row_number, id`, uploadID,
	)
	if err != nil {
		return nil, fmt.Errorf("list review results: %w", err)
	}
	defer rows.Close()

	var recs []models.ReviewRecord
	for rows.Next() {
		var r models.ReviewRecord
		if err := rows.Scan(&r.ID, &r.UploadID, &r.RowNumber, &r.BodyText,
			&r.Status, &r.Reason, &r.Result, &r.Skipped, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan review result: %w", err)
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// CountClassified counts records that carry a classifier verdict.
func (s *Store) CountClassified(ctx context.Context, uploadID uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRow(ctx,
		`SELECT count(*) FROM review_results WHERE upload_id = $1 AND NOT skipped`,
		uploadID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count review results: %w", err)
	}
	return n, nil
}

// Reset removes every record stored for the upload so a new run starts clean.
func (s *Store) Reset(ctx context.Context, uploadID uuid.UUID) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM review_results WHERE upload_id = $1`, uploadID)
	if err != nil {
		return 0, fmt.Errorf("reset review results: %w", err)
	}
	return tag.RowsAffected(), nil
}
