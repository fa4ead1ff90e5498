package models

import (
	"time"

	"github.com/google/uuid"
)

type UploadStatus string

const (
	UploadProcessing UploadStatus = "processing"
	UploadCompleted  UploadStatus = "completed"
)

// UploadStatusFrom maps a stored value back onto the enum. Anything
// unrecognised is treated as still processing.
func UploadStatusFrom(s string) UploadStatus {
	if s == string(UploadCompleted) {
		return UploadCompleted
	}
	return UploadProcessing
}

type Upload struct {
	ID        uuid.UUID    `json:"id" db:"id"`
	Filename  string       `json:"filename" db:"filename"`
	Status    UploadStatus `json:"status" db:"status"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt time.Time    `json:"updated_at" db:"updated_at"`
}
