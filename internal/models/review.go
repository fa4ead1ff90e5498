package models

import (
	"time"

	"github.com/google/uuid"
)

// Verdict labels produced by the classifier.
const (
	StatusCompliant = "Compliant"
	StatusViolation = "Violation"
	NotApplicable   = "N/A"

	ResultYes   = "yes"
	ResultNo    = "no"
	ResultMaybe = "maybe"
)

type Verdict struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
	Result string `json:"result"`
}

// SkippedVerdict is recorded for reviews excluded from classification.
var SkippedVerdict = Verdict{Status: NotApplicable, Reason: NotApplicable, Result: NotApplicable}

type ReviewRecord struct {
	ID        int64     `json:"id" db:"id"`
	UploadID  uuid.UUID `json:"upload_id" db:"upload_id"`
	RowNumber int       `json:"row_number" db:"row_number"`
	BodyText  string    `json:"tbody" db:"tbody"`
	Verdict
	// Skipped marks rows excluded from classification by rating.
	Skipped   bool      `json:"skipped" db:"skipped"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Classified reports whether the record carries a classifier verdict rather
// than a skip marker. A classifier may itself answer N/A.
func (r ReviewRecord) Classified() bool {
	return !r.Skipped
}

type Guideline struct {
	PolicyID  string    `json:"policy_id" db:"policy_id"`
	Version   int       `json:"version" db:"version"`
	Text      string    `json:"text" db:"text"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
