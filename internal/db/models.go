package db

import (
	"database/sql"
	"time"
)

// Submission status values.
const (
	StatusQueued  = "queued"
	StatusRunning = "running"
	StatusGraded  = "graded"
	StatusFailed  = "failed"
)

type Submission struct {
	ID            string          `db:"id"`
	SubmissionDir string          `db:"submission_dir"`
	Variant       int             `db:"variant"`
	Status        string          `db:"status"`
	OverallScore  sql.NullFloat64 `db:"overall_score"`
	Report        []byte          `db:"report"`
	ReportRef     sql.NullString  `db:"report_ref"`
	Error         sql.NullString  `db:"error"`
	CreatedAt     time.Time       `db:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at"`
}
