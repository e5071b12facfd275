package schemas

import (
	"encoding/json"
	"time"
)

// GradeTaskType is the asynq task name for grading one submission.
const GradeTaskType = "grade_submission"

// GradeTaskPayload is the asynq payload of GradeTaskType.
type GradeTaskPayload struct {
	SubmissionID string `json:"submission_id"`
}

type SubmitRequest struct {
	SubmissionDir string `json:"submission_dir"`
	Variant       int    `json:"variant"`
}

type SubmitResponse struct {
	SubmissionID string `json:"submission_id"`
	Status       string `json:"status"`
}

type SubmissionOut struct {
	SubmissionID  string          `json:"submission_id"`
	SubmissionDir string          `json:"submission_dir"`
	Variant       int             `json:"variant"`
	Status        string          `json:"status"`
	OverallScore  *float64        `json:"overall_score,omitempty"`
	Report        json.RawMessage `json:"report,omitempty"`
	ReportRef     string          `json:"report_ref,omitempty"`
	Error         string          `json:"error,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
