package models

import (
	"time"
)

// SubmissionRecord is the log entry written for every pipeline run
type SubmissionRecord struct {
	ID          string       `json:"id"`
	UserID      string       `json:"user_id"`
	Exercise    string       `json:"exercise"`
	TargetURL   string       `json:"target_url"`
	TargetPath  string       `json:"target_path"`
	State       OutcomeState `json:"state,omitempty"`
	Failure     string       `json:"failure,omitempty"`
	Revision    int64        `json:"revision"`
	SourceFiles int          `json:"source_files"`
	Message     string       `json:"message"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Succeeded reports whether the run reached the server
func (r *SubmissionRecord) Succeeded() bool {
	return r.Failure == ""
}

// ListFilters for querying the submission log
type ListFilters struct {
	UserID   string
	Exercise string
	Limit    int
	Offset   int
}
