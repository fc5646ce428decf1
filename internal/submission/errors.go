package submission

import (
	"errors"
	"fmt"
)

// FailureKind names why a submission could not reach the server
type FailureKind string

const (
	KindRepositoryUnreachable  FailureKind = "REPOSITORY_UNREACHABLE"
	KindTempDirUnavailable     FailureKind = "TEMP_DIR_UNAVAILABLE"
	KindExercisePathNotFound   FailureKind = "EXERCISE_PATH_NOT_FOUND"
	KindCommitRejectedByServer FailureKind = "COMMIT_REJECTED_BY_SERVER"
	KindReconciliationFailed   FailureKind = "RECONCILIATION_FAILED"
	KindManagementQueryFailed  FailureKind = "MANAGEMENT_SYSTEM_QUERY_FAILED"
)

// Failure is a pipeline error tagged with its kind and the location
// (URL or directory) it concerns. Location may be empty.
type Failure struct {
	Kind     FailureKind
	Location string
	Err      error
}

// NewFailure creates a Failure
func NewFailure(kind FailureKind, location string, err error) *Failure {
	return &Failure{Kind: kind, Location: location, Err: err}
}

func (f *Failure) Error() string {
	msg := string(f.Kind)
	if f.Location != "" {
		msg += " (" + f.Location + ")"
	}
	if f.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, f.Err)
	}
	return msg
}

func (f *Failure) Unwrap() error {
	return f.Err
}

// AsFailure extracts a Failure from an error chain
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
