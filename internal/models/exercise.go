package models

// AssignmentState is the lifecycle state of an assignment in the management system
type AssignmentState string

const (
	AssignmentInvisible  AssignmentState = "invisible"
	AssignmentSubmission AssignmentState = "submission"
	AssignmentInReview   AssignmentState = "in_review"
	AssignmentReviewed   AssignmentState = "reviewed"
)

// AcceptsSubmissions reports whether students may commit to the assignment
func (s AssignmentState) AcceptsSubmissions() bool {
	return s == AssignmentSubmission
}

// Exercise is an assignment as known to the management system
type Exercise struct {
	Name      string          `json:"name"`
	GroupWork bool            `json:"group_work"`
	State     AssignmentState `json:"state"`
}

// SubmissionTarget is where a submission is committed. URL is the
// repository, Path the folder inside it owned by the user or group.
type SubmissionTarget struct {
	URL  string `json:"url"`
	Path string `json:"path"`
}

// Credentials authenticate against the repository and the management system
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"-"`
}
