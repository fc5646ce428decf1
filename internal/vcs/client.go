package vcs

import (
	"context"
	"errors"

	"github.com/terra-clan/exercise-submitter/internal/models"
)

// Head selects the latest revision in Checkout
const Head int64 = 0

// Common errors
var (
	ErrPathNotFound     = errors.New("path not found in repository")
	ErrRevisionNotFound = errors.New("revision not found")
	ErrAuthentication   = errors.New("authentication failed")
	ErrUnreachable      = errors.New("repository unreachable")
	ErrNotWorkingCopy   = errors.New("not inside a working copy")
	ErrMissingPaths     = errors.New("working copy has missing paths")
)

// PathStatus classifies a path of a working copy against its base revision
type PathStatus int

const (
	StatusUnchanged PathStatus = iota
	StatusUnversioned
	StatusMissing
)

func (s PathStatus) String() string {
	switch s {
	case StatusUnversioned:
		return "unversioned"
	case StatusMissing:
		return "missing"
	default:
		return "unchanged"
	}
}

// StatusFunc receives every path found by WalkStatus
type StatusFunc func(path string, status PathStatus) error

// CommitParams control a commit. With DeleteMissing, versioned paths that
// disappeared from disk are committed as deletions; otherwise they fail
// the commit with ErrMissingPaths.
type CommitParams struct {
	Message       string
	DeleteMissing bool
}

// Client is the version-control backend used by the submission pipeline.
// A hook rejection is returned as an outcome, never as an error.
type Client interface {
	// Checkout fetches target at revision into dir and returns the
	// working-copy root that corresponds to target.Path
	Checkout(ctx context.Context, target models.SubmissionTarget, revision int64, dir string) (string, error)

	// WalkStatus reports the status of every path below root, parents first
	WalkStatus(ctx context.Context, root string, fn StatusFunc) error

	// Add schedules a single path for addition
	Add(path string) error

	// Delete schedules a path for deletion
	Delete(path string) error

	// Commit sends the working copy at root to the server
	Commit(ctx context.Context, root string, params CommitParams) (models.CommitOutcome, error)

	// Log lists the revisions that changed target.Path
	Log(ctx context.Context, target models.SubmissionTarget) ([]models.LogEntry, error)

	// TestConnection checks that the repository at url answers
	TestConnection(ctx context.Context, url string) error
}

// Factory creates a backend acting as the owner of creds
type Factory func(creds models.Credentials) Client

// GitFactory returns a Factory for go-git backends. Commits are authored
// as <username>@<authorDomain>.
func GitFactory(authorDomain string) Factory {
	return func(creds models.Credentials) Client {
		return NewGitClient(GitOptions{
			Username:    creds.Username,
			Password:    creds.Password,
			AuthorName:  creds.Username,
			AuthorEmail: creds.Username + "@" + authorDomain,
		})
	}
}
