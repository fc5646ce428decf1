package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"

	"github.com/terra-clan/exercise-submitter/internal/descriptor"
	"github.com/terra-clan/exercise-submitter/internal/models"
	"github.com/terra-clan/exercise-submitter/internal/vcs"
	"github.com/terra-clan/exercise-submitter/internal/workspace"
)

// State is a step of the submission pipeline
type State string

const (
	StateInit       State = "init"
	StateCheckedOut State = "checked_out"
	StateSynced     State = "synced"
	StateReconciled State = "reconciled"
	StateCommitted  State = "committed"
	StateAccepted   State = "accepted"
	StateNoOp       State = "no_op"
	StateRejected   State = "rejected"
	StateCleanedUp  State = "cleaned_up"
)

// Observer is notified of every state the pipeline enters
type Observer func(state State)

// Localizer renders message keys
type Localizer interface {
	Text(key string, args ...any) string
}

// Options configure a Submitter
type Options struct {
	// TempDir is the root under which scratch working copies are created
	TempDir string
	// SourceExtension identifies source files, e.g. ".java"
	SourceExtension string
}

// Request describes one submission
type Request struct {
	Credentials models.Credentials
	Target      models.SubmissionTarget
	SourceDir   string
	Observer    Observer
}

// Result is the outcome of a submission that reached the server
type Result struct {
	SourceFiles int                  `json:"source_files"`
	Outcome     models.CommitOutcome `json:"outcome"`
	Changes     *workspace.Changes   `json:"changes"`
}

// Submitter runs the checkout, sync, reconcile and commit pipeline
type Submitter struct {
	clients  vcs.Factory
	injector *descriptor.Injector
	messages Localizer
	opts     Options
}

// NewSubmitter creates a Submitter
func NewSubmitter(clients vcs.Factory, injector *descriptor.Injector, messages Localizer, opts Options) *Submitter {
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.SourceExtension == "" {
		opts.SourceExtension = ".java"
	}
	return &Submitter{
		clients:  clients,
		injector: injector,
		messages: messages,
		opts:     opts,
	}
}

// Submit uploads req.SourceDir to req.Target. A hook rejection is a
// result, not an error. Errors are *Failure values.
func (s *Submitter) Submit(ctx context.Context, req Request) (*Result, error) {
	notify := func(state State) {
		if req.Observer != nil {
			req.Observer(state)
		}
	}
	notify(StateInit)

	if err := validateTarget(req.Target); err != nil {
		return nil, NewFailure(KindRepositoryUnreachable, req.Target.URL, err)
	}

	scratch, err := workspace.NewScratch(s.opts.TempDir)
	if err != nil {
		return nil, NewFailure(KindTempDirUnavailable, s.opts.TempDir, err)
	}
	defer func() {
		if err := workspace.RemoveScratch(scratch); err != nil {
			slog.Warn("failed to remove scratch directory", "dir", scratch, "error", err)
		}
		notify(StateCleanedUp)
	}()

	client := s.clients(req.Credentials)

	root, err := client.Checkout(ctx, req.Target, vcs.Head, scratch)
	if err != nil {
		if errors.Is(err, vcs.ErrUnreachable) {
			return nil, NewFailure(KindRepositoryUnreachable, req.Target.URL, err)
		}
		return nil, NewFailure(KindExercisePathNotFound, req.Target.URL, err)
	}
	notify(StateCheckedOut)

	if err := workspace.SyncForSubmission(req.SourceDir, root); err != nil {
		return nil, NewFailure(KindTempDirUnavailable, scratch, err)
	}
	notify(StateSynced)

	if _, err := s.injector.Inject(root, projectName(req.SourceDir)); err != nil {
		return nil, NewFailure(KindReconciliationFailed, root, err)
	}

	changes, err := workspace.Reconcile(ctx, client, root)
	if err != nil {
		return nil, NewFailure(KindReconciliationFailed, root, err)
	}
	notify(StateReconciled)

	sourceFiles, err := workspace.CountSourceFiles(root, s.opts.SourceExtension)
	if err != nil {
		return nil, NewFailure(KindReconciliationFailed, root, err)
	}

	outcome, err := client.Commit(ctx, root, vcs.CommitParams{
		Message:       s.messages.Text("submission.commit.exercise", req.Credentials.Username),
		DeleteMissing: true,
	})
	if err != nil {
		return nil, NewFailure(KindCommitRejectedByServer, req.Target.URL, err)
	}
	notify(StateCommitted)

	state := outcome.State()
	switch state {
	case models.OutcomeAccepted:
		notify(StateAccepted)
	case models.OutcomeNoOp:
		notify(StateNoOp)
	case models.OutcomeRejected:
		notify(StateRejected)
	}

	slog.Info("submission finished",
		"user", req.Credentials.Username,
		"target", req.Target.URL+req.Target.Path,
		"state", state,
		"revision", outcome.Revision,
		"source_files", sourceFiles,
		"added", len(changes.Added),
		"deleted", len(changes.Deleted),
	)

	return &Result{
		SourceFiles: sourceFiles,
		Outcome:     outcome,
		Changes:     changes,
	}, nil
}

func validateTarget(target models.SubmissionTarget) error {
	u, err := url.Parse(target.URL)
	if err != nil {
		return fmt.Errorf("invalid repository URL: %w", err)
	}
	if u.Scheme == "" {
		return fmt.Errorf("invalid repository URL %q: missing scheme", target.URL)
	}
	return nil
}

func projectName(sourceDir string) string {
	abs, err := filepath.Abs(sourceDir)
	if err != nil {
		return filepath.Base(sourceDir)
	}
	return filepath.Base(abs)
}
