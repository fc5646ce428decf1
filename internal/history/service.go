package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"time"

	"github.com/terra-clan/exercise-submitter/internal/models"
	"github.com/terra-clan/exercise-submitter/internal/submission"
	"github.com/terra-clan/exercise-submitter/internal/vcs"
	"github.com/terra-clan/exercise-submitter/internal/workspace"
)

const dateLayout = "2006-01-02 15:04"

// ErrNoRevisions is returned by ReplayLatest when nothing was submitted yet
var ErrNoRevisions = errors.New("no revisions submitted")

// Location identifies a submission folder and the user reading it
type Location struct {
	Credentials models.Credentials
	Target      models.SubmissionTarget
}

// Options configure a Service
type Options struct {
	// TempDir is the root under which replay checkouts are created
	TempDir string
	// TimeZone used in revision descriptions, time.Local if nil
	TimeZone *time.Location
}

// Service lists and restores past submissions
type Service struct {
	clients vcs.Factory
	opts    Options
}

// NewService creates a history service
func NewService(clients vcs.Factory, opts Options) *Service {
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	if opts.TimeZone == nil {
		opts.TimeZone = time.Local
	}
	return &Service{clients: clients, opts: opts}
}

// History lists the revisions of loc, oldest first
func (s *Service) History(ctx context.Context, loc Location) ([]models.Revision, error) {
	entries, err := s.clients(loc.Credentials).Log(ctx, loc.Target)
	if err != nil {
		return nil, targetFailure(loc.Target, err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Revision < entries[j].Revision
	})

	revisions := make([]models.Revision, 0, len(entries))
	for _, e := range entries {
		revisions = append(revisions, models.Revision{
			Number:      e.Revision,
			Description: s.describe(e),
		})
	}
	return revisions, nil
}

// ReplayLatest restores the newest revision of loc into targetDir and
// returns its number
func (s *Service) ReplayLatest(ctx context.Context, targetDir string, loc Location) (int64, error) {
	revisions, err := s.History(ctx, loc)
	if err != nil {
		return 0, err
	}
	if len(revisions) == 0 {
		return 0, ErrNoRevisions
	}

	latest := revisions[len(revisions)-1].Number
	if err := s.Replay(ctx, latest, targetDir, loc); err != nil {
		return 0, err
	}
	return latest, nil
}

// Replay restores revision rev of loc into targetDir. The content of
// targetDir is replaced, IDE descriptors are not restored.
func (s *Service) Replay(ctx context.Context, rev int64, targetDir string, loc Location) error {
	scratch, err := workspace.NewScratch(s.opts.TempDir)
	if err != nil {
		return submission.NewFailure(submission.KindTempDirUnavailable, s.opts.TempDir, err)
	}
	defer func() {
		if err := workspace.RemoveScratch(scratch); err != nil {
			slog.Warn("failed to remove scratch directory", "dir", scratch, "error", err)
		}
	}()

	root, err := s.clients(loc.Credentials).Checkout(ctx, loc.Target, rev, scratch)
	if err != nil {
		return targetFailure(loc.Target, err)
	}

	if err := workspace.SyncForReplay(root, targetDir); err != nil {
		return fmt.Errorf("failed to restore revision %d into %s: %w", rev, targetDir, err)
	}

	slog.Info("revision replayed",
		"user", loc.Credentials.Username,
		"target", loc.Target.URL+loc.Target.Path,
		"revision", rev,
		"dir", targetDir,
	)
	return nil
}

func (s *Service) describe(e models.LogEntry) string {
	return fmt.Sprintf("%s (%d): %s (by %s)", e.Date.In(s.opts.TimeZone).Format(dateLayout), e.Revision, e.Message, e.Author)
}

func targetFailure(target models.SubmissionTarget, err error) error {
	if errors.Is(err, vcs.ErrUnreachable) {
		return submission.NewFailure(submission.KindRepositoryUnreachable, target.URL, err)
	}
	return submission.NewFailure(submission.KindExercisePathNotFound, target.URL, err)
}
