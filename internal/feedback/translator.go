package feedback

import (
	"context"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/terra-clan/exercise-submitter/internal/config"
	"github.com/terra-clan/exercise-submitter/internal/hook"
	"github.com/terra-clan/exercise-submitter/internal/models"
	"github.com/terra-clan/exercise-submitter/internal/submission"
	"github.com/terra-clan/exercise-submitter/internal/workspace"
)

// Category tells the UI how to present a message
type Category string

const (
	CategoryInfo     Category = "INFO"
	CategoryProblems Category = "STRUCTURED_PROBLEMS"
	CategoryError    Category = "ERROR"
)

// Message is a user-facing result. Details holds pre-formatted text
// that should be shown verbatim.
type Message struct {
	Category Category       `json:"category"`
	Text     string         `json:"text"`
	Problems []hook.Problem `json:"problems,omitempty"`
	Details  string         `json:"details,omitempty"`
}

// Localizer renders message keys
type Localizer interface {
	Text(key string, args ...any) string
}

// ExerciseDirectory answers the lookups used to explain a missing exercise
type ExerciseDirectory interface {
	IsGroupWork(ctx context.Context, exercise string) (bool, error)
	ResolveSubmissionPath(ctx context.Context, exercise string) (models.SubmissionTarget, error)
}

// Translator turns pipeline outcomes and failures into messages
type Translator struct {
	parser    *hook.Parser
	messages  Localizer
	course    config.CourseSettings
	directory ExerciseDirectory
}

// NewTranslator creates a translator
func NewTranslator(parser *hook.Parser, messages Localizer, course config.CourseSettings) *Translator {
	return &Translator{
		parser:   parser,
		messages: messages,
		course:   course,
	}
}

// WithDirectory returns a copy that resolves exercise details through dir
func (t *Translator) WithDirectory(dir ExerciseDirectory) *Translator {
	c := *t
	c.directory = dir
	return &c
}

// Outcome translates a commit that reached the server
func (t *Translator) Outcome(outcome models.CommitOutcome) Message {
	switch outcome.State() {
	case models.OutcomeAccepted:
		return Message{Category: CategoryInfo, Text: t.messages.Text("submission.result.success")}
	case models.OutcomeNoOp:
		return Message{Category: CategoryInfo, Text: t.messages.Text("submission.result.no_changes")}
	}

	report, err := t.parser.Parse(outcome.Rejection.Text)
	if err != nil {
		slog.Error("failed to parse hook response", "error", err, "code", outcome.Rejection.Code)
		return Message{Category: CategoryError, Text: t.messages.Text("gui.error.unexpected_error")}
	}

	key := "submission.error.project_not_accepted"
	if outcome.Rejection.Code == models.RejectionHookReport {
		key = "submission.error.errors_found"
	}
	return Message{
		Category: CategoryProblems,
		Text:     t.messages.Text(key),
		Problems: report.Problems,
		Details:  report.Legacy,
	}
}

// Failure translates a pipeline error. exercise names the assignment
// the submission was meant for.
func (t *Translator) Failure(ctx context.Context, err error, exercise string) Message {
	failure, ok := submission.AsFailure(err)
	if !ok {
		return t.errorMessage("submission.error.basis", t.course.TeamName, t.course.TeamMail)
	}

	switch failure.Kind {
	case submission.KindRepositoryUnreachable:
		return t.errorMessage("submission.error.repository_not_found", failure.Location, t.course.TeamName, t.course.TeamMail)
	case submission.KindTempDirUnavailable:
		if failure.Location == "" {
			return t.errorMessage("submission.error.could_not_create_temp_dir_no_location_available")
		}
		return t.errorMessage("submission.error.could_not_create_temp_dir", failure.Location)
	case submission.KindExercisePathNotFound:
		owner, folder := t.describeExercise(ctx, exercise)
		return t.errorMessage("submission.error.exercise_not_found", exercise, owner, folder, failure.Location)
	case submission.KindCommitRejectedByServer:
		return t.errorMessage("submission.error.cannot_commit", failure.Location)
	case submission.KindReconciliationFailed:
		return t.errorMessage("submission.error.do_status_not_possible", t.course.TeamName, t.course.TeamMail)
	case submission.KindManagementQueryFailed:
		return t.errorMessage("submission.error.management_query_failed", failure.Location)
	default:
		return t.errorMessage("submission.error.basis", t.course.TeamName, t.course.TeamMail)
	}
}

// Warnings renders folder check warnings, one line each
func (t *Translator) Warnings(warnings []workspace.Warning) []string {
	lines := make([]string, 0, len(warnings))
	for _, w := range warnings {
		switch w.Kind {
		case workspace.WarningTooLarge:
			lines = append(lines, t.messages.Text("check.warning.too_large", humanize.Bytes(w.Actual), humanize.Bytes(w.Limit)))
		case workspace.WarningTooFewSourceFiles:
			lines = append(lines, t.messages.Text("check.warning.too_few_source_files", w.Actual, w.Limit))
		case workspace.WarningTooFewFiles:
			lines = append(lines, t.messages.Text("check.warning.too_few_files", w.Actual, w.Limit))
		case workspace.WarningTooManyFiles:
			lines = append(lines, t.messages.Text("check.warning.too_many_files", w.Actual, w.Limit))
		}
	}
	return lines
}

// describeExercise looks up who owns the submission and where it goes.
// Lookup failures are rendered as a placeholder.
func (t *Translator) describeExercise(ctx context.Context, exercise string) (owner, folder string) {
	unreachable := t.messages.Text("errors.stdmanagement.unreachable")
	if t.directory == nil {
		return unreachable, unreachable
	}

	owner = unreachable
	if group, err := t.directory.IsGroupWork(ctx, exercise); err != nil {
		slog.Warn("failed to query group work", "exercise", exercise, "error", err)
	} else if group {
		owner = t.messages.Text("submission.group")
	} else {
		owner = t.messages.Text("submission.user")
	}

	folder = unreachable
	if target, err := t.directory.ResolveSubmissionPath(ctx, exercise); err != nil {
		slog.Warn("failed to resolve submission path", "exercise", exercise, "error", err)
	} else {
		folder = target.Path
	}

	return owner, folder
}

func (t *Translator) errorMessage(key string, args ...any) Message {
	return Message{Category: CategoryError, Text: t.messages.Text(key, args...)}
}
