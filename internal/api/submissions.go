package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/terra-clan/exercise-submitter/internal/feedback"
	"github.com/terra-clan/exercise-submitter/internal/models"
	"github.com/terra-clan/exercise-submitter/internal/submission"
)

// SubmitRequest asks to submit a local folder for an exercise
type SubmitRequest struct {
	Exercise  string `json:"exercise"`
	SourceDir string `json:"source_dir"`
}

// SubmitResponse is the result of a submission that reached the server
type SubmitResponse struct {
	RecordID    string              `json:"record_id"`
	State       models.OutcomeState `json:"state"`
	Revision    int64               `json:"revision"`
	SourceFiles int                 `json:"source_files"`
	Message     feedback.Message    `json:"message"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	creds, _ := CredentialsFromContext(r.Context())
	resp, reqErr := s.runSubmission(r, creds, req, nil)
	if reqErr != nil {
		reqErr.respond(w)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// runSubmission resolves the exercise, runs the pipeline and records the run
func (s *Server) runSubmission(r *http.Request, creds models.Credentials, req SubmitRequest, observer submission.Observer) (*SubmitResponse, *requestError) {
	if strings.TrimSpace(req.Exercise) == "" {
		return nil, &requestError{status: http.StatusBadRequest, code: "validation_error", message: "exercise is required"}
	}
	if strings.TrimSpace(req.SourceDir) == "" {
		return nil, &requestError{status: http.StatusBadRequest, code: "validation_error", message: "source_dir is required"}
	}

	ctx := r.Context()
	dir := s.deps.Directories(creds)

	exercise, err := dir.Exercise(ctx, req.Exercise)
	if err != nil {
		return nil, s.managementError(r, err, req.Exercise)
	}
	if !exercise.State.AcceptsSubmissions() {
		return nil, &requestError{status: http.StatusConflict, code: "submissions_closed", message: "exercise " + exercise.Name + " does not accept submissions"}
	}

	target, err := dir.ResolveSubmissionPath(ctx, req.Exercise)
	if err != nil {
		return nil, s.managementError(r, err, req.Exercise)
	}

	result, err := s.deps.Submitter.Submit(ctx, submission.Request{
		Credentials: creds,
		Target:      target,
		SourceDir:   req.SourceDir,
		Observer:    observer,
	})

	rec := &models.SubmissionRecord{
		UserID:     creds.Username,
		Exercise:   req.Exercise,
		TargetURL:  target.URL,
		TargetPath: target.Path,
		Revision:   models.NoRevision,
	}

	if err != nil {
		reqErr := s.failureError(r, dir, err, req.Exercise)
		slog.Warn("submission failed", "error", err, "user", creds.Username, "exercise", req.Exercise)

		rec.Failure = reqErr.code
		rec.Message = reqErr.message
		s.record(ctx, rec)
		return nil, reqErr
	}

	msg := s.deps.Translator.Outcome(result.Outcome)
	rec.State = result.Outcome.State()
	rec.Revision = result.Outcome.Revision
	rec.SourceFiles = result.SourceFiles
	rec.Message = msg.Text
	s.record(ctx, rec)

	return &SubmitResponse{
		RecordID:    rec.ID,
		State:       rec.State,
		Revision:    rec.Revision,
		SourceFiles: rec.SourceFiles,
		Message:     msg,
	}, nil
}

// record writes rec to the submission log. A failed write only loses the log entry.
func (s *Server) record(ctx context.Context, rec *models.SubmissionRecord) {
	if err := s.deps.Repo.Record(ctx, rec); err != nil {
		slog.Error("failed to record submission", "error", err, "user", rec.UserID, "exercise", rec.Exercise)
	}
}

func parsePaging(r *http.Request, filters *models.ListFilters) {
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit > 0 {
			filters.Limit = limit
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil && offset >= 0 {
			filters.Offset = offset
		}
	}
}
