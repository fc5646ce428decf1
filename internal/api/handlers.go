package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/terra-clan/exercise-submitter/internal/history"
	"github.com/terra-clan/exercise-submitter/internal/mgmt"
	"github.com/terra-clan/exercise-submitter/internal/models"
	"github.com/terra-clan/exercise-submitter/internal/submission"
	"github.com/terra-clan/exercise-submitter/internal/vcs"
	"github.com/terra-clan/exercise-submitter/internal/workspace"
)

// Response helpers

type apiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *apiError   `json:"error,omitempty"`
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: status >= 200 && status < 300,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := apiResponse{
		Success: false,
		Error: &apiError{
			Code:    code,
			Message: message,
		},
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// requestError is a failed request with the status and envelope it is answered with
type requestError struct {
	status  int
	code    string
	message string
}

func (e *requestError) respond(w http.ResponseWriter) {
	respondError(w, e.status, e.code, e.message)
}

// failureStatus maps pipeline failures to HTTP status codes
func failureStatus(kind submission.FailureKind) int {
	switch kind {
	case submission.KindExercisePathNotFound:
		return http.StatusNotFound
	case submission.KindRepositoryUnreachable, submission.KindCommitRejectedByServer, submission.KindManagementQueryFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// failureError translates err for the user and wraps it for the response
func (s *Server) failureError(r *http.Request, dir Directory, err error, exercise string) *requestError {
	msg := s.deps.Translator.WithDirectory(dir).Failure(r.Context(), err, exercise)

	code := "internal_error"
	status := http.StatusInternalServerError
	if failure, ok := submission.AsFailure(err); ok {
		code = string(failure.Kind)
		status = failureStatus(failure.Kind)
	}
	return &requestError{status: status, code: code, message: msg.Text}
}

// managementError reports a failed management lookup
func (s *Server) managementError(r *http.Request, err error, exercise string) *requestError {
	if errors.Is(err, mgmt.ErrExerciseNotFound) {
		return &requestError{status: http.StatusNotFound, code: "exercise_not_found", message: "exercise " + exercise + " does not exist"}
	}
	slog.Error("management query failed", "error", err, "exercise", exercise)
	return s.failureError(r, nil, submission.NewFailure(submission.KindManagementQueryFailed, s.deps.ManagementURL, err), exercise)
}

// Health handlers

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	results := s.deps.Health.CheckAll(r.Context())

	checks := make(map[string]string, len(results))
	ready := true
	for name, err := range results {
		if err != nil {
			slog.Warn("readiness check failed", "check", name, "error", err)
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	if !ready {
		respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "not_ready",
			"checks": checks,
		})
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status": "ready",
		"checks": checks,
	})
}

// Assignment handlers

func (s *Server) handleListAssignments(w http.ResponseWriter, r *http.Request) {
	creds, _ := CredentialsFromContext(r.Context())

	assignments, err := s.deps.Directories(creds).Assignments(r.Context())
	if err != nil {
		s.managementError(r, err, "").respond(w)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"assignments": assignments,
		"total":       len(assignments),
	})
}

// Folder check handlers

// CheckRequest asks for the pre-submission check of a folder
type CheckRequest struct {
	SourceDir string `json:"source_dir"`
}

func (s *Server) handleCheckFolder(w http.ResponseWriter, r *http.Request) {
	var req CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if req.SourceDir == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "source_dir is required")
		return
	}

	stats, err := workspace.Inspect(req.SourceDir, s.deps.SourceExtension)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_source_dir", err.Error())
		return
	}

	warnings := stats.Check(s.deps.FolderLimits)
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"stats":    stats,
		"warnings": warnings,
		"messages": s.deps.Translator.Warnings(warnings),
	})
}

// History handlers

// ReplayRequest asks to restore a revision into a local folder.
// Revision 0 selects the latest revision.
type ReplayRequest struct {
	TargetDir string `json:"target_dir"`
	Revision  int64  `json:"revision"`
}

// location resolves where the user submits exercise
func (s *Server) location(r *http.Request, exercise string) (history.Location, Directory, *requestError) {
	creds, _ := CredentialsFromContext(r.Context())
	dir := s.deps.Directories(creds)

	target, err := dir.ResolveSubmissionPath(r.Context(), exercise)
	if err != nil {
		return history.Location{}, dir, s.managementError(r, err, exercise)
	}
	return history.Location{Credentials: creds, Target: target}, dir, nil
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	exercise := chi.URLParam(r, "exercise")

	loc, dir, reqErr := s.location(r, exercise)
	if reqErr != nil {
		reqErr.respond(w)
		return
	}

	revisions, err := s.deps.History.History(r.Context(), loc)
	if err != nil {
		slog.Error("failed to list history", "error", err, "exercise", exercise)
		s.failureError(r, dir, err, exercise).respond(w)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"revisions": revisions,
		"total":     len(revisions),
	})
}

func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	exercise := chi.URLParam(r, "exercise")

	var req ReplayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if strings.TrimSpace(req.TargetDir) == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "target_dir is required")
		return
	}
	if req.Revision < 0 {
		respondError(w, http.StatusBadRequest, "validation_error", "revision must not be negative")
		return
	}

	loc, dir, reqErr := s.location(r, exercise)
	if reqErr != nil {
		reqErr.respond(w)
		return
	}

	revision := req.Revision
	var err error
	if revision == 0 {
		revision, err = s.deps.History.ReplayLatest(r.Context(), req.TargetDir, loc)
	} else {
		err = s.deps.History.Replay(r.Context(), revision, req.TargetDir, loc)
	}

	if err != nil {
		switch {
		case errors.Is(err, history.ErrNoRevisions):
			respondError(w, http.StatusNotFound, "no_revisions", "nothing was submitted for "+exercise+" yet")
		case errors.Is(err, vcs.ErrRevisionNotFound):
			respondError(w, http.StatusNotFound, "revision_not_found", "revision does not exist")
		case errors.Is(err, workspace.ErrTargetNotDirectory):
			respondError(w, http.StatusBadRequest, "invalid_target_dir", "target_dir is not a directory")
		default:
			slog.Error("failed to replay revision", "error", err, "exercise", exercise, "revision", req.Revision)
			s.failureError(r, dir, err, exercise).respond(w)
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"revision":   revision,
		"target_dir": req.TargetDir,
	})
}

// Submission log handlers

func (s *Server) handleListSubmissions(w http.ResponseWriter, r *http.Request) {
	creds, _ := CredentialsFromContext(r.Context())

	filters := models.ListFilters{
		UserID:   creds.Username,
		Exercise: r.URL.Query().Get("exercise"),
		Limit:    50, // default
	}
	parsePaging(r, &filters)

	records, err := s.deps.Repo.List(r.Context(), filters)
	if err != nil {
		slog.Error("failed to list submissions", "error", err)
		respondError(w, http.StatusInternalServerError, "internal_error", "failed to list submissions")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"submissions": records,
		"total":       len(records),
	})
}
