package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/websocket"

	"github.com/terra-clan/exercise-submitter/internal/models"
)

func respond(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": status < 300,
		"data":    data,
	})
}

func respondErr(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"error":   map[string]string{"code": code, "message": message},
	})
}

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	upgrader := websocket.Upgrader{}
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, map[string]string{"status": "healthy"})
	})
	mux.HandleFunc("/api/v1/submissions", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "student" || pass != "secret" {
			respondErr(w, http.StatusUnauthorized, "invalid_credentials", "user name or password is wrong")
			return
		}
		if r.Method == http.MethodGet {
			if r.URL.Query().Get("exercise") != "Exercise01" || r.URL.Query().Get("limit") != "5" {
				respondErr(w, http.StatusBadRequest, "unexpected_query", r.URL.RawQuery)
				return
			}
			respond(w, http.StatusOK, map[string]interface{}{
				"submissions": []models.SubmissionRecord{{ID: "r1", UserID: "student", Exercise: "Exercise01", State: models.OutcomeAccepted}},
				"total":       1,
			})
			return
		}
		var req SubmitRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Exercise == "Closed" {
			respondErr(w, http.StatusConflict, "submissions_closed", "exercise Closed does not accept submissions")
			return
		}
		respond(w, http.StatusOK, SubmitResult{RecordID: "r1", State: models.OutcomeAccepted, Revision: 4, SourceFiles: 2})
	})
	mux.HandleFunc("/api/v1/submissions/stream", func(w http.ResponseWriter, r *http.Request) {
		if _, _, ok := r.BasicAuth(); !ok {
			respondErr(w, http.StatusUnauthorized, "missing_credentials", "no credentials")
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var req SubmitRequest
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		for _, state := range []string{"init", "checked_out", "cleaned_up"} {
			conn.WriteJSON(map[string]string{"type": "state", "state": state})
		}
		conn.WriteJSON(map[string]interface{}{"type": "result", "data": SubmitResult{State: models.OutcomeNoOp, Revision: models.NoRevision}})
	})
	mux.HandleFunc("/api/v1/exercises/Exercise01/history", func(w http.ResponseWriter, r *http.Request) {
		respond(w, http.StatusOK, map[string]interface{}{
			"revisions": []models.Revision{{Number: 1, Description: "first"}, {Number: 2, Description: "second"}},
			"total":     2,
		})
	})
	mux.HandleFunc("/api/v1/exercises/Exercise01/replay", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Revision int64 `json:"revision"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		if req.Revision == 0 {
			req.Revision = 2
		}
		respond(w, http.StatusOK, map[string]interface{}{"revision": req.Revision})
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestSubmit(t *testing.T) {
	server := newTestServer(t)
	c := NewClient(server.URL, "student", "secret")

	result, err := c.Submit(context.Background(), SubmitRequest{Exercise: "Exercise01", SourceDir: "/tmp/JP001"})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if result.State != models.OutcomeAccepted || result.Revision != 4 || result.SourceFiles != 2 {
		t.Errorf("unexpected result %+v", result)
	}

	_, err = c.Submit(context.Background(), SubmitRequest{Exercise: "Closed", SourceDir: "/tmp/JP001"})
	if !IsCode(err, "submissions_closed") {
		t.Errorf("expected submissions_closed, got %v", err)
	}
}

func TestInvalidCredentials(t *testing.T) {
	server := newTestServer(t)
	c := NewClient(server.URL, "student", "wrong")

	_, err := c.Submit(context.Background(), SubmitRequest{Exercise: "Exercise01", SourceDir: "/tmp/JP001"})
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T %v", err, err)
	}
	if apiErr.Status != http.StatusUnauthorized || apiErr.Code != "invalid_credentials" {
		t.Errorf("unexpected error %+v", apiErr)
	}
}

func TestSubmitWithProgress(t *testing.T) {
	server := newTestServer(t)
	c := NewClient(server.URL, "student", "secret")

	var states []string
	result, err := c.SubmitWithProgress(context.Background(), SubmitRequest{Exercise: "Exercise01", SourceDir: "/tmp/JP001"}, func(state string) {
		states = append(states, state)
	})
	if err != nil {
		t.Fatalf("SubmitWithProgress failed: %v", err)
	}
	if result.State != models.OutcomeNoOp {
		t.Errorf("expected no-op, got %+v", result)
	}
	if len(states) != 3 || states[2] != "cleaned_up" {
		t.Errorf("unexpected states %v", states)
	}
}

func TestSubmissions(t *testing.T) {
	server := newTestServer(t)
	c := NewClient(server.URL, "student", "secret")

	records, err := c.Submissions(context.Background(), &ListOptions{Exercise: "Exercise01", Limit: 5})
	if err != nil {
		t.Fatalf("Submissions failed: %v", err)
	}
	if len(records) != 1 || records[0].ID != "r1" {
		t.Errorf("unexpected records %+v", records)
	}
}

func TestHistoryAndReplay(t *testing.T) {
	server := newTestServer(t)
	c := NewClient(server.URL, "student", "secret")

	revisions, err := c.History(context.Background(), "Exercise01")
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(revisions) != 2 || revisions[1].Number != 2 {
		t.Errorf("unexpected revisions %+v", revisions)
	}

	rev, err := c.Replay(context.Background(), "Exercise01", 0, "/tmp/restore")
	if err != nil || rev != 2 {
		t.Errorf("expected latest revision 2, got %d, %v", rev, err)
	}
	rev, err = c.Replay(context.Background(), "Exercise01", 1, "/tmp/restore")
	if err != nil || rev != 1 {
		t.Errorf("expected revision 1, got %d, %v", rev, err)
	}
}

func TestHealth(t *testing.T) {
	server := newTestServer(t)
	c := NewClient(server.URL, "", "")

	if err := c.Health(context.Background()); err != nil {
		t.Errorf("Health failed: %v", err)
	}
}
