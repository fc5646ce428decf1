package mgmt

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/terra-clan/exercise-submitter/internal/cache"
	"github.com/terra-clan/exercise-submitter/internal/models"
)

var alice = models.Credentials{Username: "alice", Password: "wonderland"}

// fakeManagement serves a course "pr2" with two assignments for alice
type fakeManagement struct {
	server *httptest.Server
	calls  atomic.Int32
}

func newFakeManagement(t *testing.T) *fakeManagement {
	t.Helper()
	f := &fakeManagement{}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		if !f.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, map[string]string{"username": "alice"})
	})
	mux.HandleFunc("/api/courses/pr2/assignments", func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		if !f.authorized(r) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		writeJSON(w, map[string]any{"assignments": []models.Exercise{
			{Name: "Exercise01", GroupWork: false, State: models.AssignmentSubmission},
			{Name: "Project", GroupWork: true, State: models.AssignmentInReview},
		}})
	})
	mux.HandleFunc("/api/courses/pr2/assignments/Exercise01/submission-path", func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		writeJSON(w, map[string]string{"path": "/Exercise01/alice"})
	})
	mux.HandleFunc("/api/courses/pr2/assignments/Project/submission-path", func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		writeJSON(w, map[string]string{"url": "https://git.example.org/projects", "path": "/Project/group3"})
	})
	mux.HandleFunc("/api/courses/pr2/assignments/Broken/submission-path", func(w http.ResponseWriter, r *http.Request) {
		f.calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("database down"))
	})

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeManagement) authorized(r *http.Request) bool {
	user, pass, ok := r.BasicAuth()
	return ok && user == alice.Username && pass == alice.Password
}

func (f *fakeManagement) client() *Client {
	return NewClient(f.server.URL, "pr2", "https://git.example.org/submissions", WithTimeout(5*time.Second))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func TestLogin(t *testing.T) {
	f := newFakeManagement(t)
	c := f.client()

	if err := c.Login(context.Background(), alice); err != nil {
		t.Errorf("Login failed: %v", err)
	}

	err := c.Login(context.Background(), models.Credentials{Username: "alice", Password: "wrong"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginUsesAuthURL(t *testing.T) {
	f := newFakeManagement(t)
	c := NewClient("http://127.0.0.1:1", "pr2", "", WithAuthURL(f.server.URL))

	if err := c.Login(context.Background(), alice); err != nil {
		t.Errorf("Login failed: %v", err)
	}
}

func TestListAssignments(t *testing.T) {
	f := newFakeManagement(t)

	assignments, err := f.client().ListAssignments(context.Background(), alice)
	if err != nil {
		t.Fatalf("ListAssignments failed: %v", err)
	}
	if len(assignments) != 2 {
		t.Fatalf("expected 2 assignments, got %d", len(assignments))
	}
	if !assignments[0].State.AcceptsSubmissions() || assignments[1].State.AcceptsSubmissions() {
		t.Errorf("unexpected states %v, %v", assignments[0].State, assignments[1].State)
	}
}

func TestResolveSubmissionPath(t *testing.T) {
	f := newFakeManagement(t)
	c := f.client()

	target, err := c.ResolveSubmissionPath(context.Background(), alice, "Exercise01")
	if err != nil {
		t.Fatalf("ResolveSubmissionPath failed: %v", err)
	}
	want := models.SubmissionTarget{URL: "https://git.example.org/submissions", Path: "/Exercise01/alice"}
	if target != want {
		t.Errorf("got %+v, want %+v", target, want)
	}

	target, err = c.ResolveSubmissionPath(context.Background(), alice, "Project")
	if err != nil {
		t.Fatalf("ResolveSubmissionPath failed: %v", err)
	}
	if target.URL != "https://git.example.org/projects" {
		t.Errorf("explicit repository URL not kept: %s", target.URL)
	}

	if _, err := c.ResolveSubmissionPath(context.Background(), alice, "Missing"); !errors.Is(err, ErrExerciseNotFound) {
		t.Errorf("expected ErrExerciseNotFound, got %v", err)
	}
	if _, err := c.ResolveSubmissionPath(context.Background(), alice, "Broken"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestIsGroupWork(t *testing.T) {
	f := newFakeManagement(t)
	c := f.client()

	group, err := c.IsGroupWork(context.Background(), alice, "Project")
	if err != nil || !group {
		t.Errorf("expected Project to be group work, got %v, %v", group, err)
	}
	if _, err := c.IsGroupWork(context.Background(), alice, "Unknown"); !errors.Is(err, ErrExerciseNotFound) {
		t.Errorf("expected ErrExerciseNotFound, got %v", err)
	}
}

func TestUnreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "pr2", "", WithTimeout(time.Second))

	if _, err := c.ListAssignments(context.Background(), alice); !errors.Is(err, ErrUnavailable) {
		t.Errorf("expected ErrUnavailable, got %v", err)
	}
}

func TestCachedDirectory(t *testing.T) {
	f := newFakeManagement(t)
	dir := NewCachedDirectory(f.client(), cache.NewLRUStore(16, time.Minute), alice)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		group, err := dir.IsGroupWork(ctx, "Project")
		if err != nil || !group {
			t.Fatalf("IsGroupWork = %v, %v", group, err)
		}
		target, err := dir.ResolveSubmissionPath(ctx, "Exercise01")
		if err != nil || target.Path != "/Exercise01/alice" {
			t.Fatalf("ResolveSubmissionPath = %+v, %v", target, err)
		}
	}

	if got := f.calls.Load(); got != 2 {
		t.Errorf("expected 2 backend calls, got %d", got)
	}

	if _, err := dir.Exercise(ctx, "Unknown"); !errors.Is(err, ErrExerciseNotFound) {
		t.Errorf("expected ErrExerciseNotFound, got %v", err)
	}
}

func TestCachedDirectoryWithoutStore(t *testing.T) {
	f := newFakeManagement(t)
	dir := NewCachedDirectory(f.client(), nil, alice)

	for i := 0; i < 2; i++ {
		if _, err := dir.Assignments(context.Background()); err != nil {
			t.Fatalf("Assignments failed: %v", err)
		}
	}
	if got := f.calls.Load(); got != 2 {
		t.Errorf("expected every lookup to reach the backend, got %d calls", got)
	}
}

func TestCachedDirectoryDoesNotCacheErrors(t *testing.T) {
	f := newFakeManagement(t)
	dir := NewCachedDirectory(f.client(), cache.NewLRUStore(16, time.Minute), alice)

	for i := 0; i < 2; i++ {
		if _, err := dir.ResolveSubmissionPath(context.Background(), "Broken"); err == nil {
			t.Fatal("expected error")
		}
	}
	if got := f.calls.Load(); got != 2 {
		t.Errorf("expected failed lookups to be retried, got %d calls", got)
	}
}
