package workspace

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/terra-clan/exercise-submitter/internal/models"
	"github.com/terra-clan/exercise-submitter/internal/vcs"
	"github.com/terra-clan/exercise-submitter/internal/vcs/vcstest"
)

const repoURL = "mem://submissions"

func checkout(t *testing.T, server *vcstest.Server) (vcs.Client, string) {
	t.Helper()
	client := server.Client("student")
	root, err := client.Checkout(context.Background(), models.SubmissionTarget{URL: repoURL, Path: "/Exercise01/student"}, vcs.Head, filepath.Join(t.TempDir(), "wc"))
	if err != nil {
		t.Fatalf("Checkout failed: %v", err)
	}
	return client, root
}

func relAll(t *testing.T, root string, paths []string) []string {
	t.Helper()
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		rel, err := filepath.Rel(root, p)
		if err != nil {
			t.Fatalf("rel failed: %v", err)
		}
		out = append(out, filepath.ToSlash(rel))
	}
	return out
}

func TestReconcileAddsAndDeletes(t *testing.T) {
	server := vcstest.NewServer()
	server.CreateRepository(repoURL, "admin", map[string]string{
		"Exercise01/student/Main.java":    "class Main {}",
		"Exercise01/student/old/Old.java": "class Old {}",
	})
	client, root := checkout(t, server)

	if err := os.RemoveAll(filepath.Join(root, "old")); err != nil {
		t.Fatalf("remove failed: %v", err)
	}
	writeTree(t, root, map[string]string{"pkg/sub/New.java": "class New {}"})

	changes, err := Reconcile(context.Background(), client, root)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}

	wantAdded := []string{"pkg", "pkg/sub", "pkg/sub/New.java"}
	if got := relAll(t, root, changes.Added); !equalStrings(got, wantAdded) {
		t.Errorf("added = %v, want %v", got, wantAdded)
	}
	if got := relAll(t, root, changes.Deleted); !equalStrings(got, []string{"old"}) {
		t.Errorf("deleted = %v, want [old]", got)
	}

	outcome, err := client.Commit(context.Background(), root, vcs.CommitParams{Message: "submit", DeleteMissing: true})
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if outcome.State() != models.OutcomeAccepted {
		t.Fatalf("expected accepted outcome, got %+v", outcome)
	}

	files := server.Files(repoURL, vcs.Head)
	if _, ok := files["Exercise01/student/pkg/sub/New.java"]; !ok {
		t.Error("new file not committed")
	}
	if _, ok := files["Exercise01/student/old/Old.java"]; ok {
		t.Error("deleted file still in repository")
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	server := vcstest.NewServer()
	server.CreateRepository(repoURL, "admin", map[string]string{
		"Exercise01/student/Main.java": "class Main {}",
	})
	client, root := checkout(t, server)
	writeTree(t, root, map[string]string{"Extra.java": "class Extra {}"})

	first, err := Reconcile(context.Background(), client, root)
	if err != nil {
		t.Fatalf("first Reconcile failed: %v", err)
	}
	if first.Empty() {
		t.Fatal("first run must schedule the new file")
	}

	second, err := Reconcile(context.Background(), client, root)
	if err != nil {
		t.Fatalf("second Reconcile failed: %v", err)
	}
	if !second.Empty() {
		t.Errorf("second run must not schedule anything, got %+v", second)
	}
}

func TestReconcileOutsideWorkingCopy(t *testing.T) {
	server := vcstest.NewServer()
	_, err := Reconcile(context.Background(), server.Client("student"), t.TempDir())
	if err == nil {
		t.Fatal("expected error outside a working copy")
	}
}
