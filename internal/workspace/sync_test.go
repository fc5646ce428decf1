package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("mkdir failed: %v", err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("write failed: %v", err)
		}
	}
}

func listTree(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if p == root || d.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(root, p)
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		t.Fatalf("walk failed: %v", err)
	}
	sort.Strings(out)
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSyncForSubmission(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	writeTree(t, src, map[string]string{
		"src/Main.java":    "class Main {}",
		".classpath":       "<classpath/>",
		".git/config":      "[core]",
		"pkg/.svn/entries": "12",
		"pkg/Helper.java":  "class Helper {}",
	})
	writeTree(t, dst, map[string]string{
		".svn/wc.db":   "metadata",
		"Stale.java":   "class Stale {}",
		"old/Old.java": "class Old {}",
	})

	if err := SyncForSubmission(src, dst); err != nil {
		t.Fatalf("SyncForSubmission failed: %v", err)
	}

	want := []string{
		".classpath",
		".svn/wc.db",
		"pkg/Helper.java",
		"src/Main.java",
	}
	if got := listTree(t, dst); !equalStrings(got, want) {
		t.Errorf("destination = %v, want %v", got, want)
	}

	data, err := os.ReadFile(filepath.Join(dst, ".svn", "wc.db"))
	if err != nil || string(data) != "metadata" {
		t.Errorf("destination metadata must survive untouched, got %q (%v)", data, err)
	}
}

func TestSyncForSubmissionMissingSource(t *testing.T) {
	err := SyncForSubmission(filepath.Join(t.TempDir(), "nope"), t.TempDir())
	if err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestSyncForReplay(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"src/Main.java":         "class Main {}",
		".classpath":            "<classpath/>",
		".project":              "<projectDescription/>",
		".settings/org.eclipse": "x=1",
		".svn/entries":          "12",
	})

	t.Run("creates missing target", func(t *testing.T) {
		dst := filepath.Join(t.TempDir(), "replay", "target")
		if err := SyncForReplay(src, dst); err != nil {
			t.Fatalf("SyncForReplay failed: %v", err)
		}
		if got := listTree(t, dst); !equalStrings(got, []string{"src/Main.java"}) {
			t.Errorf("unexpected target content %v", got)
		}
	})

	t.Run("cleans existing target in place", func(t *testing.T) {
		dst := t.TempDir()
		writeTree(t, dst, map[string]string{
			"Leftover.java": "x",
			".project":      "mine",
		})
		if err := SyncForReplay(src, dst); err != nil {
			t.Fatalf("SyncForReplay failed: %v", err)
		}
		if got := listTree(t, dst); !equalStrings(got, []string{"src/Main.java"}) {
			t.Errorf("unexpected target content %v", got)
		}
	})

	t.Run("rejects file target", func(t *testing.T) {
		dst := filepath.Join(t.TempDir(), "file.txt")
		if err := os.WriteFile(dst, []byte("x"), 0o644); err != nil {
			t.Fatalf("write failed: %v", err)
		}
		err := SyncForReplay(src, dst)
		if !errors.Is(err, ErrTargetNotDirectory) {
			t.Errorf("expected ErrTargetNotDirectory, got %v", err)
		}
	})
}

func TestCopyPreservesEmptyDirectories(t *testing.T) {
	src := t.TempDir()
	if err := os.MkdirAll(filepath.Join(src, "empty", "nested"), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	dst := filepath.Join(t.TempDir(), "out")

	if err := Copy(src, dst, SkipMetadata); err != nil {
		t.Fatalf("Copy failed: %v", err)
	}
	if info, err := os.Stat(filepath.Join(dst, "empty", "nested")); err != nil || !info.IsDir() {
		t.Errorf("empty directory not copied: %v", err)
	}
}
