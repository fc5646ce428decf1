package workspace

import (
	"strings"
	"testing"
)

func TestInspect(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{
		"src/Main.java":   "12345",
		"src/Helper.java": "123",
		"README.md":       "12",
		".svn/entries":    "ignored content",
		".java":           "not a source file",
	})

	stats, err := Inspect(dir, ".java")
	if err != nil {
		t.Fatalf("Inspect failed: %v", err)
	}

	if stats.Files != 4 {
		t.Errorf("expected 4 files, got %d", stats.Files)
	}
	if stats.SourceFiles != 2 {
		t.Errorf("expected 2 source files, got %d", stats.SourceFiles)
	}
	want := uint64(len("12345") + len("123") + len("12") + len("not a source file"))
	if stats.TotalSize != want {
		t.Errorf("expected total size %d, got %d", want, stats.TotalSize)
	}
}

func TestStatsCheck(t *testing.T) {
	stats := &Stats{Files: 12, SourceFiles: 0, TotalSize: 3_000_000}

	warnings := stats.Check(Limits{MinSourceFiles: 1, MaxFiles: 10, MaxSize: 2_000_000})
	kinds := make([]string, 0, len(warnings))
	for _, w := range warnings {
		kinds = append(kinds, string(w.Kind))
	}

	got := strings.Join(kinds, ",")
	if got != "too_large,too_few_source_files,too_many_files" {
		t.Errorf("unexpected warnings %s", got)
	}

	if len(stats.Check(Limits{})) != 0 {
		t.Error("zero limits must not warn")
	}
}

func TestNewScratch(t *testing.T) {
	root := t.TempDir()

	a, err := NewScratch(root)
	if err != nil {
		t.Fatalf("NewScratch failed: %v", err)
	}
	b, err := NewScratch(root)
	if err != nil {
		t.Fatalf("NewScratch failed: %v", err)
	}

	if a == b {
		t.Error("scratch directories must be unique")
	}
	for _, dir := range []string{a, b} {
		name := dir[len(root)+1:]
		if !IsScratch(name) {
			t.Errorf("%s is not recognised as scratch directory", name)
		}
	}
	if IsScratch("submitter-notes") {
		t.Error("unrelated names must not match")
	}
}

func TestNewScratchMissingRoot(t *testing.T) {
	if _, err := NewScratch("/nonexistent/root/for/scratch"); err == nil {
		t.Error("expected error for missing temp root")
	}
}
