package i18n

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBuiltinMessages(t *testing.T) {
	c, err := NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}

	keys := []string{
		"submission.result.success",
		"submission.result.no_changes",
		"submission.error.errors_found",
		"submission.error.project_not_accepted",
		"submission.error.exercise_not_found",
		"errors.stdmanagement.unreachable",
		"gui.error.unexpected_error",
	}
	for _, key := range keys {
		if !c.Has(key) {
			t.Errorf("missing built-in message %q", key)
		}
	}

	if got := c.Text("submission.error.cannot_commit", "https://repo/x"); got != "The server refused the submission to https://repo/x." {
		t.Errorf("unexpected text: %q", got)
	}
}

func TestUnknownKeyRendersKey(t *testing.T) {
	c, err := NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}
	if got := c.Text("no.such.key"); got != "no.such.key" {
		t.Errorf("expected key, got %q", got)
	}
}

func TestLoadFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "messages.yaml")
	content := "submission.result.success: \"Abgabe erfolgreich.\"\nhook.custom: \"custom %s\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	c, err := NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}
	if err := c.LoadFile(path); err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if got := c.Text("submission.result.success"); got != "Abgabe erfolgreich." {
		t.Errorf("override not applied: %q", got)
	}
	if got := c.Text("hook.custom", "x"); got != "custom x" {
		t.Errorf("new key not loaded: %q", got)
	}
	if !c.Has("submission.result.no_changes") {
		t.Error("built-in keys must survive an override")
	}
}

func TestLoadFileInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.yaml")
	if err := os.WriteFile(path, []byte("key: [unterminated"), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	c, err := NewCatalog()
	if err != nil {
		t.Fatalf("NewCatalog failed: %v", err)
	}
	if err := c.LoadFile(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}
