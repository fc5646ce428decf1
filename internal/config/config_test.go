package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("REPOSITORY_URL", "https://git.example.org/submissions.git")
	t.Setenv("MANAGEMENT_URL", "https://mgmt.example.org/api")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 8080 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[0] != "http://localhost:*" {
		t.Errorf("browser origins must default to localhost, got %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Repository.SourceExtension != ".java" {
		t.Errorf("unexpected source extension %q", cfg.Repository.SourceExtension)
	}
	if cfg.Repository.TempDir == "" {
		t.Error("temp dir must default to the system temp dir")
	}
	if cfg.Management.AuthURL != cfg.Management.URL {
		t.Errorf("auth URL must default to management URL, got %q", cfg.Management.AuthURL)
	}
	if cfg.Cleanup.MaxAge != time.Hour {
		t.Errorf("unexpected cleanup max age %v", cfg.Cleanup.MaxAge)
	}
	if cfg.Settings.Course.TeamMail == "" {
		t.Error("default settings not applied")
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("SERVER_CORS_ALLOWED_ORIGINS", "https://lab.example.org,https://*.example.edu")
	t.Setenv("REPOSITORY_TEMP_DIR", "/var/tmp/submitter")
	t.Setenv("CACHE_TTL", "30s")
	t.Setenv("REDIS_ADDRESS", "localhost:6379")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("expected port 9090, got %d", cfg.Server.Port)
	}
	if len(cfg.Server.AllowedOrigins) != 2 || cfg.Server.AllowedOrigins[1] != "https://*.example.edu" {
		t.Errorf("unexpected allowed origins %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Repository.TempDir != "/var/tmp/submitter" {
		t.Errorf("unexpected temp dir %q", cfg.Repository.TempDir)
	}
	if cfg.Cache.TTL != 30*time.Second {
		t.Errorf("unexpected cache ttl %v", cfg.Cache.TTL)
	}
	if cfg.Redis.Address != "localhost:6379" {
		t.Errorf("unexpected redis address %q", cfg.Redis.Address)
	}
	if cfg.SlogLevel().String() != "DEBUG" {
		t.Errorf("unexpected log level %v", cfg.SlogLevel())
	}
}

func TestLoadRequiresRepository(t *testing.T) {
	t.Setenv("REPOSITORY_URL", "")
	t.Setenv("MANAGEMENT_URL", "https://mgmt.example.org/api")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without repository URL")
	}
}

func TestLoadInvalidPort(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SERVER_PORT", "70000")

	_, err := Load()
	if err == nil || !strings.Contains(err.Error(), "invalid server port") {
		t.Fatalf("expected port validation error, got %v", err)
	}
}

func TestLoadSettingsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "settings.yaml")
	content := `program_name: "Java Submitter"
course:
  team_name: "Programming Team"
  team_mail: "prog@example.org"
message_translations:
  "Eclipse configuration missing": "hook.eclipse.missing"
folder_check:
  min_source_files: 2
  max_files: 50
  max_size: "2 MB"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write settings: %v", err)
	}

	settings, err := LoadSettings(path)
	if err != nil {
		t.Fatalf("LoadSettings failed: %v", err)
	}

	if settings.Course.TeamName != "Programming Team" {
		t.Errorf("unexpected team name %q", settings.Course.TeamName)
	}
	if settings.MessageTranslations["Eclipse configuration missing"] != "hook.eclipse.missing" {
		t.Errorf("translation not loaded: %v", settings.MessageTranslations)
	}
	if settings.FolderCheck.MinSourceFiles != 2 || settings.FolderCheck.MaxFiles != 50 {
		t.Errorf("unexpected folder check %+v", settings.FolderCheck)
	}

	size, err := settings.FolderCheck.MaxSizeBytes()
	if err != nil {
		t.Fatalf("MaxSizeBytes failed: %v", err)
	}
	if size != 2_000_000 {
		t.Errorf("expected 2000000 bytes, got %d", size)
	}
}

func TestSettingsValidateMaxSize(t *testing.T) {
	settings := DefaultSettings()
	settings.FolderCheck.MaxSize = "lots"

	if err := settings.Validate(); err == nil {
		t.Fatal("expected error for unparsable max_size")
	}
}
