package config

import (
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Settings are the course-specific tool settings shipped as a YAML file
type Settings struct {
	ProgramName         string            `yaml:"program_name"`
	Course              CourseSettings    `yaml:"course"`
	MessageTranslations map[string]string `yaml:"message_translations"`
	FolderCheck         FolderCheck       `yaml:"folder_check"`
}

// CourseSettings name the team that students contact on errors
type CourseSettings struct {
	TeamName string `yaml:"team_name"`
	TeamMail string `yaml:"team_mail"`
}

// FolderCheck holds the limits checked before a submission. Zero disables a limit.
type FolderCheck struct {
	MinSourceFiles int    `yaml:"min_source_files"`
	MinFiles       int    `yaml:"min_files"`
	MaxFiles       int    `yaml:"max_files"`
	MaxSize        string `yaml:"max_size"`
}

// MaxSizeBytes parses MaxSize ("10 MB", "512KiB"). Empty means no limit.
func (f FolderCheck) MaxSizeBytes() (uint64, error) {
	if f.MaxSize == "" {
		return 0, nil
	}
	return humanize.ParseBytes(f.MaxSize)
}

// DefaultSettings are used when no settings file is configured
func DefaultSettings() *Settings {
	return &Settings{
		ProgramName: "exercise-submitter",
		Course: CourseSettings{
			TeamName: "the course team",
			TeamMail: "course-team@example.org",
		},
		MessageTranslations: map[string]string{},
		FolderCheck: FolderCheck{
			MinSourceFiles: 1,
			MaxFiles:       1000,
			MaxSize:        "10 MB",
		},
	}
}

// LoadSettings reads the settings file on top of the defaults. An empty path
// returns the defaults.
func LoadSettings(path string) (*Settings, error) {
	settings := DefaultSettings()
	if path == "" {
		return settings, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	if err := yaml.Unmarshal(data, settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}
	if settings.MessageTranslations == nil {
		settings.MessageTranslations = map[string]string{}
	}

	return settings, nil
}

// Validate validates the settings
func (s *Settings) Validate() error {
	if _, err := s.FolderCheck.MaxSizeBytes(); err != nil {
		return fmt.Errorf("invalid folder_check.max_size %q: %w", s.FolderCheck.MaxSize, err)
	}
	if s.FolderCheck.MaxFiles > 0 && s.FolderCheck.MinFiles > s.FolderCheck.MaxFiles {
		return fmt.Errorf("folder_check.min_files exceeds max_files")
	}
	return nil
}
