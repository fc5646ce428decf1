package descriptor

import (
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed templates/*.yaml
var builtin embed.FS

// Template is the default content of one IDE descriptor file
type Template struct {
	Name        string `yaml:"name" json:"name"`
	Description string `yaml:"description" json:"description"`
	Content     string `yaml:"content" json:"content"`
}

// Loader manages loading and caching of descriptor templates
type Loader struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewLoader creates a loader holding the built-in templates
func NewLoader() (*Loader, error) {
	l := &Loader{templates: make(map[string]*Template)}

	files, err := fs.Glob(builtin, "templates/*.yaml")
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		data, err := builtin.ReadFile(file)
		if err != nil {
			return nil, fmt.Errorf("failed to read built-in template %s: %w", file, err)
		}
		if err := l.add(data); err != nil {
			return nil, fmt.Errorf("invalid built-in template %s: %w", file, err)
		}
	}

	return l, nil
}

// LoadFromDir loads all YAML templates of dir, replacing built-ins of the same name
func (l *Loader) LoadFromDir(dir string) error {
	slog.Info("loading descriptor templates from directory", "dir", dir)

	var files []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := filepath.Glob(filepath.Join(dir, pattern))
		if err != nil {
			continue
		}
		files = append(files, matches...)
	}

	loaded := 0
	for _, file := range files {
		if err := l.LoadFromFile(file); err != nil {
			slog.Warn("failed to load descriptor template", "file", file, "error", err)
			continue
		}
		loaded++
	}

	slog.Info("descriptor templates loaded", "count", loaded, "total_files", len(files))
	return nil
}

// LoadFromFile loads a single template from a YAML file
func (l *Loader) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	return l.add(data)
}

func (l *Loader) add(data []byte) error {
	var tmpl Template
	if err := yaml.Unmarshal(data, &tmpl); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	if tmpl.Name == "" {
		return fmt.Errorf("template name is required")
	}
	if filepath.Base(tmpl.Name) != tmpl.Name {
		return fmt.Errorf("template name must be a plain file name: %q", tmpl.Name)
	}

	l.mu.Lock()
	l.templates[tmpl.Name] = &tmpl
	l.mu.Unlock()
	return nil
}

// Get retrieves a template by file name
func (l *Loader) Get(name string) *Template {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.templates[name]
}

// List returns all templates sorted by name
func (l *Loader) List() []*Template {
	l.mu.RLock()
	defer l.mu.RUnlock()

	result := make([]*Template, 0, len(l.templates))
	for _, tmpl := range l.templates {
		result = append(result, tmpl)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Name < result[j].Name
	})
	return result
}
