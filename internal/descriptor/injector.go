package descriptor

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// ProjectNamePlaceholder is replaced by the project name in every template
const ProjectNamePlaceholder = "$projectName"

// Injector writes default IDE descriptors into a project folder
type Injector struct {
	loader *Loader
}

// NewInjector creates an injector for the templates of loader
func NewInjector(loader *Loader) *Injector {
	return &Injector{loader: loader}
}

// Inject writes every descriptor that dir does not have yet and returns
// the names written. Existing files are left untouched.
func (i *Injector) Inject(dir, projectName string) ([]string, error) {
	var written []string

	for _, tmpl := range i.loader.List() {
		target := filepath.Join(dir, tmpl.Name)

		_, err := os.Lstat(target)
		if err == nil {
			continue
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return written, fmt.Errorf("failed to inspect %s: %w", tmpl.Name, err)
		}

		content := strings.ReplaceAll(tmpl.Content, ProjectNamePlaceholder, projectName)
		if err := os.WriteFile(target, []byte(content), 0o644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", tmpl.Name, err)
		}
		written = append(written, tmpl.Name)
	}

	if len(written) > 0 {
		slog.Debug("descriptors injected", "dir", dir, "files", written)
	}
	return written, nil
}
