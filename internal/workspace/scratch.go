package workspace

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// ScratchPrefix starts the name of every scratch working copy
const ScratchPrefix = "submitter-"

// active holds the names of scratch directories owned by a running pipeline
var active = struct {
	sync.Mutex
	names map[string]struct{}
}{names: make(map[string]struct{})}

// NewScratch creates a uniquely named scratch directory below root. Runs
// never share a scratch directory. The directory stays in use until it is
// handed to RemoveScratch.
func NewScratch(root string) (string, error) {
	id := strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
	dir := filepath.Join(root, ScratchPrefix+id)

	if err := os.Mkdir(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create scratch directory: %w", err)
	}

	active.Lock()
	active.names[filepath.Base(dir)] = struct{}{}
	active.Unlock()
	return dir, nil
}

// RemoveScratch deletes a scratch directory and releases it
func RemoveScratch(dir string) error {
	err := os.RemoveAll(dir)

	active.Lock()
	delete(active.names, filepath.Base(dir))
	active.Unlock()
	return err
}

// ScratchInUse reports whether the scratch directory called name belongs
// to a pipeline that is still running
func ScratchInUse(name string) bool {
	active.Lock()
	defer active.Unlock()
	_, ok := active.names[name]
	return ok
}

// IsScratch reports whether name looks like a scratch directory
func IsScratch(name string) bool {
	return strings.HasPrefix(name, ScratchPrefix) && len(name) == len(ScratchPrefix)+12
}
