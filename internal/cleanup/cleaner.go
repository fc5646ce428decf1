package cleanup

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/terra-clan/exercise-submitter/internal/workspace"
)

// Cleaner periodically removes scratch directories left behind by
// interrupted submissions
type Cleaner struct {
	root     string
	interval time.Duration
	maxAge   time.Duration
	now      func() time.Time
}

// NewCleaner creates a new cleanup worker for scratch directories under root
func NewCleaner(root string, interval, maxAge time.Duration) *Cleaner {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if maxAge <= 0 {
		maxAge = time.Hour
	}

	return &Cleaner{
		root:     root,
		interval: interval,
		maxAge:   maxAge,
		now:      time.Now,
	}
}

// Start begins the cleanup worker in a goroutine
func (c *Cleaner) Start(ctx context.Context) {
	go c.run(ctx)
}

// run is the main loop for the cleanup worker
func (c *Cleaner) run(ctx context.Context) {
	slog.Info("cleanup worker started", "root", c.root, "interval", c.interval, "max_age", c.maxAge)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Run immediately on start
	c.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("cleanup worker stopped")
			return
		case <-ticker.C:
			c.Sweep(ctx)
		}
	}
}

// Sweep removes stale scratch directories and returns how many were
// removed. Directories still owned by a running pipeline are kept whatever
// their age.
func (c *Cleaner) Sweep(ctx context.Context) int {
	slog.Debug("running cleanup cycle")

	entries, err := os.ReadDir(c.root)
	if err != nil {
		slog.Error("failed to list scratch root", "root", c.root, "error", err)
		return 0
	}

	cutoff := c.now().Add(-c.maxAge)
	removed := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if !entry.IsDir() || !workspace.IsScratch(entry.Name()) {
			continue
		}
		if workspace.ScratchInUse(entry.Name()) {
			continue
		}

		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}

		dir := filepath.Join(c.root, entry.Name())
		slog.Info("deleting stale scratch directory", "dir", dir, "modified_at", info.ModTime())

		if err := os.RemoveAll(dir); err != nil {
			slog.Error("failed to delete stale scratch directory",
				"error", err,
				"dir", dir,
			)
			continue
		}
		removed++
	}

	if removed == 0 {
		slog.Debug("no stale scratch directories found")
	}
	return removed
}
