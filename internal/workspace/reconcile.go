package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/terra-clan/exercise-submitter/internal/vcs"
)

// Tracker is the part of the version-control backend the reconciler needs
type Tracker interface {
	WalkStatus(ctx context.Context, root string, fn vcs.StatusFunc) error
	Add(path string) error
	Delete(path string) error
}

// Changes lists the paths scheduled by Reconcile
type Changes struct {
	Added   []string `json:"added"`
	Deleted []string `json:"deleted"`
}

// Empty reports whether nothing was scheduled
func (c *Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Deleted) == 0
}

type pathState struct {
	path   string
	status vcs.PathStatus
}

// Reconcile schedules unversioned paths for addition and missing paths for
// deletion, so that a commit records the working copy as it is on disk.
// Additions are registered one node at a time, parents first.
func Reconcile(ctx context.Context, tracker Tracker, root string) (*Changes, error) {
	var pending []pathState
	err := tracker.WalkStatus(ctx, root, func(p string, status vcs.PathStatus) error {
		if status != vcs.StatusUnchanged {
			pending = append(pending, pathState{path: p, status: status})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk status: %w", err)
	}

	changes := &Changes{}
	for _, ps := range pending {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		switch ps.status {
		case vcs.StatusUnversioned:
			if err := tracker.Add(ps.path); err != nil {
				return nil, fmt.Errorf("failed to add %s: %w", ps.path, err)
			}
			changes.Added = append(changes.Added, ps.path)
		case vcs.StatusMissing:
			if below(changes.Deleted, ps.path) {
				continue
			}
			if err := tracker.Delete(ps.path); err != nil {
				return nil, fmt.Errorf("failed to delete %s: %w", ps.path, err)
			}
			changes.Deleted = append(changes.Deleted, ps.path)
		}
	}

	slog.Debug("working copy reconciled",
		"root", root,
		"added", len(changes.Added),
		"deleted", len(changes.Deleted),
	)
	return changes, nil
}

// below reports whether p lies under one of the already deleted paths
func below(deleted []string, p string) bool {
	for _, d := range deleted {
		if strings.HasPrefix(p, d+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
