package mgmt

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/terra-clan/exercise-submitter/internal/cache"
	"github.com/terra-clan/exercise-submitter/internal/models"
)

// Lookup is the part of the management API that CachedDirectory memoizes
type Lookup interface {
	ListAssignments(ctx context.Context, creds models.Credentials) ([]models.Exercise, error)
	ResolveSubmissionPath(ctx context.Context, creds models.Credentials, exercise string) (models.SubmissionTarget, error)
}

// CachedDirectory answers exercise lookups for one user, memoizing
// answers in a cache store. Cache failures fall through to the lookup.
type CachedDirectory struct {
	lookup Lookup
	store  cache.Store
	creds  models.Credentials
}

// NewCachedDirectory creates a directory for the owner of creds
func NewCachedDirectory(lookup Lookup, store cache.Store, creds models.Credentials) *CachedDirectory {
	return &CachedDirectory{
		lookup: lookup,
		store:  store,
		creds:  creds,
	}
}

// Assignments lists the assignments visible to the user
func (d *CachedDirectory) Assignments(ctx context.Context) ([]models.Exercise, error) {
	key := fmt.Sprintf("assignments:%s", d.creds.Username)

	var assignments []models.Exercise
	if d.cached(ctx, key, &assignments) {
		return assignments, nil
	}

	assignments, err := d.lookup.ListAssignments(ctx, d.creds)
	if err != nil {
		return nil, err
	}
	d.remember(ctx, key, assignments)
	return assignments, nil
}

// Exercise returns the assignment named exercise
func (d *CachedDirectory) Exercise(ctx context.Context, exercise string) (models.Exercise, error) {
	assignments, err := d.Assignments(ctx)
	if err != nil {
		return models.Exercise{}, err
	}
	for _, a := range assignments {
		if a.Name == exercise {
			return a, nil
		}
	}
	return models.Exercise{}, fmt.Errorf("%w: %s", ErrExerciseNotFound, exercise)
}

// IsGroupWork reports whether exercise is solved in groups
func (d *CachedDirectory) IsGroupWork(ctx context.Context, exercise string) (bool, error) {
	a, err := d.Exercise(ctx, exercise)
	if err != nil {
		return false, err
	}
	return a.GroupWork, nil
}

// ResolveSubmissionPath returns where the user submits exercise
func (d *CachedDirectory) ResolveSubmissionPath(ctx context.Context, exercise string) (models.SubmissionTarget, error) {
	key := fmt.Sprintf("target:%s:%s", d.creds.Username, exercise)

	var target models.SubmissionTarget
	if d.cached(ctx, key, &target) {
		return target, nil
	}

	target, err := d.lookup.ResolveSubmissionPath(ctx, d.creds, exercise)
	if err != nil {
		return models.SubmissionTarget{}, err
	}
	d.remember(ctx, key, target)
	return target, nil
}

func (d *CachedDirectory) cached(ctx context.Context, key string, dest any) bool {
	if d.store == nil {
		return false
	}
	found, err := d.store.Get(ctx, key, dest)
	if err != nil {
		slog.Warn("cache read failed", "key", key, "error", err)
		return false
	}
	return found
}

func (d *CachedDirectory) remember(ctx context.Context, key string, value any) {
	if d.store == nil {
		return
	}
	if err := d.store.Set(ctx, key, value); err != nil {
		slog.Warn("cache write failed", "key", key, "error", err)
	}
}
