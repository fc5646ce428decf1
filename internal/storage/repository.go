package storage

import (
	"context"
	"errors"

	"github.com/terra-clan/exercise-submitter/internal/models"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("record not found")

// Repository defines the interface for submission log persistence
type Repository interface {
	// Record stores a pipeline run. ID and CreatedAt are assigned when empty.
	Record(ctx context.Context, rec *models.SubmissionRecord) error
	Get(ctx context.Context, id string) (*models.SubmissionRecord, error)
	// List returns records newest first
	List(ctx context.Context, filters models.ListFilters) ([]*models.SubmissionRecord, error)

	// Health
	Ping(ctx context.Context) error
	Close() error
}
