package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/terra-clan/exercise-submitter/internal/models"
)

// MemoryRepository keeps the submission log in process memory
type MemoryRepository struct {
	mu      sync.RWMutex
	records []*models.SubmissionRecord
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Record(ctx context.Context, rec *models.SubmissionRecord) error {
	prepareRecord(rec)

	stored := *rec
	r.mu.Lock()
	r.records = append(r.records, &stored)
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) Get(ctx context.Context, id string) (*models.SubmissionRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rec := range r.records {
		if rec.ID == id {
			c := *rec
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (r *MemoryRepository) List(ctx context.Context, filters models.ListFilters) ([]*models.SubmissionRecord, error) {
	r.mu.RLock()
	var matched []*models.SubmissionRecord
	for i := len(r.records) - 1; i >= 0; i-- {
		rec := r.records[i]
		if filters.UserID != "" && rec.UserID != filters.UserID {
			continue
		}
		if filters.Exercise != "" && rec.Exercise != filters.Exercise {
			continue
		}
		c := *rec
		matched = append(matched, &c)
	}
	r.mu.RUnlock()

	// newest first, later records win ties
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if filters.Offset > 0 {
		if filters.Offset >= len(matched) {
			return nil, nil
		}
		matched = matched[filters.Offset:]
	}
	if filters.Limit > 0 && len(matched) > filters.Limit {
		matched = matched[:filters.Limit]
	}
	return matched, nil
}

func (r *MemoryRepository) Ping(ctx context.Context) error {
	return nil
}

func (r *MemoryRepository) Close() error {
	return nil
}
