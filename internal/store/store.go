// Package store persists reports. Every implementation serializes its
// mutating operations so that guards evaluated inside Update see the latest
// committed state.
package store

import (
	"context"
	"errors"

	"github.com/ahmetcoskunkizilkaya/reportbot/internal/models"
)

var (
	ErrNotFound    = errors.New("report not found")
	ErrDuplicateID = errors.New("report id already exists")
)

// MutateFunc changes a report in place. Returning an error aborts the update
// and leaves the stored state untouched.
type MutateFunc func(r *models.Report) error

type Store interface {
	// LoadAll returns every report ordered by ID.
	LoadAll(ctx context.Context) ([]models.Report, error)
	Get(ctx context.Context, id int64) (models.Report, error)
	Append(ctx context.Context, r models.Report) error
	// Update applies mutate to the report with the given ID and persists the
	// result. It returns the stored report after mutation.
	Update(ctx context.Context, id int64, mutate MutateFunc) (models.Report, error)
	// NextID returns 1 + the highest stored ID, or 1 when empty.
	NextID(ctx context.Context) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}

func nextID(reports []models.Report) int64 {
	var max int64
	for _, r := range reports {
		if r.ID > max {
			max = r.ID
		}
	}
	return max + 1
}
