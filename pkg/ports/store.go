package ports

import (
	"context"

	"github.com/aretw0/stepwise/pkg/domain"
)

// StateStore defines the interface for persisting wizard run snapshots.
// Snapshots are taken after each successful advance so a run can be
// rehydrated by id later.
type StateStore interface {
	// Save persists the state for a given run ID.
	Save(ctx context.Context, runID string, state *domain.State) error

	// Load retrieves the state for a given run ID.
	// Returns domain.ErrSessionNotFound if the run does not exist.
	Load(ctx context.Context, runID string) (*domain.State, error)

	// Delete removes the state for a given run ID.
	Delete(ctx context.Context, runID string) error

	// List returns the IDs of all stored runs.
	List(ctx context.Context) ([]string, error)
}
