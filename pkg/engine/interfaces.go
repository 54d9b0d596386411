package engine

import (
	"context"
	"time"
)

// ResourcePort is the adapter to the external identity system.
type ResourcePort interface {
	// Describe returns the observed state of the selected resource, or
	// nil, nil when it does not exist.
	Describe(ctx context.Context, selector ResourceSelector) (*ResourceState, error)

	// Create creates the resource described by spec.
	Create(ctx context.Context, spec ResourceSpec) (*ResourceState, error)

	// Update converges an existing resource to spec.
	Update(ctx context.Context, spec ResourceSpec) (*ResourceState, error)

	// Delete removes the selected resource.
	Delete(ctx context.Context, selector ResourceSelector) error
}

// StateStore persists the spec hash of the last successful apply of each
// action, keyed by (runbook name, action id).
type StateStore interface {
	// Read returns the stored state, or nil, nil when there is none.
	Read(ctx context.Context, runbook, actionID string) (*StoredActionState, error)

	// Write upserts the stored state.
	Write(ctx context.Context, runbook, actionID, specHash string, appliedAt time.Time) error

	// Remove deletes the stored state. Removing a missing row is not an error.
	Remove(ctx context.Context, runbook, actionID string) error
}
