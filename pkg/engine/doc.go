// Package engine reconciles runbooks against an external identity system.
//
// # Overview
//
// A Runbook declares the desired state of a set of resources (users, groups,
// clients, ...) as an ordered list of actions. The Runner evaluates each
// action in two phases:
//
//  1. Plan - describe the current resource and compute a change
//     (create/update/delete/noop) by comparing content hashes
//  2. Apply - execute the planned changes through the ResourcePort and record
//     the applied spec hash in the StateStore
//
// # Core Domain Types
//
//   - Runbook: named, versioned list of actions
//   - Action: an EnsureAction or a DeleteAction
//   - ResourceSelector / ResourceSpec: resource address and desired state
//   - PlannedAction / PlanResult: output of the plan phase
//   - AppliedAction / ApplyResult: output of the apply phase
//
// # Collaborators
//
// The Runner is constructed with explicit collaborators:
//
//	type ResourcePort interface {
//	    Describe(ctx context.Context, selector ResourceSelector) (*ResourceState, error)
//	    Create(ctx context.Context, spec ResourceSpec) (*ResourceState, error)
//	    Update(ctx context.Context, spec ResourceSpec) (*ResourceState, error)
//	    Delete(ctx context.Context, selector ResourceSelector) error
//	}
//
//	type StateStore interface {
//	    Read(ctx context.Context, runbook, actionID string) (*StoredActionState, error)
//	    Write(ctx context.Context, runbook, actionID, specHash string, appliedAt time.Time) error
//	    Remove(ctx context.Context, runbook, actionID string) error
//	}
//
// # Failure Model
//
//   - Validation errors (*ValidationError) abort before any I/O.
//   - Port errors during planning abort the call as an *EngineError.
//   - Port errors during apply become a failed AppliedAction; the remaining
//     actions still run, and dependents of a failed or skipped action are
//     skipped.
//   - Hook errors abort the call.
//
// # Ordering
//
// Actions run in declared order. A dependent listed before its dependency is
// not blocked by the dependency's failure. WithTopologicalOrder reorders the
// actions by dependsOn first, keeping declared order among independent
// actions.
//
// # Example Usage
//
//	runner, err := engine.NewRunner(port, store,
//	    engine.WithHooks(hooks),
//	    engine.WithLogger(logger),
//	)
//	plan, err := runner.Plan(ctx, rb)
//	if plan.HasChanges {
//	    result, err := runner.Apply(ctx, rb, engine.ApplyOptions{})
//	    if result.Status == engine.RunStatusError {
//	        // inspect result.Actions
//	    }
//	}
package engine
