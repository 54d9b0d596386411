package engine

import (
	"encoding/json"
	"fmt"
)

// ActionKind discriminates the action variants.
type ActionKind string

const (
	// ActionKindEnsure converges a resource to a declared spec.
	ActionKindEnsure ActionKind = "ensure"

	// ActionKindDelete removes a resource if present.
	ActionKindDelete ActionKind = "delete"
)

// Validate checks if the action kind is valid.
func (k ActionKind) Validate() error {
	switch k {
	case ActionKindEnsure, ActionKindDelete:
		return nil
	default:
		return fmt.Errorf("invalid action kind: %s", k)
	}
}

// ChangeKind is the planned change for one action.
type ChangeKind string

const (
	// ChangeCreate indicates the resource does not exist and will be created.
	ChangeCreate ChangeKind = "create"

	// ChangeUpdate indicates the resource exists and its stored hash differs.
	ChangeUpdate ChangeKind = "update"

	// ChangeDelete indicates the resource exists and will be removed.
	ChangeDelete ChangeKind = "delete"

	// ChangeNoop indicates the resource is already in the desired state.
	ChangeNoop ChangeKind = "noop"
)

// IsMutating returns true if the change calls the resource port.
func (c ChangeKind) IsMutating() bool {
	return c == ChangeCreate || c == ChangeUpdate || c == ChangeDelete
}

// Validate checks if the change kind is valid.
func (c ChangeKind) Validate() error {
	switch c {
	case ChangeCreate, ChangeUpdate, ChangeDelete, ChangeNoop:
		return nil
	default:
		return fmt.Errorf("invalid change kind: %s", c)
	}
}

// ActionStatus is the apply outcome of one action.
type ActionStatus string

const (
	// ActionStatusApplied indicates the port call and state write succeeded.
	ActionStatusApplied ActionStatus = "applied"

	// ActionStatusNoop indicates nothing needed to change.
	ActionStatusNoop ActionStatus = "noop"

	// ActionStatusSkipped indicates the action was blocked or dry-run.
	ActionStatusSkipped ActionStatus = "skipped"

	// ActionStatusFailed indicates the port call or state write failed.
	ActionStatusFailed ActionStatus = "failed"
)

// BlocksDependents returns true if actions depending on this one must be skipped.
func (s ActionStatus) BlocksDependents() bool {
	return s == ActionStatusFailed || s == ActionStatusSkipped
}

// Validate checks if the action status is valid.
func (s ActionStatus) Validate() error {
	switch s {
	case ActionStatusApplied, ActionStatusNoop, ActionStatusSkipped, ActionStatusFailed:
		return nil
	default:
		return fmt.Errorf("invalid action status: %s", s)
	}
}

// RunStatus is the overall status of a plan or apply call.
type RunStatus string

const (
	// RunStatusSuccess indicates the call completed without failed actions.
	RunStatusSuccess RunStatus = "success"

	// RunStatusError indicates validation, planning or at least one action failed.
	RunStatusError RunStatus = "error"
)

// Validate checks if the run status is valid.
func (s RunStatus) Validate() error {
	switch s {
	case RunStatusSuccess, RunStatusError:
		return nil
	default:
		return fmt.Errorf("invalid run status: %s", s)
	}
}

// RunMode tells hooks whether a call is a plan or an apply.
type RunMode string

const (
	RunModePlan  RunMode = "plan"
	RunModeApply RunMode = "apply"
)

// Validate checks if the run mode is valid.
func (m RunMode) Validate() error {
	switch m {
	case RunModePlan, RunModeApply:
		return nil
	default:
		return fmt.Errorf("invalid run mode: %s", m)
	}
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (c ChangeKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(c))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (c *ChangeKind) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*c = ChangeKind(str)
	return c.Validate()
}

// MarshalJSON implements custom JSON marshaling for type-safe enum serialization.
func (s RunStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s))
}

// UnmarshalJSON implements custom JSON unmarshaling with validation.
func (s *RunStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = RunStatus(str)
	return s.Validate()
}
