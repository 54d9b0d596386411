package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/ccollier86/catalyst-auth-sub001/pkg/spechash"
)

// Runbook is a named, versioned declaration of desired resource state.
// Name alone partitions the state store.
type Runbook struct {
	// Name identifies the runbook and keys its stored action state.
	Name string `json:"name" yaml:"name" validate:"required"`

	// Version is the declared runbook version.
	Version string `json:"version" yaml:"version" validate:"required"`

	// Description is an optional human-readable summary.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Labels are free-form key-value pairs.
	Labels map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`

	// Actions are processed in declared order.
	Actions []Action `json:"actions" yaml:"actions" validate:"-"`
}

// Meta returns the runbook metadata carried by results and events.
func (rb *Runbook) Meta() RunbookMeta {
	return RunbookMeta{
		Name:        rb.Name,
		Version:     rb.Version,
		Description: rb.Description,
		Labels:      rb.Labels,
	}
}

// UnmarshalJSON decodes the runbook and resolves each action to its variant
// using the "kind" discriminator.
func (rb *Runbook) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name        string            `json:"name"`
		Version     string            `json:"version"`
		Description string            `json:"description"`
		Labels      map[string]string `json:"labels"`
		Actions     []json.RawMessage `json:"actions"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	actions := make([]Action, 0, len(raw.Actions))
	for i, msg := range raw.Actions {
		action, err := decodeAction(msg)
		if err != nil {
			return fmt.Errorf("actions[%d]: %w", i, err)
		}
		actions = append(actions, action)
	}

	*rb = Runbook{
		Name:        raw.Name,
		Version:     raw.Version,
		Description: raw.Description,
		Labels:      raw.Labels,
		Actions:     actions,
	}
	return nil
}

func decodeAction(msg json.RawMessage) (Action, error) {
	var head struct {
		Kind ActionKind `json:"kind"`
	}
	if err := json.Unmarshal(msg, &head); err != nil {
		return nil, err
	}

	switch head.Kind {
	case ActionKindEnsure:
		var a EnsureAction
		if err := json.Unmarshal(msg, &a); err != nil {
			return nil, err
		}
		return &a, nil
	case ActionKindDelete:
		var a DeleteAction
		if err := json.Unmarshal(msg, &a); err != nil {
			return nil, err
		}
		return &a, nil
	case "":
		return nil, fmt.Errorf("action kind is required")
	default:
		return nil, fmt.Errorf("unknown action kind %q", head.Kind)
	}
}

// Action is a single declared intent against one addressable resource.
// The only implementations are *EnsureAction and *DeleteAction.
type Action interface {
	// ActionID is unique within the runbook.
	ActionID() string

	// ActionName is the human-readable action name.
	ActionName() string

	// ActionKind is the variant discriminator.
	ActionKind() ActionKind

	// ActionDescription is the optional description.
	ActionDescription() string

	// Dependencies lists the ids of actions this one depends on.
	Dependencies() []string

	isAction()
}

// EnsureAction converges a resource to the declared spec.
type EnsureAction struct {
	ID          string       `json:"id" yaml:"id" validate:"required"`
	Name        string       `json:"name" yaml:"name" validate:"required"`
	Description string       `json:"description,omitempty" yaml:"description,omitempty"`
	DependsOn   []string     `json:"dependsOn,omitempty" yaml:"dependsOn,omitempty"`
	Spec        ResourceSpec `json:"spec" yaml:"spec"`
}

func (a *EnsureAction) ActionID() string          { return a.ID }
func (a *EnsureAction) ActionName() string        { return a.Name }
func (a *EnsureAction) ActionKind() ActionKind    { return ActionKindEnsure }
func (a *EnsureAction) ActionDescription() string { return a.Description }
func (a *EnsureAction) Dependencies() []string    { return a.DependsOn }
func (a *EnsureAction) isAction()                 {}

// MarshalJSON includes the kind discriminator.
func (a *EnsureAction) MarshalJSON() ([]byte, error) {
	type plain EnsureAction
	return json.Marshal(struct {
		Kind ActionKind `json:"kind"`
		*plain
	}{Kind: ActionKindEnsure, plain: (*plain)(a)})
}

// DeleteAction removes the selected resource if it exists.
type DeleteAction struct {
	ID          string           `json:"id" yaml:"id" validate:"required"`
	Name        string           `json:"name" yaml:"name" validate:"required"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	DependsOn   []string         `json:"dependsOn,omitempty" yaml:"dependsOn,omitempty"`
	Selector    ResourceSelector `json:"selector" yaml:"selector"`
}

func (a *DeleteAction) ActionID() string          { return a.ID }
func (a *DeleteAction) ActionName() string        { return a.Name }
func (a *DeleteAction) ActionKind() ActionKind    { return ActionKindDelete }
func (a *DeleteAction) ActionDescription() string { return a.Description }
func (a *DeleteAction) Dependencies() []string    { return a.DependsOn }
func (a *DeleteAction) isAction()                 {}

// MarshalJSON includes the kind discriminator.
func (a *DeleteAction) MarshalJSON() ([]byte, error) {
	type plain DeleteAction
	return json.Marshal(struct {
		Kind ActionKind `json:"kind"`
		*plain
	}{Kind: ActionKindDelete, plain: (*plain)(a)})
}

// ResourceSelector addresses a resource and forms part of its identity key.
type ResourceSelector struct {
	// Kind is the resource type tag (e.g. "user", "group", "client").
	Kind string `json:"kind" yaml:"kind" validate:"required"`

	// ID is the resource identifier, when known.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	// Lookup holds alternate key-value match criteria.
	Lookup map[string]any `json:"lookup,omitempty" yaml:"lookup,omitempty"`
}

// String renders the selector for logs and error messages.
func (s ResourceSelector) String() string {
	if s.ID != "" {
		return s.Kind + "/" + s.ID
	}
	if len(s.Lookup) > 0 {
		return s.Kind + spechash.StableStringify(s.Lookup)
	}
	return s.Kind
}

// ResourceSpec is the desired state of one resource.
type ResourceSpec struct {
	Kind   string         `json:"kind" yaml:"kind" validate:"required"`
	ID     string         `json:"id,omitempty" yaml:"id,omitempty"`
	Lookup map[string]any `json:"lookup,omitempty" yaml:"lookup,omitempty"`

	// Properties is the only part of the spec that is hashed.
	Properties map[string]any `json:"properties" yaml:"properties" validate:"required"`

	// Labels are metadata and never force an update.
	Labels map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// Selector returns the selector addressing the spec's resource.
func (s ResourceSpec) Selector() ResourceSelector {
	return ResourceSelector{Kind: s.Kind, ID: s.ID, Lookup: s.Lookup}
}

// ResourceState is the observed state returned by a ResourcePort.
type ResourceState struct {
	Selector   ResourceSelector `json:"selector" yaml:"selector"`
	Properties map[string]any   `json:"properties" yaml:"properties"`
	Revision   string           `json:"revision,omitempty" yaml:"revision,omitempty"`
	SyncedAt   *time.Time       `json:"syncedAt,omitempty" yaml:"syncedAt,omitempty"`
}

// StoredActionState is the durable record of the last successful apply of
// one action.
type StoredActionState struct {
	SpecHash  string    `json:"specHash" yaml:"specHash"`
	AppliedAt time.Time `json:"appliedAt" yaml:"appliedAt"`
}

// RunbookMeta is the runbook header attached to results and events.
type RunbookMeta struct {
	Name        string            `json:"name" yaml:"name"`
	Version     string            `json:"version" yaml:"version"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Labels      map[string]string `json:"labels,omitempty" yaml:"labels,omitempty"`
}

// ActionDescriptor identifies an action in telemetry events.
type ActionDescriptor struct {
	ID          string     `json:"id" yaml:"id"`
	Name        string     `json:"name" yaml:"name"`
	Kind        ActionKind `json:"kind" yaml:"kind"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
	DependsOn   []string   `json:"dependsOn,omitempty" yaml:"dependsOn,omitempty"`
}

// PlannedAction is the computed change for one action.
type PlannedAction struct {
	ID            string         `json:"id" yaml:"id"`
	Name          string         `json:"name" yaml:"name"`
	Kind          ActionKind     `json:"kind" yaml:"kind"`
	Description   string         `json:"description,omitempty" yaml:"description,omitempty"`
	Change        ChangeKind     `json:"change" yaml:"change"`
	Diff          *spechash.Diff `json:"diff,omitempty" yaml:"diff,omitempty"`
	DependsOn     []string       `json:"dependsOn,omitempty" yaml:"dependsOn,omitempty"`
	LastAppliedAt *time.Time     `json:"lastAppliedAt,omitempty" yaml:"lastAppliedAt,omitempty"`
	PreviousHash  string         `json:"previousHash,omitempty" yaml:"previousHash,omitempty"`

	// desiredHash is set for ensure actions and written on a successful apply.
	desiredHash string
	action      Action
}

// Descriptor returns the telemetry descriptor of the planned action.
func (p *PlannedAction) Descriptor() ActionDescriptor {
	return ActionDescriptor{
		ID:          p.ID,
		Name:        p.Name,
		Kind:        p.Kind,
		Description: p.Description,
		DependsOn:   p.DependsOn,
	}
}

// AppliedAction is a planned action with its apply outcome.
type AppliedAction struct {
	PlannedAction `yaml:",inline"`

	Applied bool   `json:"applied" yaml:"applied"`
	Skipped bool   `json:"skipped" yaml:"skipped"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
}

// PlanSummary counts planned actions by change kind.
type PlanSummary struct {
	Create int `json:"create" yaml:"create"`
	Update int `json:"update" yaml:"update"`
	Delete int `json:"delete" yaml:"delete"`
	Noop   int `json:"noop" yaml:"noop"`
}

func (s *PlanSummary) add(change ChangeKind) {
	switch change {
	case ChangeCreate:
		s.Create++
	case ChangeUpdate:
		s.Update++
	case ChangeDelete:
		s.Delete++
	case ChangeNoop:
		s.Noop++
	}
}

// PlanResult is the output of Runner.Plan.
type PlanResult struct {
	RunID       string          `json:"runId" yaml:"runId"`
	Runbook     RunbookMeta     `json:"runbook" yaml:"runbook"`
	GeneratedAt time.Time       `json:"generatedAt" yaml:"generatedAt"`
	Actions     []PlannedAction `json:"actions" yaml:"actions"`
	HasChanges  bool            `json:"hasChanges" yaml:"hasChanges"`
	Summary     PlanSummary     `json:"summary" yaml:"summary"`
}

// ApplySummary counts applied actions by outcome.
type ApplySummary struct {
	Applied int `json:"applied" yaml:"applied"`
	Noop    int `json:"noop" yaml:"noop"`
	Skipped int `json:"skipped" yaml:"skipped"`
	Failed  int `json:"failed" yaml:"failed"`
}

func (s *ApplySummary) add(status ActionStatus) {
	switch status {
	case ActionStatusApplied:
		s.Applied++
	case ActionStatusNoop:
		s.Noop++
	case ActionStatusSkipped:
		s.Skipped++
	case ActionStatusFailed:
		s.Failed++
	}
}

// ApplyResult is the output of Runner.Apply. Callers must inspect the
// per-action fields to know what changed.
type ApplyResult struct {
	RunID       string          `json:"runId" yaml:"runId"`
	Runbook     RunbookMeta     `json:"runbook" yaml:"runbook"`
	StartedAt   time.Time       `json:"startedAt" yaml:"startedAt"`
	CompletedAt time.Time       `json:"completedAt" yaml:"completedAt"`
	DryRun      bool            `json:"dryRun" yaml:"dryRun"`
	Actions     []AppliedAction `json:"actions" yaml:"actions"`
	Status      RunStatus       `json:"status" yaml:"status"`
	Error       string          `json:"error,omitempty" yaml:"error,omitempty"`
	Summary     ApplySummary    `json:"summary" yaml:"summary"`
}
