package engine

import (
	"context"
	"time"
)

// EventType names the four telemetry events.
type EventType string

const (
	EventRunbookStarted   EventType = "runbook_started"
	EventRunbookCompleted EventType = "runbook_completed"
	EventActionEvaluated  EventType = "action_evaluated"
	EventActionApplied    EventType = "action_applied"
)

// RunEvent holds the fields shared by every telemetry event.
type RunEvent struct {
	RunID     string      `json:"runId"`
	Mode      RunMode     `json:"mode"`
	Timestamp time.Time   `json:"timestamp"`
	Runbook   RunbookMeta `json:"runbook"`
}

// RunbookStartedEvent is emitted before validation.
type RunbookStartedEvent struct {
	RunEvent
}

// RunbookCompletedEvent is emitted once per call, on success and on failure.
type RunbookCompletedEvent struct {
	RunEvent
	Status   RunStatus     `json:"status"`
	Duration time.Duration `json:"duration"`

	// Err is the validation or planning error, or the first failed action's
	// error for an apply.
	Err error `json:"-"`
}

// ActionEvaluatedEvent is emitted once per planned action.
type ActionEvaluatedEvent struct {
	RunEvent
	Action ActionDescriptor `json:"action"`
	Change ChangeKind       `json:"change"`
}

// ActionAppliedEvent is emitted once per action during apply.
type ActionAppliedEvent struct {
	RunEvent
	Action   ActionDescriptor `json:"action"`
	Change   ChangeKind       `json:"change"`
	Outcome  ActionStatus     `json:"outcome"`
	Error    string           `json:"error,omitempty"`
	Duration time.Duration    `json:"duration"`
}

// Hooks receives telemetry events. Nil funcs are skipped. A returned error
// aborts the run and is returned to the caller.
type Hooks struct {
	OnRunbookStarted   func(ctx context.Context, ev RunbookStartedEvent) error
	OnRunbookCompleted func(ctx context.Context, ev RunbookCompletedEvent) error
	OnActionEvaluated  func(ctx context.Context, ev ActionEvaluatedEvent) error
	OnActionApplied    func(ctx context.Context, ev ActionAppliedEvent) error
}

func (h Hooks) runbookStarted(ctx context.Context, ev RunbookStartedEvent) error {
	if h.OnRunbookStarted == nil {
		return nil
	}
	return h.OnRunbookStarted(ctx, ev)
}

func (h Hooks) runbookCompleted(ctx context.Context, ev RunbookCompletedEvent) error {
	if h.OnRunbookCompleted == nil {
		return nil
	}
	return h.OnRunbookCompleted(ctx, ev)
}

func (h Hooks) actionEvaluated(ctx context.Context, ev ActionEvaluatedEvent) error {
	if h.OnActionEvaluated == nil {
		return nil
	}
	return h.OnActionEvaluated(ctx, ev)
}

func (h Hooks) actionApplied(ctx context.Context, ev ActionAppliedEvent) error {
	if h.OnActionApplied == nil {
		return nil
	}
	return h.OnActionApplied(ctx, ev)
}

// ChainHooks calls each hook set in order and stops at the first error.
func ChainHooks(hooks ...Hooks) Hooks {
	return Hooks{
		OnRunbookStarted: func(ctx context.Context, ev RunbookStartedEvent) error {
			for _, h := range hooks {
				if err := h.runbookStarted(ctx, ev); err != nil {
					return err
				}
			}
			return nil
		},
		OnRunbookCompleted: func(ctx context.Context, ev RunbookCompletedEvent) error {
			for _, h := range hooks {
				if err := h.runbookCompleted(ctx, ev); err != nil {
					return err
				}
			}
			return nil
		},
		OnActionEvaluated: func(ctx context.Context, ev ActionEvaluatedEvent) error {
			for _, h := range hooks {
				if err := h.actionEvaluated(ctx, ev); err != nil {
					return err
				}
			}
			return nil
		},
		OnActionApplied: func(ctx context.Context, ev ActionAppliedEvent) error {
			for _, h := range hooks {
				if err := h.actionApplied(ctx, ev); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
