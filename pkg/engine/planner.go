package engine

import (
	"context"
	"fmt"

	"github.com/ccollier86/catalyst-auth-sub001/pkg/spechash"
)

// Plan computes the changes needed to converge the runbook without
// executing any of them.
func (r *Runner) Plan(ctx context.Context, rb *Runbook) (*PlanResult, error) {
	ru := r.startRun(RunModePlan, rb)
	if err := r.emitStarted(ctx, ru); err != nil {
		return nil, err
	}

	planned, err := r.plan(ctx, ru, rb)
	if err != nil {
		return nil, r.fail(ctx, ru, err)
	}

	result := &PlanResult{
		RunID:       ru.id,
		Runbook:     ru.meta,
		GeneratedAt: r.now(),
		Actions:     planned,
	}
	for _, p := range planned {
		result.Summary.add(p.Change)
		if p.Change != ChangeNoop {
			result.HasChanges = true
		}
	}

	if err := r.emitCompleted(ctx, ru, RunStatusSuccess, nil); err != nil {
		return nil, err
	}
	return result, nil
}

// plan validates the runbook and evaluates every action in order. It is
// the first phase of both Plan and Apply.
func (r *Runner) plan(ctx context.Context, ru *run, rb *Runbook) ([]PlannedAction, error) {
	actions, err := r.prepare(rb)
	if err != nil {
		return nil, err
	}

	planned := make([]PlannedAction, 0, len(actions))
	for _, action := range actions {
		p, err := r.planAction(ctx, rb.Name, action)
		if err != nil {
			return nil, err
		}

		r.logger.Debug().
			Str("run_id", ru.id).
			Str("action_id", p.ID).
			Str("change", string(p.Change)).
			Msg("action evaluated")

		ev := ActionEvaluatedEvent{
			RunEvent: r.event(ru),
			Action:   p.Descriptor(),
			Change:   p.Change,
		}
		if err := r.hooks.actionEvaluated(ctx, ev); err != nil {
			return nil, err
		}
		planned = append(planned, *p)
	}
	return planned, nil
}

func (r *Runner) planAction(ctx context.Context, runbook string, action Action) (*PlannedAction, error) {
	p := &PlannedAction{
		ID:          action.ActionID(),
		Name:        action.ActionName(),
		Kind:        action.ActionKind(),
		Description: action.ActionDescription(),
		DependsOn:   action.Dependencies(),
		action:      action,
	}

	stored, err := r.store.Read(ctx, runbook, p.ID)
	if err != nil {
		return nil, storeError(p.ID, OperationRead, err)
	}
	if stored != nil {
		appliedAt := stored.AppliedAt
		p.LastAppliedAt = &appliedAt
		p.PreviousHash = stored.SpecHash
	}

	switch a := action.(type) {
	case *EnsureAction:
		current, err := r.port.Describe(ctx, a.Spec.Selector())
		if err != nil {
			return nil, portError(p.ID, OperationDescribe, err)
		}

		desired := a.Spec.Properties
		p.desiredHash = spechash.ComputeSpecHash(desired)
		switch {
		case current == nil:
			p.Change = ChangeCreate
			p.Diff = spechash.CreateDiff(nil, desired)
		case spechash.ComputeSpecHash(current.Properties) == p.desiredHash:
			p.Change = ChangeNoop
		default:
			p.Change = ChangeUpdate
			p.Diff = spechash.CreateDiff(current.Properties, desired)
		}

	case *DeleteAction:
		current, err := r.port.Describe(ctx, a.Selector)
		if err != nil {
			return nil, portError(p.ID, OperationDescribe, err)
		}

		if current == nil {
			p.Change = ChangeNoop
		} else {
			p.Change = ChangeDelete
			p.Diff = spechash.CreateDiff(current.Properties, nil)
		}

	default:
		return nil, NewPermanentError(fmt.Sprintf("unsupported action type %T", action), nil).
			WithCode(ErrCodeInternal).
			WithAction(p.ID)
	}

	return p, nil
}
