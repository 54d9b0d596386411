package engine

import (
	"context"
	"fmt"
	"time"
)

// Apply plans the runbook and then executes each planned action in order.
// Per-action failures are recorded in the result and do not abort the run;
// the returned error is set only for validation, planning and hook failures.
func (r *Runner) Apply(ctx context.Context, rb *Runbook, opts ApplyOptions) (*ApplyResult, error) {
	ru := r.startRun(RunModeApply, rb)
	if err := r.emitStarted(ctx, ru); err != nil {
		return nil, err
	}

	planned, err := r.plan(ctx, ru, rb)
	if err != nil {
		return nil, r.fail(ctx, ru, err)
	}

	result := &ApplyResult{
		RunID:     ru.id,
		Runbook:   ru.meta,
		StartedAt: ru.started,
		DryRun:    opts.DryRun,
		Actions:   make([]AppliedAction, 0, len(planned)),
	}

	// statusByID only holds actions already processed.
	statusByID := make(map[string]ActionStatus, len(planned))
	var firstErr error

	for _, p := range planned {
		started := r.now()
		applied, outcome, actionErr := r.applyAction(ctx, rb.Name, p, opts, statusByID)
		if actionErr != nil && firstErr == nil {
			firstErr = actionErr
		}

		r.logger.Debug().
			Str("run_id", ru.id).
			Str("action_id", p.ID).
			Str("change", string(p.Change)).
			Str("outcome", string(outcome)).
			Str("error", applied.Error).
			Msg("action applied")

		ev := ActionAppliedEvent{
			RunEvent: r.event(ru),
			Action:   p.Descriptor(),
			Change:   p.Change,
			Outcome:  outcome,
			Error:    applied.Error,
		}
		ev.Duration = elapsed(started, ev.Timestamp)
		if err := r.hooks.actionApplied(ctx, ev); err != nil {
			return nil, r.fail(ctx, ru, err)
		}

		result.Actions = append(result.Actions, applied)
		result.Summary.add(outcome)
		statusByID[p.ID] = outcome
	}

	result.CompletedAt = r.now()
	result.Status = RunStatusSuccess
	if firstErr != nil {
		result.Status = RunStatusError
		result.Error = firstErr.Error()
	}

	if err := r.emitCompleted(ctx, ru, result.Status, firstErr); err != nil {
		return nil, err
	}
	return result, nil
}

// applyAction runs the dependency gate, the dry-run gate and then the
// action itself. The returned error is the execution failure, if any.
func (r *Runner) applyAction(
	ctx context.Context,
	runbook string,
	p PlannedAction,
	opts ApplyOptions,
	statusByID map[string]ActionStatus,
) (AppliedAction, ActionStatus, error) {
	applied := AppliedAction{PlannedAction: p}

	for _, dep := range p.DependsOn {
		if status, ok := statusByID[dep]; ok && status.BlocksDependents() {
			applied.Skipped = true
			applied.Error = fmt.Sprintf("Blocked by dependency %s", dep)
			return applied, ActionStatusSkipped, nil
		}
	}

	if opts.DryRun && p.Change.IsMutating() {
		applied.Skipped = true
		applied.Error = "dry-run"
		return applied, ActionStatusSkipped, nil
	}

	outcome, err := r.execute(ctx, runbook, p)
	if err != nil {
		applied.Error = err.Error()
		return applied, ActionStatusFailed, err
	}
	applied.Applied = outcome == ActionStatusApplied
	return applied, outcome, nil
}

// execute performs the port call for one action and records the result in
// the state store. Port errors are returned unwrapped so their message is
// reported verbatim.
func (r *Runner) execute(ctx context.Context, runbook string, p PlannedAction) (ActionStatus, error) {
	switch a := p.action.(type) {
	case *EnsureAction:
		var err error
		switch p.Change {
		case ChangeCreate:
			_, err = r.port.Create(ctx, a.Spec)
		case ChangeUpdate:
			_, err = r.port.Update(ctx, a.Spec)
		case ChangeNoop:
			return ActionStatusNoop, nil
		default:
			return ActionStatusFailed, NewPermanentError(
				fmt.Sprintf("unexpected change %s for ensure action", p.Change), nil,
			).WithCode(ErrCodeInternal).WithAction(p.ID)
		}
		if err != nil {
			return ActionStatusFailed, err
		}

		if err := r.store.Write(ctx, runbook, p.ID, p.desiredHash, r.now().UTC()); err != nil {
			return ActionStatusFailed, storeError(p.ID, OperationWrite, err)
		}
		return ActionStatusApplied, nil

	case *DeleteAction:
		outcome := ActionStatusNoop
		if p.Change == ChangeDelete {
			if err := r.port.Delete(ctx, a.Selector); err != nil {
				return ActionStatusFailed, err
			}
			outcome = ActionStatusApplied
		}

		// The row goes even when the resource was already gone.
		if err := r.store.Remove(ctx, runbook, p.ID); err != nil {
			return ActionStatusFailed, storeError(p.ID, OperationRemove, err)
		}
		return outcome, nil

	default:
		return ActionStatusFailed, NewPermanentError(
			fmt.Sprintf("unsupported action type %T", p.action), nil,
		).WithCode(ErrCodeInternal).WithAction(p.ID)
	}
}

// elapsed clamps clock skew from an injected clock to zero.
func elapsed(from, to time.Time) time.Duration {
	if to.Before(from) {
		return 0
	}
	return to.Sub(from)
}
