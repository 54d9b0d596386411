package engine

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Runner plans and applies runbooks against one ResourcePort and one
// StateStore. It keeps no per-call state, so a single Runner may serve
// concurrent calls.
type Runner struct {
	port        ResourcePort
	store       StateStore
	hooks       Hooks
	logger      zerolog.Logger
	now         func() time.Time
	newRunID    func() string
	topological bool
}

// Option configures a Runner.
type Option func(*Runner)

// WithHooks sets the telemetry hooks. Use ChainHooks to install several.
func WithHooks(hooks Hooks) Option {
	return func(r *Runner) {
		r.hooks = hooks
	}
}

// WithLogger sets the logger used for debug output.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// WithRunIDGenerator overrides the run id source.
func WithRunIDGenerator(gen func() string) Option {
	return func(r *Runner) {
		r.newRunID = gen
	}
}

// WithTopologicalOrder reorders actions by dependsOn before planning.
// Without it actions run in declared order.
func WithTopologicalOrder() Option {
	return func(r *Runner) {
		r.topological = true
	}
}

// NewRunner creates a runner.
func NewRunner(port ResourcePort, store StateStore, opts ...Option) (*Runner, error) {
	if port == nil {
		return nil, NewPermanentError("resource port is nil", nil).WithCode(ErrCodeInternal)
	}
	if store == nil {
		return nil, NewPermanentError("state store is nil", nil).WithCode(ErrCodeInternal)
	}

	r := &Runner{
		port:     port,
		store:    store,
		logger:   zerolog.Nop(),
		now:      time.Now,
		newRunID: func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// ApplyOptions controls an apply call.
type ApplyOptions struct {
	// DryRun plans every action but executes none that would change anything.
	DryRun bool
}

// run carries the per-call identity shared by all events of one call.
type run struct {
	id      string
	mode    RunMode
	meta    RunbookMeta
	name    string
	started time.Time
}

func (r *Runner) startRun(mode RunMode, rb *Runbook) *run {
	ru := &run{
		id:      r.newRunID(),
		mode:    mode,
		started: r.now(),
	}
	if rb != nil {
		ru.meta = rb.Meta()
		ru.name = rb.Name
	}
	return ru
}

func (r *Runner) event(ru *run) RunEvent {
	return RunEvent{
		RunID:     ru.id,
		Mode:      ru.mode,
		Timestamp: r.now(),
		Runbook:   ru.meta,
	}
}

func (r *Runner) emitStarted(ctx context.Context, ru *run) error {
	r.logger.Debug().
		Str("run_id", ru.id).
		Str("mode", string(ru.mode)).
		Str("runbook", ru.name).
		Msg("runbook started")
	return r.hooks.runbookStarted(ctx, RunbookStartedEvent{RunEvent: r.event(ru)})
}

func (r *Runner) emitCompleted(ctx context.Context, ru *run, status RunStatus, runErr error) error {
	ev := RunbookCompletedEvent{
		RunEvent: r.event(ru),
		Status:   status,
		Err:      runErr,
	}
	ev.Duration = elapsed(ru.started, ev.Timestamp)

	r.logger.Debug().
		Str("run_id", ru.id).
		Str("mode", string(ru.mode)).
		Str("status", string(status)).
		Dur("duration", ev.Duration).
		Msg("runbook completed")
	return r.hooks.runbookCompleted(ctx, ev)
}

// fail emits the completed event for a run that aborted with err and
// returns the error to hand back to the caller.
func (r *Runner) fail(ctx context.Context, ru *run, err error) error {
	if hookErr := r.emitCompleted(ctx, ru, RunStatusError, err); hookErr != nil {
		return errors.Join(err, hookErr)
	}
	return err
}

// prepare validates the runbook and returns the actions in execution order.
func (r *Runner) prepare(rb *Runbook) ([]Action, error) {
	if err := ValidateRunbook(rb); err != nil {
		return nil, err
	}
	if !r.topological {
		return rb.Actions, nil
	}

	graph, err := NewActionGraph(rb.Actions)
	if err != nil {
		return nil, err
	}
	return graph.Sorted()
}
