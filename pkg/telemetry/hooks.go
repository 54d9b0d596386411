package telemetry

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ccollier86/catalyst-auth-sub001/pkg/engine"
)

// LoggingHooks returns engine hooks that log every event with structured
// fields. They never fail.
func LoggingHooks(logger *Logger) engine.Hooks {
	zlog := logger.Zerolog()
	base := func(ev engine.RunEvent) zerolog.Context {
		return zlog.With().
			Str("run_id", ev.RunID).
			Str("mode", string(ev.Mode)).
			Str("runbook", ev.Runbook.Name).
			Str("version", ev.Runbook.Version)
	}

	return engine.Hooks{
		OnRunbookStarted: func(ctx context.Context, ev engine.RunbookStartedEvent) error {
			l := base(ev.RunEvent).Logger()
			l.Info().Msg("runbook started")
			return nil
		},
		OnRunbookCompleted: func(ctx context.Context, ev engine.RunbookCompletedEvent) error {
			l := base(ev.RunEvent).Logger()
			event := l.Info()
			if ev.Status == engine.RunStatusError {
				event = l.Error().Err(ev.Err).Str("error_class", string(engine.ClassOf(ev.Err)))
			}
			event.
				Str("status", string(ev.Status)).
				Dur("duration", ev.Duration).
				Msg("runbook completed")
			return nil
		},
		OnActionEvaluated: func(ctx context.Context, ev engine.ActionEvaluatedEvent) error {
			l := base(ev.RunEvent).Logger()
			l.Debug().
				Str("action_id", ev.Action.ID).
				Str("kind", string(ev.Action.Kind)).
				Str("change", string(ev.Change)).
				Msg("action evaluated")
			return nil
		},
		OnActionApplied: func(ctx context.Context, ev engine.ActionAppliedEvent) error {
			l := base(ev.RunEvent).Logger()
			event := l.Info()
			switch ev.Outcome {
			case engine.ActionStatusFailed:
				event = l.Error().Str("error", ev.Error)
			case engine.ActionStatusSkipped:
				event = l.Warn().Str("reason", ev.Error)
			}
			event.
				Str("action_id", ev.Action.ID).
				Str("change", string(ev.Change)).
				Str("outcome", string(ev.Outcome)).
				Dur("duration", ev.Duration).
				Msg("action applied")
			return nil
		},
	}
}
