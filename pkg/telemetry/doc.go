// Package telemetry provides observability for runbook runs.
//
// It integrates structured logging (zerolog), distributed tracing
// (OpenTelemetry) and metrics (Prometheus). Each part exposes engine.Hooks,
// so instrumentation is attached to a Runner rather than woven into it.
//
// # Usage
//
//	cfg := telemetry.DefaultConfig()
//	cfg.ServiceVersion = "1.0.0"
//
//	tel, err := telemetry.NewTelemetry(cfg)
//	if err != nil {
//	    return err
//	}
//	defer tel.Shutdown(context.Background())
//
//	runner, err := engine.NewRunner(port, store, engine.WithHooks(tel.Hooks()))
//
// # Logging
//
// LoggingHooks writes one line per event with run_id, mode, runbook,
// action_id, change and outcome fields. Failed actions log at error level,
// skipped actions at warn.
//
// # Tracing
//
// Tracer.Hooks records one span per run, named runbook.plan or
// runbook.apply. Evaluated and applied actions are added as span events and
// a failed run sets the span status to error. Exporters: otlp (gRPC),
// stdout and none.
//
// # Metrics
//
// Metrics.Hooks maintains the following collectors on a private registry:
//
//	runs_started_total{mode}
//	runs_completed_total{mode,status}
//	run_duration_seconds{mode,status}
//	active_runs
//	actions_evaluated_total{kind,change}
//	actions_applied_total{change,outcome}
//	action_duration_seconds{change}
//	errors_by_class_total{class}
//
// Handler exposes them over HTTP.
package telemetry
