package telemetry

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ccollier86/catalyst-auth-sub001/pkg/engine"
)

// Metrics provides Prometheus metrics for runbook runs.
type Metrics struct {
	config MetricsConfig

	// Run metrics
	runsStarted   *prometheus.CounterVec
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec
	activeRuns    prometheus.Gauge

	// Action metrics
	actionsEvaluated *prometheus.CounterVec
	actionsApplied   *prometheus.CounterVec
	actionDuration   *prometheus.HistogramVec

	// Error metrics
	errorsByClass *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
// A disabled configuration yields a collector whose methods do nothing.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		runsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_started_total",
				Help:      "Total number of plan and apply runs started",
			},
			[]string{"mode"},
		),
		runsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_completed_total",
				Help:      "Total number of runs completed",
			},
			[]string{"mode", "status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Duration of runs in seconds",
				Buckets:   buckets,
			},
			[]string{"mode", "status"},
		),
		activeRuns: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_runs",
				Help:      "Number of runs in progress",
			},
		),

		actionsEvaluated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_evaluated_total",
				Help:      "Total number of actions planned",
			},
			[]string{"kind", "change"},
		),
		actionsApplied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "actions_applied_total",
				Help:      "Total number of actions processed by apply",
			},
			[]string{"change", "outcome"},
		),
		actionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "action_duration_seconds",
				Help:      "Duration of action execution in seconds",
				Buckets:   buckets,
			},
			[]string{"change"},
		),

		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_by_class_total",
				Help:      "Total number of failed runs by error class",
			},
			[]string{"class"},
		),
	}

	registry.MustRegister(
		m.runsStarted,
		m.runsCompleted,
		m.runDuration,
		m.activeRuns,
		m.actionsEvaluated,
		m.actionsApplied,
		m.actionDuration,
		m.errorsByClass,
	)

	return m, nil
}

// Run Metrics

// RecordRunStarted increments the counter for started runs.
func (m *Metrics) RecordRunStarted(mode engine.RunMode) {
	if m.runsStarted == nil {
		return
	}
	m.runsStarted.WithLabelValues(string(mode)).Inc()
	m.activeRuns.Inc()
}

// RecordRunCompleted records a completed run with its status and duration.
func (m *Metrics) RecordRunCompleted(mode engine.RunMode, status engine.RunStatus, duration time.Duration) {
	if m.runsCompleted == nil {
		return
	}
	m.runsCompleted.WithLabelValues(string(mode), string(status)).Inc()
	m.runDuration.WithLabelValues(string(mode), string(status)).Observe(duration.Seconds())
	m.activeRuns.Dec()
}

// Action Metrics

// RecordActionEvaluated counts a planned action.
func (m *Metrics) RecordActionEvaluated(kind engine.ActionKind, change engine.ChangeKind) {
	if m.actionsEvaluated == nil {
		return
	}
	m.actionsEvaluated.WithLabelValues(string(kind), string(change)).Inc()
}

// RecordActionApplied counts an applied action and observes its duration.
func (m *Metrics) RecordActionApplied(change engine.ChangeKind, outcome engine.ActionStatus, duration time.Duration) {
	if m.actionsApplied == nil {
		return
	}
	m.actionsApplied.WithLabelValues(string(change), string(outcome)).Inc()
	m.actionDuration.WithLabelValues(string(change)).Observe(duration.Seconds())
}

// Error Metrics

// RecordError records an error by class.
func (m *Metrics) RecordError(class engine.ErrorClass) {
	if m.errorsByClass == nil {
		return
	}
	m.errorsByClass.WithLabelValues(string(class)).Inc()
}

// Hooks returns engine hooks that feed the collectors. They never fail.
func (m *Metrics) Hooks() engine.Hooks {
	return engine.Hooks{
		OnRunbookStarted: func(ctx context.Context, ev engine.RunbookStartedEvent) error {
			m.RecordRunStarted(ev.Mode)
			return nil
		},
		OnRunbookCompleted: func(ctx context.Context, ev engine.RunbookCompletedEvent) error {
			m.RecordRunCompleted(ev.Mode, ev.Status, ev.Duration)
			if ev.Err != nil {
				m.RecordError(engine.ClassOf(ev.Err))
			}
			return nil
		},
		OnActionEvaluated: func(ctx context.Context, ev engine.ActionEvaluatedEvent) error {
			m.RecordActionEvaluated(ev.Action.Kind, ev.Change)
			return nil
		},
		OnActionApplied: func(ctx context.Context, ev engine.ActionAppliedEvent) error {
			m.RecordActionApplied(ev.Change, ev.Outcome, ev.Duration)
			return nil
		},
	}
}

// Registry returns the private registry, or nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// StartMetricsServer starts an HTTP server exposing the metrics. It returns
// nil when metrics are disabled or no listen address is configured.
func (m *Metrics) StartMetricsServer(logger zerolog.Logger) *http.Server {
	if !m.config.Enabled || m.config.ListenAddress == "" {
		return nil
	}

	path := m.config.Path
	if path == "" {
		path = "/metrics"
	}

	mux := http.NewServeMux()
	mux.Handle(path, m.Handler())

	server := &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			// Log error but don't fail the run
			logger.Error().Err(err).Str("addr", server.Addr).Msg("metrics server error")
		}
	}()

	return server
}
