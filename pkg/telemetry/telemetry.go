package telemetry

import (
	"context"
	"errors"
	"net/http"

	"github.com/ccollier86/catalyst-auth-sub001/pkg/engine"
)

// Telemetry combines logging, tracing and metrics.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Config  *Config

	server *http.Server
}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion, cfg.Environment)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Config:  cfg,
	}, nil
}

// Hooks returns the logging, tracing and metrics hooks chained in that order.
func (t *Telemetry) Hooks() engine.Hooks {
	return engine.ChainHooks(
		LoggingHooks(t.Logger),
		t.Tracer.Hooks(),
		t.Metrics.Hooks(),
	)
}

// StartMetricsServer serves the metrics when a listen address is configured.
func (t *Telemetry) StartMetricsServer() {
	t.server = t.Metrics.StartMetricsServer(t.Logger.Zerolog())
}

// Shutdown stops the metrics server and flushes traces.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.server != nil {
		errs = append(errs, t.server.Shutdown(ctx))
	}
	errs = append(errs, t.Tracer.Shutdown(ctx), t.Logger.Close())
	return errors.Join(errs...)
}
