package telemetry

import (
	"context"
	"fmt"
	"os"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ccollier86/catalyst-auth-sub001/pkg/engine"
)

// Common attribute keys for runbook tracing.
var (
	AttrRunID          = attribute.Key("run.id")
	AttrRunMode        = attribute.Key("run.mode")
	AttrRunStatus      = attribute.Key("run.status")
	AttrRunbookName    = attribute.Key("runbook.name")
	AttrRunbookVersion = attribute.Key("runbook.version")
	AttrActionID       = attribute.Key("action.id")
	AttrActionKind     = attribute.Key("action.kind")
	AttrChange         = attribute.Key("action.change")
	AttrOutcome        = attribute.Key("action.outcome")
	AttrErrorClass     = attribute.Key("error.class")
	AttrErrorMessage   = attribute.Key("error.message")
)

// Tracer wraps the OpenTelemetry tracer and turns engine events into spans.
type Tracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
	config   TracingConfig

	mu    sync.Mutex
	spans map[string]trace.Span
}

// NewTracer creates a new tracer with the given configuration.
func NewTracer(cfg TracingConfig, serviceName, serviceVersion, environment string) (*Tracer, error) {
	if !cfg.Enabled {
		// Spans from the global no-op provider are never recorded
		return &Tracer{
			tracer: otel.Tracer(serviceName),
			config: cfg,
			spans:  make(map[string]trace.Span),
		}, nil
	}

	res, err := resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(serviceName),
			semconv.ServiceVersionKey.String(serviceVersion),
			attribute.String("environment", environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace resource: %w", err)
	}

	var exporter sdktrace.SpanExporter
	switch cfg.Exporter {
	case "otlp":
		exporter, err = createOTLPExporter(cfg)
	case "stdout":
		exporter, err = createStdoutExporter()
	case "none":
		// Traces are generated but not exported
		exporter = nil
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %s", cfg.Exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(
			sdktrace.TraceIDRatioBased(cfg.SamplingRate),
		)),
	}
	if exporter != nil {
		opts = append(opts, sdktrace.WithBatcher(
			exporter,
			sdktrace.WithMaxExportBatchSize(cfg.MaxExportBatchSize),
			sdktrace.WithExportTimeout(cfg.ExportTimeout),
		))
	}

	provider := sdktrace.NewTracerProvider(opts...)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	return NewTracerWithProvider(provider, serviceName), nil
}

// NewTracerWithProvider creates a tracer on an existing provider. The
// provider is shut down by Shutdown.
func NewTracerWithProvider(provider *sdktrace.TracerProvider, name string) *Tracer {
	return &Tracer{
		provider: provider,
		tracer:   provider.Tracer(name),
		spans:    make(map[string]trace.Span),
	}
}

// createOTLPExporter creates an OTLP gRPC exporter.
func createOTLPExporter(cfg TracingConfig) (sdktrace.SpanExporter, error) {
	opts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
	}

	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithTLSCredentials(insecure.NewCredentials()))
	}

	if len(cfg.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(cfg.Headers))
	}

	return otlptracegrpc.New(context.Background(), opts...)
}

// createStdoutExporter writes spans to stderr so they do not mix with
// command output.
func createStdoutExporter() (sdktrace.SpanExporter, error) {
	return stdouttrace.New(
		stdouttrace.WithWriter(os.Stderr),
		stdouttrace.WithPrettyPrint(),
	)
}

// Hooks returns engine hooks that record one span per run. Evaluated and
// applied actions become span events. They never fail.
func (t *Tracer) Hooks() engine.Hooks {
	return engine.Hooks{
		OnRunbookStarted: func(ctx context.Context, ev engine.RunbookStartedEvent) error {
			_, span := t.tracer.Start(ctx, "runbook."+string(ev.Mode),
				trace.WithTimestamp(ev.Timestamp),
				trace.WithAttributes(
					AttrRunID.String(ev.RunID),
					AttrRunMode.String(string(ev.Mode)),
					AttrRunbookName.String(ev.Runbook.Name),
					AttrRunbookVersion.String(ev.Runbook.Version),
				),
			)
			t.mu.Lock()
			t.spans[ev.RunID] = span
			t.mu.Unlock()
			return nil
		},
		OnActionEvaluated: func(ctx context.Context, ev engine.ActionEvaluatedEvent) error {
			if span := t.span(ev.RunID); span != nil {
				span.AddEvent("action.evaluated",
					trace.WithTimestamp(ev.Timestamp),
					trace.WithAttributes(
						AttrActionID.String(ev.Action.ID),
						AttrActionKind.String(string(ev.Action.Kind)),
						AttrChange.String(string(ev.Change)),
					),
				)
			}
			return nil
		},
		OnActionApplied: func(ctx context.Context, ev engine.ActionAppliedEvent) error {
			if span := t.span(ev.RunID); span != nil {
				attrs := []attribute.KeyValue{
					AttrActionID.String(ev.Action.ID),
					AttrChange.String(string(ev.Change)),
					AttrOutcome.String(string(ev.Outcome)),
				}
				if ev.Error != "" {
					attrs = append(attrs, AttrErrorMessage.String(ev.Error))
				}
				span.AddEvent("action.applied",
					trace.WithTimestamp(ev.Timestamp),
					trace.WithAttributes(attrs...),
				)
			}
			return nil
		},
		OnRunbookCompleted: func(ctx context.Context, ev engine.RunbookCompletedEvent) error {
			t.mu.Lock()
			span, ok := t.spans[ev.RunID]
			delete(t.spans, ev.RunID)
			t.mu.Unlock()
			if !ok {
				return nil
			}

			span.SetAttributes(AttrRunStatus.String(string(ev.Status)))
			if ev.Status == engine.RunStatusError {
				span.SetAttributes(AttrErrorClass.String(string(engine.ClassOf(ev.Err))))
				RecordError(span, ev.Err)
			} else {
				RecordSuccess(span)
			}
			span.End(trace.WithTimestamp(ev.Timestamp))
			return nil
		},
	}
}

func (t *Tracer) span(runID string) trace.Span {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.spans[runID]
}

// RecordError records an error on the span. A nil error still marks the
// span as failed.
func RecordError(span trace.Span, err error) {
	if err == nil {
		span.SetStatus(codes.Error, "")
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// RecordSuccess marks the span as successful.
func RecordSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// Shutdown ends any span still open and flushes pending spans.
func (t *Tracer) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	for id, span := range t.spans {
		span.End()
		delete(t.spans, id)
	}
	t.mu.Unlock()

	if t.provider == nil {
		return nil
	}
	return t.provider.Shutdown(ctx)
}

// ForceFlush forces all pending spans to be exported immediately.
func (t *Tracer) ForceFlush(ctx context.Context) error {
	if t.provider == nil {
		return nil
	}
	return t.provider.ForceFlush(ctx)
}
