// Package telemetry wires OpenTelemetry tracing and metrics for one
// process: a span per pipeline stage (validate, transform, execute),
// a child span per mediated tool call, and a small set of counters
// mirroring internal/adapter/inbound/metrics's Prometheus surface but
// exported through OTel instead, per §11/§12.3's "ambient observability,
// never a scoring or approval mechanism."
package telemetry

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Stage names the three pipeline phases a Provider's Tracer spans.
type Stage string

const (
	StageValidate  Stage = "validate"
	StageTransform Stage = "transform"
	StageExecute   Stage = "execute"
)

// Provider owns the tracer/meter providers for one process and the
// handful of instruments SPEC_FULL.md's telemetry table calls for. The
// zero value is not usable; construct with New.
type Provider struct {
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider

	tracer trace.Tracer

	toolCallDuration metric.Float64Histogram
	toolCallCount    metric.Int64Counter
}

// Options configures New. Exporter accepts only "stdout" (the default);
// any other value, "otlp" included, makes New return an error.
// ServiceName is attached to every exported span/metric as a resource
// attribute.
type Options struct {
	ServiceName string
	Exporter    string
	Writer      io.Writer // destination for the stdout exporters; defaults to os.Stdout if nil
}

// New builds a Provider whose spans/metrics are exported via the
// stdout exporters carried in go.mod (go.opentelemetry.io/otel/
// exporters/stdout/{stdouttrace,stdoutmetric}) — matching the
// dependency set actually available rather than requiring a running
// OTLP collector. An "otlp" Exporter value is rejected rather than
// silently downgraded to stdout, since shipping traces to the wrong
// place silently would be worse than failing to start.
func New(ctx context.Context, opts Options) (*Provider, error) {
	if opts.Exporter == "" {
		opts.Exporter = "stdout"
	}
	if opts.Exporter != "stdout" {
		return nil, fmt.Errorf("telemetry: exporter %q requires an OTLP exporter dependency not carried in this build; use \"stdout\"", opts.Exporter)
	}
	serviceName := opts.ServiceName
	if serviceName == "" {
		serviceName = "enclave-guardd"
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(serviceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build resource: %w", err)
	}

	traceExporterOpts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
	metricExporterOpts := []stdoutmetric.Option{}
	if opts.Writer != nil {
		traceExporterOpts = append(traceExporterOpts, stdouttrace.WithWriter(opts.Writer))
		metricExporterOpts = append(metricExporterOpts, stdoutmetric.WithWriter(opts.Writer))
	}

	traceExporter, err := stdouttrace.New(traceExporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build trace exporter: %w", err)
	}
	metricExporter, err := stdoutmetric.New(metricExporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build metric exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)

	tracer := tp.Tracer("github.com/agentscript/sentinel-enclave")
	meter := mp.Meter("github.com/agentscript/sentinel-enclave")

	toolCallDuration, err := meter.Float64Histogram(
		"enclave.tool_call.duration",
		metric.WithDescription("Duration of a single mediated tool call, in milliseconds."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build tool call duration histogram: %w", err)
	}
	toolCallCount, err := meter.Int64Counter(
		"enclave.tool_call.count",
		metric.WithDescription("Count of mediated tool calls, labeled by name and outcome."),
	)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build tool call counter: %w", err)
	}

	return &Provider{
		tracerProvider:   tp,
		meterProvider:    mp,
		tracer:           tracer,
		toolCallDuration: toolCallDuration,
		toolCallCount:    toolCallCount,
	}, nil
}

// StartStage opens a span for one pipeline stage of a single execution.
// The caller ends it via the returned trace.Span once the stage
// completes, success or failure.
func (p *Provider) StartStage(ctx context.Context, executionID string, stage Stage) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, string(stage),
		trace.WithAttributes(
			attrExecutionID(executionID),
			attrStage(stage),
		),
	)
}

// StartToolCall opens a child span for one mediated __safe_callTool
// invocation, nested under whichever StartStage span is active in ctx.
func (p *Provider) StartToolCall(ctx context.Context, callID, name string) (context.Context, trace.Span) {
	return p.tracer.Start(ctx, "tool_call",
		trace.WithAttributes(
			attrCallID(callID),
			attrToolName(name),
		),
	)
}

// RecordToolCall records one completed tool call's duration and
// outcome on the shared histogram/counter instruments.
func (p *Provider) RecordToolCall(ctx context.Context, name string, durationMS float64, allowed bool) {
	p.toolCallDuration.Record(ctx, durationMS, metric.WithAttributes(attrToolName(name)))
	p.toolCallCount.Add(ctx, 1, metric.WithAttributes(attrToolName(name), attrAllowed(allowed)))
}

// Shutdown flushes and closes both providers. Called once during
// process shutdown.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	if err := p.tracerProvider.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := p.meterProvider.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("telemetry: shutdown: %v", errs)
	}
	return nil
}
