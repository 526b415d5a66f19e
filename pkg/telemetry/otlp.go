package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"thoreinstein.com/chronicle/pkg/config"
	chronerrors "thoreinstein.com/chronicle/pkg/errors"
)

const serviceName = "chronicle"

// ServiceVersion is reported as the service.version resource attribute.
var ServiceVersion = "dev"

// OTLPExporter pushes run metrics to an OTLP/gRPC collector.
type OTLPExporter struct {
	provider *sdkmetric.MeterProvider

	runsTotal     metric.Int64Counter
	eventsTotal   metric.Int64Counter
	patternsHist  metric.Int64Histogram
	sessionsHist  metric.Int64Histogram
	degradedTotal metric.Int64Counter
	durationHist  metric.Float64Histogram
}

// NewOTLPExporter creates an exporter for cfg.Endpoint.
func NewOTLPExporter(ctx context.Context, cfg config.TelemetryConfig) (*OTLPExporter, error) {
	if cfg.Endpoint == "" {
		return nil, chronerrors.NewConfigError("telemetry.endpoint", "required when telemetry is enabled")
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts,
			otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
			otlpmetricgrpc.WithInsecure())
	}

	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, chronerrors.Wrap(err, "creating OTLP exporter")
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(ServiceVersion),
		),
	)
	if err != nil {
		return nil, chronerrors.Wrap(err, "creating resource")
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
		sdkmetric.WithResource(res),
	)

	e, err := newOTLPExporter(provider)
	if err != nil {
		_ = provider.Shutdown(ctx)
		return nil, err
	}
	return e, nil
}

func newOTLPExporter(provider *sdkmetric.MeterProvider) (*OTLPExporter, error) {
	meter := provider.Meter(serviceName)
	e := &OTLPExporter{provider: provider}

	var err error
	e.runsTotal, err = meter.Int64Counter(
		"chronicle_runs_total",
		metric.WithDescription("Total number of analysis runs"),
		metric.WithUnit("{run}"),
	)
	if err != nil {
		return nil, chronerrors.Wrap(err, "creating runs counter")
	}

	e.eventsTotal, err = meter.Int64Counter(
		"chronicle_events_total",
		metric.WithDescription("History events analysed"),
		metric.WithUnit("{event}"),
	)
	if err != nil {
		return nil, chronerrors.Wrap(err, "creating events counter")
	}

	e.patternsHist, err = meter.Int64Histogram(
		"chronicle_run_patterns",
		metric.WithDescription("Patterns found per run"),
		metric.WithUnit("{pattern}"),
	)
	if err != nil {
		return nil, chronerrors.Wrap(err, "creating patterns histogram")
	}

	e.sessionsHist, err = meter.Int64Histogram(
		"chronicle_run_sessions",
		metric.WithDescription("Sessions aggregated per run"),
		metric.WithUnit("{session}"),
	)
	if err != nil {
		return nil, chronerrors.Wrap(err, "creating sessions histogram")
	}

	e.degradedTotal, err = meter.Int64Counter(
		"chronicle_degraded_commands_total",
		metric.WithDescription("Commands that fell back to whitespace tokenization"),
		metric.WithUnit("{command}"),
	)
	if err != nil {
		return nil, chronerrors.Wrap(err, "creating degraded counter")
	}

	e.durationHist, err = meter.Float64Histogram(
		"chronicle_run_duration_seconds",
		metric.WithDescription("Analysis run duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, chronerrors.Wrap(err, "creating duration histogram")
	}

	return e, nil
}

// RecordRun records the metrics of one analysis run.
func (e *OTLPExporter) RecordRun(ctx context.Context, m RunMetrics) error {
	attrs := []attribute.KeyValue{
		attribute.String("status", string(m.Status)),
		attribute.String("source", m.Source),
	}
	if m.DominantCategory != "" {
		attrs = append(attrs, attribute.String("dominant_category", m.DominantCategory))
	}
	opt := metric.WithAttributes(attrs...)

	e.runsTotal.Add(ctx, 1, opt)
	e.eventsTotal.Add(ctx, int64(m.Events), opt)
	e.patternsHist.Record(ctx, int64(m.Patterns), opt)
	e.sessionsHist.Record(ctx, int64(m.CompletedSessions), opt)
	e.degradedTotal.Add(ctx, int64(m.Degraded), opt)
	e.durationHist.Record(ctx, m.Duration.Seconds(), opt)

	return nil
}

// Close flushes pending metrics and shuts the provider down.
func (e *OTLPExporter) Close(ctx context.Context) error {
	return e.provider.Shutdown(ctx)
}
