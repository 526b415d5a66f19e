// Package telemetry exports analysis run metrics to an OpenTelemetry
// collector.
package telemetry

import (
	"context"
	"time"

	"thoreinstein.com/chronicle/pkg/config"
	"thoreinstein.com/chronicle/pkg/mining"
)

// RunMetrics is what one analysis run reports.
type RunMetrics struct {
	Status            mining.Status
	Source            string
	DominantCategory  string
	Events            int
	Sessions          int
	CompletedSessions int
	Patterns          int
	Degraded          int
	Duration          time.Duration
}

// MetricsFromResult extracts the reported metrics from an engine result.
func MetricsFromResult(source string, result *mining.Result) RunMetrics {
	return RunMetrics{
		Status:            result.Status,
		Source:            source,
		DominantCategory:  result.Summary.DominantCategory(),
		Events:            result.Stats.Events,
		Sessions:          result.Stats.Sessions,
		CompletedSessions: result.Stats.CompletedSessions,
		Patterns:          result.Stats.Patterns,
		Degraded:          result.Summary.Profile.DegradedCount,
		Duration:          result.Stats.Duration,
	}
}

// Exporter records run metrics.
type Exporter interface {
	RecordRun(ctx context.Context, m RunMetrics) error
	Close(ctx context.Context) error
}

// New returns an OTLP exporter when telemetry is enabled, and a no-op
// exporter otherwise.
func New(ctx context.Context, cfg config.TelemetryConfig) (Exporter, error) {
	if !cfg.Enabled {
		return NewNoOpExporter(), nil
	}
	exp, err := NewOTLPExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return exp, nil
}
