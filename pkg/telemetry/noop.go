package telemetry

import "context"

// NoOpExporter is an exporter that does nothing.
type NoOpExporter struct{}

// NewNoOpExporter creates a no-op exporter for runs with telemetry disabled.
func NewNoOpExporter() *NoOpExporter {
	return &NoOpExporter{}
}

func (e *NoOpExporter) RecordRun(ctx context.Context, m RunMetrics) error {
	return nil
}

func (e *NoOpExporter) Close(ctx context.Context) error {
	return nil
}
