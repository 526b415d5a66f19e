package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"thoreinstein.com/chronicle/pkg/config"
	chronerrors "thoreinstein.com/chronicle/pkg/errors"
	"thoreinstein.com/chronicle/pkg/mining"
)

func TestNew_DisabledIsNoOp(t *testing.T) {
	exp, err := New(context.Background(), config.TelemetryConfig{Enabled: false})
	require.NoError(t, err)
	assert.IsType(t, &NoOpExporter{}, exp)

	require.NoError(t, exp.RecordRun(context.Background(), RunMetrics{}))
	require.NoError(t, exp.Close(context.Background()))
}

func TestNewOTLPExporter_RequiresEndpoint(t *testing.T) {
	_, err := NewOTLPExporter(context.Background(), config.TelemetryConfig{Enabled: true})
	require.Error(t, err)
	assert.True(t, chronerrors.IsConfigError(err))
}

func TestOTLPExporter_RecordRun(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	exp, err := newOTLPExporter(provider)
	require.NoError(t, err)

	err = exp.RecordRun(context.Background(), RunMetrics{
		Status:            mining.StatusPartial,
		Source:            "histdb",
		DominantCategory:  "version-control",
		Events:            120,
		Sessions:          6,
		CompletedSessions: 4,
		Patterns:          9,
		Degraded:          2,
		Duration:          1500 * time.Millisecond,
	})
	require.NoError(t, err)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	byName := make(map[string]metricdata.Metrics)
	for _, m := range rm.ScopeMetrics[0].Metrics {
		byName[m.Name] = m
	}

	runs, ok := byName["chronicle_runs_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, runs.DataPoints, 1)
	assert.Equal(t, int64(1), runs.DataPoints[0].Value)
	status, ok := runs.DataPoints[0].Attributes.Value("status")
	require.True(t, ok)
	assert.Equal(t, "partial", status.AsString())

	events, ok := byName["chronicle_events_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(120), events.DataPoints[0].Value)

	sessions, ok := byName["chronicle_run_sessions"].Data.(metricdata.Histogram[int64])
	require.True(t, ok)
	assert.Equal(t, int64(4), sessions.DataPoints[0].Sum)

	duration, ok := byName["chronicle_run_duration_seconds"].Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	assert.InDelta(t, 1.5, duration.DataPoints[0].Sum, 1e-9)

	require.NoError(t, exp.Close(context.Background()))
}

func TestMetricsFromResult(t *testing.T) {
	result := &mining.Result{
		Status: mining.StatusComplete,
		Summary: mining.WorkflowSummary{
			CategoryTotals: map[string]float64{"build": 0.4, "version-control": 1.2},
			Profile:        mining.Profile{DegradedCount: 3},
		},
		Stats: mining.RunStats{Events: 10, Sessions: 2, CompletedSessions: 2, Patterns: 5},
	}

	m := MetricsFromResult("zsh", result)
	assert.Equal(t, "version-control", m.DominantCategory)
	assert.Equal(t, "zsh", m.Source)
	assert.Equal(t, 3, m.Degraded)
	assert.Equal(t, 5, m.Patterns)
}
