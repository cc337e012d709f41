package telemetry

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSetupStdoutExporter(t *testing.T) {
	var buf bytes.Buffer
	p, err := Setup(context.Background(), Options{
		ServiceName: "capflow-test",
		Exporter:    ExporterStdout,
		Writer:      &buf,
	})
	require.NoError(t, err)
	assert.Equal(t, ExporterStdout, p.Exporter())

	_, span := p.Tracer.Start(context.Background(), "test-operation")
	span.SetAttributes(attribute.String("test.name", "stdout"))
	span.End()

	require.NoError(t, p.Shutdown(context.Background()))
	assert.Contains(t, buf.String(), "test-operation")
	assert.Contains(t, buf.String(), "capflow-test")
}

func TestSetupExporterSelection(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_SDK_DISABLED", "")

	p, err := Setup(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, ExporterNone, p.Exporter())

	_, err = Setup(context.Background(), Options{Exporter: "zipkin"})
	assert.Error(t, err)

	_, err = Setup(context.Background(), Options{Exporter: ExporterOTLP})
	assert.Error(t, err, "otlp without endpoint")

	_, err = Setup(context.Background(), Options{Exporter: ExporterOTLPHTTP})
	assert.Error(t, err, "otlp-http without endpoint")

	t.Setenv("OTEL_SDK_DISABLED", "true")
	p, err = Setup(context.Background(), Options{Exporter: ExporterStdout})
	require.NoError(t, err)
	assert.Equal(t, ExporterNone, p.Exporter())

	// HTTP exporters connect lazily, so an unreachable endpoint still builds.
	t.Setenv("OTEL_SDK_DISABLED", "")
	p, err = Setup(context.Background(), Options{Exporter: ExporterOTLPHTTP, Endpoint: "127.0.0.1:4318", Insecure: true})
	require.NoError(t, err)
	assert.Equal(t, ExporterOTLPHTTP, p.Exporter())
	assert.NotNil(t, p.MeterProvider)
	assert.NotNil(t, p.Meter)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_ = p.Shutdown(ctx)

	var nilProvider *Provider
	assert.NoError(t, nilProvider.Shutdown(context.Background()))
}

func TestCorrelationMiddleware(t *testing.T) {
	var seen context.Context
	handler := CorrelationMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Context()
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderCorrelationID, "corr-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "corr-123", GetCorrelationID(seen))
	assert.NotEmpty(t, GetRequestID(seen))
	assert.Equal(t, "corr-123", rec.Header().Get(HeaderCorrelationID))
	assert.Equal(t, GetRequestID(seen), rec.Header().Get(HeaderRequestID))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, rec.Header().Get(HeaderCorrelationID), "generated when absent")
}

func TestEnrichLogFields(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	ctx = WithCorrelationID(ctx, "corr-1")
	ctx = WithRunID(ctx, "run-1")

	fields := EnrichLogFields(ctx, map[string]interface{}{"operation": "test"})
	assert.Equal(t, "test", fields["operation"])
	assert.Equal(t, "corr-1", fields["correlation_id"])
	assert.Equal(t, "run-1", fields["run_id"])
	assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
	assert.NotContains(t, fields, "request_id")

	assert.Empty(t, EnrichLogFields(context.Background(), nil))
}

func TestPhaseMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	m, err := NewPhaseMetrics(mp.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordPhase(ctx, PhaseSample{Workflow: "wf", Capability: "cap", ComponentType: "agent", Status: "completed", Duration: 20 * time.Millisecond})
	m.RecordPhase(ctx, PhaseSample{Workflow: "wf", Capability: "cap", Status: "skipped"})
	m.RecordRun(ctx, "wf", true)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	byName := map[string]metricdata.Metrics{}
	for _, metric := range rm.ScopeMetrics[0].Metrics {
		byName[metric.Name] = metric
	}
	require.Contains(t, byName, "capflow_phase_executions_total")
	require.Contains(t, byName, "capflow_phase_duration_seconds")
	require.Contains(t, byName, "capflow_workflow_runs_total")

	sum := byName["capflow_phase_executions_total"].Data.(metricdata.Sum[int64])
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(2), total)

	var nilMetrics *PhaseMetrics
	assert.NotPanics(t, func() {
		nilMetrics.RecordPhase(ctx, PhaseSample{})
		nilMetrics.RecordRun(ctx, "wf", false)
	})
}
