package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// PhaseSample describes one finished phase for metrics.
type PhaseSample struct {
	Workflow      string
	Phase         string
	Capability    string
	ComponentType string
	Status        string
	Duration      time.Duration
}

// PhaseMetrics records workflow and phase instruments.
type PhaseMetrics struct {
	phases   metric.Int64Counter
	duration metric.Float64Histogram
	runs     metric.Int64Counter
}

// NewPhaseMetrics creates the instruments on meter. A nil meter uses the
// global meter provider.
func NewPhaseMetrics(meter metric.Meter) (*PhaseMetrics, error) {
	if meter == nil {
		meter = otel.GetMeterProvider().Meter(InstrumentationName)
	}
	phases, err := meter.Int64Counter(
		"capflow_phase_executions_total",
		metric.WithDescription("Total workflow phase executions by terminal status"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(
		"capflow_phase_duration_seconds",
		metric.WithDescription("Workflow phase duration"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}
	runs, err := meter.Int64Counter(
		"capflow_workflow_runs_total",
		metric.WithDescription("Total workflow runs"),
	)
	if err != nil {
		return nil, err
	}
	return &PhaseMetrics{phases: phases, duration: duration, runs: runs}, nil
}

// RecordPhase adds one phase outcome.
func (m *PhaseMetrics) RecordPhase(ctx context.Context, s PhaseSample) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("workflow", s.Workflow),
		attribute.String("capability", s.Capability),
		attribute.String("component_type", s.ComponentType),
		attribute.String("status", s.Status),
	)
	m.phases.Add(ctx, 1, attrs)
	m.duration.Record(ctx, s.Duration.Seconds(), attrs)
}

// RecordRun adds one workflow run.
func (m *PhaseMetrics) RecordRun(ctx context.Context, workflow string, succeeded bool) {
	if m == nil {
		return
	}
	m.runs.Add(ctx, 1, metric.WithAttributes(
		attribute.String("workflow", workflow),
		attribute.Bool("succeeded", succeeded),
	))
}
