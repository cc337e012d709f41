// Package telemetry wires OpenTelemetry into capflow.
//
// Setup builds a tracer provider with one of three exporters: "none" keeps
// spans in process, "stdout" writes them as JSON, and "otlp" ships them over
// gRPC to OTEL_EXPORTER_OTLP_ENDPOINT or the configured endpoint.
//
// PhaseMetrics records the executor's instruments:
//   - capflow_phase_executions_total{workflow,capability,component_type,status}
//   - capflow_phase_duration_seconds
//   - capflow_workflow_runs_total{workflow,succeeded}
//
// CorrelationMiddleware tags HTTP requests with correlation and request IDs,
// and EnrichLogFields copies them, plus the run ID and active trace, into
// log fields.
package telemetry
