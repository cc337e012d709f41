package telemetry

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ContextKey type for context keys
type ContextKey string

const (
	// CorrelationIDKey is the context key for correlation ID
	CorrelationIDKey ContextKey = "correlation_id"
	// RequestIDKey is the context key for request ID
	RequestIDKey ContextKey = "request_id"
	// RunIDKey is the context key for the workflow run ID
	RunIDKey ContextKey = "run_id"
)

const (
	// HeaderCorrelationID is the HTTP header for correlation ID
	HeaderCorrelationID = "X-Correlation-ID"
	// HeaderRequestID is the HTTP header for request ID
	HeaderRequestID = "X-Request-ID"
	// HeaderRunID carries the run ID on execute responses
	HeaderRunID = "X-Run-ID"
)

// CorrelationMiddleware adds correlation and request IDs to HTTP requests,
// generating them when the caller sent none, and echoes them on the response.
func CorrelationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		correlationID := r.Header.Get(HeaderCorrelationID)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		ctx = WithCorrelationID(ctx, correlationID)

		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		ctx = context.WithValue(ctx, RequestIDKey, requestID)

		if span := trace.SpanFromContext(ctx); span.IsRecording() {
			span.SetAttributes(
				attribute.String("correlation.id", correlationID),
				attribute.String("request.id", requestID),
			)
		}

		w.Header().Set(HeaderCorrelationID, correlationID)
		w.Header().Set(HeaderRequestID, requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// WithCorrelationID stores id on ctx.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, CorrelationIDKey, id)
}

// WithRunID stores a workflow run ID on ctx.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RunIDKey, id)
}

// GetCorrelationID retrieves correlation ID from context
func GetCorrelationID(ctx context.Context) string {
	return stringValue(ctx, CorrelationIDKey)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	return stringValue(ctx, RequestIDKey)
}

// GetRunID retrieves the workflow run ID from context
func GetRunID(ctx context.Context) string {
	return stringValue(ctx, RunIDKey)
}

func stringValue(ctx context.Context, key ContextKey) string {
	if id, ok := ctx.Value(key).(string); ok {
		return id
	}
	return ""
}

// EnrichLogFields adds correlation IDs and the active trace to log fields.
func EnrichLogFields(ctx context.Context, fields map[string]interface{}) map[string]interface{} {
	if fields == nil {
		fields = make(map[string]interface{})
	}

	if correlationID := GetCorrelationID(ctx); correlationID != "" {
		fields["correlation_id"] = correlationID
	}
	if requestID := GetRequestID(ctx); requestID != "" {
		fields["request_id"] = requestID
	}
	if runID := GetRunID(ctx); runID != "" {
		fields["run_id"] = runID
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		spanCtx := span.SpanContext()
		fields["trace_id"] = spanCtx.TraceID().String()
		fields["span_id"] = spanCtx.SpanID().String()
	}

	return fields
}
