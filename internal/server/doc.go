// Package server exposes the registry, the workflow catalog and the executor
// over HTTP.
//
//	GET  /health
//	GET  /metrics
//	GET  /capabilities
//	GET  /slots
//	GET  /registrations?type=agent|plugin|service
//	GET  /summary
//	GET  /providers?type=llm
//	GET  /workflows
//	GET  /workflows/{name}/plan
//	POST /workflows/{name}/execute
//	GET  /runs?limit=20
//	GET  /runs/{id}
//
// Requests are traced with otelhttp and carry X-Correlation-ID and
// X-Request-ID headers.
package server
