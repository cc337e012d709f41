package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"

	"github.com/itsneelabh/capflow/pkg/logger"
	"github.com/itsneelabh/capflow/pkg/orchestration"
	"github.com/itsneelabh/capflow/pkg/registry"
	"github.com/itsneelabh/capflow/pkg/store"
	"github.com/itsneelabh/capflow/pkg/telemetry"
	"github.com/itsneelabh/capflow/pkg/workflow"
)

// Options wires the server to the engine.
type Options struct {
	Registry *registry.CapabilityRegistry
	Catalog  *workflow.Catalog
	Executor *orchestration.WorkflowExecutor
	// Runs is optional; without it GET /runs answers 404.
	Runs   store.RunStore
	Logger logger.Logger

	ServiceName string
	// ExecuteRate limits POST /workflows/{name}/execute in requests per
	// second. Zero disables limiting.
	ExecuteRate  float64
	ExecuteBurst int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server is the capflow HTTP API.
type Server struct {
	registry *registry.CapabilityRegistry
	catalog  *workflow.Catalog
	executor *orchestration.WorkflowExecutor
	runs     store.RunStore
	logger   logger.Logger
	metrics  *httpMetrics
	limiter  *rate.Limiter
	handler  http.Handler
	opts     Options
}

// New builds the server and its routes.
func New(opts Options) *Server {
	if opts.ServiceName == "" {
		opts.ServiceName = "capflow"
	}
	if opts.Catalog == nil {
		opts.Catalog = workflow.NewCatalog(opts.Logger)
	}
	if opts.Executor == nil {
		opts.Executor = orchestration.NewWorkflowExecutor(opts.Registry, orchestration.WithLogger(opts.Logger))
	}

	s := &Server{
		registry: opts.Registry,
		catalog:  opts.Catalog,
		executor: opts.Executor,
		runs:     opts.Runs,
		logger:   logger.OrNoOp(opts.Logger).With(map[string]interface{}{"component": "http_server"}),
		metrics:  newHTTPMetrics(prometheus.NewRegistry()),
		opts:     opts,
	}
	if opts.ExecuteRate > 0 {
		burst := opts.ExecuteBurst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.ExecuteRate), burst)
	}

	mux := http.NewServeMux()
	s.routes(mux)

	var h http.Handler = mux
	h = s.instrument(h)
	h = telemetry.CorrelationMiddleware(h)
	h = otelhttp.NewHandler(h, opts.ServiceName,
		otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
		otelhttp.WithFilter(func(r *http.Request) bool {
			return r.URL.Path != "/health" && r.URL.Path != "/metrics"
		}),
	)
	s.handler = h
	return s
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve accepts connections on l until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	srv := &http.Server{
		Handler:      s.handler,
		ReadTimeout:  s.opts.ReadTimeout,
		WriteTimeout: s.opts.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", map[string]interface{}{"address": l.Addr().String()})
		errCh <- srv.Serve(l)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx := context.Background()
	if s.opts.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(shutdownCtx, s.opts.ShutdownTimeout)
		defer cancel()
	}
	s.logger.Info("Shutting down HTTP server", nil)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}
