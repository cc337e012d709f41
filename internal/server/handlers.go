package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/itsneelabh/capflow/core"
	"github.com/itsneelabh/capflow/pkg/registry"
	"github.com/itsneelabh/capflow/pkg/workflow"
)

const maxRequestBody = 1 << 20

// ExecuteRequest is the body of POST /workflows/{name}/execute.
type ExecuteRequest struct {
	Input   interface{}            `json:"input"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// PlanResponse is the body of GET /workflows/{name}/plan.
type PlanResponse struct {
	Workflow   string                 `json:"workflow"`
	Plan       workflow.ExecutionPlan `json:"plan"`
	Definition *workflow.Definition   `json:"definition"`
	// Missing lists required capabilities no component provides.
	Missing []string `json:"missing_capabilities"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", s.metrics.handler())

	mux.HandleFunc("GET /capabilities", s.handleCapabilities)
	mux.HandleFunc("GET /slots", s.handleSlots)
	mux.HandleFunc("GET /registrations", s.handleRegistrations)
	mux.HandleFunc("GET /registrations/{name}", s.handleRegistration)
	mux.HandleFunc("GET /summary", s.handleSummary)
	mux.HandleFunc("GET /providers", s.handleProviders)
	mux.HandleFunc("GET /providers/{name}", s.handleProvider)

	mux.HandleFunc("GET /workflows", s.handleWorkflows)
	mux.HandleFunc("GET /workflows/{name}/plan", s.handlePlan)
	mux.HandleFunc("POST /workflows/{name}/execute", s.handleExecute)

	mux.HandleFunc("GET /runs", s.handleListRuns)
	mux.HandleFunc("GET /runs/{id}", s.handleGetRun)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   s.opts.ServiceName,
		"workflows": s.catalog.Len(),
		"executor":  s.executor.GetMetrics(),
	})
}

func (s *Server) handleCapabilities(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.registry.AllCapabilities())
}

func (s *Server) handleSlots(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.registry.AllSlots())
}

func (s *Server) handleRegistrations(w http.ResponseWriter, r *http.Request) {
	var types []registry.ComponentType
	if raw := r.URL.Query().Get("type"); raw != "" {
		t, err := registry.ParseComponentType(raw)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, err)
			return
		}
		types = append(types, t)
	}
	s.writeJSON(w, http.StatusOK, s.registry.AllRegistrations(types...))
}

func (s *Server) handleRegistration(w http.ResponseWriter, r *http.Request) {
	reg, err := s.registry.Lookup(r.PathValue("name"))
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, reg)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.registry.Summary())
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	sd := s.registry.ServiceDiscovery()
	if sd == nil {
		s.writeError(w, http.StatusNotFound, core.ErrDiscoveryUnavailable)
		return
	}
	if t := r.URL.Query().Get("type"); t != "" {
		s.writeJSON(w, http.StatusOK, sd.ProvidersByType(t))
		return
	}
	s.writeJSON(w, http.StatusOK, sd.Providers())
}

func (s *Server) handleProvider(w http.ResponseWriter, r *http.Request) {
	sd := s.registry.ServiceDiscovery()
	if sd == nil {
		s.writeError(w, http.StatusNotFound, core.ErrDiscoveryUnavailable)
		return
	}
	p, err := sd.Lookup(r.PathValue("name"))
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleWorkflows(w http.ResponseWriter, r *http.Request) {
	type entry struct {
		Name         string   `json:"name"`
		Phases       int      `json:"phases"`
		Capabilities []string `json:"capabilities"`
	}
	names := s.catalog.Names()
	out := make([]entry, 0, len(names))
	for _, name := range names {
		def, err := s.catalog.Get(name)
		if err != nil {
			continue
		}
		out = append(out, entry{Name: name, Phases: def.Len(), Capabilities: def.Capabilities()})
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	def, err := s.catalog.Get(r.PathValue("name"))
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}

	missing := []string{}
	for _, phase := range def.Phases() {
		if !phase.Optional && len(s.registry.FindForCapability(phase.Capability)) == 0 {
			missing = append(missing, phase.Capability)
		}
	}
	s.writeJSON(w, http.StatusOK, PlanResponse{
		Workflow:   def.Name(),
		Plan:       def.Plan(),
		Definition: def,
		Missing:    missing,
	})
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	if s.limiter != nil && !s.limiter.Allow() {
		s.writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
		return
	}

	def, err := s.catalog.Get(r.PathValue("name"))
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}

	var req ExecuteRequest
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{
				Error: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
			})
			return
		}
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body: " + err.Error()})
			return
		}
	}

	record, err := s.executor.Run(r.Context(), def, req.Input, req.Context)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.metrics.runs.WithLabelValues(def.Name(), strconv.FormatBool(record.Succeeded)).Inc()
	s.writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "run store not configured"})
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	runs, err := s.runs.ListRuns(r.Context(), limit)
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		s.writeJSON(w, http.StatusNotFound, errorResponse{Error: "run store not configured"})
		return
	}
	record, err := s.runs.GetRun(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, record)
}

func statusFor(err error) int {
	switch {
	case core.IsNotFound(err):
		return http.StatusNotFound
	case errors.Is(err, core.ErrInvalidWorkflow), core.IsConfigurationError(err):
		return http.StatusBadRequest
	case core.IsRetryable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, errorResponse{Error: err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", map[string]interface{}{"error": err.Error()})
	}
}
