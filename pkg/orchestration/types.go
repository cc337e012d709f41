package orchestration

import (
	"context"
	"time"

	"github.com/itsneelabh/capflow/pkg/registry"
	"github.com/itsneelabh/capflow/pkg/workflow"
)

// PhaseStatus is the lifecycle state of a phase within one run. Pending and
// Running never appear in a returned result map.
type PhaseStatus string

const (
	StatusPending   PhaseStatus = "pending"
	StatusRunning   PhaseStatus = "running"
	StatusCompleted PhaseStatus = "completed"
	StatusSkipped   PhaseStatus = "skipped"
	StatusFailed    PhaseStatus = "failed"
)

// Terminal reports whether s is a final status.
func (s PhaseStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusSkipped || s == StatusFailed
}

// Result messages for phases that could not be resolved.
const (
	msgOptionalSkipped   = "No provider available (optional phase)"
	msgRequiredMissingFm = "No provider for required capability '%s'"
)

// PhaseResult is the outcome of a single phase.
type PhaseResult struct {
	PhaseName  string      `json:"phase_name"`
	Status     PhaseStatus `json:"status"`
	Capability string      `json:"capability"`
	Optional   bool        `json:"optional"`
	// ComponentUsed is empty when no provider was resolved.
	ComponentUsed   string      `json:"component_used,omitempty"`
	Output          interface{} `json:"output,omitempty"`
	Error           string      `json:"error,omitempty"`
	DurationSeconds float64     `json:"duration_seconds"`
	StartedAt       time.Time   `json:"started_at"`

	// Err keeps the original error for errors.Is checks.
	Err error `json:"-"`
}

// Invocation is everything a component receives for one phase.
type Invocation struct {
	Workflow     string
	Phase        workflow.Phase
	Registration registry.ComponentRegistration
	Input        interface{}
	// Parameters are the registration parameters overlaid by the phase's.
	Parameters map[string]interface{}
	Context    *RunContext
}

// Agent components are invoked through Handle.
type Agent interface {
	Handle(ctx context.Context, input interface{}, parameters map[string]interface{}, rc *RunContext) (interface{}, error)
}

// Plugin components are invoked through Execute.
type Plugin interface {
	Execute(ctx context.Context, input interface{}, parameters map[string]interface{}, rc *RunContext) (interface{}, error)
}

// Service components are invoked through Call.
type Service interface {
	Call(ctx context.Context, input interface{}, parameters map[string]interface{}, rc *RunContext) (interface{}, error)
}

// ComponentFunc lets a plain function act as any component type.
type ComponentFunc func(ctx context.Context, inv Invocation) (interface{}, error)
