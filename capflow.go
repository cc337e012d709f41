// Package capflow is a meta-package that re-exports the types most programs
// need to register components and run capability workflows.
// Larger programs should import the specific packages instead:
//   - github.com/itsneelabh/capflow/pkg/registry - components and slots
//   - github.com/itsneelabh/capflow/pkg/discovery - infrastructure providers
//   - github.com/itsneelabh/capflow/pkg/workflow - definitions and planning
//   - github.com/itsneelabh/capflow/pkg/orchestration - execution
package capflow

import (
	"context"

	"github.com/itsneelabh/capflow/core"
	"github.com/itsneelabh/capflow/pkg/discovery"
	"github.com/itsneelabh/capflow/pkg/logger"
	"github.com/itsneelabh/capflow/pkg/orchestration"
	"github.com/itsneelabh/capflow/pkg/registry"
	"github.com/itsneelabh/capflow/pkg/workflow"
)

type (
	// Registry types
	CapabilityRegistry    = registry.CapabilityRegistry
	ComponentRegistration = registry.ComponentRegistration
	ComponentType         = registry.ComponentType
	SlotDeclaration       = registry.SlotDeclaration
	Factory               = registry.Factory

	// Discovery types
	ServiceDiscovery     = discovery.ServiceDiscovery
	ProviderRegistration = discovery.ProviderRegistration

	// Workflow types
	Definition    = workflow.Definition
	Phase         = workflow.Phase
	ExecutionPlan = workflow.ExecutionPlan

	// Execution types
	WorkflowExecutor = orchestration.WorkflowExecutor
	PhaseResult      = orchestration.PhaseResult
	PhaseStatus      = orchestration.PhaseStatus
	Invocation       = orchestration.Invocation
	ComponentFunc    = orchestration.ComponentFunc
	ExecutionRecord  = orchestration.ExecutionRecord

	Logger         = logger.Logger
	FrameworkError = core.FrameworkError
)

const (
	ComponentTypeAgent   = registry.ComponentTypeAgent
	ComponentTypePlugin  = registry.ComponentTypePlugin
	ComponentTypeService = registry.ComponentTypeService

	StatusCompleted = orchestration.StatusCompleted
	StatusFailed    = orchestration.StatusFailed
	StatusSkipped   = orchestration.StatusSkipped
)

var (
	NewCapabilityRegistry = registry.NewCapabilityRegistry
	NewRegistration       = registry.NewRegistration
	WithRequires          = registry.WithRequires
	WithMetadata          = registry.WithMetadata

	NewServiceDiscovery = discovery.NewServiceDiscovery

	NewBuilder     = workflow.NewBuilder
	Optional       = workflow.Optional
	DependsOn      = workflow.DependsOn
	WithParameters = workflow.WithParameters
	WithTimeout    = workflow.WithTimeout
	LoadWorkflow   = workflow.LoadFile

	NewWorkflowExecutor = orchestration.NewWorkflowExecutor
	Summarize           = orchestration.Summarize
)

// RunWorkflow executes def against reg with default executor settings and
// returns the run record.
func RunWorkflow(ctx context.Context, reg *CapabilityRegistry, def *Definition, input interface{}) (*ExecutionRecord, error) {
	return orchestration.NewWorkflowExecutor(reg).Run(ctx, def, input, nil)
}
