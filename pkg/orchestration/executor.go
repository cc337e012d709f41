package orchestration

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/itsneelabh/capflow/core"
	"github.com/itsneelabh/capflow/internal/utils"
	"github.com/itsneelabh/capflow/pkg/logger"
	"github.com/itsneelabh/capflow/pkg/registry"
	"github.com/itsneelabh/capflow/pkg/telemetry"
	"github.com/itsneelabh/capflow/pkg/workflow"
)

const defaultMaxConcurrency = 5

// WorkflowExecutor runs workflow definitions against a capability registry.
type WorkflowExecutor struct {
	registry       *registry.CapabilityRegistry
	invokers       map[registry.ComponentType]Invoker
	logger         logger.Logger
	tracer         trace.Tracer
	metrics        *telemetry.PhaseMetrics
	recorder       RunRecorder
	maxConcurrency int
	defaultTimeout time.Duration

	// Metrics
	runs            int64
	phasesCompleted int64
	phasesFailed    int64
	phasesSkipped   int64
	metricsMutex    sync.Mutex
}

// ExecutorOption configures a WorkflowExecutor.
type ExecutorOption func(*WorkflowExecutor)

// WithLogger sets the executor logger.
func WithLogger(l logger.Logger) ExecutorOption {
	return func(e *WorkflowExecutor) { e.logger = logger.OrNoOp(l) }
}

// WithInvoker replaces the invoker used for one component type.
func WithInvoker(t registry.ComponentType, inv Invoker) ExecutorOption {
	return func(e *WorkflowExecutor) { e.invokers[t] = inv }
}

// WithMaxConcurrency bounds how many phases of one level run at once.
func WithMaxConcurrency(n int) ExecutorOption {
	return func(e *WorkflowExecutor) {
		if n <= 0 {
			n = 1
		}
		e.maxConcurrency = n
	}
}

// WithDefaultPhaseTimeout applies to phases that set no timeout of their own.
func WithDefaultPhaseTimeout(d time.Duration) ExecutorOption {
	return func(e *WorkflowExecutor) { e.defaultTimeout = d }
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) ExecutorOption {
	return func(e *WorkflowExecutor) { e.tracer = t }
}

// WithMetrics records phase metrics on m.
func WithMetrics(m *telemetry.PhaseMetrics) ExecutorOption {
	return func(e *WorkflowExecutor) { e.metrics = m }
}

// WithRunRecorder persists every record produced by Run.
func WithRunRecorder(r RunRecorder) ExecutorOption {
	return func(e *WorkflowExecutor) { e.recorder = r }
}

// NewWorkflowExecutor binds an executor to reg.
func NewWorkflowExecutor(reg *registry.CapabilityRegistry, opts ...ExecutorOption) *WorkflowExecutor {
	e := &WorkflowExecutor{
		registry:       reg,
		invokers:       DefaultInvokers(),
		logger:         logger.NoOpLogger{},
		tracer:         otel.Tracer(telemetry.InstrumentationName),
		maxConcurrency: defaultMaxConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(map[string]interface{}{"component": "workflow_executor"})
	return e
}

// Execute runs def and returns one PhaseResult per phase. Phase failures are
// recorded in the map and never abort the run; the error is non-nil only for
// a nil definition.
func (e *WorkflowExecutor) Execute(ctx context.Context, def *workflow.Definition, input interface{}, extra map[string]interface{}) (map[string]*PhaseResult, error) {
	if def == nil {
		return nil, &core.FrameworkError{Op: "orchestration.Execute", Kind: "workflow", Message: "workflow definition is nil", Err: core.ErrInvalidWorkflow}
	}
	results, _ := e.execute(ctx, def, input, extra)
	return results, nil
}

// Run executes def and wraps the outcome in an ExecutionRecord with a fresh
// run ID. The record is persisted when a RunRecorder is configured; a
// persistence failure is logged, not returned.
func (e *WorkflowExecutor) Run(ctx context.Context, def *workflow.Definition, input interface{}, extra map[string]interface{}) (*ExecutionRecord, error) {
	if def == nil {
		return nil, &core.FrameworkError{Op: "orchestration.Run", Kind: "workflow", Message: "workflow definition is nil", Err: core.ErrInvalidWorkflow}
	}

	runID := uuid.New().String()
	ctx = telemetry.WithRunID(ctx, runID)

	started := time.Now()
	results, plan := e.execute(ctx, def, input, extra)
	completed := time.Now()

	record := &ExecutionRecord{
		RunID:           runID,
		Workflow:        def.Name(),
		StartedAt:       started.UTC(),
		CompletedAt:     completed.UTC(),
		DurationSeconds: completed.Sub(started).Seconds(),
		Plan:            plan,
		Results:         results,
		Summary:         Summarize(results),
		Succeeded:       Succeeded(results),
	}

	if e.recorder != nil {
		if err := e.recorder.SaveRun(ctx, record); err != nil {
			e.logger.Warn("Failed to persist run record", telemetry.EnrichLogFields(ctx, map[string]interface{}{
				"workflow": def.Name(),
				"error":    err.Error(),
			}))
		}
	}
	return record, nil
}

func (e *WorkflowExecutor) execute(ctx context.Context, def *workflow.Definition, input interface{}, extra map[string]interface{}) (map[string]*PhaseResult, workflow.ExecutionPlan) {
	ctx, release := e.registry.AcquireRun(ctx)
	defer release()

	ctx, span := e.tracer.Start(ctx, "Workflow.Execute",
		trace.WithAttributes(
			attribute.String("workflow.name", def.Name()),
			attribute.Int("workflow.phases", def.Len()),
		),
	)
	defer span.End()

	startTime := time.Now()
	plan := def.Plan()

	e.logger.Info("Executing workflow", telemetry.EnrichLogFields(ctx, map[string]interface{}{
		"workflow": def.Name(),
		"phases":   def.Len(),
		"levels":   len(plan.Levels),
	}))

	if plan.HasCycle() {
		e.logger.Error("Workflow dependencies could not be ordered, running remaining phases as a final level", telemetry.EnrichLogFields(ctx, map[string]interface{}{
			"workflow": def.Name(),
			"deferred": plan.Deferred,
		}))
		span.AddEvent("workflow.cycle_fallback", trace.WithAttributes(
			attribute.StringSlice("workflow.deferred", plan.Deferred),
		))
	}

	rc := NewRunContext(input, extra)
	results := make(map[string]*PhaseResult, def.Len())
	var resultsMutex sync.Mutex

	for levelIdx, level := range plan.Levels {
		e.logger.Debug("Executing level", map[string]interface{}{
			"workflow": def.Name(),
			"level":    levelIdx,
			"phases":   level,
		})

		var g errgroup.Group
		g.SetLimit(e.maxConcurrency)
		for _, name := range level {
			phase, ok := def.Phase(name)
			if !ok {
				continue
			}
			g.Go(func() error {
				result := e.runPhase(ctx, def.Name(), phase, rc)
				resultsMutex.Lock()
				results[phase.Name] = result
				resultsMutex.Unlock()
				return nil
			})
		}
		_ = g.Wait()
	}

	summary := Summarize(results)
	succeeded := Succeeded(results)
	e.recordRun()
	e.metrics.RecordRun(ctx, def.Name(), succeeded)

	span.SetAttributes(
		attribute.Int("workflow.completed", summary.Completed),
		attribute.Int("workflow.failed", summary.Failed),
		attribute.Int("workflow.skipped", summary.Skipped),
	)
	if succeeded {
		span.SetStatus(codes.Ok, "Workflow completed")
	} else {
		span.SetStatus(codes.Error, "Required phase failed")
	}

	e.logger.Info("Completed workflow execution", telemetry.EnrichLogFields(ctx, map[string]interface{}{
		"workflow":    def.Name(),
		"succeeded":   succeeded,
		"completed":   summary.Completed,
		"failed":      summary.Failed,
		"skipped":     summary.Skipped,
		"duration_ms": time.Since(startTime).Milliseconds(),
	}))

	return results, plan
}

// runPhase resolves and invokes one phase. It always returns a terminal result.
func (e *WorkflowExecutor) runPhase(ctx context.Context, workflowName string, phase workflow.Phase, rc *RunContext) *PhaseResult {
	ctx, span := e.tracer.Start(ctx, "Workflow.Phase",
		trace.WithAttributes(
			attribute.String("workflow.name", workflowName),
			attribute.String("phase.name", phase.Name),
			attribute.String("phase.capability", phase.Capability),
			attribute.Bool("phase.optional", phase.Optional),
		),
	)
	defer span.End()

	startTime := time.Now()
	result := &PhaseResult{
		PhaseName:  phase.Name,
		Status:     StatusPending,
		Capability: phase.Capability,
		Optional:   phase.Optional,
		StartedAt:  startTime.UTC(),
	}

	var componentType string
	providers := e.registry.FindForCapability(phase.Capability)
	switch {
	case len(providers) == 0 && phase.Optional:
		result.Status = StatusSkipped
		result.Error = msgOptionalSkipped
		span.AddEvent("phase.skipped")
	case len(providers) == 0:
		result.Status = StatusFailed
		result.Err = &core.FrameworkError{
			Op:      "orchestration.resolve",
			Kind:    "resolution",
			ID:      phase.Name,
			Message: fmt.Sprintf(msgRequiredMissingFm, phase.Capability),
			Err:     core.ErrCapabilityNotFound,
		}
		result.Error = fmt.Sprintf(msgRequiredMissingFm, phase.Capability)
	default:
		provider := providers[0]
		componentType = string(provider.Type)
		result.ComponentUsed = provider.Name
		result.Status = StatusRunning
		span.SetAttributes(
			attribute.String("component.name", provider.Name),
			attribute.String("component.type", componentType),
		)

		output, err := e.invoke(ctx, workflowName, phase, provider, rc)
		if err != nil {
			result.Status = StatusFailed
			result.Err = err
			result.Error = err.Error()
		} else {
			result.Status = StatusCompleted
			result.Output = output
		}
	}

	result.DurationSeconds = time.Since(startTime).Seconds()
	if result.Status == StatusCompleted {
		rc.Set(PhaseResultKey(phase.Name), result)
	}

	e.recordPhase(result.Status)
	e.metrics.RecordPhase(ctx, telemetry.PhaseSample{
		Workflow:      workflowName,
		Phase:         phase.Name,
		Capability:    phase.Capability,
		ComponentType: componentType,
		Status:        string(result.Status),
		Duration:      time.Since(startTime),
	})

	fields := telemetry.EnrichLogFields(ctx, map[string]interface{}{
		"workflow":    workflowName,
		"phase":       phase.Name,
		"capability":  phase.Capability,
		"component":   result.ComponentUsed,
		"status":      string(result.Status),
		"duration_ms": time.Since(startTime).Milliseconds(),
	})
	switch result.Status {
	case StatusFailed:
		fields["error"] = result.Error
		if phase.Optional {
			e.logger.Warn("Optional phase failed", fields)
		} else {
			e.logger.Error("Required phase failed", fields)
		}
		if result.Err != nil {
			span.RecordError(result.Err)
		}
		span.SetStatus(codes.Error, result.Error)
	case StatusSkipped:
		e.logger.Info("Phase skipped", fields)
		span.SetStatus(codes.Ok, "Skipped")
	default:
		e.logger.Debug("Phase completed", fields)
		span.SetStatus(codes.Ok, "Completed")
	}
	return result
}

// invoke instantiates the provider once and calls it through the invoker for
// its type, bounded by the phase timeout. Panics become errors.
func (e *WorkflowExecutor) invoke(ctx context.Context, workflowName string, phase workflow.Phase, provider registry.ComponentRegistration, rc *RunContext) (interface{}, error) {
	invoker, ok := e.invokers[provider.Type]
	if !ok || invoker == nil {
		return nil, &core.FrameworkError{
			Op:   "orchestration.Invoke",
			Kind: "invocation",
			ID:   provider.Name,
			Err:  fmt.Errorf("%w: %s", core.ErrNoInvoker, provider.Type),
		}
	}

	timeout := phase.Timeout()
	if timeout == 0 {
		timeout = e.defaultTimeout
	}
	callCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	type outcome struct {
		output interface{}
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("%w: %v", core.ErrPhasePanicked, r)}
			}
		}()

		component, err := provider.Instantiate(phase.Parameters)
		if err != nil {
			done <- outcome{err: err}
			return
		}
		output, err := invoker.Invoke(callCtx, component, Invocation{
			Workflow:     workflowName,
			Phase:        phase,
			Registration: provider,
			Input:        rc.Input(),
			Parameters:   utils.MergeMaps(provider.Parameters, phase.Parameters),
			Context:      rc,
		})
		done <- outcome{output: output, err: err}
	}()

	var o outcome
	select {
	case o = <-done:
	case <-callCtx.Done():
		select {
		case o = <-done:
		default:
			o.err = callCtx.Err()
		}
	}
	if o.err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return nil, &core.FrameworkError{
			Op:      "orchestration.Invoke",
			Kind:    "timeout",
			ID:      phase.Name,
			Message: fmt.Sprintf("phase '%s' timed out after %s", phase.Name, timeout),
			Err:     core.ErrPhaseTimeout,
		}
	}
	return o.output, o.err
}

func (e *WorkflowExecutor) recordPhase(status PhaseStatus) {
	e.metricsMutex.Lock()
	defer e.metricsMutex.Unlock()
	switch status {
	case StatusCompleted:
		e.phasesCompleted++
	case StatusFailed:
		e.phasesFailed++
	case StatusSkipped:
		e.phasesSkipped++
	}
}

func (e *WorkflowExecutor) recordRun() {
	e.metricsMutex.Lock()
	defer e.metricsMutex.Unlock()
	e.runs++
}

// GetMetrics returns process-lifetime counters.
func (e *WorkflowExecutor) GetMetrics() map[string]int64 {
	e.metricsMutex.Lock()
	defer e.metricsMutex.Unlock()

	return map[string]int64{
		"runs_total":       e.runs,
		"phases_completed": e.phasesCompleted,
		"phases_failed":    e.phasesFailed,
		"phases_skipped":   e.phasesSkipped,
	}
}
