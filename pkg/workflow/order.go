package workflow

import (
	"fmt"

	"github.com/itsneelabh/capflow/core"
	"github.com/itsneelabh/capflow/internal/utils"
)

// ExecutionPlan is the leveled schedule of a definition. Phases in Deferred
// could not be ordered (a cycle or an unmatched dependency) and were placed
// together in the last level.
type ExecutionPlan struct {
	Levels   [][]string `json:"levels"`
	Deferred []string   `json:"deferred,omitempty"`
}

// HasCycle reports whether the never-hang fallback was used.
func (p ExecutionPlan) HasCycle() bool {
	return len(p.Deferred) > 0
}

// ResolvedDependencies returns the concrete phase names phaseName waits for.
// Wildcards expand to every matching phase except phaseName itself.
func (d *Definition) ResolvedDependencies(phaseName string) []string {
	i, ok := d.index[phaseName]
	if !ok {
		return nil
	}
	var deps []string
	for _, dep := range d.phases[i].DependsOn {
		if !IsWildcard(dep) {
			deps = append(deps, dep)
			continue
		}
		for _, candidate := range d.phases {
			if candidate.Name != phaseName && MatchesWildcard(dep, candidate.Name) {
				deps = append(deps, candidate.Name)
			}
		}
	}
	return utils.Dedupe(deps)
}

// Plan levels the phases Kahn style: each level holds every unplaced phase
// whose resolved dependencies are all placed, in definition order. When no
// phase is ready but some remain, they form one final level.
func (d *Definition) Plan() ExecutionPlan {
	deps := make(map[string][]string, len(d.phases))
	for _, p := range d.phases {
		deps[p.Name] = d.ResolvedDependencies(p.Name)
	}

	placed := make(map[string]bool, len(d.phases))
	var plan ExecutionPlan
	remaining := len(d.index)

	for remaining > 0 {
		var level []string
		for _, p := range d.phases {
			if placed[p.Name] || utils.Contains(level, p.Name) {
				continue
			}
			ready := true
			for _, dep := range deps[p.Name] {
				if !placed[dep] {
					ready = false
					break
				}
			}
			if ready {
				level = append(level, p.Name)
			}
		}

		if len(level) == 0 {
			for _, p := range d.phases {
				if !placed[p.Name] && !utils.Contains(plan.Deferred, p.Name) {
					plan.Deferred = append(plan.Deferred, p.Name)
				}
			}
			plan.Levels = append(plan.Levels, append([]string(nil), plan.Deferred...))
			break
		}

		for _, name := range level {
			placed[name] = true
		}
		remaining -= len(level)
		plan.Levels = append(plan.Levels, level)
	}

	return plan
}

// ExecutionOrder returns the levels of Plan.
func (d *Definition) ExecutionOrder() [][]string {
	return d.Plan().Levels
}

// StrictExecutionOrder is ExecutionOrder for callers that require a proper
// DAG. It fails with core.ErrCyclicWorkflow instead of using the fallback.
func (d *Definition) StrictExecutionOrder() ([][]string, error) {
	plan := d.Plan()
	if plan.HasCycle() {
		return nil, &core.FrameworkError{
			Op:   "workflow.StrictExecutionOrder",
			Kind: "workflow",
			ID:   d.name,
			Err:  fmt.Errorf("%w: unordered phases %v", core.ErrCyclicWorkflow, plan.Deferred),
		}
	}
	return plan.Levels, nil
}
