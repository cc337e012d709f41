package workflow

import (
	"fmt"
	"strings"

	"github.com/itsneelabh/capflow/core"
)

// ValidationError carries every violation found in a definition.
type ValidationError struct {
	Workflow   string
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("workflow '%s' is invalid: %s", e.Workflow, strings.Join(e.Violations, "; "))
}

func (e *ValidationError) Unwrap() error {
	return core.ErrInvalidWorkflow
}

// Validate checks phase names are unique, concrete dependencies exist and
// wildcard dependencies match at least one phase. All violations are
// collected into a single *ValidationError. Cycles are not violations; see
// Plan.
func (d *Definition) Validate() error {
	var violations []string

	if d.name == "" {
		violations = append(violations, "workflow name is required")
	}

	seen := make(map[string]bool, len(d.phases))
	reported := make(map[string]bool)
	for i, p := range d.phases {
		if p.Name == "" {
			violations = append(violations, fmt.Sprintf("phase #%d has no name", i+1))
			continue
		}
		if seen[p.Name] && !reported[p.Name] {
			violations = append(violations, fmt.Sprintf("duplicate phase name '%s'", p.Name))
			reported[p.Name] = true
		}
		seen[p.Name] = true
	}

	for _, p := range d.phases {
		if p.Name != "" && p.Capability == "" {
			violations = append(violations, fmt.Sprintf("phase '%s' has no capability", p.Name))
		}
		if p.TimeoutSeconds < 0 {
			violations = append(violations, fmt.Sprintf("phase '%s' has negative timeout_seconds", p.Name))
		}
		for _, dep := range p.DependsOn {
			if IsWildcard(dep) {
				if !d.anyMatch(dep) {
					violations = append(violations, fmt.Sprintf("phase '%s' wildcard dependency '%s' matches no phase", p.Name, dep))
				}
				continue
			}
			if !seen[dep] {
				violations = append(violations, fmt.Sprintf("phase '%s' depends on unknown phase '%s'", p.Name, dep))
			}
		}
	}

	if len(violations) > 0 {
		return &ValidationError{Workflow: d.name, Violations: violations}
	}
	return nil
}

func (d *Definition) anyMatch(pattern string) bool {
	for _, p := range d.phases {
		if MatchesWildcard(pattern, p.Name) {
			return true
		}
	}
	return false
}
