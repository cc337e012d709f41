package orchestration

import (
	"context"
	"sort"
	"time"

	"github.com/itsneelabh/capflow/pkg/workflow"
)

// Summary is the derived view of a result map that reports depend on.
type Summary struct {
	Completed           int      `json:"completed"`
	Failed              int      `json:"failed"`
	Skipped             int      `json:"skipped"`
	Total               int      `json:"total"`
	CapabilitiesUsed    []string `json:"capabilities_used"`
	CapabilitiesMissing []string `json:"capabilities_missing"`
}

// Summarize counts results by status. A capability is "used" when some phase
// resolved a provider for it and "missing" when a phase found none. Both
// lists are sorted.
func Summarize(results map[string]*PhaseResult) Summary {
	s := Summary{Total: len(results), CapabilitiesUsed: []string{}, CapabilitiesMissing: []string{}}
	used := make(map[string]bool)
	missing := make(map[string]bool)

	for _, r := range results {
		switch r.Status {
		case StatusCompleted:
			s.Completed++
		case StatusFailed:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		}
		if r.ComponentUsed != "" {
			used[r.Capability] = true
		} else {
			missing[r.Capability] = true
		}
	}

	for c := range used {
		s.CapabilitiesUsed = append(s.CapabilitiesUsed, c)
	}
	for c := range missing {
		s.CapabilitiesMissing = append(s.CapabilitiesMissing, c)
	}
	sort.Strings(s.CapabilitiesUsed)
	sort.Strings(s.CapabilitiesMissing)
	return s
}

// Succeeded is the usual success predicate: no required phase failed.
func Succeeded(results map[string]*PhaseResult) bool {
	for _, r := range results {
		if r.Status == StatusFailed && !r.Optional {
			return false
		}
	}
	return true
}

// ExecutionRecord is a complete run: its schedule, every phase result and
// the derived summary.
type ExecutionRecord struct {
	RunID           string                  `json:"run_id"`
	Workflow        string                  `json:"workflow"`
	StartedAt       time.Time               `json:"started_at"`
	CompletedAt     time.Time               `json:"completed_at"`
	DurationSeconds float64                 `json:"duration_seconds"`
	Plan            workflow.ExecutionPlan  `json:"plan"`
	Results         map[string]*PhaseResult `json:"results"`
	Summary         Summary                 `json:"summary"`
	Succeeded       bool                    `json:"succeeded"`
}

// RunRecorder persists execution records.
type RunRecorder interface {
	SaveRun(ctx context.Context, record *ExecutionRecord) error
}
