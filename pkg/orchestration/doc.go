// Package orchestration executes workflow definitions against a capability
// registry.
//
// The executor walks the definition's execution plan level by level. Each
// phase resolves its capability once, picks the first registered provider and
// calls it through the Invoker registered for the provider's component type:
//
//	exec := orchestration.NewWorkflowExecutor(reg,
//	    orchestration.WithLogger(log),
//	    orchestration.WithDefaultPhaseTimeout(30*time.Second),
//	)
//	results, err := exec.Execute(ctx, def, input, nil)
//
// A phase ends COMPLETED, SKIPPED (optional, no provider) or FAILED. Failures
// never abort the run: every level is executed and the full result map is
// returned. Callers decide success with Succeeded and report with Summarize.
//
// Phases of the same level run concurrently, bounded by WithMaxConcurrency.
// A level starts only after every phase of the previous level is terminal, so
// later phases can read earlier outputs from the RunContext under
// PhaseResultKey. The registry is held read-only for the duration of a run.
package orchestration
