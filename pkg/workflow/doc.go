// Package workflow describes capability workflows as dependency graphs of
// phases and computes their execution schedule.
//
// A phase names one capability and may depend on other phases. Dependencies
// are phase names or wildcard patterns: any entry containing "*" has its
// stars removed and matches every phase whose name contains the remainder,
// so "detect_*" waits for detect_fallacies and detect_bias.
//
// Builder.Build validates the definition and reports every violation at
// once. Plan levels the phases: level k+1 only contains phases whose
// dependencies sit in levels 0..k. Wildcards are expanded to the concrete
// matching phases (never the phase itself) before leveling. If the
// dependencies form a cycle the unordered phases are returned as one final
// level and listed in ExecutionPlan.Deferred; StrictExecutionOrder turns that
// into an error instead.
//
// Definitions can also be loaded from YAML files and grouped in a Catalog.
package workflow
