package workflow

import (
	"time"

	"github.com/itsneelabh/capflow/internal/utils"
)

// PhaseOption customises a phase added through Builder.AddPhase.
type PhaseOption func(*Phase)

// Optional marks the phase as skippable when no provider exists.
func Optional() PhaseOption {
	return func(p *Phase) { p.Optional = true }
}

// DependsOn adds dependencies. Entries containing "*" are wildcards.
func DependsOn(deps ...string) PhaseOption {
	return func(p *Phase) { p.DependsOn = append(p.DependsOn, deps...) }
}

// WithParameters merges invocation parameters into the phase.
func WithParameters(params map[string]interface{}) PhaseOption {
	return func(p *Phase) { p.Parameters = utils.MergeMaps(p.Parameters, params) }
}

// WithTimeout bounds a single invocation of the phase.
func WithTimeout(d time.Duration) PhaseOption {
	return func(p *Phase) { p.TimeoutSeconds = d.Seconds() }
}

// Builder accumulates phases and produces validated Definitions.
//
//	def, err := workflow.NewBuilder("analysis").
//	    AddPhase("detect", "fallacy_detection").
//	    AddPhase("rebut", "counter_arguments", workflow.DependsOn("detect"), workflow.Optional()).
//	    Build()
type Builder struct {
	name     string
	phases   []Phase
	metadata map[string]interface{}
}

// NewBuilder starts a workflow named name.
func NewBuilder(name string) *Builder {
	return &Builder{name: name}
}

// AddPhase appends a phase and returns the builder for chaining.
func (b *Builder) AddPhase(name, capability string, opts ...PhaseOption) *Builder {
	p := Phase{Name: name, Capability: capability}
	for _, opt := range opts {
		opt(&p)
	}
	b.phases = append(b.phases, p)
	return b
}

// AddPhases appends fully specified phases.
func (b *Builder) AddPhases(phases ...Phase) *Builder {
	for _, p := range phases {
		b.phases = append(b.phases, p.clone())
	}
	return b
}

// SetMetadata records a workflow level metadata entry.
func (b *Builder) SetMetadata(key string, value interface{}) *Builder {
	if b.metadata == nil {
		b.metadata = make(map[string]interface{})
	}
	b.metadata[key] = value
	return b
}

// Build freezes the accumulated phases and validates them. On failure the
// returned *ValidationError lists every violation. The builder can keep
// being used after Build.
func (b *Builder) Build() (*Definition, error) {
	def := newDefinition(b.name, b.phases, b.metadata)
	if err := def.Validate(); err != nil {
		return nil, err
	}
	return def, nil
}
