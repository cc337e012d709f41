package workflow

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/itsneelabh/capflow/internal/utils"
)

// Wildcard marks a dependency entry as a substring pattern.
const Wildcard = "*"

// Phase is one node of a workflow: a capability to resolve and invoke.
type Phase struct {
	Name           string                 `json:"name" yaml:"name"`
	Capability     string                 `json:"capability" yaml:"capability"`
	Optional       bool                   `json:"optional" yaml:"optional,omitempty"`
	DependsOn      []string               `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	Parameters     map[string]interface{} `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	TimeoutSeconds float64                `json:"timeout_seconds,omitempty" yaml:"timeout_seconds,omitempty"`
}

// Timeout returns the phase timeout, zero when unset.
func (p Phase) Timeout() time.Duration {
	if p.TimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(p.TimeoutSeconds * float64(time.Second))
}

func (p Phase) clone() Phase {
	out := p
	out.DependsOn = append([]string(nil), p.DependsOn...)
	out.Parameters = utils.CopyMap(p.Parameters)
	return out
}

// IsWildcard reports whether a dependency entry is a pattern.
func IsWildcard(dep string) bool {
	return strings.Contains(dep, Wildcard)
}

// MatchesWildcard reports whether phaseName matches pattern. Every "*" is
// dropped and the remainder must occur somewhere in phaseName.
func MatchesWildcard(pattern, phaseName string) bool {
	return strings.Contains(phaseName, strings.ReplaceAll(pattern, Wildcard, ""))
}

// Definition is a validated, immutable workflow. Build one with Builder or
// ParseDefinition; a single Definition may be executed any number of times.
type Definition struct {
	name     string
	phases   []Phase
	index    map[string]int
	metadata map[string]interface{}
}

func newDefinition(name string, phases []Phase, metadata map[string]interface{}) *Definition {
	d := &Definition{
		name:     name,
		phases:   make([]Phase, len(phases)),
		index:    make(map[string]int, len(phases)),
		metadata: utils.CopyMap(metadata),
	}
	for i, p := range phases {
		d.phases[i] = p.clone()
		if _, seen := d.index[p.Name]; !seen {
			d.index[p.Name] = i
		}
	}
	return d
}

// Name returns the workflow name.
func (d *Definition) Name() string { return d.name }

// Phases returns copies of the phases in definition order.
func (d *Definition) Phases() []Phase {
	out := make([]Phase, len(d.phases))
	for i, p := range d.phases {
		out[i] = p.clone()
	}
	return out
}

// Phase looks up a phase by name.
func (d *Definition) Phase(name string) (Phase, bool) {
	i, ok := d.index[name]
	if !ok {
		return Phase{}, false
	}
	return d.phases[i].clone(), true
}

// Len returns the number of phases.
func (d *Definition) Len() int { return len(d.phases) }

// Metadata returns a copy of the workflow metadata.
func (d *Definition) Metadata() map[string]interface{} {
	return utils.CopyMap(d.metadata)
}

// Capabilities lists the distinct capabilities required by the workflow in
// phase order.
func (d *Definition) Capabilities() []string {
	caps := make([]string, 0, len(d.phases))
	for _, p := range d.phases {
		caps = append(caps, p.Capability)
	}
	return utils.Dedupe(caps)
}

// MarshalJSON exposes the definition in the same shape the YAML loader reads.
func (d *Definition) MarshalJSON() ([]byte, error) {
	return json.Marshal(document{
		Name:     d.name,
		Metadata: d.metadata,
		Phases:   d.phases,
	})
}

// document is the serialised form of a Definition.
type document struct {
	Name     string                 `json:"name" yaml:"name"`
	Metadata map[string]interface{} `json:"metadata,omitempty" yaml:"metadata,omitempty"`
	Phases   []Phase                `json:"phases" yaml:"phases"`
}
