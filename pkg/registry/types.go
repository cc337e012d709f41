package registry

import (
	"fmt"
	"strings"

	"github.com/itsneelabh/capflow/core"
	"github.com/itsneelabh/capflow/internal/utils"
)

// ComponentType tags a registration with the invocation shape the executor
// should use for it.
type ComponentType string

const (
	ComponentTypeAgent   ComponentType = "agent"
	ComponentTypePlugin  ComponentType = "plugin"
	ComponentTypeService ComponentType = "service"
)

// ComponentTypes lists every known type in display order.
var ComponentTypes = []ComponentType{ComponentTypeAgent, ComponentTypePlugin, ComponentTypeService}

// Valid reports whether t is one of the known component types.
func (t ComponentType) Valid() bool {
	switch t {
	case ComponentTypeAgent, ComponentTypePlugin, ComponentTypeService:
		return true
	}
	return false
}

// ParseComponentType accepts the lower or upper case type name.
func ParseComponentType(s string) (ComponentType, error) {
	t := ComponentType(strings.ToLower(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown component type %q", s)
	}
	return t, nil
}

// Factory builds a component instance on demand. It receives the merged
// registration and phase parameters.
type Factory func(parameters map[string]interface{}) (interface{}, error)

// ComponentRegistration describes a registered component. Values returned by
// the registry are copies; mutate nothing and replace via Unregister+Register.
type ComponentRegistration struct {
	Name         string                 `json:"name"`
	Type         ComponentType          `json:"component_type"`
	Capabilities []string               `json:"capabilities"`
	Requires     []string               `json:"requires,omitempty"`
	Parameters   map[string]interface{} `json:"parameters,omitempty"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`

	// Exactly one of Instance or Factory is set. The registry never calls
	// Factory itself.
	Instance interface{} `json:"-"`
	Factory  Factory     `json:"-"`
}

// RegistrationOption customises a registration built by the typed shorthands.
type RegistrationOption func(*ComponentRegistration)

// WithRequires declares capabilities the component itself depends on.
func WithRequires(requires ...string) RegistrationOption {
	return func(r *ComponentRegistration) {
		r.Requires = append(r.Requires, requires...)
	}
}

// WithParameters sets default invocation parameters.
func WithParameters(params map[string]interface{}) RegistrationOption {
	return func(r *ComponentRegistration) {
		r.Parameters = utils.MergeMaps(r.Parameters, params)
	}
}

// WithMetadata attaches descriptive metadata.
func WithMetadata(metadata map[string]interface{}) RegistrationOption {
	return func(r *ComponentRegistration) {
		r.Metadata = utils.MergeMaps(r.Metadata, metadata)
	}
}

// NewRegistration assembles a registration. provider is either a ready
// instance or a Factory (a plain func with the Factory signature is accepted).
func NewRegistration(name string, typ ComponentType, provider interface{}, capabilities []string, opts ...RegistrationOption) ComponentRegistration {
	reg := ComponentRegistration{
		Name:         name,
		Type:         typ,
		Capabilities: append([]string(nil), capabilities...),
	}
	switch p := provider.(type) {
	case Factory:
		reg.Factory = p
	case func(map[string]interface{}) (interface{}, error):
		reg.Factory = p
	default:
		reg.Instance = provider
	}
	for _, opt := range opts {
		opt(&reg)
	}
	return reg
}

// Instantiate returns the component to invoke. Factories are called with the
// registration parameters overlaid by params.
func (r ComponentRegistration) Instantiate(params map[string]interface{}) (interface{}, error) {
	if r.Factory == nil {
		return r.Instance, nil
	}
	inst, err := r.Factory(utils.MergeMaps(r.Parameters, params))
	if err != nil {
		return nil, &core.FrameworkError{
			Op:   "registry.Instantiate",
			Kind: "registry",
			ID:   r.Name,
			Err:  fmt.Errorf("%w: %v", core.ErrInstantiationFailed, err),
		}
	}
	return inst, nil
}

// Provides reports whether the component lists capability.
func (r ComponentRegistration) Provides(capability string) bool {
	return utils.Contains(r.Capabilities, capability)
}

func (r ComponentRegistration) clone() ComponentRegistration {
	out := r
	out.Capabilities = append([]string(nil), r.Capabilities...)
	out.Requires = append([]string(nil), r.Requires...)
	out.Parameters = utils.CopyMap(r.Parameters)
	out.Metadata = utils.CopyMap(r.Metadata)
	return out
}

func (r ComponentRegistration) validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: name is required", core.ErrInvalidRegistration)
	}
	if !r.Type.Valid() {
		return fmt.Errorf("%w: unknown component type %q", core.ErrInvalidRegistration, r.Type)
	}
	if (r.Instance == nil) == (r.Factory == nil) {
		return fmt.Errorf("%w: exactly one of instance or factory must be set", core.ErrInvalidRegistration)
	}
	return nil
}

// SlotDeclaration is a capability the system anticipates but has no provider for.
type SlotDeclaration struct {
	Name        string                 `json:"name"`
	Requires    []string               `json:"requires,omitempty"`
	Description string                 `json:"description,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

func (s SlotDeclaration) clone() SlotDeclaration {
	out := s
	out.Requires = append([]string(nil), s.Requires...)
	out.Metadata = utils.CopyMap(s.Metadata)
	return out
}

// Summary holds registry counts for introspection.
type Summary struct {
	TotalComponents     int  `json:"total_components"`
	Agents              int  `json:"agents"`
	Plugins             int  `json:"plugins"`
	Services            int  `json:"services"`
	Capabilities        int  `json:"capabilities"`
	Slots               int  `json:"slots"`
	HasServiceDiscovery bool `json:"has_service_discovery"`
}
