package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/itsneelabh/capflow/core"
	"github.com/itsneelabh/capflow/internal/utils"
	"github.com/itsneelabh/capflow/pkg/discovery"
	"github.com/itsneelabh/capflow/pkg/logger"
)

// CapabilityRegistry owns the component table, the capability index and the
// declared slots. It is safe for concurrent use.
type CapabilityRegistry struct {
	// runGate is held shared by every workflow run and exclusively by every
	// mutation, so the registry cannot change underneath an execution.
	runGate sync.RWMutex
	mu      sync.RWMutex

	components map[string]ComponentRegistration
	order      []string            // registration order of live names
	index      map[string][]string // capability -> component names, insertion ordered
	slots      map[string]SlotDeclaration
	slotOrder  []string
	discovery  *discovery.ServiceDiscovery

	logger logger.Logger
}

// NewCapabilityRegistry creates an empty registry. A nil logger is allowed.
func NewCapabilityRegistry(log logger.Logger) *CapabilityRegistry {
	return &CapabilityRegistry{
		components: make(map[string]ComponentRegistration),
		index:      make(map[string][]string),
		slots:      make(map[string]SlotDeclaration),
		logger:     logger.OrNoOp(log).With(map[string]interface{}{"component": "registry"}),
	}
}

// Register adds a component. It fails with *DuplicateNameError when the name
// is live, leaving the registry untouched. Registering the first provider of a
// capability retires a slot of the same name.
func (r *CapabilityRegistry) Register(reg ComponentRegistration) (ComponentRegistration, error) {
	if err := reg.validate(); err != nil {
		return ComponentRegistration{}, &core.FrameworkError{Op: "registry.Register", Kind: "registry", ID: reg.Name, Err: err}
	}
	reg = reg.clone()
	reg.Capabilities = utils.Dedupe(reg.Capabilities)
	reg.Requires = utils.Dedupe(reg.Requires)

	r.runGate.Lock()
	defer r.runGate.Unlock()
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.components[reg.Name]; ok {
		r.logger.Warn("Duplicate component registration rejected", map[string]interface{}{
			"name":          reg.Name,
			"existing_type": string(existing.Type),
		})
		return ComponentRegistration{}, &DuplicateNameError{Name: reg.Name, Existing: existing.Type}
	}

	r.components[reg.Name] = reg
	r.order = append(r.order, reg.Name)

	var retired []string
	for _, capability := range reg.Capabilities {
		r.index[capability] = append(r.index[capability], reg.Name)
		if _, ok := r.slots[capability]; ok {
			delete(r.slots, capability)
			r.slotOrder = utils.Remove(r.slotOrder, capability)
			retired = append(retired, capability)
		}
	}

	r.logger.Info("Component registered", map[string]interface{}{
		"name":          reg.Name,
		"type":          string(reg.Type),
		"capabilities":  reg.Capabilities,
		"requires":      reg.Requires,
		"slots_retired": retired,
	})
	return reg.clone(), nil
}

// RegisterAgent registers provider as an agent.
func (r *CapabilityRegistry) RegisterAgent(name string, provider interface{}, capabilities []string, opts ...RegistrationOption) (ComponentRegistration, error) {
	return r.Register(NewRegistration(name, ComponentTypeAgent, provider, capabilities, opts...))
}

// RegisterPlugin registers provider as a plugin.
func (r *CapabilityRegistry) RegisterPlugin(name string, provider interface{}, capabilities []string, opts ...RegistrationOption) (ComponentRegistration, error) {
	return r.Register(NewRegistration(name, ComponentTypePlugin, provider, capabilities, opts...))
}

// RegisterService registers provider as a service.
func (r *CapabilityRegistry) RegisterService(name string, provider interface{}, capabilities []string, opts ...RegistrationOption) (ComponentRegistration, error) {
	return r.Register(NewRegistration(name, ComponentTypeService, provider, capabilities, opts...))
}

// Unregister removes a component and prunes capability buckets that become
// empty. It returns false when name is unknown.
func (r *CapabilityRegistry) Unregister(name string) bool {
	r.runGate.Lock()
	defer r.runGate.Unlock()
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.components[name]
	if !ok {
		return false
	}
	delete(r.components, name)
	r.order = utils.Remove(r.order, name)

	for _, capability := range reg.Capabilities {
		remaining := utils.Remove(r.index[capability], name)
		if len(remaining) == 0 {
			delete(r.index, capability)
			continue
		}
		r.index[capability] = remaining
	}

	r.logger.Info("Component unregistered", map[string]interface{}{
		"name": name,
		"type": string(reg.Type),
	})
	return true
}

// DeclareSlot records an anticipated capability. When the capability already
// has a provider nothing is recorded, but the slot value is still returned.
func (r *CapabilityRegistry) DeclareSlot(name string, requires []string, description string, metadata map[string]interface{}) SlotDeclaration {
	slot := SlotDeclaration{
		Name:        name,
		Requires:    utils.Dedupe(requires),
		Description: description,
		Metadata:    utils.CopyMap(metadata),
	}

	r.runGate.Lock()
	defer r.runGate.Unlock()
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.index[name]) > 0 {
		r.logger.Debug("Slot not recorded, capability already provided", map[string]interface{}{
			"slot":      name,
			"providers": len(r.index[name]),
		})
		return slot
	}
	if _, exists := r.slots[name]; !exists {
		r.slotOrder = append(r.slotOrder, name)
	}
	r.slots[name] = slot.clone()

	r.logger.Debug("Slot declared", map[string]interface{}{"slot": name})
	return slot
}

// Get returns a copy of the named registration.
func (r *CapabilityRegistry) Get(name string) (ComponentRegistration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.components[name]
	if !ok {
		return ComponentRegistration{}, false
	}
	return reg.clone(), true
}

// Lookup is Get for callers that want an error; misses wrap
// core.ErrComponentNotFound.
func (r *CapabilityRegistry) Lookup(name string) (ComponentRegistration, error) {
	reg, ok := r.Get(name)
	if !ok {
		return ComponentRegistration{}, &core.FrameworkError{
			Op:      "registry.Lookup",
			Kind:    "registry",
			ID:      name,
			Message: fmt.Sprintf("component '%s' not found", name),
			Err:     core.ErrComponentNotFound,
		}
	}
	return reg, nil
}

// FindForCapability returns every provider of capability in registration
// order. Unknown capabilities yield an empty slice.
func (r *CapabilityRegistry) FindForCapability(capability string) []ComponentRegistration {
	return r.find(capability, "")
}

// FindAgentsForCapability returns agent providers of capability.
func (r *CapabilityRegistry) FindAgentsForCapability(capability string) []ComponentRegistration {
	return r.find(capability, ComponentTypeAgent)
}

// FindPluginsForCapability returns plugin providers of capability.
func (r *CapabilityRegistry) FindPluginsForCapability(capability string) []ComponentRegistration {
	return r.find(capability, ComponentTypePlugin)
}

// FindServicesForCapability returns service providers of capability.
func (r *CapabilityRegistry) FindServicesForCapability(capability string) []ComponentRegistration {
	return r.find(capability, ComponentTypeService)
}

func (r *CapabilityRegistry) find(capability string, typ ComponentType) []ComponentRegistration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := r.index[capability]
	out := make([]ComponentRegistration, 0, len(names))
	for _, name := range names {
		reg := r.components[name]
		if typ != "" && reg.Type != typ {
			continue
		}
		out = append(out, reg.clone())
	}
	return out
}

// CheckRequirements reports, per declared requirement of the named component,
// whether some live component or an attached discovery provider satisfies it.
// An unknown name yields an empty map.
func (r *CapabilityRegistry) CheckRequirements(name string) map[string]bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.components[name]
	if !ok {
		return map[string]bool{}
	}
	result := make(map[string]bool, len(reg.Requires))
	for _, requirement := range reg.Requires {
		satisfied := len(r.index[requirement]) > 0
		if !satisfied && r.discovery != nil {
			satisfied = r.discovery.HasProvider(requirement)
		}
		result[requirement] = satisfied
	}
	return result
}

// CanSatisfy is true when every requirement of the named component is met.
// A component without requirements is vacuously satisfiable.
func (r *CapabilityRegistry) CanSatisfy(name string) bool {
	reg, ok := r.Get(name)
	if !ok {
		return false
	}
	if len(reg.Requires) == 0 {
		return true
	}
	checks := r.CheckRequirements(name)
	if len(checks) == 0 {
		return false
	}
	for _, ok := range checks {
		if !ok {
			return false
		}
	}
	return true
}

// SetServiceDiscovery attaches sd, replacing any previous instance. Passing
// nil detaches it.
func (r *CapabilityRegistry) SetServiceDiscovery(sd *discovery.ServiceDiscovery) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.discovery = sd
}

// ServiceDiscovery returns the attached instance, or nil.
func (r *CapabilityRegistry) ServiceDiscovery() *discovery.ServiceDiscovery {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.discovery
}

// AllCapabilities maps every provided capability to its sorted provider names.
func (r *CapabilityRegistry) AllCapabilities() map[string][]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string][]string, len(r.index))
	for capability, names := range r.index {
		sorted := append([]string(nil), names...)
		sort.Strings(sorted)
		out[capability] = sorted
	}
	return out
}

// AllSlots returns declared slots in declaration order.
func (r *CapabilityRegistry) AllSlots() []SlotDeclaration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]SlotDeclaration, 0, len(r.slotOrder))
	for _, name := range r.slotOrder {
		out = append(out, r.slots[name].clone())
	}
	return out
}

// AllRegistrations returns live registrations in registration order,
// optionally restricted to the given types.
func (r *CapabilityRegistry) AllRegistrations(types ...ComponentType) []ComponentRegistration {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ComponentRegistration, 0, len(r.order))
	for _, name := range r.order {
		reg := r.components[name]
		if len(types) > 0 && !containsType(types, reg.Type) {
			continue
		}
		out = append(out, reg.clone())
	}
	return out
}

// Summary returns registry counts.
func (r *CapabilityRegistry) Summary() Summary {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := Summary{
		TotalComponents:     len(r.components),
		Capabilities:        len(r.index),
		Slots:               len(r.slots),
		HasServiceDiscovery: r.discovery != nil,
	}
	for _, reg := range r.components {
		switch reg.Type {
		case ComponentTypeAgent:
			s.Agents++
		case ComponentTypePlugin:
			s.Plugins++
		case ComponentTypeService:
			s.Services++
		}
	}
	return s
}

// runHeldKey marks a context whose run already holds the gate of reg.
type runHeldKey struct {
	reg *CapabilityRegistry
}

// AcquireRun marks the start of a workflow run. Mutations block until every
// returned release function has been called. Release is idempotent.
//
// The returned context carries a marker; a nested run started with it (a
// component executing a sub-workflow on the same registry) does not take the
// gate again and gets a no-op release. Components must not mutate the
// registry they run under: the mutation waits for the enclosing run to end.
func (r *CapabilityRegistry) AcquireRun(ctx context.Context) (context.Context, func()) {
	if r.RunHeld(ctx) {
		return ctx, func() {}
	}
	r.runGate.RLock()
	var once sync.Once
	return context.WithValue(ctx, runHeldKey{reg: r}, true), func() {
		once.Do(r.runGate.RUnlock)
	}
}

// RunHeld reports whether ctx belongs to a run holding this registry's gate.
func (r *CapabilityRegistry) RunHeld(ctx context.Context) bool {
	held, _ := ctx.Value(runHeldKey{reg: r}).(bool)
	return held
}

func containsType(types []ComponentType, t ComponentType) bool {
	for _, candidate := range types {
		if candidate == t {
			return true
		}
	}
	return false
}
