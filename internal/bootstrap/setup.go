package bootstrap

import (
	"fmt"
	"sort"
	"strings"

	"github.com/itsneelabh/capflow/pkg/discovery"
	"github.com/itsneelabh/capflow/pkg/logger"
	"github.com/itsneelabh/capflow/pkg/registry"
)

// Setup is a populated registry and its discovery instance.
type Setup struct {
	Registry  *registry.CapabilityRegistry
	Discovery *discovery.ServiceDiscovery
	// Dropped lists optional components removed for unmet requirements.
	Dropped []string
}

// SetupRegistry builds a registry from m. Providers are registered first so
// component requirements can be checked against them. Errors in required
// entries are returned; optional components with unmet requirements are
// dropped and their capabilities declared as slots.
func SetupRegistry(m *Manifest, log logger.Logger) (*Setup, error) {
	log = logger.OrNoOp(log).With(map[string]interface{}{"component": "bootstrap"})

	sd := discovery.NewServiceDiscovery(log)
	for _, p := range m.Providers {
		if _, err := registerProvider(sd, p); err != nil {
			return nil, fmt.Errorf("provider %s: %w", p.Name, err)
		}
	}

	reg := registry.NewCapabilityRegistry(log)
	reg.SetServiceDiscovery(sd)

	for _, c := range m.Components {
		typ, err := registry.ParseComponentType(c.Type)
		if err != nil {
			return nil, err
		}
		r := registry.NewRegistration(c.Name, typ, c.Kind.Factory(), c.Capabilities,
			registry.WithRequires(c.Requires...),
			registry.WithParameters(c.Parameters),
			registry.WithMetadata(c.Metadata),
			registry.WithMetadata(map[string]interface{}{"kind": string(c.Kind)}),
		)
		if _, err := reg.Register(r); err != nil {
			return nil, err
		}
	}

	// Dropping a component can strand another optional component that needed
	// it, so sweep until nothing more is dropped.
	var dropped []string
	isDropped := make(map[string]bool)
	for changed := true; changed; {
		changed = false
		for _, c := range m.Components {
			if !c.Optional || isDropped[c.Name] || reg.CanSatisfy(c.Name) {
				continue
			}
			missing := unmet(reg.CheckRequirements(c.Name))
			reg.Unregister(c.Name)
			isDropped[c.Name] = true
			dropped = append(dropped, c.Name)
			changed = true
			for _, capability := range c.Capabilities {
				reg.DeclareSlot(capability, c.Requires,
					fmt.Sprintf("provided by %s when %s is available", c.Name, strings.Join(missing, ", ")),
					map[string]interface{}{"component": c.Name})
			}
			log.Warn("Optional component dropped, requirements not met", map[string]interface{}{
				"name":    c.Name,
				"missing": missing,
			})
		}
	}

	for _, s := range m.Slots {
		reg.DeclareSlot(s.Name, s.Requires, s.Description, s.Metadata)
	}

	summary := reg.Summary()
	log.Info("Registry ready", map[string]interface{}{
		"components":   summary.TotalComponents,
		"capabilities": summary.Capabilities,
		"slots":        summary.Slots,
		"providers":    len(sd.Providers()),
		"dropped":      len(dropped),
	})

	return &Setup{Registry: reg, Discovery: sd, Dropped: dropped}, nil
}

func registerProvider(sd *discovery.ServiceDiscovery, p discovery.ProviderRegistration) (discovery.ProviderRegistration, error) {
	switch strings.ToLower(p.ProviderType) {
	case discovery.ProviderTypeLLM:
		return sd.RegisterLLMProvider(p)
	case discovery.ProviderTypeEmbedding:
		return sd.RegisterEmbeddingProvider(p)
	case discovery.ProviderTypeSTT:
		return sd.RegisterSTTProvider(p)
	default:
		return sd.RegisterProvider(p)
	}
}

func unmet(status map[string]bool) []string {
	var missing []string
	for req, ok := range status {
		if !ok {
			missing = append(missing, req)
		}
	}
	sort.Strings(missing)
	return missing
}
