package discovery

import (
	"fmt"
	"sort"
	"sync"

	"github.com/itsneelabh/capflow/core"
	"github.com/itsneelabh/capflow/pkg/logger"
)

// ServiceDiscovery tracks infrastructure providers ranked by priority.
// There is no removal API; build a new instance when topology changes.
type ServiceDiscovery struct {
	mu        sync.RWMutex
	providers map[string]ProviderRegistration
	order     []string
	logger    logger.Logger
}

// NewServiceDiscovery creates an empty discovery instance.
func NewServiceDiscovery(log logger.Logger) *ServiceDiscovery {
	return &ServiceDiscovery{
		providers: make(map[string]ProviderRegistration),
		logger:    logger.OrNoOp(log).With(map[string]interface{}{"component": "service_discovery"}),
	}
}

// RegisterProvider adds p. Names are unique within the instance.
func (s *ServiceDiscovery) RegisterProvider(p ProviderRegistration) (ProviderRegistration, error) {
	if p.Name == "" || p.ProviderType == "" {
		return ProviderRegistration{}, &core.FrameworkError{
			Op:      "discovery.RegisterProvider",
			Kind:    "discovery",
			ID:      p.Name,
			Message: "provider name and type are required",
			Err:     core.ErrInvalidRegistration,
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.providers[p.Name]; exists {
		return ProviderRegistration{}, &core.FrameworkError{
			Op:   "discovery.RegisterProvider",
			Kind: "discovery",
			ID:   p.Name,
			Err:  fmt.Errorf("%w: %s", core.ErrDuplicateProvider, p.Name),
		}
	}

	p = p.clone()
	s.providers[p.Name] = p
	s.order = append(s.order, p.Name)

	s.logger.Info("Provider registered", map[string]interface{}{
		"name":     p.Name,
		"type":     p.ProviderType,
		"priority": p.Priority,
		"models":   p.Models,
	})
	return p.clone(), nil
}

// RegisterLLMProvider registers p as an "llm" provider.
func (s *ServiceDiscovery) RegisterLLMProvider(p ProviderRegistration) (ProviderRegistration, error) {
	return s.RegisterProvider(withType(p, ProviderTypeLLM))
}

// RegisterEmbeddingProvider registers p as an "embedding" provider.
func (s *ServiceDiscovery) RegisterEmbeddingProvider(p ProviderRegistration) (ProviderRegistration, error) {
	return s.RegisterProvider(withType(p, ProviderTypeEmbedding))
}

// RegisterSTTProvider registers p as an "stt" provider.
func (s *ServiceDiscovery) RegisterSTTProvider(p ProviderRegistration) (ProviderRegistration, error) {
	return s.RegisterProvider(withType(p, ProviderTypeSTT))
}

func withType(p ProviderRegistration, providerType string) ProviderRegistration {
	p.ProviderType = providerType
	if len(p.Capabilities) == 0 {
		p.Capabilities = append([]string(nil), defaultCapabilities[providerType]...)
	}
	return p
}

// ProvidersByType returns providers of providerType, highest priority first.
// Equal priorities keep registration order.
func (s *ServiceDiscovery) ProvidersByType(providerType string) []ProviderRegistration {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []ProviderRegistration
	for _, name := range s.order {
		if p := s.providers[name]; p.ProviderType == providerType {
			out = append(out, p.clone())
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority > out[j].Priority
	})
	return out
}

// BestProvider returns the highest priority provider of providerType.
func (s *ServiceDiscovery) BestProvider(providerType string) (ProviderRegistration, bool) {
	providers := s.ProvidersByType(providerType)
	if len(providers) == 0 {
		return ProviderRegistration{}, false
	}
	return providers[0], true
}

// HasProvider reports whether any provider of providerType is registered.
// No reachability check is made.
func (s *ServiceDiscovery) HasProvider(providerType string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.providers {
		if p.ProviderType == providerType {
			return true
		}
	}
	return false
}

// Provider looks up a provider by name.
func (s *ServiceDiscovery) Provider(name string) (ProviderRegistration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.providers[name]
	if !ok {
		return ProviderRegistration{}, false
	}
	return p.clone(), true
}

// Lookup is Provider for callers that want an error; misses wrap
// core.ErrProviderNotFound.
func (s *ServiceDiscovery) Lookup(name string) (ProviderRegistration, error) {
	p, ok := s.Provider(name)
	if !ok {
		return ProviderRegistration{}, &core.FrameworkError{
			Op:      "discovery.Lookup",
			Kind:    "discovery",
			ID:      name,
			Message: fmt.Sprintf("provider '%s' not found", name),
			Err:     core.ErrProviderNotFound,
		}
	}
	return p, nil
}

// Providers returns every provider in registration order.
func (s *ServiceDiscovery) Providers() []ProviderRegistration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ProviderRegistration, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.providers[name].clone())
	}
	return out
}

// Types returns the distinct provider types, sorted.
func (s *ServiceDiscovery) Types() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	var out []string
	for _, p := range s.providers {
		if _, ok := seen[p.ProviderType]; !ok {
			seen[p.ProviderType] = struct{}{}
			out = append(out, p.ProviderType)
		}
	}
	sort.Strings(out)
	return out
}
