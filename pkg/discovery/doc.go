// Package discovery tracks infrastructure providers (LLM, embedding and
// speech backends) ranked by priority.
//
// ServiceDiscovery is an in-process registry. ProvidersByType sorts by
// priority, highest first, and keeps registration order among equal
// priorities so provider selection is deterministic:
//
//	sd := discovery.NewServiceDiscovery(log)
//	sd.RegisterLLMProvider(discovery.ProviderRegistration{Name: "local", Priority: 1})
//	sd.RegisterLLMProvider(discovery.ProviderRegistration{Name: "primary", Priority: 10})
//	best, _ := sd.BestProvider(discovery.ProviderTypeLLM) // "primary"
//
// A ServiceDiscovery attached to a registry.CapabilityRegistry lets component
// requirements be satisfied by provider type.
//
// RedisCatalog shares a snapshot between processes. Publish writes the
// providers under a namespace; Load rebuilds an equivalent ServiceDiscovery
// and falls back to the last snapshot held in a local go-cache when Redis is
// unreachable. API keys are never written to Redis.
package discovery
