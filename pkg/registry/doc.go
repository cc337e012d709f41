// Package registry indexes analysis components by the capabilities they
// provide.
//
// A component is registered once under a unique name with a ComponentType
// (agent, plugin or service), a list of capabilities it provides and the
// capabilities it requires. The registry keeps a capability index in
// registration order, so FindForCapability is deterministic:
//
//	reg := registry.NewCapabilityRegistry(log)
//	reg.RegisterAgent("fallacy-detector", detector, []string{"fallacy_detection"},
//	    registry.WithRequires("text_generation"))
//	providers := reg.FindForCapability("fallacy_detection")
//
// Registering a live name fails with *DuplicateNameError and leaves the
// registry untouched. Query methods never fail; unknown names and
// capabilities produce empty results.
//
// Slots document extension points with no provider yet. DeclareSlot is a
// no-op once a provider exists, and the first provider of a capability
// retires its slot.
//
// Requirements are satisfied by any live provider of the capability or, when
// a discovery.ServiceDiscovery is attached, by a provider of that type.
//
// Workflow runs call AcquireRun for their duration. Mutations wait until all
// runs release, so the registry never changes underneath an execution. The
// gate is re-entrant through the context AcquireRun returns, so nested runs
// on the same registry never wait on a queued mutation. Components must not
// register or unregister from inside an invocation.
package registry
