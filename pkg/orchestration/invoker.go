package orchestration

import (
	"context"
	"fmt"

	"github.com/itsneelabh/capflow/core"
	"github.com/itsneelabh/capflow/pkg/registry"
)

// Invoker calls a resolved component instance for one phase. The executor
// picks an Invoker by the registration's ComponentType.
type Invoker interface {
	Invoke(ctx context.Context, component interface{}, inv Invocation) (interface{}, error)
}

// InvokerFunc adapts a function to Invoker.
type InvokerFunc func(ctx context.Context, component interface{}, inv Invocation) (interface{}, error)

func (f InvokerFunc) Invoke(ctx context.Context, component interface{}, inv Invocation) (interface{}, error) {
	return f(ctx, component, inv)
}

// AgentInvoker calls Agent.Handle.
func AgentInvoker() Invoker {
	return InvokerFunc(func(ctx context.Context, component interface{}, inv Invocation) (interface{}, error) {
		switch c := component.(type) {
		case Agent:
			return c.Handle(ctx, inv.Input, inv.Parameters, inv.Context)
		case ComponentFunc:
			return c(ctx, inv)
		}
		return nil, unsupported(component, inv, "Agent")
	})
}

// PluginInvoker calls Plugin.Execute.
func PluginInvoker() Invoker {
	return InvokerFunc(func(ctx context.Context, component interface{}, inv Invocation) (interface{}, error) {
		switch c := component.(type) {
		case Plugin:
			return c.Execute(ctx, inv.Input, inv.Parameters, inv.Context)
		case ComponentFunc:
			return c(ctx, inv)
		}
		return nil, unsupported(component, inv, "Plugin")
	})
}

// ServiceInvoker calls Service.Call.
func ServiceInvoker() Invoker {
	return InvokerFunc(func(ctx context.Context, component interface{}, inv Invocation) (interface{}, error) {
		switch c := component.(type) {
		case Service:
			return c.Call(ctx, inv.Input, inv.Parameters, inv.Context)
		case ComponentFunc:
			return c(ctx, inv)
		}
		return nil, unsupported(component, inv, "Service")
	})
}

// DefaultInvokers returns the standard table keyed by component type.
func DefaultInvokers() map[registry.ComponentType]Invoker {
	return map[registry.ComponentType]Invoker{
		registry.ComponentTypeAgent:   AgentInvoker(),
		registry.ComponentTypePlugin:  PluginInvoker(),
		registry.ComponentTypeService: ServiceInvoker(),
	}
}

func unsupported(component interface{}, inv Invocation, want string) error {
	return &core.FrameworkError{
		Op:   "orchestration.Invoke",
		Kind: "invocation",
		ID:   inv.Registration.Name,
		Err:  fmt.Errorf("%w: %T does not implement %s", core.ErrUnsupportedComponent, component, want),
	}
}
